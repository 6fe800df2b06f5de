package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-clone"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleAssistant, RoleUser:
		return true
	}
	return false
}

// Message is a single turn of a conversation.
//
// Content is appended to while the assistant response streams in, and Loading
// stays true until the stream finished.
type Message struct {
	ID      MessageID `json:"id" yaml:"id"`
	Role    Role      `json:"role" yaml:"role"`
	Content string    `json:"content" yaml:"content"`
	Loading bool      `json:"loading,omitempty" yaml:"loading,omitempty"`
	Time    time.Time `json:"time" yaml:"time"`
}

type MessageOption func(*Message)

func WithID(id MessageID) MessageOption {
	return func(message *Message) {
		message.ID = id
	}
}

func WithTime(time time.Time) MessageOption {
	return func(message *Message) {
		message.Time = time
	}
}

func WithLoading(loading bool) MessageOption {
	return func(message *Message) {
		message.Loading = loading
	}
}

func NewMessage(role Role, content string, options ...MessageOption) *Message {
	ret := &Message{
		ID:      NewMessageID(),
		Role:    role,
		Content: content,
		Time:    time.Now(),
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

func NewUserMessage(content string, options ...MessageOption) *Message {
	return NewMessage(RoleUser, content, options...)
}

// NewPlaceholder returns an empty assistant message that is still loading.
func NewPlaceholder() *Message {
	return NewMessage(RoleAssistant, "", WithLoading(true))
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	return clone.Clone(m).(*Message)
}

func (m *Message) WordCount() int {
	if m == nil {
		return 0
	}
	return len(strings.Fields(m.Content))
}

func (m *Message) View() string {
	// If we are markdown, add a newline so that it becomes valid markdown to parse.
	text := m.Content
	if strings.HasPrefix(text, "```") {
		text = "\n" + text
	}
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(text, "\n"))
}

type Messages []*Message

// IndexOf returns the position of the message with the given id, or -1.
func (messages Messages) IndexOf(id MessageID) int {
	for i, m := range messages {
		if m != nil && m.ID == id {
			return i
		}
	}
	return -1
}

func (messages Messages) WordCount() int {
	n := 0
	for _, m := range messages {
		n += m.WordCount()
	}
	return n
}

func (messages Messages) Clone() Messages {
	if messages == nil {
		return nil
	}
	ret := make(Messages, len(messages))
	for i, m := range messages {
		ret[i] = m.Clone()
	}
	return ret
}

// Transcript renders the messages as "[role]: text" lines.
func (messages Messages) Transcript() string {
	var sb strings.Builder
	for _, m := range messages {
		if m == nil {
			continue
		}
		_, _ = fmt.Fprintf(&sb, "[%s]: %s\n", m.Role, m.Content)
	}
	return sb.String()
}
