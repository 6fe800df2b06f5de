package store

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/google/uuid"
	"github.com/huandu/go-clone"
)

type APIState string

const (
	APIStateIdle    APIState = "idle"
	APIStateLoading APIState = "loading"
	APIStateError   APIState = "error"
)

type ColorScheme string

const (
	ColorSchemeLight ColorScheme = "light"
	ColorSchemeDark  ColorScheme = "dark"
)

type UIState struct {
	ColorScheme    ColorScheme `json:"colorScheme" yaml:"color_scheme"`
	NavOpened      bool        `json:"navOpened" yaml:"nav_opened"`
	PushToTalkMode bool        `json:"pushToTalkMode" yaml:"push_to_talk_mode"`
}

// RequestHandle tracks the single in-flight completion request.
// It is shared between snapshots, never copied.
type RequestHandle struct {
	ID             string
	ConversationID conversation.ConversationID
	MessageID      conversation.MessageID
	StartedAt      time.Time

	once   sync.Once
	cancel context.CancelFunc
}

func NewRequestHandle(
	conversationID conversation.ConversationID,
	messageID conversation.MessageID,
	cancel context.CancelFunc,
) *RequestHandle {
	return &RequestHandle{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		MessageID:      messageID,
		StartedAt:      time.Now(),
		cancel:         cancel,
	}
}

// Cancel cancels the request context. Calling it more than once is a no-op.
func (h *RequestHandle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
	})
}

type State struct {
	APIState             APIState                     `json:"apiState" yaml:"api_state"`
	APIKey               *string                      `json:"apiKey,omitempty" yaml:"api_key,omitempty"`
	Conversations        []*conversation.Conversation `json:"conversations" yaml:"conversations"`
	ActiveConversationID *conversation.ConversationID `json:"activeConversationId,omitempty" yaml:"active_conversation_id,omitempty"`
	CurrentRequest       *RequestHandle               `json:"-" yaml:"-"`
	Settings             *settings.Settings           `json:"settings" yaml:"settings"`
	EditingMessage       *conversation.Message        `json:"editingMessage,omitempty" yaml:"editing_message,omitempty"`
	UI                   UIState                      `json:"ui" yaml:"ui"`
	Version              int64                        `json:"version" yaml:"version"`
}

// InitialState has a single empty conversation, which is active.
func InitialState() *State {
	c := conversation.NewConversation()
	id := c.ID
	return &State{
		APIState:             APIStateIdle,
		Conversations:        []*conversation.Conversation{c},
		ActiveConversationID: &id,
		Settings:             settings.NewSettings(),
		UI: UIState{
			ColorScheme: ColorSchemeDark,
		},
	}
}

// Clone deep copies the state. The request handle is shared.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	shallow := *s
	shallow.CurrentRequest = nil
	ret := clone.Clone(&shallow).(*State)
	ret.CurrentRequest = s.CurrentRequest
	return ret
}

// Conversation returns the conversation with the given id and its index.
func (s *State) Conversation(id conversation.ConversationID) (*conversation.Conversation, int) {
	for i, c := range s.Conversations {
		if c.ID == id {
			return c, i
		}
	}
	return nil, -1
}

// ActiveConversation returns nil if no conversation is active.
func (s *State) ActiveConversation() *conversation.Conversation {
	if s.ActiveConversationID == nil {
		return nil
	}
	c, _ := s.Conversation(*s.ActiveConversationID)
	return c
}

func (s *State) HasCredential() bool {
	return s.APIKey != nil && *s.APIKey != ""
}

func (s *State) IsLoading() bool {
	return s.APIState == APIStateLoading
}
