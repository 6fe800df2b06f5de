package conversation

import (
	"time"

	"github.com/huandu/go-clone"
)

// Conversation is an ordered thread of messages with an optional inferred title.
type Conversation struct {
	ID              ConversationID `json:"id" yaml:"id"`
	Title           *string        `json:"title,omitempty" yaml:"title,omitempty"`
	Messages        Messages       `json:"messages" yaml:"messages"`
	ChosenCharacter *string        `json:"chosenCharacter,omitempty" yaml:"chosen_character,omitempty"`
	TokensUsed      *int           `json:"tokensUsed,omitempty" yaml:"tokens_used,omitempty"`
	CreatedAt       time.Time      `json:"createdAt" yaml:"created_at"`
}

type ConversationOption func(*Conversation)

func WithTitle(title *string) ConversationOption {
	return func(c *Conversation) {
		if title != nil {
			t := *title
			c.Title = &t
		}
	}
}

func WithMessages(messages ...*Message) ConversationOption {
	return func(c *Conversation) {
		c.Messages = append(c.Messages, messages...)
	}
}

func WithConversationID(id ConversationID) ConversationOption {
	return func(c *Conversation) {
		c.ID = id
	}
}

func NewConversation(options ...ConversationOption) *Conversation {
	ret := &Conversation{
		ID:        NewConversationID(),
		Messages:  Messages{},
		CreatedAt: time.Now(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (c *Conversation) Message(id MessageID) (*Message, bool) {
	idx := c.Messages.IndexOf(id)
	if idx < 0 {
		return nil, false
	}
	return c.Messages[idx], true
}

func (c *Conversation) HasTitle() bool {
	return c.Title != nil
}

func (c *Conversation) TitleOr(fallback string) string {
	if c.Title == nil || *c.Title == "" {
		return fallback
	}
	return *c.Title
}

func (c *Conversation) WordCount() int {
	return c.Messages.WordCount()
}

func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	return clone.Clone(c).(*Conversation)
}
