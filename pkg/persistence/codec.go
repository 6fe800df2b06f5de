package persistence

import (
	"encoding/json"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/pkg/errors"
)

func EncodeState(s *store.State) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode state")
	}
	return b, nil
}

// DecodeState parses a persisted state and normalizes it for a fresh process.
func DecodeState(b []byte) (*store.State, error) {
	s := &store.State{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, errors.Wrap(err, "could not decode state")
	}
	Normalize(s)
	return s, nil
}

// Normalize repairs what cannot survive a restart: nothing is in flight any
// more, nothing is loading, and the active conversation must exist.
func Normalize(s *store.State) {
	s.CurrentRequest = nil
	if s.APIState == "" || s.APIState == store.APIStateLoading {
		s.APIState = store.APIStateIdle
	}
	if s.Settings == nil {
		s.Settings = settings.NewSettings()
	}

	conversations := make([]*conversation.Conversation, 0, len(s.Conversations))
	for _, c := range s.Conversations {
		if c == nil {
			continue
		}
		if c.ID.IsZero() {
			c.ID = conversation.NewConversationID()
		}
		msgs := make(conversation.Messages, 0, len(c.Messages))
		for _, m := range c.Messages {
			if m == nil {
				continue
			}
			if m.ID.IsZero() {
				m.ID = conversation.NewMessageID()
			}
			m.Loading = false
			msgs = append(msgs, m)
		}
		c.Messages = msgs
		conversations = append(conversations, c)
	}
	s.Conversations = conversations

	if len(s.Conversations) == 0 {
		c := conversation.NewConversation()
		s.Conversations = append(s.Conversations, c)
	}
	if s.ActiveConversationID != nil {
		if c, _ := s.Conversation(*s.ActiveConversationID); c == nil {
			s.ActiveConversationID = nil
		}
	}
	if s.ActiveConversationID == nil {
		id := s.Conversations[len(s.Conversations)-1].ID
		s.ActiveConversationID = &id
	}
}
