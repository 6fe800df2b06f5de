package store

import (
	"strings"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AddConversation creates a conversation, appends it and makes it active.
func (st *Store) AddConversation(title *string) (conversation.ConversationID, error) {
	c := conversation.NewConversation(conversation.WithTitle(title))
	if err := st.Apply(MutateAddConversation(c)); err != nil {
		return conversation.NullConversationID, err
	}
	return c.ID, nil
}

// ImportConversation adds an existing conversation, assigning a fresh id if
// it collides with one already in the store.
func (st *Store) ImportConversation(c *conversation.Conversation) (conversation.ConversationID, error) {
	c = c.Clone()
	err := st.Apply(MutateFunc("import_conversation", func(s *State) error {
		if existing, _ := s.Conversation(c.ID); existing != nil || c.ID.IsZero() {
			c.ID = conversation.NewConversationID()
		}
		return MutateAddConversation(c).Apply(s)
	}))
	if err != nil {
		return conversation.NullConversationID, err
	}
	return c.ID, nil
}

func (st *Store) DeleteConversation(id conversation.ConversationID) error {
	return st.Apply(MutateDeleteConversation(id))
}

func (st *Store) SetActiveConversation(id conversation.ConversationID) error {
	return st.Apply(MutateSetActiveConversation(id))
}

// RenameConversation sets a title by hand. An empty title clears it.
func (st *Store) RenameConversation(id conversation.ConversationID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return st.SetConversationTitle(id, nil)
	}
	return st.SetConversationTitle(id, &title)
}

// ClearConversations drops every conversation and starts over with one
// empty active conversation. An in-flight request is cancelled.
func (st *Store) ClearConversations() error {
	var handle *RequestHandle
	err := st.Apply(MutateBatch("clear_conversations",
		MutateFunc("cancel_request", func(s *State) error {
			handle = s.CurrentRequest
			s.CurrentRequest = nil
			if s.APIState == APIStateLoading {
				s.APIState = APIStateIdle
			}
			return nil
		}),
		MutateClearConversations(conversation.NewConversation()),
	))
	if err != nil {
		return err
	}
	handle.Cancel()
	return nil
}

func (st *Store) PushMessage(msg *conversation.Message) error {
	return st.logActive(st.Apply(MutatePushMessage(msg)), "push message")
}

func (st *Store) DeleteMessage(id conversation.MessageID) error {
	return st.logActive(st.Apply(MutateDeleteMessage(id)), "delete message")
}

func (st *Store) UpdateMessage(msg *conversation.Message) error {
	return st.logActive(st.Apply(MutateUpdateMessage(msg)), "update message")
}

func (st *Store) logActive(err error, op string) error {
	if errors.Is(err, ErrNoActiveConversation) {
		log.Warn().Str("op", op).Msg("no active conversation")
	}
	return err
}

func (st *Store) SetAPIKey(key string) error {
	return st.Apply(MutateSetAPIKey(strings.TrimSpace(key)))
}

func (st *Store) SetAPIState(state APIState) error {
	return st.Apply(MutateSetAPIState(state))
}

func (st *Store) UpdateSettings(s *settings.Settings) error {
	if s == nil {
		return errors.New("settings are nil")
	}
	return st.Apply(MutateUpdateSettings(s))
}

func (st *Store) SetColorScheme(scheme ColorScheme) error {
	switch scheme {
	case ColorSchemeLight, ColorSchemeDark:
	default:
		return errors.Errorf("unknown color scheme %q", scheme)
	}
	return st.Apply(MutateSetColorScheme(scheme))
}

func (st *Store) SetNavOpened(opened bool) error {
	return st.Apply(MutateSetNavOpened(opened))
}

func (st *Store) SetPushToTalkMode(enabled bool) error {
	return st.Apply(MutateSetPushToTalkMode(enabled))
}

func (st *Store) SetEditingMessage(msg *conversation.Message) error {
	return st.Apply(MutateSetEditingMessage(msg))
}

func (st *Store) SetChosenCharacter(name string) error {
	return st.logActive(st.Apply(MutateSetChosenCharacter(name)), "set chosen character")
}

func (st *Store) AppendMessageContent(conversationID conversation.ConversationID, messageID conversation.MessageID, chunk string) error {
	return st.Apply(MutateAppendMessageContent(conversationID, messageID, chunk))
}

func (st *Store) SetConversationTitle(conversationID conversation.ConversationID, title *string) error {
	return st.Apply(MutateSetConversationTitle(conversationID, title))
}

func (st *Store) UpdateConversationTitle(conversationID conversation.ConversationID, fn func(title *string) *string) error {
	return st.Apply(MutateUpdateConversationTitle(conversationID, fn))
}

func (st *Store) EndRequest(requestID string, state APIState) error {
	return st.Apply(MutateEndRequest(requestID, state))
}
