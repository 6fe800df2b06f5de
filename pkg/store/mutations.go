package store

import (
	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/pkg/errors"
)

// Mutation is a deterministic change to the state. Mutations run on a private
// copy of the state; a mutation that fails leaves the store untouched.
type Mutation interface {
	Apply(s *State) error
	Name() string
}

type funcMutation struct {
	name string
	fn   func(s *State) error
}

func (m funcMutation) Apply(s *State) error { return m.fn(s) }
func (m funcMutation) Name() string         { return m.name }

// MutateFunc wraps an ad-hoc function as a named mutation.
func MutateFunc(name string, fn func(s *State) error) Mutation {
	return funcMutation{name: name, fn: fn}
}

type batchMutation struct {
	name      string
	mutations []Mutation
}

func (m batchMutation) Apply(s *State) error {
	for _, mut := range m.mutations {
		if err := mut.Apply(s); err != nil {
			return errors.Wrapf(err, "%s", mut.Name())
		}
	}
	return nil
}

func (m batchMutation) Name() string { return m.name }

// MutateBatch applies all mutations as a single atomic change.
func MutateBatch(name string, mutations ...Mutation) Mutation {
	return batchMutation{name: name, mutations: mutations}
}

type ifCurrentRequestMutation struct {
	requestID string
	inner     Mutation
}

func (m ifCurrentRequestMutation) Apply(s *State) error {
	if s.CurrentRequest == nil || s.CurrentRequest.ID != m.requestID {
		return ErrStaleRequest
	}
	return m.inner.Apply(s)
}

func (m ifCurrentRequestMutation) Name() string { return m.inner.Name() }

// MutateIfCurrentRequest only applies inner while requestID is the in-flight request.
func MutateIfCurrentRequest(requestID string, inner Mutation) Mutation {
	return ifCurrentRequestMutation{requestID: requestID, inner: inner}
}

type addConversationMutation struct {
	conversation *conversation.Conversation
}

func (m addConversationMutation) Apply(s *State) error {
	c := m.conversation.Clone()
	s.Conversations = append(s.Conversations, c)
	id := c.ID
	s.ActiveConversationID = &id
	return nil
}

func (m addConversationMutation) Name() string { return "add_conversation" }

// MutateAddConversation appends c and makes it active.
func MutateAddConversation(c *conversation.Conversation) Mutation {
	return addConversationMutation{conversation: c}
}

type deleteConversationMutation struct {
	id conversation.ConversationID
}

func (m deleteConversationMutation) Apply(s *State) error {
	_, idx := s.Conversation(m.id)
	if idx < 0 {
		return ErrConversationNotFound
	}
	s.Conversations = append(s.Conversations[:idx], s.Conversations[idx+1:]...)
	if s.ActiveConversationID != nil && *s.ActiveConversationID == m.id {
		if len(s.Conversations) == 0 {
			s.ActiveConversationID = nil
		} else {
			id := s.Conversations[len(s.Conversations)-1].ID
			s.ActiveConversationID = &id
		}
	}
	return nil
}

func (m deleteConversationMutation) Name() string { return "delete_conversation" }

func MutateDeleteConversation(id conversation.ConversationID) Mutation {
	return deleteConversationMutation{id: id}
}

type setActiveConversationMutation struct {
	id conversation.ConversationID
}

func (m setActiveConversationMutation) Apply(s *State) error {
	if c, _ := s.Conversation(m.id); c == nil {
		return ErrConversationNotFound
	}
	id := m.id
	s.ActiveConversationID = &id
	return nil
}

func (m setActiveConversationMutation) Name() string { return "set_active_conversation" }

func MutateSetActiveConversation(id conversation.ConversationID) Mutation {
	return setActiveConversationMutation{id: id}
}

type clearConversationsMutation struct {
	conversation *conversation.Conversation
}

func (m clearConversationsMutation) Apply(s *State) error {
	c := m.conversation.Clone()
	s.Conversations = []*conversation.Conversation{c}
	id := c.ID
	s.ActiveConversationID = &id
	s.EditingMessage = nil
	return nil
}

func (m clearConversationsMutation) Name() string { return "clear_conversations" }

// MutateClearConversations replaces every conversation with c.
func MutateClearConversations(c *conversation.Conversation) Mutation {
	return clearConversationsMutation{conversation: c}
}

func activeConversation(s *State) (*conversation.Conversation, error) {
	c := s.ActiveConversation()
	if c == nil {
		return nil, ErrNoActiveConversation
	}
	return c, nil
}

type pushMessageMutation struct {
	message *conversation.Message
}

func (m pushMessageMutation) Apply(s *State) error {
	c, err := activeConversation(s)
	if err != nil {
		return err
	}
	msg := m.message.Clone()
	if msg.ID.IsZero() {
		msg.ID = conversation.NewMessageID()
	}
	if idx := c.Messages.IndexOf(msg.ID); idx >= 0 {
		c.Messages[idx] = msg
		return nil
	}
	c.Messages = append(c.Messages, msg)
	return nil
}

func (m pushMessageMutation) Name() string { return "push_message" }

// MutatePushMessage appends the message to the active conversation, or
// replaces the message with the same id. A message without id gets a new one.
func MutatePushMessage(msg *conversation.Message) Mutation {
	return pushMessageMutation{message: msg}
}

type deleteMessageMutation struct {
	id conversation.MessageID
}

func (m deleteMessageMutation) Apply(s *State) error {
	c, err := activeConversation(s)
	if err != nil {
		return err
	}
	msgs := make(conversation.Messages, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.ID != m.id {
			msgs = append(msgs, msg)
		}
	}
	c.Messages = msgs
	return nil
}

func (m deleteMessageMutation) Name() string { return "delete_message" }

func MutateDeleteMessage(id conversation.MessageID) Mutation {
	return deleteMessageMutation{id: id}
}

type updateMessageMutation struct {
	message *conversation.Message
}

func (m updateMessageMutation) Apply(s *State) error {
	c, err := activeConversation(s)
	if err != nil {
		return err
	}
	for i, msg := range c.Messages {
		if msg.ID == m.message.ID {
			c.Messages[i] = m.message.Clone()
		}
	}
	return nil
}

func (m updateMessageMutation) Name() string { return "update_message" }

// MutateUpdateMessage replaces the message with the same id in the active
// conversation. Unknown ids leave the conversation as is.
func MutateUpdateMessage(msg *conversation.Message) Mutation {
	return updateMessageMutation{message: msg}
}

type truncateBeforeMutation struct {
	conversationID conversation.ConversationID
	messageID      conversation.MessageID
}

func (m truncateBeforeMutation) Apply(s *State) error {
	c, _ := s.Conversation(m.conversationID)
	if c == nil {
		return ErrConversationNotFound
	}
	idx := c.Messages.IndexOf(m.messageID)
	if idx < 0 {
		return ErrMessageNotFound
	}
	c.Messages = c.Messages[:idx]
	return nil
}

func (m truncateBeforeMutation) Name() string { return "truncate_before" }

// MutateTruncateBefore keeps only the messages strictly before messageID.
func MutateTruncateBefore(conversationID conversation.ConversationID, messageID conversation.MessageID) Mutation {
	return truncateBeforeMutation{conversationID: conversationID, messageID: messageID}
}

func messageIn(s *State, conversationID conversation.ConversationID, messageID conversation.MessageID) (*conversation.Conversation, *conversation.Message, error) {
	c, _ := s.Conversation(conversationID)
	if c == nil {
		return nil, nil, ErrConversationNotFound
	}
	msg, ok := c.Message(messageID)
	if !ok {
		return c, nil, ErrMessageNotFound
	}
	return c, msg, nil
}

type appendMessageContentMutation struct {
	conversationID conversation.ConversationID
	messageID      conversation.MessageID
	chunk          string
}

func (m appendMessageContentMutation) Apply(s *State) error {
	_, msg, err := messageIn(s, m.conversationID, m.messageID)
	if err != nil {
		return err
	}
	msg.Content += m.chunk
	return nil
}

func (m appendMessageContentMutation) Name() string { return "append_message_content" }

func MutateAppendMessageContent(conversationID conversation.ConversationID, messageID conversation.MessageID, chunk string) Mutation {
	return appendMessageContentMutation{conversationID: conversationID, messageID: messageID, chunk: chunk}
}

type finalizeMessageMutation struct {
	conversationID conversation.ConversationID
	messageID      conversation.MessageID
	tokensUsed     *int
}

func (m finalizeMessageMutation) Apply(s *State) error {
	c, msg, err := messageIn(s, m.conversationID, m.messageID)
	if err != nil {
		return err
	}
	msg.Loading = false
	if m.tokensUsed != nil {
		n := *m.tokensUsed
		c.TokensUsed = &n
	}
	return nil
}

func (m finalizeMessageMutation) Name() string { return "finalize_message" }

// MutateFinalizeMessage clears the loading flag and, if tokensUsed is set,
// records it on the conversation.
func MutateFinalizeMessage(conversationID conversation.ConversationID, messageID conversation.MessageID, tokensUsed *int) Mutation {
	return finalizeMessageMutation{conversationID: conversationID, messageID: messageID, tokensUsed: tokensUsed}
}

type updateConversationTitleMutation struct {
	conversationID conversation.ConversationID
	fn             func(title *string) *string
}

func (m updateConversationTitleMutation) Apply(s *State) error {
	c, _ := s.Conversation(m.conversationID)
	if c == nil {
		return ErrConversationNotFound
	}
	c.Title = m.fn(c.Title)
	return nil
}

func (m updateConversationTitleMutation) Name() string { return "update_conversation_title" }

// MutateUpdateConversationTitle replaces the title with fn(title).
func MutateUpdateConversationTitle(conversationID conversation.ConversationID, fn func(title *string) *string) Mutation {
	return updateConversationTitleMutation{conversationID: conversationID, fn: fn}
}

func MutateSetConversationTitle(conversationID conversation.ConversationID, title *string) Mutation {
	return updateConversationTitleMutation{
		conversationID: conversationID,
		fn: func(*string) *string {
			if title == nil {
				return nil
			}
			t := *title
			return &t
		},
	}
}

type beginRequestMutation struct {
	handle *RequestHandle
}

func (m beginRequestMutation) Apply(s *State) error {
	if s.CurrentRequest != nil || s.APIState == APIStateLoading {
		return ErrRequestInFlight
	}
	s.CurrentRequest = m.handle
	s.APIState = APIStateLoading
	return nil
}

func (m beginRequestMutation) Name() string { return "begin_request" }

// MutateBeginRequest installs handle as the in-flight request and switches to loading.
func MutateBeginRequest(handle *RequestHandle) Mutation {
	return beginRequestMutation{handle: handle}
}

type endRequestMutation struct {
	requestID string
	state     APIState
}

func (m endRequestMutation) Apply(s *State) error {
	if s.CurrentRequest == nil || s.CurrentRequest.ID != m.requestID {
		return ErrStaleRequest
	}
	s.CurrentRequest = nil
	s.APIState = m.state
	return nil
}

func (m endRequestMutation) Name() string { return "end_request" }

// MutateEndRequest clears the in-flight request if it is still requestID.
func MutateEndRequest(requestID string, state APIState) Mutation {
	return endRequestMutation{requestID: requestID, state: state}
}

func MutateSetAPIKey(key string) Mutation {
	return MutateFunc("set_api_key", func(s *State) error {
		if key == "" {
			s.APIKey = nil
			return nil
		}
		k := key
		s.APIKey = &k
		return nil
	})
}

// MutateSetAPIState sets idle or error and drops the request handle. Loading
// is only entered through MutateBeginRequest.
func MutateSetAPIState(state APIState) Mutation {
	return MutateFunc("set_api_state", func(s *State) error {
		switch state {
		case APIStateIdle, APIStateError:
		case APIStateLoading:
			return ErrLoadingWithoutRequest
		default:
			return errors.Errorf("unknown api state %q", state)
		}
		s.APIState = state
		s.CurrentRequest = nil
		return nil
	})
}

func MutateUpdateSettings(st *settings.Settings) Mutation {
	return MutateFunc("update_settings", func(s *State) error {
		if err := st.Validate(); err != nil {
			return err
		}
		s.Settings = st.Clone()
		return nil
	})
}

func MutateSetColorScheme(scheme ColorScheme) Mutation {
	return MutateFunc("set_color_scheme", func(s *State) error {
		s.UI.ColorScheme = scheme
		return nil
	})
}

func MutateSetNavOpened(opened bool) Mutation {
	return MutateFunc("set_nav_opened", func(s *State) error {
		s.UI.NavOpened = opened
		return nil
	})
}

func MutateSetPushToTalkMode(enabled bool) Mutation {
	return MutateFunc("set_push_to_talk_mode", func(s *State) error {
		s.UI.PushToTalkMode = enabled
		return nil
	})
}

func MutateSetEditingMessage(msg *conversation.Message) Mutation {
	return MutateFunc("set_editing_message", func(s *State) error {
		s.EditingMessage = msg.Clone()
		return nil
	})
}

// MutateSetChosenCharacter writes the character onto the active conversation.
func MutateSetChosenCharacter(name string) Mutation {
	return MutateFunc("set_chosen_character", func(s *State) error {
		c, err := activeConversation(s)
		if err != nil {
			return err
		}
		if name == "" {
			c.ChosenCharacter = nil
			return nil
		}
		n := name
		c.ChosenCharacter = &n
		return nil
	})
}
