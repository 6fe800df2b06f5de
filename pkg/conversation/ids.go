package conversation

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MessageID identifies a message inside its conversation.
type MessageID uuid.UUID

// ConversationID identifies a conversation inside the store.
type ConversationID uuid.UUID

var (
	NullMessageID      = MessageID(uuid.Nil)
	NullConversationID = ConversationID(uuid.Nil)
)

func NewMessageID() MessageID {
	return MessageID(uuid.New())
}

func NewConversationID() ConversationID {
	return ConversationID(uuid.New())
}

func (id MessageID) String() string {
	return uuid.UUID(id).String()
}

func (id MessageID) IsZero() bool {
	return id == NullMessageID
}

func (id MessageID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *MessageID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return errors.Wrap(err, "invalid message id")
	}
	*id = MessageID(u)
	return nil
}

func (id ConversationID) String() string {
	return uuid.UUID(id).String()
}

func (id ConversationID) IsZero() bool {
	return id == NullConversationID
}

func (id ConversationID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *ConversationID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return errors.Wrap(err, "invalid conversation id")
	}
	*id = ConversationID(u)
	return nil
}

// ParseConversationID accepts the full uuid string form.
func ParseConversationID(s string) (ConversationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NullConversationID, errors.Wrapf(err, "invalid conversation id %q", s)
	}
	return ConversationID(u), nil
}

func ParseMessageID(s string) (MessageID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NullMessageID, errors.Wrapf(err, "invalid message id %q", s)
	}
	return MessageID(u), nil
}
