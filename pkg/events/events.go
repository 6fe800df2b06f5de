package events

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeStart             EventType = "start"
	EventTypePartialCompletion EventType = "partial"
	EventTypeFinal             EventType = "final"
	EventTypeError             EventType = "error"
	EventTypeInterrupt         EventType = "interrupt"

	EventTypeTitlePartial EventType = "title-partial"
	EventTypeTitleFinal   EventType = "title-final"

	EventTypeNotification EventType = "notification"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata carries the identifiers of the request an event belongs to.
type EventMetadata struct {
	ConversationID string `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty" yaml:"message_id,omitempty"`
	RequestID      string `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Model          string `json:"model,omitempty" yaml:"model,omitempty"`
	TokensUsed     *int   `json:"tokens_used,omitempty" yaml:"tokens_used,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	if em.ConversationID != "" {
		e.Str("conversation_id", em.ConversationID)
	}
	if em.MessageID != "" {
		e.Str("message_id", em.MessageID)
	}
	if em.RequestID != "" {
		e.Str("request_id", em.RequestID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.TokensUsed != nil {
		e.Int("tokens_used", *em.TokensUsed)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// set when the event was parsed by NewEventFromJson
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

type EventStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
	}
}

// EventPartialCompletion is emitted for every streamed chunk.
type EventPartialCompletion struct {
	EventImpl
	Delta string `json:"delta"`
	// Completion is the text accumulated so far.
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl:  EventImpl{Type_: EventTypePartialCompletion, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:      text,
	}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

// EventInterrupt is emitted when a request was aborted. Text is whatever
// streamed in before the abort.
type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{Type_: EventTypeInterrupt, Metadata_: metadata},
		Text:      text,
	}
}

type EventTitlePartial struct {
	EventImpl
	Title string `json:"title"`
}

func NewTitlePartialEvent(metadata EventMetadata, title string) *EventTitlePartial {
	return &EventTitlePartial{
		EventImpl: EventImpl{Type_: EventTypeTitlePartial, Metadata_: metadata},
		Title:     title,
	}
}

type EventTitleFinal struct {
	EventImpl
	Title string `json:"title"`
}

func NewTitleFinalEvent(metadata EventMetadata, title string) *EventTitleFinal {
	return &EventTitleFinal{
		EventImpl: EventImpl{Type_: EventTypeTitleFinal, Metadata_: metadata},
		Title:     title,
	}
}

type EventNotification struct {
	EventImpl
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func NewNotificationEvent(metadata EventMetadata, message string, severity string) *EventNotification {
	return &EventNotification{
		EventImpl: EventImpl{Type_: EventTypeNotification, Metadata_: metadata},
		Message:   message,
		Severity:  severity,
	}
}

var (
	_ Event = &EventStart{}
	_ Event = &EventPartialCompletion{}
	_ Event = &EventFinal{}
	_ Event = &EventError{}
	_ Event = &EventInterrupt{}
	_ Event = &EventTitlePartial{}
	_ Event = &EventTitleFinal{}
	_ Event = &EventNotification{}
)

// NewEventFromJson parses an event serialized by one of the sinks.
func NewEventFromJson(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, errors.Wrap(err, "could not parse event header")
	}

	var e interface {
		Event
		setPayload([]byte)
	}
	switch hdr.Type {
	case EventTypeStart:
		e = &EventStart{}
	case EventTypePartialCompletion:
		e = &EventPartialCompletion{}
	case EventTypeFinal:
		e = &EventFinal{}
	case EventTypeError:
		e = &EventError{}
	case EventTypeInterrupt:
		e = &EventInterrupt{}
	case EventTypeTitlePartial:
		e = &EventTitlePartial{}
	case EventTypeTitleFinal:
		e = &EventTitleFinal{}
	case EventTypeNotification:
		e = &EventNotification{}
	default:
		return nil, errors.Errorf("unknown event type %q", hdr.Type)
	}

	if err := json.Unmarshal(b, e); err != nil {
		return nil, errors.Wrapf(err, "could not parse %s event", hdr.Type)
	}
	e.setPayload(b)
	return e, nil
}
