package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/palaver/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// EventSink is a destination for conversation events.
type EventSink interface {
	PublishEvent(event Event) error
}

// WatermillSink publishes events as JSON messages on a topic.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if id := event.Metadata().RequestID; id != "" {
		msg.SetContext(helpers.ContextWithRequestID(context.Background(), id))
	}

	if err := w.publisher.Publish(w.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) PublishEvent(Event) error {
	return nil
}

// CollectingSink keeps every published event in memory.
type CollectingSink struct {
	mu     sync.Mutex
	events []Event
}

func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

func (c *CollectingSink) PublishEvent(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *CollectingSink) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Types returns the types of the collected events, in publish order.
func (c *CollectingSink) Types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]EventType, 0, len(c.events))
	for _, e := range c.events {
		ret = append(ret, e.Type())
	}
	return ret
}

// PublishBlind publishes to every sink and only logs failures.
func PublishBlind(event Event, sinks ...EventSink) {
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if err := sink.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type())).Msg("failed to publish event")
		}
	}
}

var (
	_ EventSink = (*WatermillSink)(nil)
	_ EventSink = (*NullSink)(nil)
	_ EventSink = (*CollectingSink)(nil)
)
