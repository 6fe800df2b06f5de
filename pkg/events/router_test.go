package events

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterDeliversEventsInOrder(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	received := make(chan Event, 3)
	router.AddHandler("test", TopicChat, func(msg *message.Message) error {
		defer msg.Ack()
		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}
		received <- e
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()

	sink := NewWatermillSink(router.Publisher, TopicChat)
	meta := EventMetadata{RequestID: "r1"}
	require.NoError(t, sink.PublishEvent(NewPartialCompletionEvent(meta, "Hel", "Hel")))
	require.NoError(t, sink.PublishEvent(NewPartialCompletionEvent(meta, "lo", "Hello")))
	require.NoError(t, sink.PublishEvent(NewFinalEvent(meta, "Hello")))

	var got []EventType
	for len(got) < 3 {
		select {
		case e := <-received:
			got = append(got, e.Type())
		case <-time.After(5 * time.Second):
			t.Fatal("events were not delivered")
		}
	}
	assert.Equal(t, []EventType{EventTypePartialCompletion, EventTypePartialCompletion, EventTypeFinal}, got)

	require.NoError(t, router.Close())
}

func TestDumpRawEventsTo(t *testing.T) {
	b, err := json.Marshal(NewFinalEvent(EventMetadata{MessageID: "m1", RequestID: "r1"}, "Hello"))
	require.NoError(t, err)

	for _, verbose := range []bool{false, true} {
		router, err := NewEventRouter(WithVerbose(verbose))
		require.NoError(t, err)

		var buf bytes.Buffer
		msg := message.NewMessage(watermill.NewUUID(), b)
		require.NoError(t, router.DumpRawEventsTo(&buf)(msg))

		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, "Hello", out["text"])
		if verbose {
			assert.Contains(t, out, "meta")
		} else {
			assert.NotContains(t, out, "meta")
			assert.Equal(t, "m1", out["id"])
		}
		require.NoError(t, router.Close())
	}
}
