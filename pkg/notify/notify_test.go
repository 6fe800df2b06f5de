package notify

import (
	"testing"

	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	var seen []string
	sink := MultiSink{a, nil, b, SinkFunc(func(n Notification) { seen = append(seen, n.Message) })}

	sink.Show(Error("invalid api key"))

	assert.Equal(t, []Notification{{Message: "invalid api key", Severity: SeverityError}}, a.Notifications())
	assert.Len(t, b.Notifications(), 1)
	assert.Equal(t, []string{"invalid api key"}, seen)
}

func TestEventSinkPublishesNotification(t *testing.T) {
	collected := events.NewCollectingSink()
	NewEventSink(collected).Show(Info("saved"))

	evs := collected.Events()
	require.Len(t, evs, 1)
	n, ok := evs[0].(*events.EventNotification)
	require.True(t, ok)
	assert.Equal(t, "saved", n.Message)
	assert.Equal(t, "info", n.Severity)
}
