package notify

import (
	"sync"

	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a short message meant for the user, displayed as a toast
// or a status line by the front-end.
type Notification struct {
	Message  string   `json:"message" yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
}

func Error(message string) Notification {
	return Notification{Message: message, Severity: SeverityError}
}

func Info(message string) Notification {
	return Notification{Message: message, Severity: SeverityInfo}
}

type Sink interface {
	Show(n Notification)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(n Notification)

func (f SinkFunc) Show(n Notification) {
	f(n)
}

// LogSink writes notifications to the global logger.
type LogSink struct{}

func (LogSink) Show(n Notification) {
	level := zerolog.InfoLevel
	switch n.Severity {
	case SeverityWarning:
		level = zerolog.WarnLevel
	case SeverityError:
		level = zerolog.ErrorLevel
	}
	log.WithLevel(level).Str("severity", string(n.Severity)).Msg(n.Message)
}

// EventSink publishes notifications as events so that front-ends subscribed
// to the event router can render them.
type EventSink struct {
	sink events.EventSink
}

func NewEventSink(sink events.EventSink) *EventSink {
	return &EventSink{sink: sink}
}

func (e *EventSink) Show(n Notification) {
	events.PublishBlind(events.NewNotificationEvent(events.EventMetadata{}, n.Message, string(n.Severity)), e.sink)
}

// MultiSink shows every notification on all of its sinks.
type MultiSink []Sink

func (m MultiSink) Show(n Notification) {
	for _, s := range m {
		if s != nil {
			s.Show(n)
		}
	}
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

func (r *Recorder) Show(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

var (
	_ Sink = SinkFunc(nil)
	_ Sink = LogSink{}
	_ Sink = (*EventSink)(nil)
	_ Sink = MultiSink(nil)
	_ Sink = (*Recorder)(nil)
)
