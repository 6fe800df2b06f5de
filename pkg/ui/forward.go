package ui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/notify"
	"github.com/rs/zerolog/log"
)

// NotificationMsg carries a notification to the chat view.
type NotificationMsg struct {
	notify.Notification
}

// Sender is implemented by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// EventForwardFunc returns a router handler that forwards the events the
// chat view cares about to p. Message content is not forwarded, the view
// renders it from the store.
func EventForwardFunc(p Sender) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		msg.Ack()

		e, err := events.NewEventFromJson(msg.Payload)
		if err != nil {
			log.Debug().Err(err).Str("uuid", msg.UUID).Msg("ignoring undecodable event")
			return nil
		}

		switch e_ := e.(type) {
		case *events.EventNotification:
			p.Send(NotificationMsg{notify.Notification{
				Message:  e_.Message,
				Severity: notify.Severity(e_.Severity),
			}})
		case *events.EventInterrupt:
			p.Send(NotificationMsg{notify.Info("response stopped")})
		}

		return nil
	}
}
