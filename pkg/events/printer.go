package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

// StepPrinterFunc writes streamed text to w as it arrives, prefixed once with
// name. Errors, interrupts and notifications are written as YAML blocks.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p_ := e.(type) {
		case *EventPartialCompletion:
			if isFirst && name != "" {
				isFirst = false
				if _, err := fmt.Fprintf(w, "\n%s: \n", name); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%s", p_.Delta); err != nil {
				return err
			}

		case *EventFinal:
			isFirst = true
			if !strings.HasSuffix(p_.Text, "\n") {
				if _, err := fmt.Fprintf(w, "\n"); err != nil {
					return err
				}
			}

		case *EventInterrupt:
			isFirst = true
			if _, err := fmt.Fprintf(w, "\n[interrupted]\n"); err != nil {
				return err
			}

		case *EventError:
			isFirst = true
			if _, err := fmt.Fprintf(w, "\n[error] %s\n", p_.ErrorString); err != nil {
				return err
			}

		case *EventNotification:
			v_, err := yaml.Marshal(map[string]string{
				"severity": p_.Severity,
				"message":  p_.Message,
			})
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s", v_); err != nil {
				return err
			}

		case *EventTitleFinal:
			if _, err := fmt.Fprintf(w, "[title] %s\n", p_.Title); err != nil {
				return err
			}

		case *EventStart, *EventTitlePartial:
		}

		return nil
	}
}
