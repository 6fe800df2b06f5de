package chat

import (
	"fmt"

	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/pkg/errors"
)

var (
	ErrEmptyMessage         = errors.New("message is empty")
	ErrMissingCredential    = errors.New("no API key configured")
	ErrNothingToRegenerate  = errors.New("no preceding message to regenerate from")
	ErrAborted              = errors.New("request aborted")
	ErrSubmissionNil        = errors.New("submission is nil")
	ErrNoActiveConversation = store.ErrNoActiveConversation
	ErrRequestInFlight      = store.ErrRequestInFlight
)

// TransportError is the outcome of a request the completion service rejected.
type TransportError struct {
	Status  inference.StatusInfo
	Message string
}

func (e *TransportError) Error() string {
	if e.Status.StatusCode != 0 {
		return fmt.Sprintf("completion request failed (%d): %s", e.Status.StatusCode, e.Message)
	}
	return fmt.Sprintf("completion request failed: %s", e.Message)
}
