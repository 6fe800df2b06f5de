package chat

import (
	"sync"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/helpers"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeFailed    Outcome = "failed"
)

// Result is what a finished submission produced.
type Result struct {
	Outcome    Outcome
	Content    string
	TokensUsed int
}

// Submission represents one in-flight request started by SubmitMessage.
// It can be awaited, polled and cancelled.
type Submission struct {
	ConversationID conversation.ConversationID
	UserMessageID  conversation.MessageID
	// MessageID is the id of the assistant placeholder the response streams into.
	MessageID conversation.MessageID
	RequestID string

	done chan struct{}

	mu     sync.Mutex
	cancel func()
	result helpers.Result[Result]
}

func newSubmission(
	conversationID conversation.ConversationID,
	userMessageID conversation.MessageID,
	messageID conversation.MessageID,
	requestID string,
	cancel func(),
) *Submission {
	return &Submission{
		ConversationID: conversationID,
		UserMessageID:  userMessageID,
		MessageID:      messageID,
		RequestID:      requestID,
		done:           make(chan struct{}),
		cancel:         cancel,
	}
}

func (s *Submission) setResult(r Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	s.result = helpers.NewResult(r, err)
	s.cancel = nil
	close(s.done)
}

// Cancel aborts the request if it is still the current one. It is safe to
// call multiple times.
func (s *Submission) Cancel() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the request completed, failed or was aborted.
// A failed request returns a *TransportError, an aborted one ErrAborted.
func (s *Submission) Wait() (Result, error) {
	if s == nil {
		return Result{}, ErrSubmissionNil
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.Value()
}

func (s *Submission) Done() <-chan struct{} {
	return s.done
}

func (s *Submission) IsRunning() bool {
	if s == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
