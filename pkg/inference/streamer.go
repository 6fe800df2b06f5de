package inference

import (
	"context"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/settings"
)

// Request is everything a stream needs, captured when the request starts.
type Request struct {
	Messages conversation.Messages
	Settings *settings.Settings
	APIKey   string
}

// StatusInfo describes a failed response. StatusCode is 0 when the request
// never got an HTTP response.
type StatusInfo struct {
	StatusCode int
	Status     string
}

// Handler receives the outcome of a stream. OnChunk is called in arrival
// order, followed by exactly one of OnDone and OnError, unless the context
// was cancelled, in which case no further callback is made. All callbacks
// happen on the goroutine that called Stream.
type Handler interface {
	OnChunk(chunk string)
	OnDone(tokensUsed int)
	OnError(status StatusInfo, body []byte)
}

// Streamer opens a streaming chat completion and blocks until it is finished
// or ctx is cancelled.
type Streamer interface {
	Stream(ctx context.Context, req *Request, h Handler)
}

// HandlerFuncs adapts functions to a Handler. Nil functions are skipped.
type HandlerFuncs struct {
	Chunk func(chunk string)
	Done  func(tokensUsed int)
	Error func(status StatusInfo, body []byte)
}

func (h HandlerFuncs) OnChunk(chunk string) {
	if h.Chunk != nil {
		h.Chunk(chunk)
	}
}

func (h HandlerFuncs) OnDone(tokensUsed int) {
	if h.Done != nil {
		h.Done(tokensUsed)
	}
}

func (h HandlerFuncs) OnError(status StatusInfo, body []byte) {
	if h.Error != nil {
		h.Error(status, body)
	}
}

var _ Handler = HandlerFuncs{}
