// Package inferencetest provides a scripted inference.Streamer for tests.
package inferencetest

import (
	"context"
	"sync"

	"github.com/go-go-golems/palaver/pkg/inference"
)

// Script describes how one Stream call plays out.
type Script struct {
	Chunks []string
	Tokens int
	// Status makes the stream end with OnError instead of OnDone.
	Status *inference.StatusInfo
	Body   []byte
	// Hold blocks after the chunks until it is closed or the context is cancelled.
	Hold <-chan struct{}
}

// Streamer plays scripts in order, one per Stream call. Once they run out,
// Default is used.
type Streamer struct {
	Default Script

	mu       sync.Mutex
	scripts  []Script
	requests []*inference.Request
}

func New(scripts ...Script) *Streamer {
	return &Streamer{scripts: scripts}
}

func (s *Streamer) Push(script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, script)
}

// Requests returns the requests received so far.
func (s *Streamer) Requests() []*inference.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*inference.Request(nil), s.requests...)
}

func (s *Streamer) next(req *inference.Request) Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.scripts) == 0 {
		return s.Default
	}
	script := s.scripts[0]
	s.scripts = s.scripts[1:]
	return script
}

func (s *Streamer) Stream(ctx context.Context, req *inference.Request, h inference.Handler) {
	script := s.next(req)

	for _, c := range script.Chunks {
		if ctx.Err() != nil {
			return
		}
		h.OnChunk(c)
	}
	if script.Hold != nil {
		select {
		case <-script.Hold:
		case <-ctx.Done():
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	if script.Status != nil {
		h.OnError(*script.Status, script.Body)
		return
	}
	h.OnDone(script.Tokens)
}

var _ inference.Streamer = (*Streamer)(nil)
