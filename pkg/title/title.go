package title

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	MinMessages  = 2
	MinWordCount = 4

	Instruction = "Summarize the conversation above in 3 words or fewer. Reply with the title only."
)

const prefix = "title:"

// ShouldInfer reports whether c qualifies for a generated title: it has at
// least two messages, no title yet, and at least four words overall.
func ShouldInfer(c *conversation.Conversation) bool {
	if c == nil || c.HasTitle() {
		return false
	}
	if len(c.Messages) < MinMessages {
		return false
	}
	return c.WordCount() >= MinWordCount
}

// BuildRequestMessages returns every message but the first, followed by the
// summarizing instruction. The instruction is never stored.
func BuildRequestMessages(c *conversation.Conversation) conversation.Messages {
	ret := conversation.Messages{}
	if len(c.Messages) > 1 {
		ret = append(ret, c.Messages[1:].Clone()...)
	}
	return append(ret, conversation.NewMessage(conversation.RoleSystem, Instruction))
}

// Clean strips a leading "title:" (any case) and one trailing , . ; : ! or ?
func Clean(title string) string {
	title = strings.TrimLeft(title, " \t\n")
	if len(title) >= len(prefix) && strings.EqualFold(title[:len(prefix)], prefix) {
		title = strings.TrimLeft(title[len(prefix):], " \t\n")
	}
	if n := len(title); n > 0 && strings.ContainsRune(",.;:!?", rune(title[n-1])) {
		title = title[:n-1]
	}
	return title
}

// Inferrer streams a generated title into a conversation.
type Inferrer struct {
	store    *store.Store
	streamer inference.Streamer
	sinks    []events.EventSink
}

type Option func(*Inferrer)

func WithEventSinks(sinks ...events.EventSink) Option {
	return func(i *Inferrer) {
		i.sinks = append(i.sinks, sinks...)
	}
}

func NewInferrer(st *store.Store, streamer inference.Streamer, options ...Option) *Inferrer {
	ret := &Inferrer{
		store:    st,
		streamer: streamer,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Infer runs title inference for the conversation if it qualifies, and
// blocks until the stream is over. A conversation deleted while the title
// streams in is not an error.
func (i *Inferrer) Infer(ctx context.Context, conversationID conversation.ConversationID, s *settings.Settings, apiKey string) error {
	c, _ := i.store.Snapshot().Conversation(conversationID)
	if !ShouldInfer(c) {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := s.Clone()
	st.N = 1
	req := &inference.Request{
		Messages: BuildRequestMessages(c),
		Settings: st,
		APIKey:   apiKey,
	}
	meta := events.EventMetadata{
		ConversationID: conversationID.String(),
		Model:          st.Model,
	}

	var (
		mu      sync.Mutex
		current string
		gone    bool
		failure error
	)

	handler := inference.HandlerFuncs{
		Chunk: func(chunk string) {
			mu.Lock()
			defer mu.Unlock()
			if gone {
				return
			}
			err := i.store.UpdateConversationTitle(conversationID, func(title *string) *string {
				t := ""
				if title != nil {
					t = *title
				}
				t = Clean(t + chunk)
				current = t
				return &t
			})
			if errors.Is(err, store.ErrConversationNotFound) {
				log.Debug().Str("conversation_id", conversationID.String()).Msg("conversation deleted while inferring title")
				gone = true
				cancel()
				return
			}
			if err != nil {
				log.Warn().Err(err).Msg("could not update title")
				return
			}
			events.PublishBlind(events.NewTitlePartialEvent(meta, current), i.sinks...)
		},
		Done: func(int) {
			mu.Lock()
			defer mu.Unlock()
			events.PublishBlind(events.NewTitleFinalEvent(meta, current), i.sinks...)
		},
		Error: func(status inference.StatusInfo, body []byte) {
			mu.Lock()
			defer mu.Unlock()
			failure = errors.Errorf("title inference failed: %s", inference.ParseErrorMessage(body))
			log.Warn().Err(failure).Int("status_code", status.StatusCode).
				Str("conversation_id", conversationID.String()).Msg("title inference failed")
			events.PublishBlind(events.NewErrorEvent(meta, failure), i.sinks...)
		},
	}

	i.streamer.Stream(ctx, req, handler)

	mu.Lock()
	defer mu.Unlock()
	return failure
}
