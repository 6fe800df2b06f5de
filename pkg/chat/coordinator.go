package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/notify"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/go-go-golems/palaver/pkg/title"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultTitleTimeout = 30 * time.Second

// Coordinator drives one streaming request at a time against the active
// conversation of a store.
type Coordinator struct {
	store    *store.Store
	streamer inference.Streamer
	notifier notify.Sink
	sinks    []events.EventSink
	titles   *title.Inferrer

	titleTimeout time.Duration
	inferTitles  bool

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
}

type Option func(*Coordinator)

func WithNotifier(n notify.Sink) Option {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

func WithEventSinks(sinks ...events.EventSink) Option {
	return func(c *Coordinator) {
		c.sinks = append(c.sinks, sinks...)
	}
}

func WithTitleInference(enabled bool) Option {
	return func(c *Coordinator) {
		c.inferTitles = enabled
	}
}

func WithTitleTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.titleTimeout = timeout
	}
}

func NewCoordinator(st *store.Store, streamer inference.Streamer, options ...Option) *Coordinator {
	ret := &Coordinator{
		store:        st,
		streamer:     streamer,
		notifier:     notify.LogSink{},
		titleTimeout: DefaultTitleTimeout,
		inferTitles:  true,
	}
	for _, option := range options {
		option(ret)
	}
	ret.titles = title.NewInferrer(st, streamer, title.WithEventSinks(ret.sinks...))
	ret.baseCtx, ret.cancelBase = context.WithCancel(context.Background())
	return ret
}

// SubmitText submits content as a new user message.
func (c *Coordinator) SubmitText(ctx context.Context, content string) (*Submission, error) {
	return c.SubmitMessage(ctx, conversation.NewUserMessage(content))
}

// SubmitMessage appends msg and a loading assistant placeholder to the
// active conversation and streams the response into the placeholder.
//
// If msg is already part of the conversation, every message from msg on is
// dropped first, which makes resubmitting an edited message replace the
// exchange it started.
func (c *Coordinator) SubmitMessage(ctx context.Context, msg *conversation.Message) (*Submission, error) {
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyMessage
	}

	snap := c.store.Snapshot()
	if snap.ActiveConversation() == nil {
		return nil, ErrNoActiveConversation
	}
	if snap.IsLoading() || snap.CurrentRequest != nil {
		return nil, ErrRequestInFlight
	}
	if !snap.HasCredential() {
		return nil, ErrMissingCredential
	}

	user := msg.Clone()
	if user.ID.IsZero() {
		user.ID = conversation.NewMessageID()
	}
	if user.Role == "" {
		user.Role = conversation.RoleUser
	}
	user.Loading = false
	placeholder := conversation.NewPlaceholder()

	runCtx, cancel := context.WithCancel(ctx)

	active := snap.ActiveConversation()
	handle := store.NewRequestHandle(active.ID, placeholder.ID, cancel)
	var req *inference.Request

	mutations := []store.Mutation{
		store.MutateFunc("check_submission", func(s *store.State) error {
			current := s.ActiveConversation()
			if current == nil || current.ID != active.ID {
				return ErrNoActiveConversation
			}
			if s.IsLoading() || s.CurrentRequest != nil {
				return ErrRequestInFlight
			}
			if !s.HasCredential() {
				return ErrMissingCredential
			}
			return nil
		}),
	}
	if active.Messages.IndexOf(user.ID) >= 0 {
		mutations = append(mutations, store.MutateTruncateBefore(active.ID, user.ID))
	}
	mutations = append(mutations,
		store.MutatePushMessage(user),
		store.MutateFunc("capture_request", func(s *store.State) error {
			req = &inference.Request{
				Messages: s.ActiveConversation().Messages.Clone(),
				Settings: s.Settings.Clone(),
				APIKey:   *s.APIKey,
			}
			return nil
		}),
		store.MutatePushMessage(placeholder),
		store.MutateBeginRequest(handle),
	)

	if err := c.store.Apply(store.MutateBatch("begin_submission", mutations...)); err != nil {
		cancel()
		return nil, errors.Cause(err)
	}

	sub := newSubmission(handle.ConversationID, user.ID, placeholder.ID, handle.ID, func() {
		c.abort(handle.ID)
	})

	log.Debug().
		Str("conversation_id", handle.ConversationID.String()).
		Str("message_id", placeholder.ID.String()).
		Str("request_id", handle.ID).
		Msg("submitting message")

	c.wg.Add(1)
	go c.run(runCtx, handle, req, sub)

	return sub, nil
}

func (c *Coordinator) metadata(handle *store.RequestHandle, model string) events.EventMetadata {
	return events.EventMetadata{
		ConversationID: handle.ConversationID.String(),
		MessageID:      handle.MessageID.String(),
		RequestID:      handle.ID,
		Model:          model,
	}
}

func (c *Coordinator) run(ctx context.Context, handle *store.RequestHandle, req *inference.Request, sub *Submission) {
	defer c.wg.Done()
	defer handle.Cancel()

	meta := c.metadata(handle, req.Settings.Model)
	events.PublishBlind(events.NewStartEvent(meta), c.sinks...)

	var completion strings.Builder
	finished := false

	handler := inference.HandlerFuncs{
		Chunk: func(chunk string) {
			if finished {
				return
			}
			err := c.store.Apply(store.MutateIfCurrentRequest(handle.ID,
				store.MutateAppendMessageContent(handle.ConversationID, handle.MessageID, chunk)))
			if err != nil {
				log.Debug().Err(err).Str("request_id", handle.ID).Msg("dropping chunk")
				return
			}
			completion.WriteString(chunk)
			events.PublishBlind(events.NewPartialCompletionEvent(meta, chunk, completion.String()), c.sinks...)
		},
		Done: func(tokensUsed int) {
			if finished {
				return
			}
			finished = true
			err := c.store.Apply(finishRequest(handle, store.APIStateIdle, &tokensUsed))
			if err != nil {
				// aborted between the last chunk and completion
				c.interrupted(meta, completion.String(), sub)
				return
			}

			final := meta
			final.TokensUsed = &tokensUsed
			events.PublishBlind(events.NewFinalEvent(final, completion.String()), c.sinks...)
			sub.setResult(Result{
				Outcome:    OutcomeCompleted,
				Content:    completion.String(),
				TokensUsed: tokensUsed,
			}, nil)

			c.inferTitle(handle.ConversationID, req.Settings, req.APIKey)
		},
		Error: func(status inference.StatusInfo, body []byte) {
			if finished {
				return
			}
			finished = true
			err := c.store.Apply(finishRequest(handle, store.APIStateError, nil))
			if err != nil {
				c.interrupted(meta, completion.String(), sub)
				return
			}

			msg := inference.ParseErrorMessage(body)
			if msg == "" {
				msg = status.Status
			}
			if msg == "" {
				msg = "request failed"
			}
			terr := &TransportError{Status: status, Message: msg}
			log.Warn().Err(terr).Str("request_id", handle.ID).Msg("completion request failed")

			c.notifier.Show(notify.Error(msg))
			events.PublishBlind(events.NewErrorEvent(meta, terr), c.sinks...)
			sub.setResult(Result{Outcome: OutcomeFailed, Content: completion.String()}, terr)
		},
	}

	c.streamer.Stream(ctx, req, handler)

	if !finished {
		// cancelled: by an abort, which already reset the state, or by the
		// caller's context, which did not
		_ = c.store.EndRequest(handle.ID, store.APIStateIdle)
		c.interrupted(meta, completion.String(), sub)
	}
}

func (c *Coordinator) interrupted(meta events.EventMetadata, text string, sub *Submission) {
	events.PublishBlind(events.NewInterruptEvent(meta, text), c.sinks...)
	sub.setResult(Result{Outcome: OutcomeAborted, Content: text}, ErrAborted)
}

func (c *Coordinator) inferTitle(id conversation.ConversationID, s *settings.Settings, apiKey string) {
	if !c.inferTitles {
		return
	}
	conv, _ := c.store.Snapshot().Conversation(id)
	if !title.ShouldInfer(conv) {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.baseCtx, c.titleTimeout)
		defer cancel()
		if err := c.titles.Infer(ctx, id, s, apiKey); err != nil {
			log.Debug().Err(err).Str("conversation_id", id.String()).Msg("no title inferred")
		}
	}()
}

// finishRequest ends the request if it is still current. The placeholder
// stops loading and, on success, the token count lands on the conversation.
// A placeholder or conversation deleted mid-stream does not keep the
// request open.
func finishRequest(handle *store.RequestHandle, state store.APIState, tokensUsed *int) store.Mutation {
	return store.MutateBatch("finish_request",
		store.MutateEndRequest(handle.ID, state),
		ignoreMissing(store.MutateFinalizeMessage(handle.ConversationID, handle.MessageID, tokensUsed)),
	)
}

// ignoreMissing turns a not-found error of m into a no-op.
func ignoreMissing(m store.Mutation) store.Mutation {
	return store.MutateFunc(m.Name(), func(s *store.State) error {
		err := m.Apply(s)
		if errors.Is(err, store.ErrConversationNotFound) || errors.Is(err, store.ErrMessageNotFound) {
			return nil
		}
		return err
	})
}

// AbortCurrentRequest cancels the in-flight request, if any, and returns
// the store to idle. The placeholder keeps its loading flag.
func (c *Coordinator) AbortCurrentRequest() {
	c.abort("")
}

// abort cancels requestID, or whatever is in flight if requestID is empty.
func (c *Coordinator) abort(requestID string) {
	var handle *store.RequestHandle
	err := c.store.Apply(store.MutateFunc("abort_request", func(s *store.State) error {
		if requestID != "" && (s.CurrentRequest == nil || s.CurrentRequest.ID != requestID) {
			return store.ErrStaleRequest
		}
		if s.CurrentRequest == nil && s.APIState == store.APIStateIdle {
			return store.ErrStaleRequest
		}
		handle = s.CurrentRequest
		s.CurrentRequest = nil
		s.APIState = store.APIStateIdle
		return nil
	}))
	if err != nil {
		return
	}
	if handle != nil {
		log.Debug().Str("request_id", handle.ID).Msg("aborting request")
		handle.Cancel()
	}
}

// RegenerateAssistantMessage resubmits the message preceding msgID in the
// active conversation, replacing everything from that message on.
func (c *Coordinator) RegenerateAssistantMessage(ctx context.Context, msgID conversation.MessageID) (*Submission, error) {
	conv := c.store.Snapshot().ActiveConversation()
	if conv == nil {
		return nil, ErrNoActiveConversation
	}
	idx := conv.Messages.IndexOf(msgID)
	if idx < 0 {
		return nil, errors.Wrapf(store.ErrMessageNotFound, "message %s", msgID)
	}
	if idx == 0 {
		return nil, ErrNothingToRegenerate
	}
	return c.SubmitMessage(ctx, conv.Messages[idx-1])
}

// RegenerateLast regenerates the last assistant message of the active
// conversation.
func (c *Coordinator) RegenerateLast(ctx context.Context) (*Submission, error) {
	conv := c.store.Snapshot().ActiveConversation()
	if conv == nil {
		return nil, ErrNoActiveConversation
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == conversation.RoleAssistant {
			return c.RegenerateAssistantMessage(ctx, conv.Messages[i].ID)
		}
	}
	return nil, ErrNothingToRegenerate
}

// Wait blocks until every request and title inference started so far is over.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close aborts the current request, stops title inference and waits for
// all goroutines to return.
func (c *Coordinator) Close() {
	c.AbortCurrentRequest()
	c.cancelBase()
	c.wg.Wait()
}
