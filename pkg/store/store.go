package store

import (
	"sync"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Subscriber receives every committed state. The state must be treated as
// read-only, and subscribers must not call back into the store.
type Subscriber func(s *State)

// Store is the single owner of the conversation state.
//
// Every change goes through Apply, which runs the mutation on a fresh copy
// and commits the copy. Snapshots handed out are never touched again.
type Store struct {
	mu    sync.Mutex
	state *State

	// notifyMu keeps subscriber calls in commit order without holding mu.
	notifyMu    sync.Mutex
	subscribers map[int]Subscriber
	nextSubID   int
}

type Option func(*Store)

// WithState seeds the store. The state is cloned, and a state without
// conversations gets a fresh active one, keeping everything else.
func WithState(s *State) Option {
	return func(st *Store) {
		if s == nil {
			return
		}
		st.state = s.Clone()
	}
}

func WithSubscriber(fn Subscriber) Option {
	return func(st *Store) {
		st.subscribers[st.nextSubID] = fn
		st.nextSubID++
	}
}

func New(options ...Option) *Store {
	ret := &Store{
		state:       InitialState(),
		subscribers: map[int]Subscriber{},
	}
	for _, option := range options {
		option(ret)
	}
	if len(ret.state.Conversations) == 0 {
		c := conversation.NewConversation()
		id := c.ID
		ret.state.Conversations = []*conversation.Conversation{c}
		ret.state.ActiveConversationID = &id
	}
	if ret.state.Settings == nil {
		ret.state.Settings = settings.NewSettings()
	}
	return ret
}

// Snapshot returns a deep copy of the current state.
func (st *Store) Snapshot() *State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state.Clone()
}

// Version is the number of committed mutations.
func (st *Store) Version() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state.Version
}

// Apply runs m against a copy of the state and commits it if m succeeds.
func (st *Store) Apply(m Mutation) error {
	if m == nil {
		return errors.New("mutation is nil")
	}

	st.mu.Lock()
	next := st.state.Clone()
	if err := m.Apply(next); err != nil {
		st.mu.Unlock()
		log.Debug().Err(err).Str("mutation", m.Name()).Msg("mutation not applied")
		return err
	}
	next.Version++
	st.state = next

	st.notifyMu.Lock()
	subscribers := make([]Subscriber, 0, len(st.subscribers))
	for i := 0; i < st.nextSubID; i++ {
		if fn, ok := st.subscribers[i]; ok {
			subscribers = append(subscribers, fn)
		}
	}
	st.mu.Unlock()

	for _, fn := range subscribers {
		fn(next)
	}
	st.notifyMu.Unlock()

	return nil
}

// Subscribe registers fn for every future commit and returns a function
// that removes it again.
func (st *Store) Subscribe(fn Subscriber) func() {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextSubID
	st.nextSubID++
	st.subscribers[id] = fn
	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		delete(st.subscribers, id)
	}
}
