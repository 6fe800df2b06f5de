package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/palaver/pkg/store"
)

// StateChangedMsg is sent after the store committed one or more mutations.
type StateChangedMsg struct{}

// Watcher turns store commits into tea messages. Commits arriving while a
// previous one is still unread are coalesced, so the subscriber never blocks
// the store.
type Watcher struct {
	changes     chan struct{}
	done        chan struct{}
	once        sync.Once
	unsubscribe func()
}

func NewWatcher(st *store.Store) *Watcher {
	w := &Watcher{
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.unsubscribe = st.Subscribe(func(*store.State) {
		select {
		case w.changes <- struct{}{}:
		default:
		}
	})
	return w
}

// Wait returns a command that resolves to the next StateChangedMsg.
func (w *Watcher) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-w.changes:
			return StateChangedMsg{}
		case <-w.done:
			return nil
		}
	}
}

func (w *Watcher) Close() {
	w.once.Do(func() {
		w.unsubscribe()
		close(w.done)
	})
}
