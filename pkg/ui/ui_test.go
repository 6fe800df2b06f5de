package ui

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/palaver/pkg/chat"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference/inferencetest"
	"github.com/go-go-golems/palaver/pkg/notify"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, scripts ...inferencetest.Script) (Model, *store.Store, *chat.Coordinator) {
	st := store.New()
	require.NoError(t, st.SetAPIKey("sk-test"))
	coord := chat.NewCoordinator(st, inferencetest.New(scripts...),
		chat.WithNotifier(&notify.Recorder{}),
		chat.WithTitleInference(false),
	)
	t.Cleanup(coord.Close)

	m := NewModel(context.Background(), st, coord)
	t.Cleanup(m.Close)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model), st, coord
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	ret, ok := next.(Model)
	require.True(t, ok)
	return ret
}

func TestEnterSubmitsAndClearsInput(t *testing.T) {
	m, st, coord := newTestModel(t, inferencetest.Script{Chunks: []string{"Hello", " there"}})

	m.textArea.SetValue("Hi")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "", m.textArea.Value())

	coord.Wait()
	m = update(t, m, StateChangedMsg{})

	msgs := st.Snapshot().ActiveConversation().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, "Hello there", msgs[1].Content)
	assert.Contains(t, m.View(), "Hello there")
	assert.Nil(t, m.notice)
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	m, st, _ := newTestModel(t)
	v := st.Version()

	m.textArea.SetValue("   ")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, v, st.Version())
	assert.Nil(t, m.notice)
}

func TestMissingKeyShowsNotice(t *testing.T) {
	m, st, _ := newTestModel(t)
	require.NoError(t, st.SetAPIKey(""))
	m = update(t, m, StateChangedMsg{})

	m.textArea.SetValue("Hi")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, m.notice)
	assert.Contains(t, m.notice.Message, "palaver key set")
	assert.Equal(t, "Hi", m.textArea.Value())
	assert.Contains(t, m.View(), "palaver key set")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.notice)
}

func TestEscAbortsStreaming(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	m, st, coord := newTestModel(t, inferencetest.Script{Chunks: []string{"Hel"}, Hold: hold})

	m.textArea.SetValue("Hi")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = update(t, m, StateChangedMsg{})
	require.True(t, m.state.IsLoading())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	coord.Wait()
	m = update(t, m, StateChangedMsg{})

	s := st.Snapshot()
	assert.Equal(t, store.APIStateIdle, s.APIState)
	assert.Nil(t, s.CurrentRequest)
	assert.False(t, m.state.IsLoading())
}

func TestConversationKeys(t *testing.T) {
	m, st, _ := newTestModel(t)
	first := *st.Snapshot().ActiveConversationID

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	m = update(t, m, StateChangedMsg{})
	s := st.Snapshot()
	require.Len(t, s.Conversations, 2)
	second := *s.ActiveConversationID
	assert.NotEqual(t, first, second)
	assert.Contains(t, m.View(), "[2/2]")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlUp})
	m = update(t, m, StateChangedMsg{})
	assert.Equal(t, first, *st.Snapshot().ActiveConversationID)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlDown})
	assert.Equal(t, second, *st.Snapshot().ActiveConversationID)
}

func TestRegenerateWithoutResponseShowsNotice(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, m.notice)
	assert.Equal(t, notify.SeverityError, m.notice.Severity)
}

func TestWatcherCoalescesCommits(t *testing.T) {
	st := store.New()
	w := NewWatcher(st)

	for i := 0; i < 3; i++ {
		_, err := st.AddConversation(nil)
		require.NoError(t, err)
	}
	assert.Equal(t, StateChangedMsg{}, w.Wait()())

	w.Close()
	w.Close()
	assert.Nil(t, w.Wait()())
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func toMessage(t *testing.T, e events.Event) *message.Message {
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), b)
}

func TestEventForwardFunc(t *testing.T) {
	r := &recordingSender{}
	forward := EventForwardFunc(r)

	require.NoError(t, forward(toMessage(t, events.NewNotificationEvent(events.EventMetadata{}, "Incorrect API key", "error"))))
	require.NoError(t, forward(toMessage(t, events.NewPartialCompletionEvent(events.EventMetadata{}, "a", "a"))))
	require.NoError(t, forward(toMessage(t, events.NewInterruptEvent(events.EventMetadata{}, "a"))))
	require.NoError(t, forward(message.NewMessage(watermill.NewUUID(), []byte("not json"))))

	require.Len(t, r.msgs, 2)
	assert.Equal(t, NotificationMsg{notify.Error("Incorrect API key")}, r.msgs[0])
	n, ok := r.msgs[1].(NotificationMsg)
	require.True(t, ok)
	assert.True(t, strings.Contains(n.Message, "stopped"))
}
