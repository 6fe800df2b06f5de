package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	dir := t.TempDir()
	file, err := Open(BackendFile, filepath.Join(dir, "state"))
	require.NoError(t, err)
	sqlite, err := Open(BackendSQLite, filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = file.Close()
		_ = sqlite.Close()
	})
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   file,
		"sqlite": sqlite,
	}
}

func TestRoundTripThroughSnapshotter(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := store.New()
			snap := NewSnapshotter(backend)
			defer snap.Attach(st)()

			title := "Trip planning"
			id, err := st.AddConversation(&title)
			require.NoError(t, err)
			require.NoError(t, st.PushMessage(conversation.NewUserMessage("plan a trip")))
			require.NoError(t, st.SetAPIKey("sk-test"))
			require.NoError(t, snap.LastError())

			saves, failed := snap.Stats()
			assert.Equal(t, 3, saves)
			assert.Equal(t, 0, failed)

			loaded, err := Hydrate(context.Background(), backend, StateKey)
			require.NoError(t, err)
			require.Len(t, loaded.Conversations, 2)
			assert.Equal(t, id, *loaded.ActiveConversationID)
			active := loaded.ActiveConversation()
			assert.Equal(t, "Trip planning", active.TitleOr(""))
			require.Len(t, active.Messages, 1)
			assert.Equal(t, "plan a trip", active.Messages[0].Content)
			assert.Equal(t, "sk-test", *loaded.APIKey)
			assert.Equal(t, int64(3), loaded.Version)
		})
	}
}

func TestHydrateMissingFallsBackToInitial(t *testing.T) {
	s, err := Hydrate(context.Background(), NewMemoryBackend(), StateKey)
	require.NoError(t, err)
	require.Len(t, s.Conversations, 1)
	assert.Equal(t, s.Conversations[0].ID, *s.ActiveConversationID)
}

func TestHydrateCorruptFallsBackToInitial(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Save(context.Background(), StateKey, []byte("{not json")))

	s, err := Hydrate(context.Background(), b, StateKey)
	assert.Error(t, err)
	require.NotNil(t, s)
	assert.Len(t, s.Conversations, 1)
}

func TestNormalizeClearsRuntimeState(t *testing.T) {
	c := conversation.NewConversation(conversation.WithMessages(conversation.NewPlaceholder()))
	missing := conversation.NewConversationID()
	s := &store.State{
		APIState:             store.APIStateLoading,
		Conversations:        []*conversation.Conversation{c},
		ActiveConversationID: &missing,
	}

	Normalize(s)
	assert.Equal(t, store.APIStateIdle, s.APIState)
	assert.False(t, s.Conversations[0].Messages[0].Loading)
	assert.Equal(t, c.ID, *s.ActiveConversationID)
	assert.NotNil(t, s.Settings)
}

func TestNormalizeSeedsConversation(t *testing.T) {
	s := &store.State{}
	Normalize(s)
	require.Len(t, s.Conversations, 1)
	assert.Equal(t, s.Conversations[0].ID, *s.ActiveConversationID)
}

func TestRequestHandleIsNotPersisted(t *testing.T) {
	s := store.InitialState()
	s.APIState = store.APIStateLoading
	s.CurrentRequest = store.NewRequestHandle(s.Conversations[0].ID, conversation.NewMessageID(), nil)

	b, err := EncodeState(s)
	require.NoError(t, err)
	assert.NotContains(t, string(b), s.CurrentRequest.ID)

	loaded, err := DecodeState(b)
	require.NoError(t, err)
	assert.Nil(t, loaded.CurrentRequest)
	assert.Equal(t, store.APIStateIdle, loaded.APIState)
}

type failingBackend struct {
	*MemoryBackend
}

func (failingBackend) Save(context.Context, string, []byte) error {
	return os.ErrPermission
}

func TestSaveFailuresAreRecorded(t *testing.T) {
	st := store.New()
	snap := NewSnapshotter(failingBackend{NewMemoryBackend()})
	defer snap.Attach(st)()

	require.NoError(t, st.SetNavOpened(true))
	assert.ErrorIs(t, snap.LastError(), os.ErrPermission)
	_, failed := snap.Stats()
	assert.Equal(t, 1, failed)
	assert.True(t, st.Snapshot().UI.NavOpened)
}

func TestFileBackendWritesKeyFile(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, b.Save(context.Background(), StateKey, []byte(`{}`)))
	_, err = os.Stat(filepath.Join(dir, StateKey+".json"))
	assert.NoError(t, err)

	_, err = b.Load(context.Background(), "other")
	assert.ErrorIs(t, err, ErrNotFound)
}
