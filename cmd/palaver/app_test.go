package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-go-golems/palaver/pkg/chat"
	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, chunks ...string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			_, _ = fmt.Fprintf(w,
				"data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-4o-mini\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", c)
		}
		_, _ = fmt.Fprint(w,
			"data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-4o-mini\",\"choices\":[],\"usage\":{\"prompt_tokens\":9,\"completion_tokens\":3,\"total_tokens\":12}}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testViper(t *testing.T, backend string, dir string) *viper.Viper {
	v := viper.New()
	v.Set("state-backend", backend)
	v.Set("state-path", dir)
	v.Set("no-titles", true)
	return v
}

func TestSendStreamsAndPersists(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			srv := completionServer(t, "Hel", "lo!")
			dir := t.TempDir()
			ctx := context.Background()

			v := testViper(t, backend, dir)
			v.Set("api-key", "sk-test")
			v.Set("base-url", srv.URL+"/v1")
			v.Set("model", "gpt-4o")

			app, err := NewApp(ctx, v)
			require.NoError(t, err)

			var out bytes.Buffer
			err = streamTo(ctx, app, &out, false, func(ctx context.Context) (*chat.Submission, error) {
				return app.Coordinator.SubmitText(ctx, "Hi")
			})
			require.NoError(t, err)
			assert.Contains(t, out.String(), "Hello!")
			require.NoError(t, app.Close())

			// a second run sees the same conversation, key and settings
			app, err = NewApp(ctx, testViper(t, backend, dir))
			require.NoError(t, err)
			defer func() { _ = app.Close() }()

			s := app.Store.Snapshot()
			assert.True(t, s.HasCredential())
			assert.Equal(t, "gpt-4o", s.Settings.Model)
			assert.Equal(t, store.APIStateIdle, s.APIState)
			c := s.ActiveConversation()
			require.NotNil(t, c)
			require.Len(t, c.Messages, 2)
			assert.Equal(t, "Hello!", c.Messages[1].Content)
			require.NotNil(t, c.TokensUsed)
			assert.Equal(t, 12, *c.TokensUsed)
		})
	}
}

func TestSendPrintsRawEvents(t *testing.T) {
	srv := completionServer(t, "Hel", "lo!")
	ctx := context.Background()

	v := testViper(t, "memory", "")
	v.Set("api-key", "sk-test")
	v.Set("base-url", srv.URL+"/v1")

	app, err := NewApp(ctx, v)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	var out bytes.Buffer
	err = streamTo(ctx, app, &out, true, func(ctx context.Context) (*chat.Submission, error) {
		return app.Coordinator.SubmitText(ctx, "Hi")
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"type": "start"`)
	assert.Contains(t, out.String(), `"delta": "Hel"`)
	assert.Contains(t, out.String(), `"text": "Hello!"`)
}

func TestNewAppRejectsInvalidSettings(t *testing.T) {
	v := testViper(t, "memory", "")
	v.Set("temperature", 9)
	_, err := NewApp(context.Background(), v)
	assert.Error(t, err)
}

func TestSendWithoutKeyFails(t *testing.T) {
	app, err := NewApp(context.Background(), testViper(t, "memory", ""))
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	err = streamTo(context.Background(), app, &bytes.Buffer{}, false, func(ctx context.Context) (*chat.Submission, error) {
		return app.Coordinator.SubmitText(ctx, "Hi")
	})
	assert.ErrorIs(t, err, chat.ErrMissingCredential)
}

func stateWithConversations(titles ...string) *store.State {
	s := store.InitialState()
	s.Conversations = nil
	for _, t := range titles {
		title := t
		s.Conversations = append(s.Conversations, conversation.NewConversation(conversation.WithTitle(&title)))
	}
	id := s.Conversations[0].ID
	s.ActiveConversationID = &id
	return s
}

func TestResolveConversation(t *testing.T) {
	s := stateWithConversations("first", "second")

	c, err := resolveConversation(s, "")
	require.NoError(t, err)
	assert.Equal(t, "first", c.TitleOr(""))

	c, err = resolveConversation(s, "2")
	require.NoError(t, err)
	assert.Equal(t, "second", c.TitleOr(""))

	c, err = resolveConversation(s, s.Conversations[1].ID.String())
	require.NoError(t, err)
	assert.Equal(t, "second", c.TitleOr(""))

	c, err = resolveConversation(s, s.Conversations[1].ID.String()[:13])
	require.NoError(t, err)
	assert.Equal(t, "second", c.TitleOr(""))

	_, err = resolveConversation(s, "3")
	assert.Error(t, err)
	_, err = resolveConversation(s, "zzz")
	assert.ErrorIs(t, err, store.ErrConversationNotFound)
}

func TestPrintConversations(t *testing.T) {
	s := stateWithConversations("first", "second")

	var buf bytes.Buffer
	require.NoError(t, printConversations(&buf, s, "text"))
	assert.Contains(t, buf.String(), "first")
	assert.Contains(t, buf.String(), "*")

	buf.Reset()
	require.NoError(t, printConversations(&buf, s, "yaml"))
	assert.Contains(t, buf.String(), "title: second")

	assert.Error(t, printConversations(&buf, s, "xml"))
}

func TestRenderMarkdown(t *testing.T) {
	c := conversation.NewConversation(conversation.WithMessages(conversation.Messages{
		conversation.NewUserMessage("Hi"),
		conversation.NewPlaceholder(),
	}...))
	md := renderMarkdown(c)
	assert.Contains(t, md, "# Untitled conversation")
	assert.Contains(t, md, "## user\n\nHi")
	assert.Contains(t, md, "_(incomplete)_")
}

func TestConfigFileFromArgs(t *testing.T) {
	assert.Equal(t, "a.yaml", configFileFromArgs([]string{"palaver", "--config", "a.yaml", "send"}))
	assert.Equal(t, "b.yaml", configFileFromArgs([]string{"palaver", "--config=b.yaml"}))
	assert.Equal(t, "", configFileFromArgs([]string{"palaver", "--config"}))
}

func TestSetUIPreference(t *testing.T) {
	st := store.New()
	require.NoError(t, setUIPreference(st, "color-scheme", "light"))
	require.NoError(t, setUIPreference(st, "push-to-talk-mode", "true"))
	assert.Error(t, setUIPreference(st, "color-scheme", "sepia"))
	assert.Error(t, setUIPreference(st, "nav-opened", "maybe"))

	ui := st.Snapshot().UI
	assert.Equal(t, store.ColorSchemeLight, ui.ColorScheme)
	assert.True(t, ui.PushToTalkMode)
}
