package store

import (
	"context"
	"sync"
	"testing"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasOneActiveConversation(t *testing.T) {
	st := New()
	s := st.Snapshot()
	require.Len(t, s.Conversations, 1)
	require.NotNil(t, s.ActiveConversationID)
	assert.Equal(t, s.Conversations[0].ID, *s.ActiveConversationID)
	assert.Equal(t, APIStateIdle, s.APIState)
	assert.NotNil(t, s.Settings)
}

func TestAddConversationBecomesActive(t *testing.T) {
	st := New()
	title := "Trip"
	id, err := st.AddConversation(&title)
	require.NoError(t, err)

	s := st.Snapshot()
	require.Len(t, s.Conversations, 2)
	assert.Equal(t, id, *s.ActiveConversationID)
	assert.Equal(t, "Trip", s.ActiveConversation().TitleOr(""))
}

func TestDeleteActiveConversationPicksLast(t *testing.T) {
	st := New()
	first := *st.Snapshot().ActiveConversationID
	second, err := st.AddConversation(nil)
	require.NoError(t, err)
	third, err := st.AddConversation(nil)
	require.NoError(t, err)

	require.NoError(t, st.DeleteConversation(third))
	assert.Equal(t, second, *st.Snapshot().ActiveConversationID)

	require.NoError(t, st.DeleteConversation(second))
	assert.Equal(t, first, *st.Snapshot().ActiveConversationID)

	require.NoError(t, st.DeleteConversation(first))
	s := st.Snapshot()
	assert.Empty(t, s.Conversations)
	assert.Nil(t, s.ActiveConversationID)
}

func TestDeleteInactiveConversationKeepsActive(t *testing.T) {
	st := New()
	first := *st.Snapshot().ActiveConversationID
	second, err := st.AddConversation(nil)
	require.NoError(t, err)

	require.NoError(t, st.DeleteConversation(first))
	assert.Equal(t, second, *st.Snapshot().ActiveConversationID)
}

func TestDeleteUnknownConversation(t *testing.T) {
	st := New()
	v := st.Version()
	err := st.DeleteConversation(conversation.NewConversationID())
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Equal(t, v, st.Version())
}

func TestSetActiveConversationValidates(t *testing.T) {
	st := New()
	before := *st.Snapshot().ActiveConversationID
	err := st.SetActiveConversation(conversation.NewConversationID())
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Equal(t, before, *st.Snapshot().ActiveConversationID)
}

func TestPushMessageReplacesByID(t *testing.T) {
	st := New()
	msg := conversation.NewUserMessage("hello")
	require.NoError(t, st.PushMessage(msg))

	edited := msg.Clone()
	edited.Content = "hello again"
	require.NoError(t, st.PushMessage(edited))

	msgs := st.Snapshot().ActiveConversation().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello again", msgs[0].Content)
}

func TestMessageOpsWithoutActiveConversation(t *testing.T) {
	st := New()
	require.NoError(t, st.DeleteConversation(*st.Snapshot().ActiveConversationID))

	msg := conversation.NewUserMessage("hello")
	assert.ErrorIs(t, st.PushMessage(msg), ErrNoActiveConversation)
	assert.ErrorIs(t, st.UpdateMessage(msg), ErrNoActiveConversation)
	assert.ErrorIs(t, st.DeleteMessage(msg.ID), ErrNoActiveConversation)
}

func TestDeleteAndUpdateMessage(t *testing.T) {
	st := New()
	a := conversation.NewUserMessage("a")
	b := conversation.NewMessage(conversation.RoleAssistant, "b")
	require.NoError(t, st.PushMessage(a))
	require.NoError(t, st.PushMessage(b))

	b2 := b.Clone()
	b2.Content = "B"
	require.NoError(t, st.UpdateMessage(b2))
	require.NoError(t, st.DeleteMessage(a.ID))

	msgs := st.Snapshot().ActiveConversation().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "B", msgs[0].Content)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	st := New()
	require.NoError(t, st.PushMessage(conversation.NewUserMessage("hi")))

	snap := st.Snapshot()
	snap.ActiveConversation().Messages[0].Content = "tampered"

	assert.Equal(t, "hi", st.Snapshot().ActiveConversation().Messages[0].Content)
}

func TestFailedBatchCommitsNothing(t *testing.T) {
	st := New()
	c := st.Snapshot().ActiveConversation()
	v := st.Version()

	err := st.Apply(MutateBatch("test",
		MutatePushMessage(conversation.NewUserMessage("x")),
		MutateTruncateBefore(c.ID, conversation.NewMessageID()),
	))
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.Equal(t, v, st.Version())
	assert.Empty(t, st.Snapshot().ActiveConversation().Messages)
}

func TestRequestLifecycle(t *testing.T) {
	st := New()
	c := st.Snapshot().ActiveConversation()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRequestHandle(c.ID, conversation.NewMessageID(), cancel)

	require.NoError(t, st.Apply(MutateBeginRequest(h)))
	s := st.Snapshot()
	assert.Equal(t, APIStateLoading, s.APIState)
	assert.Same(t, h, s.CurrentRequest)

	other := NewRequestHandle(c.ID, conversation.NewMessageID(), cancel)
	assert.ErrorIs(t, st.Apply(MutateBeginRequest(other)), ErrRequestInFlight)
	assert.ErrorIs(t, st.EndRequest(other.ID, APIStateIdle), ErrStaleRequest)

	require.NoError(t, st.EndRequest(h.ID, APIStateError))
	s = st.Snapshot()
	assert.Equal(t, APIStateError, s.APIState)
	assert.Nil(t, s.CurrentRequest)
}

func TestGuardedMutationDropsStaleRequests(t *testing.T) {
	st := New()
	msg := conversation.NewPlaceholder()
	require.NoError(t, st.PushMessage(msg))
	c := st.Snapshot().ActiveConversation()

	err := st.Apply(MutateIfCurrentRequest("gone", MutateAppendMessageContent(c.ID, msg.ID, "x")))
	assert.ErrorIs(t, err, ErrStaleRequest)
	assert.Empty(t, st.Snapshot().ActiveConversation().Messages[0].Content)
}

func TestAppendAndFinalize(t *testing.T) {
	st := New()
	msg := conversation.NewPlaceholder()
	require.NoError(t, st.PushMessage(msg))
	c := st.Snapshot().ActiveConversation()

	require.NoError(t, st.AppendMessageContent(c.ID, msg.ID, "Hel"))
	require.NoError(t, st.AppendMessageContent(c.ID, msg.ID, "lo"))
	tokens := 12
	require.NoError(t, st.Apply(MutateFinalizeMessage(c.ID, msg.ID, &tokens)))

	got := st.Snapshot().ActiveConversation()
	assert.Equal(t, "Hello", got.Messages[0].Content)
	assert.False(t, got.Messages[0].Loading)
	require.NotNil(t, got.TokensUsed)
	assert.Equal(t, 12, *got.TokensUsed)

	assert.ErrorIs(t, st.AppendMessageContent(c.ID, conversation.NewMessageID(), "x"), ErrMessageNotFound)
	assert.ErrorIs(t, st.AppendMessageContent(conversation.NewConversationID(), msg.ID, "x"), ErrConversationNotFound)
}

func TestRenameAndClear(t *testing.T) {
	st := New()
	id := *st.Snapshot().ActiveConversationID
	require.NoError(t, st.RenameConversation(id, "  Notes "))
	assert.Equal(t, "Notes", st.Snapshot().ActiveConversation().TitleOr(""))

	_, err := st.AddConversation(nil)
	require.NoError(t, err)
	require.NoError(t, st.ClearConversations())

	s := st.Snapshot()
	require.Len(t, s.Conversations, 1)
	assert.NotEqual(t, id, s.Conversations[0].ID)
	assert.Equal(t, s.Conversations[0].ID, *s.ActiveConversationID)
}

func TestSubscribersSeeEveryCommitInOrder(t *testing.T) {
	st := New()
	var mu sync.Mutex
	var versions []int64
	unsubscribe := st.Subscribe(func(s *State) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, s.Version)
	})

	require.NoError(t, st.SetNavOpened(true))
	require.NoError(t, st.SetPushToTalkMode(true))
	assert.Error(t, st.SetActiveConversation(conversation.NewConversationID()))
	unsubscribe()
	require.NoError(t, st.SetNavOpened(false))

	assert.Equal(t, []int64{1, 2}, versions)
}

func TestSetAPIKeyAndSettings(t *testing.T) {
	st := New()
	require.NoError(t, st.SetAPIKey(" sk-test "))
	s := st.Snapshot()
	assert.True(t, s.HasCredential())
	assert.Equal(t, "sk-test", *s.APIKey)

	next := s.Settings.Clone()
	next.Temperature = 5
	assert.Error(t, st.UpdateSettings(next))

	next.Temperature = 0.5
	require.NoError(t, st.UpdateSettings(next))
	assert.InDelta(t, 0.5, st.Snapshot().Settings.Temperature, 1e-9)

	require.NoError(t, st.SetAPIKey(""))
	assert.False(t, st.Snapshot().HasCredential())
}

func TestSetChosenCharacter(t *testing.T) {
	st := New()
	require.NoError(t, st.SetChosenCharacter("pirate"))
	c := st.Snapshot().ActiveConversation()
	require.NotNil(t, c.ChosenCharacter)
	assert.Equal(t, "pirate", *c.ChosenCharacter)
}

func requireActiveIsValid(t *testing.T, s *State) {
	t.Helper()
	if len(s.Conversations) == 0 {
		assert.Nil(t, s.ActiveConversationID)
		return
	}
	require.NotNil(t, s.ActiveConversationID)
	c, _ := s.Conversation(*s.ActiveConversationID)
	assert.NotNil(t, c, "active id %s is not in the store", *s.ActiveConversationID)
}

func TestActiveConversationStaysValidAcrossAddAndDelete(t *testing.T) {
	type step struct {
		add bool
		// index into the current conversations, negative counts from the end
		idx int
	}
	sequences := map[string][]step{
		"delete oldest first": {{add: true}, {add: true}, {idx: 0}, {idx: 0}, {idx: 0}},
		"delete newest first": {{add: true}, {add: true}, {idx: -1}, {idx: -1}, {idx: -1}},
		"interleaved": {
			{add: true}, {idx: 1}, {add: true}, {add: true}, {idx: 0},
			{idx: -1}, {add: true}, {idx: 1}, {idx: 0},
		},
		"refill after empty": {{idx: 0}, {add: true}, {add: true}, {idx: -1}, {idx: 0}},
	}

	for name, steps := range sequences {
		t.Run(name, func(t *testing.T) {
			st := New()
			requireActiveIsValid(t, st.Snapshot())
			for _, step := range steps {
				if step.add {
					id, err := st.AddConversation(nil)
					require.NoError(t, err)
					assert.Equal(t, id, *st.Snapshot().ActiveConversationID)
				} else {
					convs := st.Snapshot().Conversations
					require.NotEmpty(t, convs)
					idx := step.idx
					if idx < 0 {
						idx += len(convs)
					}
					require.NoError(t, st.DeleteConversation(convs[idx].ID))
				}
				requireActiveIsValid(t, st.Snapshot())
			}
			assert.Empty(t, st.Snapshot().Conversations)
		})
	}
}

func TestPushMessageWithoutIDGetsOne(t *testing.T) {
	st := New()
	require.NoError(t, st.PushMessage(&conversation.Message{Role: conversation.RoleUser, Content: "Hi"}))
	require.NoError(t, st.PushMessage(&conversation.Message{Role: conversation.RoleUser, Content: "Again"}))

	msgs := st.Snapshot().ActiveConversation().Messages
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].ID.IsZero())
	assert.False(t, msgs[1].ID.IsZero())
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func TestSetEditingMessage(t *testing.T) {
	st := New()
	msg := conversation.NewUserMessage("draft")
	require.NoError(t, st.SetEditingMessage(msg))

	msg.Content = "changed after the call"
	got := st.Snapshot().EditingMessage
	require.NotNil(t, got)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "draft", got.Content)

	require.NoError(t, st.SetEditingMessage(nil))
	assert.Nil(t, st.Snapshot().EditingMessage)
}

func TestSetAPIState(t *testing.T) {
	st := New()
	c := st.Snapshot().ActiveConversation()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, st.Apply(MutateBeginRequest(NewRequestHandle(c.ID, conversation.NewMessageID(), cancel))))

	require.NoError(t, st.SetAPIState(APIStateError))
	s := st.Snapshot()
	assert.Equal(t, APIStateError, s.APIState)
	assert.Nil(t, s.CurrentRequest)

	v := st.Version()
	assert.ErrorIs(t, st.SetAPIState(APIStateLoading), ErrLoadingWithoutRequest)
	assert.Error(t, st.SetAPIState("busy"))
	assert.Equal(t, v, st.Version())

	require.NoError(t, st.SetAPIState(APIStateIdle))
	assert.Equal(t, APIStateIdle, st.Snapshot().APIState)
}

func TestWithStateWithoutConversationsKeepsTheRest(t *testing.T) {
	seed := InitialState()
	key := "sk-test"
	seed.APIKey = &key
	seed.Settings.Model = "gpt-4o"
	seed.UI.PushToTalkMode = true
	seed.Conversations = nil
	seed.ActiveConversationID = nil

	s := New(WithState(seed)).Snapshot()
	require.Len(t, s.Conversations, 1)
	require.NotNil(t, s.ActiveConversationID)
	assert.Equal(t, s.Conversations[0].ID, *s.ActiveConversationID)
	assert.True(t, s.HasCredential())
	assert.Equal(t, "gpt-4o", s.Settings.Model)
	assert.True(t, s.UI.PushToTalkMode)
}

func TestStateCloneSharesRequestHandle(t *testing.T) {
	s := InitialState()
	c := s.ActiveConversation()
	c.Messages = append(c.Messages, conversation.NewUserMessage("Hi"))
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.CurrentRequest = NewRequestHandle(c.ID, conversation.NewMessageID(), cancel)

	cp := s.Clone()
	assert.Same(t, s.CurrentRequest, cp.CurrentRequest)
	assert.NotSame(t, s.Settings, cp.Settings)

	cp.ActiveConversation().Messages[0].Content = "changed"
	*cp.ActiveConversationID = conversation.NewConversationID()
	assert.Equal(t, "Hi", s.ActiveConversation().Messages[0].Content)
}
