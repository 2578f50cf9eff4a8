package store_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/J12003LPZ/Chatbot/internal/profile"
	"github.com/J12003LPZ/Chatbot/store"
	"github.com/J12003LPZ/Chatbot/store/db/memory"
)

func newTestingStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{Mode: "demo", Driver: "memory"}
	driver, err := memory.NewDB(p)
	require.NoError(t, err)
	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateOrGetSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	first, err := s.CreateOrGetSession(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, "session-1", first.ID)

	second, err := s.CreateOrGetSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedTs, second.CreatedTs)
}

func TestCreateOrGetSessionGeneratesID(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	first, err := s.CreateOrGetSession(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := s.CreateOrGetSession(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAppendMessageOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	const n = 25
	for i := 0; i < n; i++ {
		role := store.MessageRoleUser
		if i%2 == 1 {
			role = store.MessageRoleAssistant
		}
		_, err := s.AppendMessage(ctx, "session-1", role, fmt.Sprintf("message %d", i), "")
		require.NoError(t, err)
	}

	history, err := s.GetHistory(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, history, n)
	for i, msg := range history {
		assert.Equal(t, fmt.Sprintf("message %d", i), msg.Content)
	}
}

func TestAppendMessageValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	_, err := s.AppendMessage(ctx, "", store.MessageRoleUser, "hello", "")
	require.Error(t, err)

	_, err = s.AppendMessage(ctx, "session-1", store.MessageRole("bot"), "hello", "")
	require.Error(t, err)
}

func TestAppendMessageCreatesSessionImplicitly(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	msg, err := s.AppendMessage(ctx, "fresh-session", store.MessageRoleUser, "hello there", "")
	require.NoError(t, err)
	assert.Equal(t, "fresh-session", msg.SessionID)
	assert.NotEmpty(t, msg.UID)

	session, err := s.CreateOrGetSession(ctx, "fresh-session")
	require.NoError(t, err)
	assert.Equal(t, "hello there", session.Title)
}

func TestGetHistoryUnknownSession(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	history, err := s.GetHistory(ctx, "never-created")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	written, err := s.AppendMessage(ctx, "session-1", store.MessageRoleSystem, "excerpt body", "full text")
	require.NoError(t, err)

	history, err := s.GetHistory(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	got := history[0]
	assert.Equal(t, written.UID, got.UID)
	assert.Equal(t, store.MessageRoleSystem, got.Role)
	assert.Equal(t, "excerpt body", got.Content)
	assert.Equal(t, "full text", got.AttachmentExcerpt)
	assert.Equal(t, written.CreatedTs, got.CreatedTs)
}

func TestConcurrentAppendsBothRetained(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	_, err := s.CreateOrGetSession(ctx, "session-1")
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendMessage(ctx, "session-1", store.MessageRoleUser, fmt.Sprintf("concurrent %d", i), "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := s.GetHistory(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, history, writers)

	seen := make(map[string]bool, writers)
	for _, msg := range history {
		seen[msg.Content] = true
	}
	assert.Len(t, seen, writers)
}

func TestConcurrentSessionCreation(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	const callers = 8
	var wg sync.WaitGroup
	sessions := make([]*store.Session, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := s.CreateOrGetSession(ctx, "shared")
			assert.NoError(t, err)
			sessions[i] = session
		}(i)
	}
	wg.Wait()

	// Every racing caller resolves to the same single session.
	for _, session := range sessions {
		require.NotNil(t, session)
		assert.Equal(t, "shared", session.ID)
	}
	summaries, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	_, err := s.AppendMessage(ctx, "session-a", store.MessageRoleUser, "first question", "")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "session-a", store.MessageRoleAssistant, "first answer", "")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "session-a", store.MessageRoleSystem, "uploaded file", "")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "session-b", store.MessageRoleUser, "second question", "")
	require.NoError(t, err)

	summaries, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byID := make(map[string]*store.SessionSummary, len(summaries))
	for _, summary := range summaries {
		byID[summary.SessionID] = summary
	}
	// System rows never count toward the turn total.
	assert.Equal(t, 2, byID["session-a"].MessageCount)
	assert.Equal(t, "first question", byID["session-a"].Preview)
	assert.Equal(t, 1, byID["session-b"].MessageCount)
}

func TestListSessionsDefaultPreview(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	_, err := s.CreateOrGetSession(ctx, "empty-session")
	require.NoError(t, err)

	summaries, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "New chat", summaries[0].Preview)
	assert.Equal(t, 0, summaries[0].MessageCount)
}

func TestSessionTitleTruncation(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	long := strings.Repeat("a", 80)
	_, err := s.AppendMessage(ctx, "session-1", store.MessageRoleUser, long, "")
	require.NoError(t, err)

	summaries, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, strings.Repeat("a", 50)+"...", summaries[0].Preview)
}

func TestSessionTitleStripsImageMarker(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	_, err := s.AppendMessage(ctx, "session-1", store.MessageRoleUser, "[IMAGE ATTACHED] what is this?", "")
	require.NoError(t, err)

	summaries, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "what is this?", summaries[0].Preview)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	s := newTestingStore(t)

	_, err := s.AppendMessage(ctx, "session-1", store.MessageRoleUser, "hello", "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, "session-1"))

	history, err := s.GetHistory(ctx, "session-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	summaries, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	// Deleting again is a no-op.
	require.NoError(t, s.DeleteSession(ctx, "session-1"))
}
