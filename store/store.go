package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/J12003LPZ/Chatbot/internal/profile"
	"github.com/J12003LPZ/Chatbot/store/cache"
)

const (
	// sessionTitleMaxRunes caps the derived session title/preview length.
	sessionTitleMaxRunes = 50

	// defaultSessionTitle is shown for sessions without a user message yet.
	defaultSessionTitle = "New chat"

	// imageMarkerPrefix tags stored user messages that carried an image.
	imageMarkerPrefix = "[IMAGE ATTACHED] "
)

// Store provides access to sessions and messages through the backend
// selected at startup. Callers never see which backend is active.
type Store struct {
	profile *profile.Profile
	driver  Driver

	cacheConfig  cache.Config
	sessionCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
		OnEviction:      nil,
	}

	return &Store{
		driver:       driver,
		profile:      profile,
		cacheConfig:  cacheConfig,
		sessionCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// BackendName returns the backend selected at startup (postgres, sqlite or
// memory). The selection never changes for the process lifetime.
func (s *Store) BackendName() string {
	return s.profile.Driver
}

func (s *Store) Ping(ctx context.Context) error {
	return s.driver.Ping(ctx)
}

func (s *Store) Close() error {
	s.sessionCache.Close()
	return s.driver.Close()
}

// CreateOrGetSession returns the session with the given id, creating it if
// absent. An empty id generates a new unique one. Calling it again with the
// same id returns the identical session.
func (s *Store) CreateOrGetSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if cached, ok := s.sessionCache.Get(sessionID); ok {
		return cached.(*Session), nil
	}

	session, err := s.driver.GetSession(ctx, &FindSession{ID: &sessionID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}
	if session == nil {
		now := time.Now().Unix()
		session, err = s.driver.CreateSession(ctx, &Session{
			ID:        sessionID,
			CreatedTs: now,
			UpdatedTs: now,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create session")
		}
	}

	s.sessionCache.Set(session.ID, session, 0)
	return session, nil
}

// AppendMessage appends a message to the end of the session's history,
// creating the session implicitly if absent. The stored record carries the
// assigned timestamp. The session title is derived from the first user
// message.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role MessageRole, content string, attachmentExcerpt string) (*Message, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if !role.Valid() {
		return nil, errors.Errorf("invalid message role %q", role)
	}

	session, err := s.CreateOrGetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	message, err := s.driver.CreateMessage(ctx, &Message{
		UID:               shortuuid.New(),
		SessionID:         session.ID,
		Role:              role,
		Content:           content,
		AttachmentExcerpt: attachmentExcerpt,
		CreatedTs:         now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create message")
	}

	update := &UpdateSession{ID: session.ID, UpdatedTs: &now}
	if session.Title == "" && role == MessageRoleUser {
		title := deriveTitle(content)
		update.Title = &title
	}
	updated, err := s.driver.UpdateSession(ctx, update)
	if err != nil {
		return nil, errors.Wrap(err, "failed to touch session")
	}
	s.sessionCache.Set(updated.ID, updated, 0)

	return message, nil
}

// GetHistory returns all messages for the session in insertion order. An
// unknown session id yields an empty slice, not an error.
func (s *Store) GetHistory(ctx context.Context, sessionID string) ([]*Message, error) {
	messages, err := s.driver.ListMessages(ctx, &FindMessage{SessionID: &sessionID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	return messages, nil
}

// ListSessions returns session summaries, most recently active first.
func (s *Store) ListSessions(ctx context.Context) ([]*SessionSummary, error) {
	sessions, err := s.driver.ListSessions(ctx, &FindSession{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	summaries := make([]*SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		count, err := s.driver.CountMessages(ctx, &FindMessage{
			SessionID:     &session.ID,
			ChatTurnsOnly: true,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to count messages for session %s", session.ID)
		}

		preview := session.Title
		if preview == "" {
			preview = defaultSessionTitle
		}
		summaries = append(summaries, &SessionSummary{
			SessionID:    session.ID,
			Preview:      preview,
			CreatedTs:    session.CreatedTs,
			UpdatedTs:    session.UpdatedTs,
			MessageCount: count,
		})
	}
	return summaries, nil
}

// CountSessions returns the number of sessions held by the active backend.
func (s *Store) CountSessions(ctx context.Context) (int, error) {
	sessions, err := s.driver.ListSessions(ctx, &FindSession{})
	if err != nil {
		return 0, errors.Wrap(err, "failed to list sessions")
	}
	return len(sessions), nil
}

// DeleteSession removes the session and all of its messages.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.driver.DeleteSession(ctx, &DeleteSession{ID: sessionID}); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	s.sessionCache.Delete(sessionID)
	return nil
}

// deriveTitle builds the session title from the first user message.
func deriveTitle(content string) string {
	content = strings.TrimPrefix(content, imageMarkerPrefix)
	content = strings.TrimSpace(content)
	if content == "" {
		return defaultSessionTitle
	}

	runes := []rune(content)
	if len(runes) <= sessionTitleMaxRunes {
		return content
	}
	return string(runes[:sessionTitleMaxRunes]) + "..."
}
