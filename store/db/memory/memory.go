// Package memory implements the store driver on process-lifetime maps.
// It is the fallback backend when the relational store is unreachable at
// startup: every operation keeps working, nothing survives a restart.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/J12003LPZ/Chatbot/internal/profile"
	"github.com/J12003LPZ/Chatbot/store"
)

// maxSessions bounds memory usage. When exceeded, the session with the
// fewest messages is evicted.
const maxSessions = 100

type DB struct {
	profile *profile.Profile

	mu       sync.RWMutex
	sessions map[string]*store.Session
	messages map[string][]*store.Message
	nextID   int32
}

// NewDB creates the in-memory driver. It never fails.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	return &DB{
		profile:  profile,
		sessions: make(map[string]*store.Session),
		messages: make(map[string][]*store.Message),
	}, nil
}

// GetDB returns nil: there is no database handle behind this backend.
func (d *DB) GetDB() *sql.DB {
	return nil
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) Ping(_ context.Context) error {
	return nil
}

func (d *DB) IsInitialized(_ context.Context) (bool, error) {
	return true, nil
}

func (d *DB) CreateSession(_ context.Context, create *store.Session) (*store.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.sessions[create.ID]; ok {
		copied := *existing
		return &copied, nil
	}

	session := *create
	d.sessions[create.ID] = &session
	d.messages[create.ID] = make([]*store.Message, 0, 16)

	if len(d.sessions) > maxSessions {
		d.evictSmallest(create.ID)
	}

	copied := session
	return &copied, nil
}

// evictSmallest drops the session with the fewest messages, sparing the one
// just created. Must be called with the write lock held.
func (d *DB) evictSmallest(keep string) {
	victim := ""
	victimCount := -1
	for id := range d.sessions {
		if id == keep {
			continue
		}
		if count := len(d.messages[id]); victimCount < 0 || count < victimCount {
			victim, victimCount = id, count
		}
	}
	if victim != "" {
		delete(d.sessions, victim)
		delete(d.messages, victim)
	}
}

func (d *DB) GetSession(_ context.Context, find *store.FindSession) (*store.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if find.ID != nil {
		session, ok := d.sessions[*find.ID]
		if !ok {
			return nil, nil
		}
		copied := *session
		return &copied, nil
	}

	list := d.listSessionsLocked(find)
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) ListSessions(_ context.Context, find *store.FindSession) ([]*store.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listSessionsLocked(find), nil
}

// listSessionsLocked must be called with at least the read lock held.
func (d *DB) listSessionsLocked(find *store.FindSession) []*store.Session {
	list := make([]*store.Session, 0, len(d.sessions))
	for _, session := range d.sessions {
		if find.ID != nil && session.ID != *find.ID {
			continue
		}
		copied := *session
		list = append(list, &copied)
	}

	// Most recently active first; id tie-break keeps the order stable.
	sort.Slice(list, func(i, j int) bool {
		if list[i].UpdatedTs != list[j].UpdatedTs {
			return list[i].UpdatedTs > list[j].UpdatedTs
		}
		return list[i].ID > list[j].ID
	})

	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list
}

func (d *DB) UpdateSession(_ context.Context, update *store.UpdateSession) (*store.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, ok := d.sessions[update.ID]
	if !ok {
		return nil, errors.Errorf("chat_session not found")
	}

	if update.Title != nil {
		session.Title = *update.Title
	}
	if update.UpdatedTs != nil {
		session.UpdatedTs = *update.UpdatedTs
	}

	copied := *session
	return &copied, nil
}

func (d *DB) DeleteSession(_ context.Context, del *store.DeleteSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Deleting an absent session is a no-op, matching relational DELETE.
	delete(d.sessions, del.ID)
	delete(d.messages, del.ID)
	return nil
}

func (d *DB) CreateMessage(_ context.Context, create *store.Message) (*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[create.SessionID]; !ok {
		return nil, errors.Errorf("chat_session not found")
	}

	d.nextID++
	message := *create
	message.ID = d.nextID
	d.messages[create.SessionID] = append(d.messages[create.SessionID], &message)

	copied := message
	return &copied, nil
}

func (d *DB) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := make([]*store.Message, 0)
	for _, message := range d.collectLocked(find) {
		copied := *message
		list = append(list, &copied)
	}

	// Appends already happen in id order per session; sorting keeps the
	// same created_ts ASC, id ASC contract as the relational backends.
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedTs != list[j].CreatedTs {
			return list[i].CreatedTs < list[j].CreatedTs
		}
		return list[i].ID < list[j].ID
	})

	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *DB) CountMessages(_ context.Context, find *store.FindMessage) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.collectLocked(find)), nil
}

// collectLocked must be called with at least the read lock held.
func (d *DB) collectLocked(find *store.FindMessage) []*store.Message {
	var pool []*store.Message
	if find.SessionID != nil {
		pool = d.messages[*find.SessionID]
	} else {
		for _, messages := range d.messages {
			pool = append(pool, messages...)
		}
	}

	matched := make([]*store.Message, 0, len(pool))
	for _, message := range pool {
		if find.ID != nil && message.ID != *find.ID {
			continue
		}
		if find.UID != nil && message.UID != *find.UID {
			continue
		}
		if find.Role != nil && message.Role != *find.Role {
			continue
		}
		if find.ChatTurnsOnly && !message.Role.IsChatTurn() {
			continue
		}
		matched = append(matched, message)
	}
	return matched
}

func (d *DB) DeleteMessage(_ context.Context, del *store.DeleteMessage) error {
	if del.ID == nil && del.SessionID == nil {
		return errors.New("no condition to delete")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for sessionID, messages := range d.messages {
		if del.SessionID != nil && sessionID != *del.SessionID {
			continue
		}
		if del.ID == nil {
			d.messages[sessionID] = d.messages[sessionID][:0]
			continue
		}
		kept := make([]*store.Message, 0, len(messages))
		for _, message := range messages {
			if message.ID != *del.ID {
				kept = append(kept, message)
			}
		}
		d.messages[sessionID] = kept
	}
	return nil
}
