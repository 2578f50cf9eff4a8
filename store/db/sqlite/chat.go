package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/J12003LPZ/Chatbot/store"
)

func (d *DB) CreateSession(ctx context.Context, create *store.Session) (*store.Session, error) {
	fields := []string{"id", "title", "created_ts", "updated_ts"}
	args := []any{create.ID, create.Title, create.CreatedTs, create.UpdatedTs}

	// Concurrent first appends may race the facade's get-then-create;
	// the existing row wins and is returned.
	stmt := `INSERT INTO chat_session (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		ON CONFLICT (id) DO NOTHING`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to create chat_session: %w", err)
	}

	session, err := d.GetSession(ctx, &store.FindSession{ID: &create.ID})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("chat_session not found after insert")
	}
	return session, nil
}

func (d *DB) GetSession(ctx context.Context, find *store.FindSession) (*store.Session, error) {
	list, err := d.ListSessions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) ListSessions(ctx context.Context, find *store.FindSession) ([]*store.Session, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}

	query := `SELECT id, title, created_ts, updated_ts FROM chat_session WHERE ` + strings.Join(where, " AND ") + ` ORDER BY updated_ts DESC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat_sessions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Session, 0)
	for rows.Next() {
		s := &store.Session{}
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedTs, &s.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan chat_session: %w", err)
		}
		list = append(list, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat_sessions: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateSession(ctx context.Context, update *store.UpdateSession) (*store.Session, error) {
	set, args := []string{}, []any{}

	if update.Title != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *update.Title)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE chat_session SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING id, title, created_ts, updated_ts`
	result := &store.Session{}
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&result.ID, &result.Title, &result.CreatedTs, &result.UpdatedTs)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("chat_session not found")
		}
		return nil, fmt.Errorf("failed to update chat_session: %w", err)
	}

	return result, nil
}

func (d *DB) DeleteSession(ctx context.Context, delete *store.DeleteSession) error {
	// Delete messages first
	if _, err := d.db.ExecContext(ctx, `DELETE FROM chat_message WHERE session_id = `+placeholder(1), delete.ID); err != nil {
		return fmt.Errorf("failed to delete chat_messages: %w", err)
	}
	// Deleting an absent session is a no-op.
	if _, err := d.db.ExecContext(ctx, `DELETE FROM chat_session WHERE id = `+placeholder(1), delete.ID); err != nil {
		return fmt.Errorf("failed to delete chat_session: %w", err)
	}

	return nil
}

func (d *DB) CreateMessage(ctx context.Context, create *store.Message) (*store.Message, error) {
	fields := []string{"uid", "session_id", "role", "content", "attachment_excerpt", "created_ts"}
	args := []any{create.UID, create.SessionID, string(create.Role), create.Content, create.AttachmentExcerpt, create.CreatedTs}

	stmt := `INSERT INTO chat_message (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)`

	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get chat_message id: %w", err)
	}
	create.ID = int32(id)

	return create, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := messageWhere(find)

	// Ties on created_ts break by primary key, keeping insertion order.
	query := `SELECT id, uid, session_id, role, content, attachment_excerpt, created_ts FROM chat_message WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts ASC, id ASC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat_messages: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Message, 0)
	for rows.Next() {
		m := &store.Message{}
		var role string
		if err := rows.Scan(&m.ID, &m.UID, &m.SessionID, &role, &m.Content, &m.AttachmentExcerpt, &m.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan chat_message: %w", err)
		}
		m.Role = store.MessageRole(role)
		list = append(list, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat_messages: %w", err)
	}

	return list, nil
}

func (d *DB) CountMessages(ctx context.Context, find *store.FindMessage) (int, error) {
	where, args := messageWhere(find)

	query := `SELECT COUNT(*) FROM chat_message WHERE ` + strings.Join(where, " AND ")
	var count int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chat_messages: %w", err)
	}
	return count, nil
}

func (d *DB) DeleteMessage(ctx context.Context, delete *store.DeleteMessage) error {
	where, args := []string{}, []any{}

	if delete.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *delete.ID)
	}
	if delete.SessionID != nil {
		where, args = append(where, "session_id = "+placeholder(len(args)+1)), append(args, *delete.SessionID)
	}

	if len(where) == 0 {
		return fmt.Errorf("no condition to delete")
	}

	stmt := `DELETE FROM chat_message WHERE ` + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to delete chat_message: %w", err)
	}

	return nil
}

func messageWhere(find *store.FindMessage) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.SessionID != nil {
		where, args = append(where, "session_id = "+placeholder(len(args)+1)), append(args, *find.SessionID)
	}
	if find.Role != nil {
		where, args = append(where, "role = "+placeholder(len(args)+1)), append(args, string(*find.Role))
	}
	if find.ChatTurnsOnly {
		where, args = append(where, "role IN ("+placeholder(len(args)+1)+", "+placeholder(len(args)+2)+")"),
			append(args, string(store.MessageRoleUser), string(store.MessageRoleAssistant))
	}

	return where, args
}
