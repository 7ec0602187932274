package store

import (
	"context"
	"encoding/json"

	"resto-ops-services/internal/chat"

	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) GetChatSession(ctx context.Context, id string) (chat.Session, error) {
	var (
		session chat.Session
		phone   pgtype.Text
		history []byte
	)
	err := s.q.QueryRow(ctx, `
		select id, current_level, phone, history, created_at, last_activity_at
		from chat_sessions
		where id = $1
	`, id).Scan(&session.ID, &session.CurrentLevel, &phone, &history, &session.CreatedAt, &session.LastActivityAt)
	if err != nil {
		return chat.Session{}, notFoundOr(err, "Chat session not found")
	}
	session.Phone = textPtr(phone)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &session.History); err != nil {
			return chat.Session{}, err
		}
	}
	return session, nil
}

// SaveChatSession upserts the whole session. The chat backend owns the level,
// so the last write wins.
func (s *Store) SaveChatSession(ctx context.Context, session chat.Session) error {
	history := session.History
	if history == nil {
		history = []chat.Message{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `
		insert into chat_sessions (id, current_level, phone, history, created_at, last_activity_at)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (id) do update
		set current_level = excluded.current_level,
			phone = excluded.phone,
			history = excluded.history,
			last_activity_at = excluded.last_activity_at
	`, session.ID, session.CurrentLevel, session.Phone, raw, session.CreatedAt, session.LastActivityAt)
	return err
}
