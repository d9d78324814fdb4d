// README: In-app inbox persisted in Postgres.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"haulr/internal/infra"
	"haulr/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Send stores in as an unread inbox entry.
func (s *Store) Send(ctx context.Context, in Intent) error {
	meta, err := json.Marshal(in.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = infra.Conn(ctx, s.db).Exec(ctx, `
        INSERT INTO notifications (id, user_id, title, message, category, metadata, read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, false, NOW())
    `, uuid.NewString(), string(in.UserID), in.Title, in.Message, string(in.Category), meta)
	return err
}

func (s *Store) ListUnread(ctx context.Context, userID types.ID, limit int) ([]Notification, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
        SELECT id, user_id, title, message, category, metadata, read, created_at
        FROM notifications
        WHERE user_id = $1 AND read = false
        ORDER BY created_at DESC
        LIMIT $2
    `, string(userID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n        Notification
			id, uid  string
			category string
			meta     []byte
		)
		if err := rows.Scan(&id, &uid, &n.Title, &n.Message, &category, &meta, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.ID = types.ID(id)
		n.UserID = types.ID(uid)
		n.Category = Category(category)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &n.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkRead(ctx context.Context, userID, id types.ID) error {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
        UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2
    `, string(id), string(userID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
