package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inkleaf/backend/internal/db"
	"github.com/inkleaf/backend/internal/models"
)

// PostgresChatRepository provides PostgreSQL-backed persistence for chat rooms
// and messages.
type PostgresChatRepository struct {
	pool db.Pool
}

// NewPostgresChatRepository constructs a chat repository backed by PostgreSQL.
func NewPostgresChatRepository(pool db.Pool) *PostgresChatRepository {
	return &PostgresChatRepository{pool: pool}
}

// ListRooms returns all chat rooms ordered by name.
func (r *PostgresChatRepository) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, name, description, created_at
        FROM chat_rooms
        ORDER BY name
    `)
	if err != nil {
		return nil, fmt.Errorf("query chat rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.ChatRoom
	for rows.Next() {
		var room models.ChatRoom
		var description sql.NullString
		if err := rows.Scan(&room.ID, &room.Name, &description, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat room: %w", err)
		}
		room.Description = description.String
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rooms: %w", err)
	}

	return rooms, nil
}

// CreateMessage persists a message posted to a room.
func (r *PostgresChatRepository) CreateMessage(ctx context.Context, message models.ChatMessage) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO chat_messages (id, room_id, user_id, content, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, message.ID, message.RoomID, message.UserID, message.Content, message.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert chat message: %w", err)
	}

	return nil
}

// FindMessage returns a single message by id with the sender projection
// joined. The chat hub uses it to materialize messages announced on the
// realtime feed by other server instances.
func (r *PostgresChatRepository) FindMessage(ctx context.Context, id string) (models.ChatMessage, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		message models.ChatMessage

		pID, pUsername, pDisplay, pAvatar sql.NullString
	)
	err = conn.QueryRow(ctx, `
        SELECT m.id, m.room_id, m.user_id, m.content, m.created_at,
               p.id, p.username, p.display_name, p.avatar_url
        FROM chat_messages m
        LEFT JOIN profiles p ON p.id = m.user_id
        WHERE m.id = $1
    `, id).Scan(&message.ID, &message.RoomID, &message.UserID, &message.Content, &message.CreatedAt,
		&pID, &pUsername, &pDisplay, &pAvatar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChatMessage{}, ErrNotFound
		}
		return models.ChatMessage{}, fmt.Errorf("find chat message: %w", err)
	}

	if pID.Valid {
		message.Sender = &models.Profile{
			ID:          pID.String,
			Username:    pUsername.String,
			DisplayName: pDisplay.String,
			AvatarURL:   pAvatar.String,
		}
	}
	return message, nil
}

// RecentMessages returns the most recent messages for a room in chronological
// order, joined with the sender's display projection.
func (r *PostgresChatRepository) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT m.id, m.room_id, m.user_id, m.content, m.created_at,
               p.id, p.username, p.display_name, p.avatar_url
        FROM (
            SELECT id, room_id, user_id, content, created_at
            FROM chat_messages
            WHERE room_id = $1
            ORDER BY created_at DESC
            LIMIT $2
        ) m
        LEFT JOIN profiles p ON p.id = m.user_id
        ORDER BY m.created_at
    `, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var (
			message models.ChatMessage

			pID, pUsername, pDisplay, pAvatar sql.NullString
		)
		if err := rows.Scan(&message.ID, &message.RoomID, &message.UserID, &message.Content, &message.CreatedAt,
			&pID, &pUsername, &pDisplay, &pAvatar); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}

		if pID.Valid {
			message.Sender = &models.Profile{
				ID:          pID.String,
				Username:    pUsername.String,
				DisplayName: pDisplay.String,
				AvatarURL:   pAvatar.String,
			}
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	return messages, nil
}
