package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inkleaf/backend/internal/db"
	"github.com/inkleaf/backend/internal/models"
	"github.com/inkleaf/backend/internal/realtime"
)

// PostgresFriendshipRepository provides PostgreSQL-backed persistence for
// friendship relationships. Successful writes publish a change event to both
// participants' feed channels.
type PostgresFriendshipRepository struct {
	pool   db.Pool
	feed   realtime.Feed
	logger *slog.Logger
}

// NewPostgresFriendshipRepository constructs a friendship repository backed by
// PostgreSQL. The feed may be nil, in which case no notifications are emitted.
func NewPostgresFriendshipRepository(pool db.Pool, feed realtime.Feed, logger *slog.Logger) *PostgresFriendshipRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresFriendshipRepository{pool: pool, feed: feed, logger: logger}
}

const friendshipColumns = `
        f.id, f.requester_id, f.addressee_id, f.status, f.blocked_by, f.created_at, f.updated_at,
        rq.id, rq.username, rq.display_name, rq.avatar_url,
        ad.id, ad.username, ad.display_name, ad.avatar_url
`

// ListForUser returns every friendship where the user is either participant,
// joined with both participants' display projections.
func (r *PostgresFriendshipRepository) ListForUser(ctx context.Context, userID string) ([]models.Friendship, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+friendshipColumns+`
        FROM friendships f
        LEFT JOIN profiles rq ON rq.id = f.requester_id
        LEFT JOIN profiles ad ON ad.id = f.addressee_id
        WHERE f.requester_id = $1 OR f.addressee_id = $1
        ORDER BY f.created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	var friendships []models.Friendship
	for rows.Next() {
		friendship, err := scanFriendship(rows)
		if err != nil {
			return nil, err
		}
		friendships = append(friendships, friendship)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}

	return friendships, nil
}

// Find fetches a single friendship by id.
func (r *PostgresFriendshipRepository) Find(ctx context.Context, id string) (models.Friendship, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Friendship{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+friendshipColumns+`
        FROM friendships f
        LEFT JOIN profiles rq ON rq.id = f.requester_id
        LEFT JOIN profiles ad ON ad.id = f.addressee_id
        WHERE f.id = $1
    `, id)

	friendship, err := scanFriendship(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Friendship{}, ErrNotFound
		}
		return models.Friendship{}, err
	}

	return friendship, nil
}

// FindBetween fetches the friendship between the unordered pair {a, b},
// regardless of request direction.
func (r *PostgresFriendshipRepository) FindBetween(ctx context.Context, a, b string) (models.Friendship, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Friendship{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+friendshipColumns+`
        FROM friendships f
        LEFT JOIN profiles rq ON rq.id = f.requester_id
        LEFT JOIN profiles ad ON ad.id = f.addressee_id
        WHERE (f.requester_id = $1 AND f.addressee_id = $2)
           OR (f.requester_id = $2 AND f.addressee_id = $1)
    `, a, b)

	friendship, err := scanFriendship(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Friendship{}, ErrNotFound
		}
		return models.Friendship{}, err
	}

	return friendship, nil
}

// Create persists a new friendship row. The canonical-pair unique index maps
// duplicate inserts to ErrConflict regardless of direction.
func (r *PostgresFriendshipRepository) Create(ctx context.Context, friendship models.Friendship) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	blockedBy := sql.NullString{String: friendship.BlockedBy, Valid: friendship.BlockedBy != ""}

	_, err = conn.Exec(ctx, `
        INSERT INTO friendships (id, requester_id, addressee_id, status, blocked_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, friendship.ID, friendship.RequesterID, friendship.AddresseeID, friendship.Status, blockedBy, friendship.CreatedAt, friendship.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert friendship: %w", err)
	}

	r.publish(friendship, realtime.OpInsert)
	return nil
}

// UpdateStatus transitions the friendship's status. blockedBy is cleared unless
// the new status is blocked.
func (r *PostgresFriendshipRepository) UpdateStatus(ctx context.Context, id, status, blockedBy string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	blocked := sql.NullString{String: blockedBy, Valid: status == models.FriendshipBlocked && blockedBy != ""}

	var requesterID, addresseeID string
	err = conn.QueryRow(ctx, `
        UPDATE friendships
        SET status = $2, blocked_by = $3, updated_at = $4
        WHERE id = $1
        RETURNING requester_id, addressee_id
    `, id, status, blocked, time.Now().UTC()).Scan(&requesterID, &addresseeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update friendship: %w", err)
	}

	r.publish(models.Friendship{ID: id, RequesterID: requesterID, AddresseeID: addresseeID}, realtime.OpUpdate)
	return nil
}

// Delete removes the friendship row entirely. Rejections, removals, and
// unblocks are all hard deletes; a fresh request between the pair may follow.
func (r *PostgresFriendshipRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var requesterID, addresseeID string
	err = conn.QueryRow(ctx, `
        DELETE FROM friendships
        WHERE id = $1
        RETURNING requester_id, addressee_id
    `, id).Scan(&requesterID, &addresseeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete friendship: %w", err)
	}

	r.publish(models.Friendship{ID: id, RequesterID: requesterID, AddresseeID: addresseeID}, realtime.OpDelete)
	return nil
}

func (r *PostgresFriendshipRepository) publish(friendship models.Friendship, op string) {
	if r.feed == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := realtime.Event{Table: "friendships", Op: op, RowID: friendship.ID}
	for _, userID := range []string{friendship.RequesterID, friendship.AddresseeID} {
		if err := r.feed.Publish(ctx, realtime.FriendshipChannel(userID), event); err != nil {
			r.logger.Error("publish friendship event", "friendshipId", friendship.ID, "op", op, "error", err)
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFriendship(row rowScanner) (models.Friendship, error) {
	var (
		friendship models.Friendship
		blockedBy  sql.NullString

		rqID, rqUsername, rqDisplay, rqAvatar sql.NullString
		adID, adUsername, adDisplay, adAvatar sql.NullString
	)

	if err := row.Scan(
		&friendship.ID, &friendship.RequesterID, &friendship.AddresseeID,
		&friendship.Status, &blockedBy, &friendship.CreatedAt, &friendship.UpdatedAt,
		&rqID, &rqUsername, &rqDisplay, &rqAvatar,
		&adID, &adUsername, &adDisplay, &adAvatar,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Friendship{}, err
		}
		return models.Friendship{}, fmt.Errorf("scan friendship: %w", err)
	}

	friendship.BlockedBy = blockedBy.String

	if rqID.Valid {
		friendship.Requester = &models.Profile{
			ID:          rqID.String,
			Username:    rqUsername.String,
			DisplayName: rqDisplay.String,
			AvatarURL:   rqAvatar.String,
		}
	}
	if adID.Valid {
		friendship.Addressee = &models.Profile{
			ID:          adID.String,
			Username:    adUsername.String,
			DisplayName: adDisplay.String,
			AvatarURL:   adAvatar.String,
		}
	}

	return friendship, nil
}
