package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkleaf/backend/internal/auth"
	"github.com/inkleaf/backend/internal/db"
)

// PostgresSessionStore persists refresh tokens to PostgreSQL.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Save stores or updates a session record.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (refresh_token, access_token, user_id, expires_at, access_expires_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (refresh_token)
        DO UPDATE SET access_token = EXCLUDED.access_token,
                      user_id = EXCLUDED.user_id,
                      expires_at = EXCLUDED.expires_at,
                      access_expires_at = EXCLUDED.access_expires_at
    `, session.RefreshToken, session.AccessToken, session.UserID,
		session.ExpiresAt.UTC(), session.AccessExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Find loads a session by its refresh token.
func (s *PostgresSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return s.findBy(ctx, conn, "refresh_token", refreshToken)
}

// FindByAccess loads a session by its access token.
func (s *PostgresSessionStore) FindByAccess(ctx context.Context, accessToken string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return s.findBy(ctx, conn, "access_token", accessToken)
}

func (s *PostgresSessionStore) findBy(ctx context.Context, conn *pgxpool.Conn, column, token string) (auth.Session, error) {
	row := conn.QueryRow(ctx, fmt.Sprintf(`
        SELECT refresh_token, access_token, user_id, expires_at, access_expires_at
        FROM sessions
        WHERE %s = $1
    `, column), token)

	var session auth.Session
	var expiresAt, accessExpiresAt time.Time
	if err := row.Scan(&session.RefreshToken, &session.AccessToken, &session.UserID,
		&expiresAt, &accessExpiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("select session: %w", err)
	}

	session.ExpiresAt = expiresAt.UTC()
	session.AccessExpiresAt = accessExpiresAt.UTC()
	return session, nil
}

// Delete removes a session by its refresh token.
func (s *PostgresSessionStore) Delete(ctx context.Context, refreshToken string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM sessions
        WHERE refresh_token = $1
    `, refreshToken)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

// DeleteForUser removes every session belonging to the user. Used when an
// account is deleted.
func (s *PostgresSessionStore) DeleteForUser(ctx context.Context, userID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM sessions
        WHERE user_id = $1
    `, userID); err != nil {
		return fmt.Errorf("delete sessions for user: %w", err)
	}

	return nil
}
