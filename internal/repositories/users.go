package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inkleaf/backend/internal/db"
	"github.com/inkleaf/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, user.ID, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, created_at, updated_at
        FROM users
        WHERE email = $1
    `, email)

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by email: %w", err)
	}

	return user, nil
}

// Delete erases the user account together with all owned content, relationships,
// sessions, and ledger rows. This backs the account-deletion endpoint.
func (r *PostgresUserRepository) Delete(ctx context.Context, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin account deletion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	statements := []string{
		`DELETE FROM chat_messages WHERE user_id = $1`,
		`DELETE FROM reports WHERE reporter_id = $1`,
		`DELETE FROM view_milestones WHERE user_id = $1`,
		`DELETE FROM credit_transactions WHERE user_id = $1`,
		`DELETE FROM writer_credits WHERE user_id = $1`,
		`DELETE FROM friendships WHERE requester_id = $1 OR addressee_id = $1`,
		`DELETE FROM chapters WHERE novel_id IN (SELECT id FROM novels WHERE author_id = $1)`,
		`DELETE FROM novels WHERE author_id = $1`,
		`DELETE FROM poems WHERE user_id = $1`,
		`DELETE FROM diary_entries WHERE user_id = $1`,
		`DELETE FROM stories WHERE user_id = $1`,
		`DELETE FROM user_roles WHERE user_id = $1`,
		`DELETE FROM sessions WHERE user_id = $1`,
		`DELETE FROM profiles WHERE id = $1`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, userID); err != nil {
			return fmt.Errorf("erase user data: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account deletion: %w", err)
	}

	return nil
}

// PostgresProfileRepository provides PostgreSQL-backed persistence for profiles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

// Create persists a new profile. The id matches the owning user's id.
func (r *PostgresProfileRepository) Create(ctx context.Context, profile models.Profile) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO profiles (id, username, display_name, bio, avatar_url, preferred_language, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, profile.ID, profile.Username, profile.DisplayName, profile.Bio, profile.AvatarURL, profile.PreferredLanguage, profile.CreatedAt, profile.UpdatedAt)
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
		return fmt.Errorf("insert profile: %w", err)
	}

	return nil
}

// Find fetches a profile by user id.
func (r *PostgresProfileRepository) Find(ctx context.Context, id string) (models.Profile, error) {
	return r.findBy(ctx, "id", id)
}

// FindByUsername fetches a profile by its unique username.
func (r *PostgresProfileRepository) FindByUsername(ctx context.Context, username string) (models.Profile, error) {
	return r.findBy(ctx, "username", username)
}

func (r *PostgresProfileRepository) findBy(ctx context.Context, column, value string) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, username, display_name, bio, avatar_url, preferred_language, created_at, updated_at
        FROM profiles
        WHERE `+column+` = $1
    `, value)

	var profile models.Profile
	if err := row.Scan(&profile.ID, &profile.Username, &profile.DisplayName, &profile.Bio,
		&profile.AvatarURL, &profile.PreferredLanguage, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("select profile: %w", err)
	}

	return profile, nil
}

// Update modifies the mutable profile fields.
func (r *PostgresProfileRepository) Update(ctx context.Context, profile models.Profile) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE profiles
        SET username = $2, display_name = $3, bio = $4, avatar_url = $5, preferred_language = $6, updated_at = $7
        WHERE id = $1
    `, profile.ID, profile.Username, profile.DisplayName, profile.Bio, profile.AvatarURL, profile.PreferredLanguage, profile.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update profile: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Search returns profiles whose username or display name contains the query,
// for the friend-search box. Matching is case-insensitive.
func (r *PostgresProfileRepository) Search(ctx context.Context, query string, limit int) ([]models.Profile, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, username, display_name, bio, avatar_url, preferred_language, created_at, updated_at
        FROM profiles
        WHERE username ILIKE '%' || $1 || '%' OR display_name ILIKE '%' || $1 || '%'
        ORDER BY username
        LIMIT $2
    `, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		var profile models.Profile
		if err := rows.Scan(&profile.ID, &profile.Username, &profile.DisplayName, &profile.Bio,
			&profile.AvatarURL, &profile.PreferredLanguage, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}
