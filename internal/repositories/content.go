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

// PostgresStoryRepository provides PostgreSQL-backed persistence for stories.
type PostgresStoryRepository struct {
	pool db.Pool
}

// NewPostgresStoryRepository constructs a story repository backed by PostgreSQL.
func NewPostgresStoryRepository(pool db.Pool) *PostgresStoryRepository {
	return &PostgresStoryRepository{pool: pool}
}

// Create persists a new story.
func (r *PostgresStoryRepository) Create(ctx context.Context, story models.Story) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO stories (id, user_id, title, content, word_count, is_public, views, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, story.ID, story.UserID, story.Title, story.Content, story.WordCount, story.IsPublic, story.Views, story.CreatedAt, story.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert story: %w", err)
	}

	return nil
}

// Find fetches a story by id.
func (r *PostgresStoryRepository) Find(ctx context.Context, id string) (models.Story, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Story{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user_id, title, content, word_count, is_public, views, created_at, updated_at
        FROM stories
        WHERE id = $1
    `, id)

	var story models.Story
	if err := row.Scan(&story.ID, &story.UserID, &story.Title, &story.Content, &story.WordCount,
		&story.IsPublic, &story.Views, &story.CreatedAt, &story.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Story{}, ErrNotFound
		}
		return models.Story{}, fmt.Errorf("select story: %w", err)
	}

	return story, nil
}

// ListPublic returns the most recent public stories.
func (r *PostgresStoryRepository) ListPublic(ctx context.Context, limit int) ([]models.Story, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return r.list(ctx, `WHERE is_public ORDER BY created_at DESC LIMIT $1`, limit)
}

// ListForUser returns all stories owned by the user, newest first.
func (r *PostgresStoryRepository) ListForUser(ctx context.Context, userID string) ([]models.Story, error) {
	return r.list(ctx, `WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresStoryRepository) list(ctx context.Context, clause string, args ...any) ([]models.Story, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, title, content, word_count, is_public, views, created_at, updated_at
        FROM stories `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}
	defer rows.Close()

	var stories []models.Story
	for rows.Next() {
		var story models.Story
		if err := rows.Scan(&story.ID, &story.UserID, &story.Title, &story.Content, &story.WordCount,
			&story.IsPublic, &story.Views, &story.CreatedAt, &story.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, story)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stories: %w", err)
	}

	return stories, nil
}

// Update modifies a story's mutable fields.
func (r *PostgresStoryRepository) Update(ctx context.Context, story models.Story) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE stories
        SET title = $2, content = $3, word_count = $4, is_public = $5, updated_at = $6
        WHERE id = $1
    `, story.ID, story.Title, story.Content, story.WordCount, story.IsPublic, story.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update story: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a story.
func (r *PostgresStoryRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.pool, "stories", id)
}

// RecordView increments the public view counter.
func (r *PostgresStoryRepository) RecordView(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE stories SET views = views + 1 WHERE id = $1 AND is_public
    `, id)
	if err != nil {
		return fmt.Errorf("record story view: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresDiaryRepository provides PostgreSQL-backed persistence for diary entries.
type PostgresDiaryRepository struct {
	pool db.Pool
}

// NewPostgresDiaryRepository constructs a diary repository backed by PostgreSQL.
func NewPostgresDiaryRepository(pool db.Pool) *PostgresDiaryRepository {
	return &PostgresDiaryRepository{pool: pool}
}

// Create persists a new diary entry.
func (r *PostgresDiaryRepository) Create(ctx context.Context, entry models.DiaryEntry) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO diary_entries (id, user_id, title, content, mood, is_private, is_pinned, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, entry.ID, entry.UserID, entry.Title, entry.Content, entry.Mood, entry.IsPrivate, entry.IsPinned, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert diary entry: %w", err)
	}

	return nil
}

// Find fetches a diary entry by id.
func (r *PostgresDiaryRepository) Find(ctx context.Context, id string) (models.DiaryEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.DiaryEntry{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user_id, title, content, mood, is_private, is_pinned, created_at, updated_at
        FROM diary_entries
        WHERE id = $1
    `, id)

	var entry models.DiaryEntry
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.Title, &entry.Content, &entry.Mood,
		&entry.IsPrivate, &entry.IsPinned, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DiaryEntry{}, ErrNotFound
		}
		return models.DiaryEntry{}, fmt.Errorf("select diary entry: %w", err)
	}

	return entry, nil
}

// ListForUser returns the user's diary entries, pinned first, newest first.
func (r *PostgresDiaryRepository) ListForUser(ctx context.Context, userID string) ([]models.DiaryEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, title, content, mood, is_private, is_pinned, created_at, updated_at
        FROM diary_entries
        WHERE user_id = $1
        ORDER BY is_pinned DESC, created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query diary entries: %w", err)
	}
	defer rows.Close()

	var entries []models.DiaryEntry
	for rows.Next() {
		var entry models.DiaryEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Title, &entry.Content, &entry.Mood,
			&entry.IsPrivate, &entry.IsPinned, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan diary entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diary entries: %w", err)
	}

	return entries, nil
}

// Update modifies a diary entry's mutable fields, including the pinned flag.
func (r *PostgresDiaryRepository) Update(ctx context.Context, entry models.DiaryEntry) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE diary_entries
        SET title = $2, content = $3, mood = $4, is_private = $5, is_pinned = $6, updated_at = $7
        WHERE id = $1
    `, entry.ID, entry.Title, entry.Content, entry.Mood, entry.IsPrivate, entry.IsPinned, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update diary entry: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a diary entry.
func (r *PostgresDiaryRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.pool, "diary_entries", id)
}

// PostgresPoemRepository provides PostgreSQL-backed persistence for poems.
type PostgresPoemRepository struct {
	pool db.Pool
}

// NewPostgresPoemRepository constructs a poem repository backed by PostgreSQL.
func NewPostgresPoemRepository(pool db.Pool) *PostgresPoemRepository {
	return &PostgresPoemRepository{pool: pool}
}

// Create persists a new poem.
func (r *PostgresPoemRepository) Create(ctx context.Context, poem models.Poem) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO poems (id, user_id, title, content, is_public, views, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, poem.ID, poem.UserID, poem.Title, poem.Content, poem.IsPublic, poem.Views, poem.CreatedAt, poem.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert poem: %w", err)
	}

	return nil
}

// ListPublic returns the most recent public poems.
func (r *PostgresPoemRepository) ListPublic(ctx context.Context, limit int) ([]models.Poem, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return r.list(ctx, `WHERE is_public ORDER BY created_at DESC LIMIT $1`, limit)
}

// ListForUser returns all poems owned by the user.
func (r *PostgresPoemRepository) ListForUser(ctx context.Context, userID string) ([]models.Poem, error) {
	return r.list(ctx, `WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresPoemRepository) list(ctx context.Context, clause string, args ...any) ([]models.Poem, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, title, content, is_public, views, created_at, updated_at
        FROM poems `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query poems: %w", err)
	}
	defer rows.Close()

	var poems []models.Poem
	for rows.Next() {
		var poem models.Poem
		if err := rows.Scan(&poem.ID, &poem.UserID, &poem.Title, &poem.Content,
			&poem.IsPublic, &poem.Views, &poem.CreatedAt, &poem.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan poem: %w", err)
		}
		poems = append(poems, poem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate poems: %w", err)
	}

	return poems, nil
}

// Delete removes a poem.
func (r *PostgresPoemRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.pool, "poems", id)
}

// RecordView increments the public view counter.
func (r *PostgresPoemRepository) RecordView(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE poems SET views = views + 1 WHERE id = $1 AND is_public
    `, id)
	if err != nil {
		return fmt.Errorf("record poem view: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, pool db.Pool, table, id string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
