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

// PostgresNovelRepository provides PostgreSQL-backed persistence for novels
// and their chapters.
type PostgresNovelRepository struct {
	pool db.Pool
}

// NewPostgresNovelRepository constructs a novel repository backed by PostgreSQL.
func NewPostgresNovelRepository(pool db.Pool) *PostgresNovelRepository {
	return &PostgresNovelRepository{pool: pool}
}

// Create persists a new novel.
func (r *PostgresNovelRepository) Create(ctx context.Context, novel models.Novel) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO novels (id, author_id, title, description, genre, language, status, cover_url, views, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, novel.ID, novel.AuthorID, novel.Title, novel.Description, novel.Genre, novel.Language, novel.Status, novel.CoverURL, novel.Views, novel.CreatedAt, novel.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert novel: %w", err)
	}

	return nil
}

// Find fetches a novel by id.
func (r *PostgresNovelRepository) Find(ctx context.Context, id string) (models.Novel, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Novel{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, author_id, title, description, genre, language, status, cover_url, views, created_at, updated_at
        FROM novels
        WHERE id = $1
    `, id)

	var novel models.Novel
	if err := row.Scan(&novel.ID, &novel.AuthorID, &novel.Title, &novel.Description, &novel.Genre,
		&novel.Language, &novel.Status, &novel.CoverURL, &novel.Views, &novel.CreatedAt, &novel.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Novel{}, ErrNotFound
		}
		return models.Novel{}, fmt.Errorf("select novel: %w", err)
	}

	return novel, nil
}

// List returns the most recently updated novels.
func (r *PostgresNovelRepository) List(ctx context.Context, limit int) ([]models.Novel, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return r.list(ctx, `ORDER BY updated_at DESC LIMIT $1`, limit)
}

// ListForAuthor returns all novels by the given author.
func (r *PostgresNovelRepository) ListForAuthor(ctx context.Context, authorID string) ([]models.Novel, error) {
	return r.list(ctx, `WHERE author_id = $1 ORDER BY created_at DESC`, authorID)
}

func (r *PostgresNovelRepository) list(ctx context.Context, clause string, args ...any) ([]models.Novel, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, author_id, title, description, genre, language, status, cover_url, views, created_at, updated_at
        FROM novels `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query novels: %w", err)
	}
	defer rows.Close()

	var novels []models.Novel
	for rows.Next() {
		var novel models.Novel
		if err := rows.Scan(&novel.ID, &novel.AuthorID, &novel.Title, &novel.Description, &novel.Genre,
			&novel.Language, &novel.Status, &novel.CoverURL, &novel.Views, &novel.CreatedAt, &novel.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan novel: %w", err)
		}
		novels = append(novels, novel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate novels: %w", err)
	}

	return novels, nil
}

// Update modifies a novel's mutable fields.
func (r *PostgresNovelRepository) Update(ctx context.Context, novel models.Novel) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE novels
        SET title = $2, description = $3, genre = $4, language = $5, status = $6, cover_url = $7, updated_at = $8
        WHERE id = $1
    `, novel.ID, novel.Title, novel.Description, novel.Genre, novel.Language, novel.Status, novel.CoverURL, novel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update novel: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a novel and its chapters.
func (r *PostgresNovelRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin novel deletion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chapters WHERE novel_id = $1`, id); err != nil {
		return fmt.Errorf("delete chapters: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM novels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete novel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit novel deletion: %w", err)
	}

	return nil
}

// RecordView increments the novel's view counter.
func (r *PostgresNovelRepository) RecordView(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE novels SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("record novel view: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateChapter persists a new chapter. The (novel, chapter_number) unique
// constraint maps duplicate numbering to ErrConflict.
func (r *PostgresNovelRepository) CreateChapter(ctx context.Context, chapter models.Chapter) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO chapters (id, novel_id, chapter_number, title, content, published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, chapter.ID, chapter.NovelID, chapter.ChapterNumber, chapter.Title, chapter.Content, chapter.Published, chapter.CreatedAt, chapter.UpdatedAt)
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
		return fmt.Errorf("insert chapter: %w", err)
	}

	return nil
}

// ListChapters returns a novel's chapters in reading order. When
// publishedOnly is set, drafts are excluded.
func (r *PostgresNovelRepository) ListChapters(ctx context.Context, novelID string, publishedOnly bool) ([]models.Chapter, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	query := `
        SELECT id, novel_id, chapter_number, title, content, published, created_at, updated_at
        FROM chapters
        WHERE novel_id = $1`
	if publishedOnly {
		query += ` AND published`
	}
	query += ` ORDER BY chapter_number`

	rows, err := conn.Query(ctx, query, novelID)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	var chapters []models.Chapter
	for rows.Next() {
		var chapter models.Chapter
		if err := rows.Scan(&chapter.ID, &chapter.NovelID, &chapter.ChapterNumber, &chapter.Title,
			&chapter.Content, &chapter.Published, &chapter.CreatedAt, &chapter.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		chapters = append(chapters, chapter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}

	return chapters, nil
}

// UpdateChapter modifies a chapter's mutable fields, including the published flag.
func (r *PostgresNovelRepository) UpdateChapter(ctx context.Context, chapter models.Chapter) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE chapters
        SET title = $2, content = $3, published = $4, updated_at = $5
        WHERE id = $1
    `, chapter.ID, chapter.Title, chapter.Content, chapter.Published, chapter.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteChapter removes a chapter.
func (r *PostgresNovelRepository) DeleteChapter(ctx context.Context, id string) error {
	return deleteByID(ctx, r.pool, "chapters", id)
}
