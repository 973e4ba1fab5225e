package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inkleaf/backend/internal/db"
	"github.com/inkleaf/backend/internal/models"
)

// PostgresReportRepository provides PostgreSQL-backed persistence for content
// reports and the user role table backing the admin check.
type PostgresReportRepository struct {
	pool db.Pool
}

// NewPostgresReportRepository constructs a report repository backed by PostgreSQL.
func NewPostgresReportRepository(pool db.Pool) *PostgresReportRepository {
	return &PostgresReportRepository{pool: pool}
}

// Create persists a new report in the open state.
func (r *PostgresReportRepository) Create(ctx context.Context, report models.Report) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO reports (id, reporter_id, story_id, reason, status, admin_notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, report.ID, report.ReporterID, report.StoryID, report.Reason, report.Status, report.AdminNotes, report.CreatedAt, report.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert report: %w", err)
	}

	return nil
}

// List returns reports filtered by status; an empty status returns everything.
func (r *PostgresReportRepository) List(ctx context.Context, status string) ([]models.Report, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	query := `
        SELECT id, reporter_id, story_id, reason, status, admin_notes, created_at, updated_at
        FROM reports`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var (
			report models.Report
			notes  sql.NullString
		)
		if err := rows.Scan(&report.ID, &report.ReporterID, &report.StoryID, &report.Reason,
			&report.Status, &notes, &report.CreatedAt, &report.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		report.AdminNotes = notes.String
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	return reports, nil
}

// Resolve updates a report's status and moderator notes.
func (r *PostgresReportRepository) Resolve(ctx context.Context, id, status, notes string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE reports
        SET status = $2, admin_notes = $3, updated_at = NOW()
        WHERE id = $1
    `, id, status, notes)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// HasRole reports whether the user holds the given role.
func (r *PostgresReportRepository) HasRole(ctx context.Context, userID, role string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)
    `, userID, role).Scan(&exists); err != nil {
		return false, fmt.Errorf("select user role: %w", err)
	}

	return exists, nil
}
