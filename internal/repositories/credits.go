package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inkleaf/backend/internal/db"
	"github.com/inkleaf/backend/internal/models"
)

// PostgresCreditRepository provides PostgreSQL-backed persistence for writer
// credits, credit transactions, and claimed view milestones.
type PostgresCreditRepository struct {
	pool db.Pool
}

// NewPostgresCreditRepository constructs a credit repository backed by PostgreSQL.
func NewPostgresCreditRepository(pool db.Pool) *PostgresCreditRepository {
	return &PostgresCreditRepository{pool: pool}
}

// FindLedger fetches the user's credit ledger.
func (r *PostgresCreditRepository) FindLedger(ctx context.Context, userID string) (models.WriterCredits, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.WriterCredits{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user_id, balance, total_earned, created_at, updated_at
        FROM writer_credits
        WHERE user_id = $1
    `, userID)

	var ledger models.WriterCredits
	if err := row.Scan(&ledger.ID, &ledger.UserID, &ledger.Balance, &ledger.TotalEarned,
		&ledger.CreatedAt, &ledger.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.WriterCredits{}, ErrNotFound
		}
		return models.WriterCredits{}, fmt.Errorf("select writer credits: %w", err)
	}

	return ledger, nil
}

// CreateLedger initialises a zero-balance ledger for the user.
func (r *PostgresCreditRepository) CreateLedger(ctx context.Context, ledger models.WriterCredits) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO writer_credits (id, user_id, balance, total_earned, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, ledger.ID, ledger.UserID, ledger.Balance, ledger.TotalEarned, ledger.CreatedAt, ledger.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert writer credits: %w", err)
	}

	return nil
}

// ListMilestones returns the milestones the user has already claimed.
func (r *PostgresCreditRepository) ListMilestones(ctx context.Context, userID string) ([]models.ViewMilestone, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, story_id, novel_id, milestone, credits_awarded, claimed_at
        FROM view_milestones
        WHERE user_id = $1
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query view milestones: %w", err)
	}
	defer rows.Close()

	var milestones []models.ViewMilestone
	for rows.Next() {
		var (
			milestone        models.ViewMilestone
			storyID, novelID sql.NullString
		)
		if err := rows.Scan(&milestone.ID, &milestone.UserID, &storyID, &novelID,
			&milestone.Milestone, &milestone.CreditsAwarded, &milestone.ClaimedAt); err != nil {
			return nil, fmt.Errorf("scan view milestone: %w", err)
		}
		milestone.StoryID = storyID.String
		milestone.NovelID = novelID.String
		milestones = append(milestones, milestone)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate view milestones: %w", err)
	}

	return milestones, nil
}

// ClaimMilestone records the milestone, the credit transaction, and the balance
// update in one transaction. The (user, work, milestone) unique constraint maps
// a double claim to ErrConflict.
func (r *PostgresCreditRepository) ClaimMilestone(ctx context.Context, milestone models.ViewMilestone, txn models.CreditTransaction) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin milestone claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	storyID := sql.NullString{String: milestone.StoryID, Valid: milestone.StoryID != ""}
	novelID := sql.NullString{String: milestone.NovelID, Valid: milestone.NovelID != ""}

	if _, err := tx.Exec(ctx, `
        INSERT INTO view_milestones (id, user_id, story_id, novel_id, milestone, credits_awarded, claimed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, milestone.ID, milestone.UserID, storyID, novelID, milestone.Milestone, milestone.CreditsAwarded, milestone.ClaimedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert view milestone: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO credit_transactions (id, user_id, amount, type, description, story_id, novel_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, txn.ID, txn.UserID, txn.Amount, txn.Type, txn.Description, storyID, novelID, txn.CreatedAt); err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, `
        UPDATE writer_credits
        SET balance = balance + $2, total_earned = total_earned + $2, updated_at = $3
        WHERE user_id = $1
    `, milestone.UserID, milestone.CreditsAwarded, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update writer credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit milestone claim: %w", err)
	}

	return nil
}

// ListTransactions returns the user's credit transactions, newest first.
func (r *PostgresCreditRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, amount, type, description, story_id, novel_id, created_at
        FROM credit_transactions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query credit transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.CreditTransaction
	for rows.Next() {
		var (
			txn                           models.CreditTransaction
			description, storyID, novelID sql.NullString
		)
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.Amount, &txn.Type, &description,
			&storyID, &novelID, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit transaction: %w", err)
		}
		txn.Description = description.String
		txn.StoryID = storyID.String
		txn.NovelID = novelID.String
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit transactions: %w", err)
	}

	return txns, nil
}
