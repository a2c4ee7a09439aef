package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blist-xyz/review-service/internal/domain"
)

// ActionRepository writes review-decision audit rows (moderation store).
// Rows are immutable once written except for reason back-fill.
type ActionRepository interface {
	Insert(ctx context.Context, action *domain.ReviewAction) error
	BackfillReason(ctx context.Context, id, reason string) error
	ListByBot(ctx context.Context, botID string) ([]domain.ReviewAction, error)
}

type actionRepository struct {
	pool *pgxpool.Pool
}

// NewActionRepository instantiates the repository.
func NewActionRepository(pool *pgxpool.Pool) ActionRepository {
	return &actionRepository{pool: pool}
}

func (r *actionRepository) Insert(ctx context.Context, action *domain.ReviewAction) error {
	const query = `
        INSERT INTO review_actions (id, staff_id, bot_id, action, reason)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		action.ID,
		action.StaffID,
		action.BotID,
		action.Action,
		action.Reason,
	).Scan(&action.CreatedAt)
}

func (r *actionRepository) BackfillReason(ctx context.Context, id, reason string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE review_actions SET reason=$1 WHERE id=$2`, reason, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *actionRepository) ListByBot(ctx context.Context, botID string) ([]domain.ReviewAction, error) {
	const query = `
        SELECT id, staff_id, bot_id, action, reason, created_at
        FROM review_actions WHERE bot_id=$1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ReviewAction
	for rows.Next() {
		var action domain.ReviewAction
		if err := rows.Scan(
			&action.ID,
			&action.StaffID,
			&action.BotID,
			&action.Action,
			&action.Reason,
			&action.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, action)
	}
	return result, rows.Err()
}
