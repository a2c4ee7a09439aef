package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blist-xyz/review-service/internal/domain"
)

// MuteRepository reads active mutes (moderation store). The service only
// consults mutes for the left-while-muted evasion ban; writing them belongs
// to the moderation bot.
type MuteRepository interface {
	IsMuted(ctx context.Context, userID string) (bool, error)
	Get(ctx context.Context, userID string) (*domain.Mute, error)
}

type muteRepository struct {
	pool *pgxpool.Pool
}

// NewMuteRepository instantiates the repository.
func NewMuteRepository(pool *pgxpool.Pool) MuteRepository {
	return &muteRepository{pool: pool}
}

func (r *muteRepository) IsMuted(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM mutes WHERE userid=$1)`

	var muted bool
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&muted); err != nil {
		return false, err
	}
	return muted, nil
}

func (r *muteRepository) Get(ctx context.Context, userID string) (*domain.Mute, error) {
	const query = `
        SELECT userid, modid, reason, created_at, expires_at FROM mutes WHERE userid=$1`

	var mute domain.Mute
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&mute.UserID,
		&mute.ModID,
		&mute.Reason,
		&mute.CreatedAt,
		&mute.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &mute, nil
}
