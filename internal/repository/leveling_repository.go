package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blist-xyz/review-service/internal/domain"
)

// LevelingRepository handles message-XP rows (site store).
type LevelingRepository interface {
	Get(ctx context.Context, userUniqueID string) (*domain.LevelingProfile, error)
	Create(ctx context.Context, profile *domain.LevelingProfile) error
	AddXP(ctx context.Context, userUniqueID string, xp int) error
	LevelUp(ctx context.Context, userUniqueID string) error
	SetBlacklisted(ctx context.Context, userUniqueID string, blacklisted bool) error
}

type levelingRepository struct {
	pool *pgxpool.Pool
}

// NewLevelingRepository instantiates the repository.
func NewLevelingRepository(pool *pgxpool.Pool) LevelingRepository {
	return &levelingRepository{pool: pool}
}

func (r *levelingRepository) Get(ctx context.Context, userUniqueID string) (*domain.LevelingProfile, error) {
	const query = `
        SELECT user_id, xp, level, blacklisted FROM main_site_leveling WHERE user_id=$1`

	var profile domain.LevelingProfile
	if err := r.pool.QueryRow(ctx, query, userUniqueID).Scan(
		&profile.UserUniqueID,
		&profile.XP,
		&profile.Level,
		&profile.Blacklisted,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *levelingRepository) Create(ctx context.Context, profile *domain.LevelingProfile) error {
	const query = `
        INSERT INTO main_site_leveling (user_id, xp, level, blacklisted)
        VALUES ($1,$2,$3,$4)`

	_, err := r.pool.Exec(ctx, query,
		profile.UserUniqueID,
		profile.XP,
		profile.Level,
		profile.Blacklisted,
	)
	return err
}

func (r *levelingRepository) AddXP(ctx context.Context, userUniqueID string, xp int) error {
	return r.exec(ctx, `UPDATE main_site_leveling SET xp=xp+$1 WHERE user_id=$2`, xp, userUniqueID)
}

func (r *levelingRepository) LevelUp(ctx context.Context, userUniqueID string) error {
	return r.exec(ctx, `UPDATE main_site_leveling SET level=level+1, xp=0 WHERE user_id=$1`, userUniqueID)
}

func (r *levelingRepository) SetBlacklisted(ctx context.Context, userUniqueID string, blacklisted bool) error {
	return r.exec(ctx, `UPDATE main_site_leveling SET blacklisted=$1 WHERE user_id=$2`, blacklisted, userUniqueID)
}

func (r *levelingRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
