package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blist-xyz/review-service/internal/domain"
)

// UserRepository handles persistence for site accounts (site store).
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetIDByReferrerCode(ctx context.Context, code string) (string, error)
	SetDeveloper(ctx context.Context, id string, developer bool) error
	SetPremium(ctx context.Context, id string, premium bool) error
	IncrementReferrals(ctx context.Context, id string) error
	CountAll(ctx context.Context) (int64, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates the repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, unique_id, username, developer, premium, referrer_code, referrals, joined_at
        FROM main_site_user WHERE id=$1`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.UniqueID,
		&user.Username,
		&user.Developer,
		&user.Premium,
		&user.ReferrerCode,
		&user.Referrals,
		&user.JoinedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetIDByReferrerCode(ctx context.Context, code string) (string, error) {
	const query = `SELECT id FROM main_site_user WHERE referrer_code=$1`

	var id string
	if err := r.pool.QueryRow(ctx, query, code).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (r *userRepository) SetDeveloper(ctx context.Context, id string, developer bool) error {
	return r.exec(ctx, `UPDATE main_site_user SET developer=$1 WHERE id=$2`, developer, id)
}

func (r *userRepository) SetPremium(ctx context.Context, id string, premium bool) error {
	return r.exec(ctx, `UPDATE main_site_user SET premium=$1 WHERE id=$2`, premium, id)
}

func (r *userRepository) IncrementReferrals(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE main_site_user SET referrals=referrals+1 WHERE id=$1`, id)
}

func (r *userRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM main_site_user`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *userRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
