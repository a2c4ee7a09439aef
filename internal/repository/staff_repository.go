package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blist-xyz/review-service/internal/domain"
)

// StaffRepository handles persistence for staff members (moderation store).
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffMember) error
	Delete(ctx context.Context, userID string) error
	GetByID(ctx context.Context, userID string) (*domain.StaffMember, error)
	List(ctx context.Context) ([]domain.StaffMember, error)
	SetRank(ctx context.Context, userID string, rank domain.StaffRank) error
	SetCountry(ctx context.Context, userID, countryCode string) error
	IncrementApproved(ctx context.Context, userID string) error
	IncrementDenied(ctx context.Context, userID string) error
	AddStrike(ctx context.Context, userID string) error
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

func (r *staffRepository) Create(ctx context.Context, staff *domain.StaffMember) error {
	const query = `
        INSERT INTO staff (userid, rank, country_code, approved, denied, strikes, joined_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := r.pool.Exec(ctx, query,
		staff.UserID,
		staff.Rank,
		staff.CountryCode,
		staff.ApprovedCount,
		staff.DeniedCount,
		staff.Strikes,
		staff.JoinedAt,
	)
	return err
}

func (r *staffRepository) Delete(ctx context.Context, userID string) error {
	return r.exec(ctx, `DELETE FROM staff WHERE userid=$1`, userID)
}

func (r *staffRepository) GetByID(ctx context.Context, userID string) (*domain.StaffMember, error) {
	const query = `
        SELECT userid, rank, country_code, approved, denied, strikes, joined_at
        FROM staff WHERE userid=$1`

	var staff domain.StaffMember
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&staff.UserID,
		&staff.Rank,
		&staff.CountryCode,
		&staff.ApprovedCount,
		&staff.DeniedCount,
		&staff.Strikes,
		&staff.JoinedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepository) List(ctx context.Context) ([]domain.StaffMember, error) {
	const query = `
        SELECT userid, rank, country_code, approved, denied, strikes, joined_at
        FROM staff ORDER BY joined_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffMember
	for rows.Next() {
		var staff domain.StaffMember
		if err := rows.Scan(
			&staff.UserID,
			&staff.Rank,
			&staff.CountryCode,
			&staff.ApprovedCount,
			&staff.DeniedCount,
			&staff.Strikes,
			&staff.JoinedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, staff)
	}
	return result, rows.Err()
}

func (r *staffRepository) SetRank(ctx context.Context, userID string, rank domain.StaffRank) error {
	return r.exec(ctx, `UPDATE staff SET rank=$1 WHERE userid=$2`, rank, userID)
}

func (r *staffRepository) SetCountry(ctx context.Context, userID, countryCode string) error {
	return r.exec(ctx, `UPDATE staff SET country_code=$1 WHERE userid=$2`, countryCode, userID)
}

func (r *staffRepository) IncrementApproved(ctx context.Context, userID string) error {
	return r.exec(ctx, `UPDATE staff SET approved=approved+1 WHERE userid=$1`, userID)
}

func (r *staffRepository) IncrementDenied(ctx context.Context, userID string) error {
	return r.exec(ctx, `UPDATE staff SET denied=denied+1 WHERE userid=$1`, userID)
}

func (r *staffRepository) AddStrike(ctx context.Context, userID string) error {
	return r.exec(ctx, `UPDATE staff SET strikes=strikes+1 WHERE userid=$1`, userID)
}

func (r *staffRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
