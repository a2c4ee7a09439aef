package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blist-xyz/review-service/internal/domain"
)

const botColumns = `id, unique_id, username, discriminator, main_owner, owners, prefix, tags,
               short_description, notes, website, privacy_policy_url, invite_url, referred_by,
               approved, denied, certified, awaiting_certification, uses_slash_commands,
               status, added`

// BotRepository encapsulates persistence for submitted bots (site store).
type BotRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Bot, error)
	ListQueued(ctx context.Context) ([]domain.Bot, error)
	ListApproved(ctx context.Context) ([]domain.Bot, error)
	ListAwaitingCertification(ctx context.Context) ([]domain.Bot, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Bot, error)
	CountApproved(ctx context.Context) (int64, error)
	CountQueued(ctx context.Context) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	SetApproved(ctx context.Context, id string) error
	SetDenied(ctx context.Context, id string) error
	SetCertified(ctx context.Context, id string, certified bool) error
	SetAwaitingCertification(ctx context.Context, id string, awaiting bool) error
	UpdatePresenceStatus(ctx context.Context, id, status string) error
	DeleteCascade(ctx context.Context, id string) error
}

type botRepository struct {
	pool *pgxpool.Pool
}

// NewBotRepository instantiates the repository.
func NewBotRepository(pool *pgxpool.Pool) BotRepository {
	return &botRepository{pool: pool}
}

func (r *botRepository) GetByID(ctx context.Context, id string) (*domain.Bot, error) {
	query := fmt.Sprintf(`SELECT %s FROM main_site_bot WHERE id=$1`, botColumns)
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	bots, err := scanBots(rows)
	if err != nil {
		return nil, err
	}
	if len(bots) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &bots[0], nil
}

func (r *botRepository) ListQueued(ctx context.Context) ([]domain.Bot, error) {
	query := fmt.Sprintf(`SELECT %s FROM main_site_bot WHERE approved=FALSE AND denied=FALSE ORDER BY added`, botColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanBots(rows)
}

func (r *botRepository) ListApproved(ctx context.Context) ([]domain.Bot, error) {
	query := fmt.Sprintf(`SELECT %s FROM main_site_bot WHERE approved=TRUE AND denied=FALSE ORDER BY added`, botColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanBots(rows)
}

func (r *botRepository) ListAwaitingCertification(ctx context.Context) ([]domain.Bot, error) {
	query := fmt.Sprintf(`SELECT %s FROM main_site_bot WHERE awaiting_certification=TRUE ORDER BY added`, botColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanBots(rows)
}

func (r *botRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Bot, error) {
	query := fmt.Sprintf(`SELECT %s FROM main_site_bot WHERE main_owner=$1 ORDER BY added`, botColumns)
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	return scanBots(rows)
}

func (r *botRepository) CountApproved(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM main_site_bot WHERE approved=TRUE AND denied=FALSE`)
}

func (r *botRepository) CountQueued(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM main_site_bot WHERE approved=FALSE AND denied=FALSE`)
}

func (r *botRepository) CountAll(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM main_site_bot`)
}

func (r *botRepository) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *botRepository) SetApproved(ctx context.Context, id string) error {
	return r.setFlag(ctx, `UPDATE main_site_bot SET approved=TRUE WHERE id=$1`, id)
}

func (r *botRepository) SetDenied(ctx context.Context, id string) error {
	return r.setFlag(ctx, `UPDATE main_site_bot SET denied=TRUE WHERE id=$1`, id)
}

func (r *botRepository) SetCertified(ctx context.Context, id string, certified bool) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE main_site_bot SET certified=$1, awaiting_certification=FALSE WHERE id=$2`, certified, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *botRepository) SetAwaitingCertification(ctx context.Context, id string, awaiting bool) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE main_site_bot SET awaiting_certification=$1 WHERE id=$2`, awaiting, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *botRepository) UpdatePresenceStatus(ctx context.Context, id, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE main_site_bot SET status=$1 WHERE id=$2`, status, id)
	return err
}

func (r *botRepository) setFlag(ctx context.Context, query, id string) error {
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteCascade removes a submission and every dependent row inside one
// transaction. Dependents go first so the parent delete never violates
// referential constraints; a dependent table with zero matching rows is a
// harmless no-op.
func (r *botRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var uniqueID string
	if err := tx.QueryRow(ctx, `SELECT unique_id FROM main_site_bot WHERE id=$1`, id).Scan(&uniqueID); err != nil {
		return err
	}

	dependents := []string{
		`DELETE FROM main_site_vote WHERE bot_id=$1`,
		`DELETE FROM main_site_review WHERE bot_id=$1`,
		`DELETE FROM main_site_auditlogaction WHERE bot_id=$1`,
		`DELETE FROM main_site_announcement WHERE bot_id=$1`,
	}
	for _, query := range dependents {
		if _, err := tx.Exec(ctx, query, uniqueID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM main_site_bot WHERE id=$1`, id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanBots(rows pgx.Rows) ([]domain.Bot, error) {
	defer rows.Close()

	var result []domain.Bot
	for rows.Next() {
		var bot domain.Bot
		if err := rows.Scan(
			&bot.ID,
			&bot.UniqueID,
			&bot.Username,
			&bot.Discriminator,
			&bot.MainOwnerID,
			&bot.CoOwnerIDs,
			&bot.Prefix,
			&bot.Tags,
			&bot.ShortDescription,
			&bot.Notes,
			&bot.Website,
			&bot.PrivacyPolicyURL,
			&bot.InviteURL,
			&bot.ReferredBy,
			&bot.Approved,
			&bot.Denied,
			&bot.Certified,
			&bot.AwaitingCertification,
			&bot.UsesSlashCommands,
			&bot.PresenceStatus,
			&bot.Added,
		); err != nil {
			return nil, err
		}
		result = append(result, bot)
	}
	return result, rows.Err()
}
