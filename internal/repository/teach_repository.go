package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// TeachRepository persists taught responses keyed by normalized trigger.
type TeachRepository interface {
	// Upsert inserts the trigger or replaces its response. created reports which happened.
	Upsert(ctx context.Context, trigger, response, authorID string) (entry *domain.TaughtResponse, created bool, err error)
	GetByID(ctx context.Context, id int64) (*domain.TaughtResponse, error)
	GetByTrigger(ctx context.Context, trigger string) (*domain.TaughtResponse, error)
	DeleteByID(ctx context.Context, id int64) error
	DeleteByTrigger(ctx context.Context, trigger string) error
	// List returns every entry, most recently taught first.
	List(ctx context.Context) ([]domain.TaughtResponse, error)
	ListRecent(ctx context.Context, limit int) ([]domain.TaughtResponse, error)
	IncrementUsage(ctx context.Context, id int64) error
}

type teachRepository struct {
	pool *pgxpool.Pool
}

// NewTeachRepository instantiates the postgres repository.
func NewTeachRepository(pool *pgxpool.Pool) TeachRepository {
	return &teachRepository{pool: pool}
}

const teachColumns = `id, trigger, response, author_id, usage_count, created_at, updated_at`

func (r *teachRepository) Upsert(ctx context.Context, trigger, response, authorID string) (*domain.TaughtResponse, bool, error) {
	const query = `
        INSERT INTO taught_responses (trigger, response, author_id)
        VALUES ($1,$2,$3)
        ON CONFLICT (trigger) DO UPDATE SET response=EXCLUDED.response, updated_at=NOW()
        RETURNING ` + teachColumns + `, (xmax = 0) AS inserted`

	var (
		entry    domain.TaughtResponse
		inserted bool
	)
	err := r.pool.QueryRow(ctx, query, trigger, response, authorID).Scan(
		&entry.ID,
		&entry.Trigger,
		&entry.Response,
		&entry.AuthorID,
		&entry.UsageCount,
		&entry.CreatedAt,
		&entry.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}
	return &entry, inserted, nil
}

func (r *teachRepository) GetByID(ctx context.Context, id int64) (*domain.TaughtResponse, error) {
	return r.fetchSingle(ctx, `SELECT `+teachColumns+` FROM taught_responses WHERE id=$1`, id)
}

func (r *teachRepository) GetByTrigger(ctx context.Context, trigger string) (*domain.TaughtResponse, error) {
	return r.fetchSingle(ctx, `SELECT `+teachColumns+` FROM taught_responses WHERE trigger=$1`, trigger)
}

func (r *teachRepository) DeleteByID(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM taught_responses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *teachRepository) DeleteByTrigger(ctx context.Context, trigger string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM taught_responses WHERE trigger=$1`, trigger)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *teachRepository) List(ctx context.Context) ([]domain.TaughtResponse, error) {
	return r.ListRecent(ctx, 0)
}

func (r *teachRepository) ListRecent(ctx context.Context, limit int) ([]domain.TaughtResponse, error) {
	query := `SELECT ` + teachColumns + ` FROM taught_responses ORDER BY updated_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.TaughtResponse{}
	for rows.Next() {
		entry, err := scanTeach(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (r *teachRepository) IncrementUsage(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE taught_responses SET usage_count = usage_count + 1 WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *teachRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.TaughtResponse, error) {
	entry, err := scanTeach(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return entry, nil
}

func scanTeach(row pgx.Row) (*domain.TaughtResponse, error) {
	var entry domain.TaughtResponse
	if err := row.Scan(
		&entry.ID,
		&entry.Trigger,
		&entry.Response,
		&entry.AuthorID,
		&entry.UsageCount,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
