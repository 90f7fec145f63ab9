package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// MemoryRepository stores the rolling log of admitted ticket messages.
type MemoryRepository interface {
	// Append stores entry and trims the oldest rows beyond maxEntries.
	Append(ctx context.Context, entry *domain.MemoryEntry, maxEntries int) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, recent int) (*domain.MemoryStats, error)
}

type memoryRepository struct {
	pool *pgxpool.Pool
}

// NewMemoryRepository instantiates the postgres repository.
func NewMemoryRepository(pool *pgxpool.Pool) MemoryRepository {
	return &memoryRepository{pool: pool}
}

func (r *memoryRepository) Append(ctx context.Context, entry *domain.MemoryEntry, maxEntries int) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insert = `
        INSERT INTO memory_log (id, guild_id, channel_id, user_id, username, content, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
		if _, err := tx.Exec(ctx, insert,
			entry.ID,
			entry.GuildID,
			entry.ChannelID,
			entry.UserID,
			entry.Username,
			entry.Content,
			entry.CreatedAt,
		); err != nil {
			return err
		}
		if maxEntries <= 0 {
			return nil
		}
		const trim = `
        DELETE FROM memory_log WHERE id IN (
            SELECT id FROM memory_log ORDER BY created_at DESC, id DESC OFFSET $1
        )`
		_, err := tx.Exec(ctx, trim, maxEntries)
		return err
	})
}

func (r *memoryRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM memory_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *memoryRepository) Stats(ctx context.Context, recent int) (*domain.MemoryStats, error) {
	stats := &domain.MemoryStats{Recent: []domain.MemoryEntry{}}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM memory_log`).
		Scan(&stats.Total, &stats.Oldest, &stats.Newest)
	if err != nil {
		return nil, err
	}
	if recent <= 0 {
		return stats, nil
	}

	rows, err := r.pool.Query(ctx, `
        SELECT id, guild_id, channel_id, user_id, username, content, created_at
        FROM memory_log ORDER BY created_at DESC LIMIT $1`, recent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.MemoryEntry
		if err := rows.Scan(&e.ID, &e.GuildID, &e.ChannelID, &e.UserID, &e.Username, &e.Content, &e.CreatedAt); err != nil {
			return nil, err
		}
		stats.Recent = append(stats.Recent, e)
	}
	return stats, rows.Err()
}
