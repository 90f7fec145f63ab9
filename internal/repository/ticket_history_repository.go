package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// TicketHistoryRepository stores the lifecycle audit trail of tickets.
type TicketHistoryRepository interface {
	// Append is idempotent on the event id.
	Append(ctx context.Context, entry *domain.TicketHistory) error
	ListByChannel(ctx context.Context, channelID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds the postgres repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Append(ctx context.Context, entry *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (event_id, channel_id, event_type, actor_id, actor_name, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (event_id) DO NOTHING`
	payload := entry.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.pool.Exec(ctx, query,
		entry.EventID,
		entry.ChannelID,
		entry.EventType,
		entry.ActorID,
		entry.ActorName,
		[]byte(payload),
		entry.CreatedAt,
	)
	return err
}

func (r *ticketHistoryRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT event_id, channel_id, event_type, actor_id, actor_name, payload, created_at
        FROM ticket_history WHERE channel_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var (
			entry   domain.TicketHistory
			payload []byte
		)
		if err := rows.Scan(
			&entry.EventID,
			&entry.ChannelID,
			&entry.EventType,
			&entry.ActorID,
			&entry.ActorName,
			&payload,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Payload = payload
		result = append(result, entry)
	}
	return result, rows.Err()
}

type memoryTicketHistoryRepository struct {
	mu      sync.RWMutex
	seen    map[string]struct{}
	entries map[string][]domain.TicketHistory
}

// NewInMemoryTicketHistoryRepository returns a process-local TicketHistoryRepository.
func NewInMemoryTicketHistoryRepository() TicketHistoryRepository {
	return &memoryTicketHistoryRepository{
		seen:    make(map[string]struct{}),
		entries: make(map[string][]domain.TicketHistory),
	}
}

func (r *memoryTicketHistoryRepository) Append(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.seen[entry.EventID]; dup {
		return nil
	}
	r.seen[entry.EventID] = struct{}{}
	cp := *entry
	cp.Payload = append([]byte(nil), entry.Payload...)
	r.entries[entry.ChannelID] = append(r.entries[entry.ChannelID], cp)
	return nil
}

func (r *memoryTicketHistoryRepository) ListByChannel(_ context.Context, channelID string) ([]domain.TicketHistory, error) {
	r.mu.RLock()
	out := append([]domain.TicketHistory{}, r.entries[channelID]...)
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
