package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-bot/internal/domain"
)

type memoryLogRepository struct {
	mu      sync.Mutex
	entries []domain.MemoryEntry
}

// NewInMemoryMemoryRepository returns a process-local MemoryRepository.
func NewInMemoryMemoryRepository() MemoryRepository {
	return &memoryLogRepository{}
}

func (r *memoryLogRepository) Append(_ context.Context, entry *domain.MemoryEntry, maxEntries int) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].CreatedAt.Before(r.entries[j].CreatedAt)
	})
	if maxEntries > 0 && len(r.entries) > maxEntries {
		r.entries = append([]domain.MemoryEntry(nil), r.entries[len(r.entries)-maxEntries:]...)
	}
	return nil
}

func (r *memoryLogRepository) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	var removed int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

func (r *memoryLogRepository) Stats(_ context.Context, recent int) (*domain.MemoryStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &domain.MemoryStats{Total: len(r.entries), Recent: []domain.MemoryEntry{}}
	if len(r.entries) == 0 {
		return stats, nil
	}
	oldest := r.entries[0].CreatedAt
	newest := r.entries[len(r.entries)-1].CreatedAt
	stats.Oldest = &oldest
	stats.Newest = &newest

	for i := len(r.entries) - 1; i >= 0 && len(stats.Recent) < recent; i-- {
		stats.Recent = append(stats.Recent, r.entries[i])
	}
	return stats, nil
}
