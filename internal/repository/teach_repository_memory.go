package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

type memoryTeachRepository struct {
	mu        sync.RWMutex
	nextID    int64
	byID      map[int64]*domain.TaughtResponse
	byTrigger map[string]int64
	now       func() time.Time
}

// NewInMemoryTeachRepository returns a process-local TeachRepository.
func NewInMemoryTeachRepository() TeachRepository {
	return &memoryTeachRepository{
		byID:      make(map[int64]*domain.TaughtResponse),
		byTrigger: make(map[string]int64),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryTeachRepository) Upsert(_ context.Context, trigger, response, authorID string) (*domain.TaughtResponse, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if id, ok := r.byTrigger[trigger]; ok {
		entry := r.byID[id]
		entry.Response = response
		entry.UpdatedAt = now
		cp := *entry
		return &cp, false, nil
	}

	r.nextID++
	entry := &domain.TaughtResponse{
		ID:        r.nextID,
		Trigger:   trigger,
		Response:  response,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.byID[entry.ID] = entry
	r.byTrigger[trigger] = entry.ID
	cp := *entry
	return &cp, true, nil
}

func (r *memoryTeachRepository) GetByID(_ context.Context, id int64) (*domain.TaughtResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (r *memoryTeachRepository) GetByTrigger(ctx context.Context, trigger string) (*domain.TaughtResponse, error) {
	r.mu.RLock()
	id, ok := r.byTrigger[trigger]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memoryTeachRepository) DeleteByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byTrigger, entry.Trigger)
	delete(r.byID, id)
	return nil
}

func (r *memoryTeachRepository) DeleteByTrigger(ctx context.Context, trigger string) error {
	r.mu.RLock()
	id, ok := r.byTrigger[trigger]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return r.DeleteByID(ctx, id)
}

func (r *memoryTeachRepository) List(ctx context.Context) ([]domain.TaughtResponse, error) {
	return r.ListRecent(ctx, 0)
}

func (r *memoryTeachRepository) ListRecent(_ context.Context, limit int) ([]domain.TaughtResponse, error) {
	r.mu.RLock()
	out := make([]domain.TaughtResponse, 0, len(r.byID))
	for _, entry := range r.byID {
		out = append(out, *entry)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryTeachRepository) IncrementUsage(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	entry.UsageCount++
	return nil
}
