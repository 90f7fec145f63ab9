package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

type memoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	open    map[string]string
}

// NewInMemoryTicketRepository returns a process-local TicketRepository.
func NewInMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{
		tickets: make(map[string]*domain.Ticket),
		open:    make(map[string]string),
	}
}

func (r *memoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ticket.OpenKey()
	if ticket.IsOpen() {
		if _, exists := r.open[key]; exists {
			return ErrOpenTicketExists
		}
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	ticket.UpdatedAt = time.Now().UTC()

	r.tickets[ticket.ChannelID] = ticket.Clone()
	if ticket.IsOpen() {
		r.open[key] = ticket.ChannelID
	}
	return nil
}

func (r *memoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tickets[ticket.ChannelID]
	if !ok {
		return ErrNotFound
	}
	if !stored.IsOpen() {
		return ErrTicketClosed
	}

	ticket.UpdatedAt = time.Now().UTC()
	r.tickets[ticket.ChannelID] = ticket.Clone()
	if !ticket.IsOpen() {
		delete(r.open, stored.OpenKey())
	}
	return nil
}

func (r *memoryTicketRepository) GetByChannelID(_ context.Context, channelID string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.tickets[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	return stored.Clone(), nil
}

func (r *memoryTicketRepository) FindOpen(_ context.Context, guildID, creatorID string, ticketType domain.TicketType) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channelID, ok := r.open[domain.OpenTicketKey(guildID, creatorID, ticketType)]
	if !ok {
		return nil, ErrNotFound
	}
	return r.tickets[channelID].Clone(), nil
}

func (r *memoryTicketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	return r.ListWithFilter(ctx, TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusUnclaimed, domain.TicketStatusClaimed},
	})
}

func (r *memoryTicketRepository) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		if matchesFilter(t, filter) {
			out = append(out, *t.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ChannelID < out[j].ChannelID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.Ticket{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesFilter(t *domain.Ticket, filter TicketFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, st := range filter.Statuses {
			if t.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Type != nil && t.Type != *filter.Type {
		return false
	}
	if filter.CreatorID != nil && t.CreatorID != *filter.CreatorID {
		return false
	}
	return true
}
