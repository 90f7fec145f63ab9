package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/repository"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

var historyEvents = []events.EventType{
	events.EventTicketCreated,
	events.EventTicketClaimed,
	events.EventTicketUnclaimed,
	events.EventTicketClosed,
	events.EventAIEscalated,
}

// HistoryService records ticket lifecycle events as an audit trail.
type HistoryService struct {
	repo   repository.TicketHistoryRepository
	logger *zap.Logger
}

// NewHistoryService constructs the service.
func NewHistoryService(repo repository.TicketHistoryRepository, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{repo: repo, logger: logger}
}

// RegisterHandlers subscribes the recorder to every lifecycle event.
func (h *HistoryService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, et := range historyEvents {
		dispatcher.Subscribe(et, h.record)
	}
}

func (h *HistoryService) record(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	return h.repo.Append(ctx, &domain.TicketHistory{
		EventID:   event.ID,
		ChannelID: event.ChannelID,
		EventType: string(event.Type),
		ActorID:   event.Actor.ID,
		ActorName: event.Actor.Name,
		Payload:   payload,
		CreatedAt: at.UTC(),
	})
}

// List returns the audit trail of a ticket, oldest first.
func (h *HistoryService) List(ctx context.Context, channelID string) ([]domain.TicketHistory, error) {
	entries, err := h.repo.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}
