package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/repository"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

// AIStatus summarizes assistant activity for operators.
type AIStatus struct {
	Enabled     bool `json:"enabled"`
	OpenTickets int  `json:"open_tickets"`
	AIClaimed   int  `json:"ai_claimed"`
	Stopped     int  `json:"stopped"`
	Escalated   int  `json:"escalated"`
}

// OpsService owns the global AI operations switch.
type OpsService struct {
	settings       repository.SettingsRepository
	tickets        repository.TicketRepository
	defaultEnabled bool
	logger         *zap.Logger
}

// NewOpsService constructs the service. defaultEnabled applies until an operator flips the switch.
func NewOpsService(settings repository.SettingsRepository, tickets repository.TicketRepository, defaultEnabled bool, logger *zap.Logger) *OpsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpsService{
		settings:       settings,
		tickets:        tickets,
		defaultEnabled: defaultEnabled,
		logger:         logger,
	}
}

// AIOpsEnabled reports the switch. Storage failures fall back to the configured default.
func (s *OpsService) AIOpsEnabled(ctx context.Context) bool {
	enabled, err := s.settings.AIOpsEnabled(ctx, s.defaultEnabled)
	if err != nil {
		s.logger.Warn("failed to read ai ops switch", zap.Error(err))
	}
	return enabled
}

// SetAIOps flips the switch.
func (s *OpsService) SetAIOps(ctx context.Context, enabled bool, actor string) error {
	if err := s.settings.SetAIOpsEnabled(ctx, enabled); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("ai ops switch changed", zap.Bool("enabled", enabled), zap.String("actor", actor))
	return nil
}

// Status reports the switch along with counts over open tickets.
func (s *OpsService) Status(ctx context.Context) (*AIStatus, error) {
	open, err := s.tickets.ListOpen(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	status := &AIStatus{Enabled: s.AIOpsEnabled(ctx), OpenTickets: len(open)}
	for i := range open {
		t := &open[i]
		if !t.ClaimedByAI() {
			continue
		}
		status.AIClaimed++
		switch {
		case !t.AIActive:
			status.Escalated++
		case t.AIStopped:
			status.Stopped++
		}
	}
	return status, nil
}
