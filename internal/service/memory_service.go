package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

const memoryStatsRecent = 10

// MemoryService maintains the global memory log.
type MemoryService struct {
	repo       repository.MemoryRepository
	maxEntries int
	retention  time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewMemoryService constructs the service.
func NewMemoryService(repo repository.MemoryRepository, maxEntries int, retention time.Duration, logger *zap.Logger) *MemoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryService{
		repo:       repo,
		maxEntries: maxEntries,
		retention:  retention,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Record appends entry. Failures are logged only.
func (s *MemoryService) Record(ctx context.Context, entry domain.MemoryEntry) {
	if err := s.repo.Append(ctx, &entry, s.maxEntries); err != nil {
		s.logger.Warn("failed to record memory entry",
			zap.String("channel_id", entry.ChannelID),
			zap.Error(err),
		)
	}
}

// Prune removes entries older than the retention window.
func (s *MemoryService) Prune(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	removed, err := s.repo.PruneOlderThan(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("memory log pruned", zap.Int64("removed", removed))
	}
	return removed, nil
}

// Stats reports the size and age of the log.
func (s *MemoryService) Stats(ctx context.Context) (*domain.MemoryStats, error) {
	stats, err := s.repo.Stats(ctx, memoryStatsRecent)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}
