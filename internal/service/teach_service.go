package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/conversation"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

const (
	fuzzyMinLength  = 8
	fuzzyMinRatio   = 0.85
	userPlaceholder = "<user>"
)

// TeachService manages taught responses and literal auto-replies.
type TeachService struct {
	repo   repository.TeachRepository
	logger *zap.Logger
}

// NewTeachService constructs the service.
func NewTeachService(repo repository.TeachRepository, logger *zap.Logger) *TeachService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeachService{repo: repo, logger: logger}
}

// Teach stores a response for trigger, replacing the response of an existing trigger.
func (s *TeachService) Teach(ctx context.Context, trigger, response, authorID string) (*domain.TaughtResponse, bool, error) {
	normalized := domain.NormalizeTrigger(trigger)
	response = strings.TrimSpace(response)
	if normalized == "" || response == "" {
		return nil, false, apperrors.NewValidationError("trigger and response are required", map[string]any{"trigger": trigger})
	}
	entry, created, err := s.repo.Upsert(ctx, normalized, response, authorID)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	s.logger.Info("taught response saved",
		zap.Int64("teach_id", entry.ID),
		zap.String("trigger", entry.Trigger),
		zap.Bool("created", created),
	)
	return entry, created, nil
}

// Unteach deletes by numeric id, falling back to the trigger text.
func (s *TeachService) Unteach(ctx context.Context, identifier string) (*domain.TaughtResponse, error) {
	identifier = strings.TrimSpace(identifier)
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		entry, err := s.repo.GetByID(ctx, id)
		if err == nil {
			if err := s.repo.DeleteByID(ctx, id); err != nil {
				return nil, s.mapTeachError(err, identifier)
			}
			return entry, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.MapError(err)
		}
	}

	normalized := domain.NormalizeTrigger(identifier)
	entry, err := s.repo.GetByTrigger(ctx, normalized)
	if err != nil {
		return nil, s.mapTeachError(err, identifier)
	}
	if err := s.repo.DeleteByTrigger(ctx, normalized); err != nil {
		return nil, s.mapTeachError(err, identifier)
	}
	return entry, nil
}

// List returns every taught response, most recent first.
func (s *TeachService) List(ctx context.Context) ([]domain.TaughtResponse, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// Match finds the taught reply for text. The reply has <user> replaced by userMention
// and broadcast mentions defused.
func (s *TeachService) Match(ctx context.Context, text, userMention string) (string, bool) {
	content := domain.NormalizeTrigger(text)
	if content == "" {
		return "", false
	}
	entries, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warn("failed to load taught responses", zap.Error(err))
		return "", false
	}

	for i := range entries {
		entry := &entries[i]
		if !triggerMatches(entry.Trigger, content) {
			continue
		}
		if err := s.repo.IncrementUsage(ctx, entry.ID); err != nil {
			s.logger.Warn("failed to record teach usage", zap.Int64("teach_id", entry.ID), zap.Error(err))
		}
		reply := strings.ReplaceAll(entry.Response, userPlaceholder, userMention)
		return conversation.Sanitize(reply), true
	}
	return "", false
}

func triggerMatches(trigger, content string) bool {
	if trigger == content {
		return true
	}
	if len(trigger) < fuzzyMinLength || len(content) < fuzzyMinLength {
		return false
	}
	shorter, longer := len(trigger), len(content)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if float64(shorter)/float64(longer) < fuzzyMinRatio {
		return false
	}
	return strings.Contains(content, trigger) || strings.Contains(trigger, content)
}

func (s *TeachService) mapTeachError(err error, identifier string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("taught response", map[string]any{"identifier": identifier})
	}
	return apperrors.MapError(err)
}
