package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-bot/internal/api/dto"
	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/service"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

// KnowledgeInvalidator drops cached knowledge so the next prompt reloads it.
type KnowledgeInvalidator interface {
	Invalidate()
}

// AdminHandler serves AI operations, taught responses, memory and metrics.
type AdminHandler struct {
	ops       *service.OpsService
	teach     *service.TeachService
	memory    *service.MemoryService
	knowledge KnowledgeInvalidator
	metrics   *observability.Metrics
}

// AdminDependencies bundles services used by the admin endpoints.
type AdminDependencies struct {
	Ops       *service.OpsService
	Teach     *service.TeachService
	Memory    *service.MemoryService
	Knowledge KnowledgeInvalidator
	Metrics   *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{
		ops:       deps.Ops,
		teach:     deps.Teach,
		memory:    deps.Memory,
		knowledge: deps.Knowledge,
		metrics:   deps.Metrics,
	}
}

// AIStatus GET /admin/ai/status.
func (h *AdminHandler) AIStatus(c *fiber.Ctx) error {
	status, err := h.ops.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": status})
}

// StartAI POST /admin/ai/start.
func (h *AdminHandler) StartAI(c *fiber.Ctx) error {
	return h.setAI(c, true)
}

// StopAI POST /admin/ai/stop.
func (h *AdminHandler) StopAI(c *fiber.Ctx) error {
	return h.setAI(c, false)
}

func (h *AdminHandler) setAI(c *fiber.Ctx, enabled bool) error {
	if err := h.ops.SetAIOps(c.UserContext(), enabled, operatorName(c)); err != nil {
		return err
	}
	return h.AIStatus(c)
}

// ListTeaches GET /admin/teaches.
func (h *AdminHandler) ListTeaches(c *fiber.Ctx) error {
	entries, err := h.teach.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.TeachResponse, 0, len(entries))
	for i := range entries {
		items = append(items, teachResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateTeach POST /admin/teaches. Teaching an existing trigger replaces its response.
func (h *AdminHandler) CreateTeach(c *fiber.Ctx) error {
	var req dto.TeachRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	entry, created, err := h.teach.Teach(c.UserContext(), req.Trigger, req.Response, "operator:"+operatorName(c))
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": teachResponse(entry)})
}

// DeleteTeach DELETE /admin/teaches/:identifier accepts an id or the trigger text.
func (h *AdminHandler) DeleteTeach(c *fiber.Ctx) error {
	identifier, err := url.PathUnescape(c.Params("identifier"))
	if err != nil || strings.TrimSpace(identifier) == "" {
		return apperrors.NewValidationError("identifier required", nil)
	}
	entry, err := h.teach.Unteach(c.UserContext(), identifier)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": teachResponse(entry)})
}

// MemoryStats GET /admin/memory/stats.
func (h *AdminHandler) MemoryStats(c *fiber.Ctx) error {
	stats, err := h.memory.Stats(c.UserContext())
	if err != nil {
		return err
	}
	recent := make([]dto.MemoryEntryResponse, 0, len(stats.Recent))
	for _, e := range stats.Recent {
		recent = append(recent, dto.MemoryEntryResponse{
			ID:        e.ID,
			ChannelID: e.ChannelID,
			UserID:    e.UserID,
			Username:  e.Username,
			Content:   e.Content,
			CreatedAt: e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": dto.MemoryStatsResponse{
		Total:  stats.Total,
		Oldest: stats.Oldest,
		Newest: stats.Newest,
		Recent: recent,
	}})
}

// RefreshKnowledge POST /admin/knowledge/refresh.
func (h *AdminHandler) RefreshKnowledge(c *fiber.Ctx) error {
	if h.knowledge != nil {
		h.knowledge.Invalidate()
	}
	return c.SendStatus(http.StatusNoContent)
}

// Metrics GET /admin/metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

func operatorName(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return principal.Username
	}
	return "operator"
}

func teachResponse(entry *domain.TaughtResponse) dto.TeachResponse {
	return dto.TeachResponse{
		ID:         entry.ID,
		Trigger:    entry.Trigger,
		Response:   entry.Response,
		AuthorID:   entry.AuthorID,
		UsageCount: entry.UsageCount,
		CreatedAt:  entry.CreatedAt,
		UpdatedAt:  entry.UpdatedAt,
	}
}
