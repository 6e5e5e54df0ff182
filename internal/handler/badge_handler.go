package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/groupflow/activity-sync-api/internal/dto"
	"github.com/groupflow/activity-sync-api/internal/middleware"
	"github.com/groupflow/activity-sync-api/internal/service"
	"github.com/groupflow/activity-sync-api/internal/utils"
)

// BadgeHandler serves on-demand badge pulls from the client.
type BadgeHandler struct {
	badges service.BadgeService
	logger zerolog.Logger
}

// NewBadgeHandler constructs the badge pull handler.
func NewBadgeHandler(badges service.BadgeService, logger zerolog.Logger) *BadgeHandler {
	return &BadgeHandler{
		badges: badges,
		logger: logger.With().Str("component", "badge_handler").Logger(),
	}
}

// Register binds the badge routes.
func (h *BadgeHandler) Register(router fiber.Router) {
	router.Get("/", h.get)
}

func (h *BadgeHandler) get(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "user_id is required")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))

	count, err := h.badges.ComputeForUser(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("badge computation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to compute badge")
	}

	return utils.SendSuccess(c, "badge", dto.BadgeResponse{UserID: userID, Count: count})
}
