package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
)

const defaultActivityLimit = 50

type activityReader interface {
	ListRecent(ctx context.Context, businessID int64, limit int) ([]models.ActivityLogEntry, error)
}

// ActivityHandler serves the recent-activity feed backing the dashboard.
type ActivityHandler struct {
	activity activityReader
}

func NewActivityHandler(activity activityReader) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

func (h *ActivityHandler) ListRecent(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	limit := parsePositiveInt(c.Query("limit"), defaultActivityLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	entries, err := h.activity.ListRecent(c.Context(), businessID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list activity"})
	}

	return c.JSON(fiber.Map{"activity": entries})
}
