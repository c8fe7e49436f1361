package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/poller"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/services"
)

type badgeCountProvider interface {
	CountUnread(ctx context.Context, businessID int64) (int, error)
	CountActivity(ctx context.Context, businessID int64) (services.ActivityCounts, error)
}

// BadgeHandler serves the navigation badge counts from the polling
// coordinator's snapshots. Each business gets two polled keys: unread
// counts on the short interval, client/referral counts on the long one.
type BadgeHandler struct {
	service          badgeCountProvider
	coordinator      *poller.Coordinator
	unreadInterval   time.Duration
	activityInterval time.Duration
}

func NewBadgeHandler(
	service badgeCountProvider,
	coordinator *poller.Coordinator,
	unreadInterval time.Duration,
	activityInterval time.Duration,
) *BadgeHandler {
	return &BadgeHandler{
		service:          service,
		coordinator:      coordinator,
		unreadInterval:   unreadInterval,
		activityInterval: activityInterval,
	}
}

func (h *BadgeHandler) GetBadges(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	h.ensureSubscribed(businessID)

	var unread *int
	if snapshot, ok := h.coordinator.Get(unreadBadgeKey(businessID)); ok {
		if count, ok := snapshot.(int); ok {
			unread = &count
		}
	}

	var activity *services.ActivityCounts
	if snapshot, ok := h.coordinator.Get(activityBadgeKey(businessID)); ok {
		if counts, ok := snapshot.(services.ActivityCounts); ok {
			activity = &counts
		}
	}

	// Missing snapshots degrade that badge to zero; the others render.
	badges := services.CombineBadges(models.BadgeCounts{}, unread, activity)

	return c.JSON(fiber.Map{"badges": badges})
}

// ensureSubscribed lazily registers the polling loops for a business the
// first time its badges are requested.
func (h *BadgeHandler) ensureSubscribed(businessID int64) {
	unreadKey := unreadBadgeKey(businessID)
	if !h.coordinator.Has(unreadKey) {
		h.coordinator.Subscribe(unreadKey, h.unreadInterval, func(ctx context.Context) (any, error) {
			return h.service.CountUnread(ctx, businessID)
		})
	}

	activityKey := activityBadgeKey(businessID)
	if !h.coordinator.Has(activityKey) {
		h.coordinator.Subscribe(activityKey, h.activityInterval, func(ctx context.Context) (any, error) {
			return h.service.CountActivity(ctx, businessID)
		})
	}
}
