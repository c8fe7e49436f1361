package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// queryInvalidator lets mutating handlers force an immediate refetch of the
// polled views their writes affect, instead of waiting out the interval.
type queryInvalidator interface {
	Invalidate(keys ...string)
}

func businessIDFromCtx(c *fiber.Ctx) (int64, error) {
	businessID, ok := c.Locals("business_id").(int64)
	if !ok || businessID <= 0 {
		return 0, errors.New("missing business scope")
	}
	return businessID, nil
}

func parsePositiveInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// Query keys the polling coordinator tracks per business. Unread counts
// refresh on the short interval, client/referral counts on the long one.
func unreadBadgeKey(businessID int64) string {
	return fmt.Sprintf("badges:unread:%d", businessID)
}

func activityBadgeKey(businessID int64) string {
	return fmt.Sprintf("badges:activity:%d", businessID)
}
