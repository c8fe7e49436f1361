package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/services"
)

type inboundMessageRecorder interface {
	RecordInbound(ctx context.Context, businessID int64, input services.InboundMessageInput) (*models.SmsMessage, error)
	ApplyDeliveryStatus(ctx context.Context, businessID int64, providerMessageID, status string) (bool, error)
}

type conversionResolver interface {
	ResolveConversion(ctx context.Context, businessID int64, refereeEmail, refereePhone string) (*models.Referral, bool, error)
}

// WebhookHandler receives carrier and booking events. The integration
// gateway forwards them with the business-scoped service token, so the
// usual auth middleware applies.
type WebhookHandler struct {
	conversations inboundMessageRecorder
	referrals     conversionResolver
	invalidator   queryInvalidator
}

func NewWebhookHandler(
	conversations inboundMessageRecorder,
	referrals conversionResolver,
	invalidator queryInvalidator,
) *WebhookHandler {
	return &WebhookHandler{
		conversations: conversations,
		referrals:     referrals,
		invalidator:   invalidator,
	}
}

type inboundSmsEvent struct {
	From              string `json:"from" validate:"required"`
	To                string `json:"to"`
	Body              string `json:"body" validate:"required"`
	ProviderMessageID string `json:"provider_message_id"`
}

func (h *WebhookHandler) InboundSms(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var event inboundSmsEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event body"})
	}
	if err := validate.Struct(event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid inbound event"})
	}

	message, err := h.conversations.RecordInbound(c.Context(), businessID, services.InboundMessageInput{
		FromNumber:        event.From,
		ToNumber:          event.To,
		Body:              event.Body,
		ProviderMessageID: event.ProviderMessageID,
	})
	if err != nil {
		if errors.Is(err, services.ErrClientNotFound) {
			// Texts from unknown numbers are acknowledged so the carrier
			// stops retrying; there is no conversation to attach them to.
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "No matching client"})
		}
		return mapConversationError(c, err)
	}

	h.invalidator.Invalidate(unreadBadgeKey(businessID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

type deliveryStatusEvent struct {
	ProviderMessageID string `json:"provider_message_id" validate:"required"`
	Status            string `json:"status" validate:"required,oneof=delivered failed"`
}

func (h *WebhookHandler) DeliveryStatus(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var event deliveryStatusEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event body"})
	}
	if err := validate.Struct(event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status event"})
	}

	applied, err := h.conversations.ApplyDeliveryStatus(c.Context(), businessID, event.ProviderMessageID, event.Status)
	if err != nil {
		return mapConversationError(c, err)
	}

	return c.JSON(fiber.Map{"applied": applied})
}

type bookingEvent struct {
	RefereeEmail  string  `json:"referee_email"`
	RefereePhone  string  `json:"referee_phone"`
	BookingAmount float64 `json:"booking_amount"`
}

func (h *WebhookHandler) Booking(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var event bookingEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event body"})
	}
	if event.RefereeEmail == "" && event.RefereePhone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Either referee_email or referee_phone is required"})
	}

	referral, found, err := h.referrals.ResolveConversion(c.Context(), businessID, event.RefereeEmail, event.RefereePhone)
	if err != nil {
		return mapReferralError(c, err)
	}
	if !found {
		// Bookings by contacts nobody referred are the common case.
		return c.JSON(fiber.Map{"converted": false})
	}

	h.invalidator.Invalidate(activityBadgeKey(businessID))

	return c.JSON(fiber.Map{
		"converted": true,
		"referral":  referral,
	})
}
