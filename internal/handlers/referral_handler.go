package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/services"
)

type referralApplicationService interface {
	RegisterReferral(ctx context.Context, businessID int64, input services.RegisterReferralInput) (*models.Referral, error)
	RecordConversion(ctx context.Context, businessID, referralID int64) (*models.Referral, bool, error)
	SetReward(ctx context.Context, businessID, referralID int64, input services.SetRewardInput) (*models.RewardRecord, error)
	ListPending(ctx context.Context, businessID int64, maxAgeDays *int) ([]models.PendingReferral, error)
	ListConverted(ctx context.Context, businessID int64) ([]models.ConvertedReferral, error)
	SendReminder(ctx context.Context, businessID, referralID int64) error
}

type ReferralHandler struct {
	service     referralApplicationService
	invalidator queryInvalidator
}

func NewReferralHandler(service referralApplicationService, invalidator queryInvalidator) *ReferralHandler {
	return &ReferralHandler{service: service, invalidator: invalidator}
}

type registerReferralRequest struct {
	Code         string  `json:"code" validate:"required"`
	RefereeName  string  `json:"referee_name" validate:"required"`
	RefereeEmail string  `json:"referee_email" validate:"required,email"`
	RefereePhone *string `json:"referee_phone,omitempty"`
}

func (h *ReferralHandler) Register(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req registerReferralRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid referral payload"})
	}

	referral, err := h.service.RegisterReferral(c.Context(), businessID, services.RegisterReferralInput{
		Code:         req.Code,
		RefereeName:  req.RefereeName,
		RefereeEmail: req.RefereeEmail,
		RefereePhone: req.RefereePhone,
	})
	if err != nil {
		return mapReferralError(c, err)
	}

	h.invalidator.Invalidate(activityBadgeKey(businessID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"referral": referral})
}

func (h *ReferralHandler) Convert(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	referralID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || referralID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid referral id"})
	}

	referral, alreadyConverted, err := h.service.RecordConversion(c.Context(), businessID, referralID)
	if err != nil {
		return mapReferralError(c, err)
	}

	if !alreadyConverted {
		h.invalidator.Invalidate(activityBadgeKey(businessID))
	}

	return c.JSON(fiber.Map{
		"referral":          referral,
		"already_converted": alreadyConverted,
	})
}

type setRewardRequest struct {
	RewardGiven  bool    `json:"reward_given"`
	RewardAmount *string `json:"reward_amount,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

func (h *ReferralHandler) SetReward(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	referralID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || referralID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid referral id"})
	}

	var req setRewardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	record, err := h.service.SetReward(c.Context(), businessID, referralID, services.SetRewardInput{
		RewardGiven:  req.RewardGiven,
		RewardAmount: req.RewardAmount,
		Notes:        req.Notes,
	})
	if err != nil {
		return mapReferralError(c, err)
	}

	return c.JSON(fiber.Map{"reward": record})
}

func (h *ReferralHandler) ListPending(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var maxAgeDays *int
	if raw := c.Query("max_age_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid max_age_days"})
		}
		maxAgeDays = &parsed
	}

	pending, err := h.service.ListPending(c.Context(), businessID, maxAgeDays)
	if err != nil {
		return mapReferralError(c, err)
	}

	return c.JSON(fiber.Map{"referrals": pending})
}

func (h *ReferralHandler) ListConverted(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	converted, err := h.service.ListConverted(c.Context(), businessID)
	if err != nil {
		return mapReferralError(c, err)
	}

	return c.JSON(fiber.Map{"referrals": converted})
}

func (h *ReferralHandler) SendReminder(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	referralID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || referralID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid referral id"})
	}

	if err := h.service.SendReminder(c.Context(), businessID, referralID); err != nil {
		if errors.Is(err, services.ErrCarrierUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "SMS carrier is not configured"})
		}
		return mapReferralError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Reminder sent"})
}

func mapReferralError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrUnknownReferralCode):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown referral code"})
	case errors.Is(err, services.ErrDuplicateReferral):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A pending referral for this contact already exists"})
	case errors.Is(err, services.ErrNotConverted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Referral has not converted yet"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Referral not found"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process referral request"})
	}
}
