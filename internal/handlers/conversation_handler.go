package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/services"
)

type conversationApplicationService interface {
	ListConversations(ctx context.Context, businessID int64, page, limit int) ([]models.ConversationSummary, int, error)
	GetConversation(ctx context.Context, businessID, clientID int64) (*models.Conversation, error)
	MarkRead(ctx context.Context, businessID int64, messageIDs []int64) (int, error)
	SendReply(ctx context.Context, businessID, clientID int64, body string) (*models.SmsMessage, error)
}

type ConversationHandler struct {
	service     conversationApplicationService
	invalidator queryInvalidator
}

func NewConversationHandler(service conversationApplicationService, invalidator queryInvalidator) *ConversationHandler {
	return &ConversationHandler{service: service, invalidator: invalidator}
}

func (h *ConversationHandler) ListConversations(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	conversations, total, err := h.service.ListConversations(c.Context(), businessID, page, limit)
	if err != nil {
		return mapConversationError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversations": conversations,
		"pagination":    buildPaginationMeta(page, limit, total),
	})
}

func (h *ConversationHandler) GetConversation(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	clientID, err := strconv.ParseInt(c.Params("clientId"), 10, 64)
	if err != nil || clientID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid client id"})
	}

	conversation, err := h.service.GetConversation(c.Context(), businessID, clientID)
	if err != nil {
		return mapConversationError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": conversation})
}

type markReadRequest struct {
	MessageIDs []int64 `json:"message_ids" validate:"required,min=1"`
}

func (h *ConversationHandler) MarkRead(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req markReadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message_ids is required"})
	}

	marked, err := h.service.MarkRead(c.Context(), businessID, req.MessageIDs)
	if err != nil {
		return mapConversationError(c, err)
	}

	if marked > 0 {
		h.invalidator.Invalidate(unreadBadgeKey(businessID))
	}

	return c.JSON(fiber.Map{"marked_read": marked})
}

type sendReplyRequest struct {
	Body string `json:"body" validate:"required"`
}

func (h *ConversationHandler) SendReply(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	clientID, err := strconv.ParseInt(c.Params("clientId"), 10, 64)
	if err != nil || clientID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid client id"})
	}

	var req sendReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "body is required"})
	}

	// A failed carrier send still returns the persisted message; the
	// failure shows on the thread as status=failed rather than an error.
	// Outbound messages never touch the unread count, so no badge key
	// needs invalidating here.
	message, err := h.service.SendReply(c.Context(), businessID, clientID, req.Body)
	if err != nil {
		return mapConversationError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func mapConversationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process conversation request"})
	}
}
