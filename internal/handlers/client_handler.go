package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/repository"
	"github.com/MuhammadAslam635/referable-dev-sub002/pkg/utils"
)

const uniqueViolationCode = "23505"

type clientStore interface {
	Create(ctx context.Context, input repository.CreateClientInput) (*models.Client, error)
	List(ctx context.Context, businessID int64, limit, offset int) ([]models.Client, int, error)
	Deactivate(ctx context.Context, businessID, clientID int64) error
}

type ClientHandler struct {
	clients     clientStore
	invalidator queryInvalidator
}

func NewClientHandler(clients clientStore, invalidator queryInvalidator) *ClientHandler {
	return &ClientHandler{clients: clients, invalidator: invalidator}
}

type createClientRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"required"`
}

func (h *ClientHandler) CreateClient(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid client payload"})
	}

	// Referral codes are random; retry a couple of times on the rare
	// collision before giving up.
	var client *models.Client
	for attempt := 0; attempt < 3; attempt++ {
		client, err = h.clients.Create(c.Context(), repository.CreateClientInput{
			BusinessID:   businessID,
			Name:         req.Name,
			Email:        req.Email,
			Phone:        req.Phone,
			ReferralCode: utils.GenerateReferralCode(),
		})
		if err == nil {
			break
		}

		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
			break
		}
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create client"})
	}

	h.invalidator.Invalidate(activityBadgeKey(businessID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"client": client})
}

func (h *ClientHandler) ListClients(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	clients, total, err := h.clients.List(c.Context(), businessID, limit, (page-1)*limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list clients"})
	}

	return c.JSON(fiber.Map{
		"clients":    clients,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ClientHandler) DeactivateClient(c *fiber.Ctx) error {
	businessID, err := businessIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	clientID, err := c.ParamsInt("id")
	if err != nil || clientID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid client id"})
	}

	if err := h.clients.Deactivate(c.Context(), businessID, int64(clientID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate client"})
	}

	return c.JSON(fiber.Map{"message": "Client deactivated"})
}
