package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/config"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/handlers"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/middleware"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/poller"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/repository"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/services"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) *poller.Coordinator {
	clientRepo := repository.NewClientRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	rewardRepo := repository.NewRewardRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	var carrier services.SmsCarrier = services.DisabledCarrier{}
	if cfg.CarrierConfigured() {
		carrier = services.NewHTTPCarrier(cfg.CarrierURL, cfg.CarrierAPIKey)
	}

	coordinator := poller.NewCoordinator()

	referralService := services.NewReferralService(
		clientRepo,
		referralRepo,
		rewardRepo,
		activityRepo,
		carrier,
		cfg.CarrierFromNumber,
	)
	conversationService := services.NewConversationService(
		clientRepo,
		messageRepo,
		carrier,
		cfg.CarrierFromNumber,
	)
	badgeService := services.NewBadgeService(messageRepo, clientRepo, referralRepo)

	clientHandler := handlers.NewClientHandler(clientRepo, coordinator)
	referralHandler := handlers.NewReferralHandler(referralService, coordinator)
	conversationHandler := handlers.NewConversationHandler(conversationService, coordinator)
	webhookHandler := handlers.NewWebhookHandler(conversationService, referralService, coordinator)
	activityHandler := handlers.NewActivityHandler(activityRepo)
	badgeHandler := handlers.NewBadgeHandler(
		badgeService,
		coordinator,
		cfg.UnreadPollInterval,
		cfg.ActivityPollInterval,
	)

	api := app.Group("/api/v1", middleware.AuthRequired(cfg.JWTSecret))

	clients := api.Group("/clients")
	clients.Post("", clientHandler.CreateClient)
	clients.Get("", clientHandler.ListClients)
	clients.Put("/:id/deactivate", clientHandler.DeactivateClient)

	referrals := api.Group("/referrals")
	referrals.Post("", referralHandler.Register)
	referrals.Get("/pending", referralHandler.ListPending)
	referrals.Get("/converted", referralHandler.ListConverted)
	referrals.Post("/:id/convert", referralHandler.Convert)
	referrals.Put("/:id/reward", referralHandler.SetReward)
	referrals.Post("/:id/remind", referralHandler.SendReminder)

	conversations := api.Group("/conversations")
	conversations.Get("", conversationHandler.ListConversations)
	conversations.Get("/:clientId", conversationHandler.GetConversation)
	conversations.Post("/:clientId/messages", conversationHandler.SendReply)

	api.Post("/messages/read", conversationHandler.MarkRead)

	api.Get("/badges", badgeHandler.GetBadges)
	api.Get("/activity", activityHandler.ListRecent)

	webhooks := api.Group("/webhooks")
	webhooks.Post("/sms/inbound", webhookHandler.InboundSms)
	webhooks.Post("/sms/status", webhookHandler.DeliveryStatus)
	webhooks.Post("/bookings", webhookHandler.Booking)

	return coordinator
}
