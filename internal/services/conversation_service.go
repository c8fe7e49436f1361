package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/repository"
)

const previewMaxLen = 60

const uniqueViolationCode = "23505"

type conversationClientReader interface {
	GetByID(ctx context.Context, businessID, clientID int64) (*models.Client, error)
	GetByPhone(ctx context.Context, businessID int64, phone string) (*models.Client, error)
}

type messageStore interface {
	Create(ctx context.Context, input repository.CreateMessageInput) (*models.SmsMessage, error)
	GetInboundByProviderID(ctx context.Context, businessID int64, providerMessageID string) (*models.SmsMessage, error)
	ListByClient(ctx context.Context, businessID, clientID int64) ([]models.SmsMessage, error)
	MarkMessagesRead(ctx context.Context, businessID int64, messageIDs []int64) (int, error)
	UpdateStatus(ctx context.Context, businessID, messageID int64, status string) error
	SetProviderMessageID(ctx context.Context, businessID, messageID int64, providerMessageID string) error
	UpdateStatusByProviderID(ctx context.Context, businessID int64, providerMessageID, status string) (bool, error)
	ListConversationSummaries(ctx context.Context, businessID int64, limit, offset int) ([]models.ConversationSummary, int, error)
}

type ConversationService struct {
	clients    conversationClientReader
	messages   messageStore
	carrier    SmsCarrier
	fromNumber string
}

func NewConversationService(
	clients conversationClientReader,
	messages messageStore,
	carrier SmsCarrier,
	fromNumber string,
) *ConversationService {
	return &ConversationService{
		clients:    clients,
		messages:   messages,
		carrier:    carrier,
		fromNumber: fromNumber,
	}
}

type AppendMessageInput struct {
	ClientID          int64
	Direction         string
	FromNumber        string
	ToNumber          string
	Body              string
	MessageType       string
	ProviderMessageID *string
	Status            string
}

func (s *ConversationService) AppendMessage(
	ctx context.Context,
	businessID int64,
	input AppendMessageInput,
) (*models.SmsMessage, error) {
	if input.Direction != models.DirectionInbound && input.Direction != models.DirectionOutbound {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.clients.GetByID(ctx, businessID, input.ClientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	messageType := input.MessageType
	if messageType == "" {
		messageType = "sms"
	}
	status := input.Status
	if status == "" {
		if input.Direction == models.DirectionInbound {
			status = models.MessageStatusReceived
		} else {
			status = models.MessageStatusSent
		}
	}

	return s.messages.Create(ctx, repository.CreateMessageInput{
		BusinessID:        businessID,
		ClientID:          input.ClientID,
		Direction:         input.Direction,
		FromNumber:        input.FromNumber,
		ToNumber:          input.ToNumber,
		Body:              input.Body,
		MessageType:       messageType,
		ProviderMessageID: input.ProviderMessageID,
		Status:            status,
	})
}

type InboundMessageInput struct {
	FromNumber        string
	ToNumber          string
	Body              string
	ProviderMessageID string
}

// RecordInbound maps a carrier webhook event onto the sending client by
// phone number and appends it unread. Carriers redeliver events, so a
// provider message id already on file resolves to the existing message
// instead of inflating the conversation.
func (s *ConversationService) RecordInbound(
	ctx context.Context,
	businessID int64,
	input InboundMessageInput,
) (*models.SmsMessage, error) {
	from := strings.TrimSpace(input.FromNumber)
	if from == "" {
		return nil, ErrInvalidInput
	}

	if input.ProviderMessageID != "" {
		existing, err := s.messages.GetInboundByProviderID(ctx, businessID, input.ProviderMessageID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	client, err := s.clients.GetByPhone(ctx, businessID, from)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	var providerID *string
	if input.ProviderMessageID != "" {
		providerID = &input.ProviderMessageID
	}

	message, err := s.AppendMessage(ctx, businessID, AppendMessageInput{
		ClientID:          client.ID,
		Direction:         models.DirectionInbound,
		FromNumber:        from,
		ToNumber:          input.ToNumber,
		Body:              input.Body,
		ProviderMessageID: providerID,
	})
	if err != nil {
		// The unique inbound index closes the window between the lookup
		// and the insert when two redeliveries race.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && input.ProviderMessageID != "" {
			return s.messages.GetInboundByProviderID(ctx, businessID, input.ProviderMessageID)
		}
		return nil, err
	}

	return message, nil
}

// MarkRead marks the given inbound messages read and returns how many were
// newly flipped. Ids that are unknown, outbound or already read are skipped.
func (s *ConversationService) MarkRead(ctx context.Context, businessID int64, messageIDs []int64) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	return s.messages.MarkMessagesRead(ctx, businessID, messageIDs)
}

func (s *ConversationService) GetConversation(
	ctx context.Context,
	businessID int64,
	clientID int64,
) (*models.Conversation, error) {
	client, err := s.clients.GetByID(ctx, businessID, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	messages, err := s.messages.ListByClient(ctx, businessID, clientID)
	if err != nil {
		return nil, err
	}

	return &models.Conversation{
		ClientID:    client.ID,
		ClientName:  client.Name,
		Messages:    messages,
		UnreadCount: UnreadCount(messages),
	}, nil
}

func (s *ConversationService) ListConversations(
	ctx context.Context,
	businessID int64,
	page int,
	limit int,
) ([]models.ConversationSummary, int, error) {
	if page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	summaries, total, err := s.messages.ListConversationSummaries(ctx, businessID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}

	for i := range summaries {
		summaries[i].Preview = TruncatePreview(summaries[i].Preview, previewMaxLen)
	}

	return summaries, total, nil
}

// SendReply persists the outbound message first, then forwards it to the
// carrier. A carrier failure is terminal message state, not a request
// error: the local write already succeeded and the thread shows the
// failure inline with a retry action.
func (s *ConversationService) SendReply(
	ctx context.Context,
	businessID int64,
	clientID int64,
	body string,
) (*models.SmsMessage, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	client, err := s.clients.GetByID(ctx, businessID, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if strings.TrimSpace(client.Phone) == "" {
		return nil, ErrInvalidInput
	}

	message, err := s.AppendMessage(ctx, businessID, AppendMessageInput{
		ClientID:   clientID,
		Direction:  models.DirectionOutbound,
		FromNumber: s.fromNumber,
		ToNumber:   client.Phone,
		Body:       trimmed,
	})
	if err != nil {
		return nil, err
	}

	providerID, err := s.carrier.Send(ctx, client.Phone, s.fromNumber, trimmed)
	if err != nil {
		log.Printf("carrier send failed for message %d: %v", message.ID, err)
		if updateErr := s.messages.UpdateStatus(ctx, businessID, message.ID, models.MessageStatusFailed); updateErr != nil {
			return nil, updateErr
		}
		message.Status = models.MessageStatusFailed
		return message, nil
	}

	if providerID != "" {
		if err := s.messages.SetProviderMessageID(ctx, businessID, message.ID, providerID); err != nil {
			return nil, err
		}
		message.ProviderMessageID = &providerID
	}

	return message, nil
}

// ApplyDeliveryStatus reconciles a carrier delivery report. Reports for
// unknown or already-terminal messages are absorbed so carrier retries
// stay harmless.
func (s *ConversationService) ApplyDeliveryStatus(
	ctx context.Context,
	businessID int64,
	providerMessageID string,
	status string,
) (bool, error) {
	if strings.TrimSpace(providerMessageID) == "" {
		return false, ErrInvalidInput
	}
	if status != models.MessageStatusDelivered && status != models.MessageStatusFailed {
		return false, ErrInvalidInput
	}

	return s.messages.UpdateStatusByProviderID(ctx, businessID, providerMessageID, status)
}

// UnreadCount is the pure projection behind every unread badge: the number
// of inbound messages not yet read. It is never persisted.
func UnreadCount(messages []models.SmsMessage) int {
	count := 0
	for _, message := range messages {
		if message.Direction == models.DirectionInbound && !message.IsRead {
			count++
		}
	}
	return count
}

// TruncatePreview shortens a message body for list views without splitting
// a multi-byte rune.
func TruncatePreview(body string, max int) string {
	if max <= 0 || utf8.RuneCountInString(body) <= max {
		return body
	}

	runes := []rune(body)
	return string(runes[:max-1]) + "…"
}
