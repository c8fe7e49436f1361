package repository

import (
	"context"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

type CreateMessageInput struct {
	BusinessID        int64
	ClientID          int64
	Direction         string
	FromNumber        string
	ToNumber          string
	Body              string
	MessageType       string
	ProviderMessageID *string
	Status            string
}

// Create persists a message and assigns its timestamp at insert time, so
// racing inbound and outbound writes order by when they actually landed,
// not by when a caller built them.
func (r *MessageRepository) Create(ctx context.Context, input CreateMessageInput) (*models.SmsMessage, error) {
	query := `
		INSERT INTO sms_messages
			(business_id, client_id, direction, from_number, to_number, body, message_type, provider_message_id, status, is_read, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, NOW())
		RETURNING id, business_id, client_id, direction, from_number, to_number, body, message_type,
			provider_message_id, status, is_read, timestamp
	`

	var message models.SmsMessage
	err := r.db.QueryRow(ctx, query,
		input.BusinessID,
		input.ClientID,
		input.Direction,
		input.FromNumber,
		input.ToNumber,
		input.Body,
		input.MessageType,
		input.ProviderMessageID,
		input.Status,
	).Scan(
		&message.ID,
		&message.BusinessID,
		&message.ClientID,
		&message.Direction,
		&message.FromNumber,
		&message.ToNumber,
		&message.Body,
		&message.MessageType,
		&message.ProviderMessageID,
		&message.Status,
		&message.IsRead,
		&message.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

func (r *MessageRepository) ListByClient(ctx context.Context, businessID, clientID int64) ([]models.SmsMessage, error) {
	query := `
		SELECT id, business_id, client_id, direction, from_number, to_number, body, message_type,
			provider_message_id, status, is_read, timestamp
		FROM sms_messages
		WHERE business_id = $1 AND client_id = $2
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, businessID, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.SmsMessage, 0)
	for rows.Next() {
		var message models.SmsMessage
		if err := rows.Scan(
			&message.ID,
			&message.BusinessID,
			&message.ClientID,
			&message.Direction,
			&message.FromNumber,
			&message.ToNumber,
			&message.Body,
			&message.MessageType,
			&message.ProviderMessageID,
			&message.Status,
			&message.IsRead,
			&message.Timestamp,
		); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkMessagesRead flips the given inbound messages to read. Unknown ids,
// outbound ids and already-read ids simply match no row, which is what makes
// repeated mark-read calls safe.
func (r *MessageRepository) MarkMessagesRead(ctx context.Context, businessID int64, messageIDs []int64) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE sms_messages
		SET is_read = TRUE
		WHERE business_id = $1
		  AND id = ANY($2)
		  AND direction = 'inbound'
		  AND is_read = FALSE
	`, businessID, messageIDs)
	if err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}

// GetInboundByProviderID finds the inbound message a carrier event was
// already recorded as, so webhook redeliveries resolve to the existing row.
func (r *MessageRepository) GetInboundByProviderID(ctx context.Context, businessID int64, providerMessageID string) (*models.SmsMessage, error) {
	query := `
		SELECT id, business_id, client_id, direction, from_number, to_number, body, message_type,
			provider_message_id, status, is_read, timestamp
		FROM sms_messages
		WHERE business_id = $1
		  AND provider_message_id = $2
		  AND direction = 'inbound'
	`

	var message models.SmsMessage
	err := r.db.QueryRow(ctx, query, businessID, providerMessageID).Scan(
		&message.ID,
		&message.BusinessID,
		&message.ClientID,
		&message.Direction,
		&message.FromNumber,
		&message.ToNumber,
		&message.Body,
		&message.MessageType,
		&message.ProviderMessageID,
		&message.Status,
		&message.IsRead,
		&message.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

func (r *MessageRepository) UnreadCountTotal(ctx context.Context, businessID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM sms_messages
		WHERE business_id = $1
		  AND direction = 'inbound'
		  AND is_read = FALSE
	`, businessID).Scan(&count)
	return count, err
}

func (r *MessageRepository) UpdateStatus(ctx context.Context, businessID, messageID int64, status string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE sms_messages
		SET status = $3
		WHERE business_id = $1 AND id = $2
	`, businessID, messageID, status)
	return err
}

func (r *MessageRepository) SetProviderMessageID(ctx context.Context, businessID, messageID int64, providerMessageID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE sms_messages
		SET provider_message_id = $3
		WHERE business_id = $1 AND id = $2
	`, businessID, messageID, providerMessageID)
	return err
}

// UpdateStatusByProviderID applies a carrier delivery report to the matching
// outbound message. Terminal states stick: a late "delivered" report cannot
// resurrect a message already marked failed, and vice versa.
func (r *MessageRepository) UpdateStatusByProviderID(ctx context.Context, businessID int64, providerMessageID, status string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE sms_messages
		SET status = $3
		WHERE business_id = $1
		  AND provider_message_id = $2
		  AND direction = 'outbound'
		  AND status = 'sent'
	`, businessID, providerMessageID, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListConversationSummaries returns one row per client that has messages,
// newest conversation first. The unread count and latest message are
// computed per row with LATERAL subqueries so they can never drift from the
// underlying message set.
func (r *MessageRepository) ListConversationSummaries(ctx context.Context, businessID int64, limit, offset int) ([]models.ConversationSummary, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT client_id)
		FROM sms_messages
		WHERE business_id = $1
	`, businessID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT c.id, c.name, c.phone, lm.timestamp, lm.body, COALESCE(uc.unread_count, 0)
		FROM clients c
		JOIN LATERAL (
			SELECT timestamp, body
			FROM sms_messages
			WHERE business_id = $1 AND client_id = c.id
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM sms_messages
			WHERE business_id = $1
			  AND client_id = c.id
			  AND direction = 'inbound'
			  AND is_read = FALSE
		) uc ON TRUE
		WHERE c.business_id = $1
		ORDER BY lm.timestamp DESC, c.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, businessID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		if err := rows.Scan(
			&summary.ClientID,
			&summary.ClientName,
			&summary.ClientPhone,
			&summary.LastMessageAt,
			&summary.Preview,
			&summary.UnreadCount,
		); err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return summaries, total, nil
}
