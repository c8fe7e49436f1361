package models

import "time"

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

const (
	MessageStatusReceived  = "received"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusFailed    = "failed"
)

type SmsMessage struct {
	ID                int64     `json:"id"`
	BusinessID        int64     `json:"business_id"`
	ClientID          int64     `json:"client_id"`
	Direction         string    `json:"direction"`
	FromNumber        string    `json:"from_number"`
	ToNumber          string    `json:"to_number"`
	Body              string    `json:"body"`
	MessageType       string    `json:"message_type"`
	ProviderMessageID *string   `json:"provider_message_id,omitempty"`
	Status            string    `json:"status"`
	IsRead            bool      `json:"is_read"`
	Timestamp         time.Time `json:"timestamp"`
}

// Conversation is the derived per-client view: the ordered message set plus
// an unread count recomputed from the rows, never stored.
type Conversation struct {
	ClientID    int64        `json:"client_id"`
	ClientName  string       `json:"client_name"`
	Messages    []SmsMessage `json:"messages"`
	UnreadCount int          `json:"unread_count"`
}

type ConversationSummary struct {
	ClientID      int64      `json:"client_id"`
	ClientName    string     `json:"client_name"`
	ClientPhone   string     `json:"client_phone"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Preview       string     `json:"preview"`
	UnreadCount   int        `json:"unread_count"`
}
