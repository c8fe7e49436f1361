package models

import "time"

const (
	ActivityReferralConverted    = "referral_converted"
	ActivityReferralReminderSent = "referral_reminder_sent"
)

type ActivityLogEntry struct {
	ID          int64     `json:"id"`
	BusinessID  int64     `json:"business_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    *string   `json:"metadata,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
