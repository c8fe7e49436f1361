package models

import "time"

type Referral struct {
	ID           int64      `json:"id"`
	BusinessID   int64      `json:"business_id"`
	ReferrerID   int64      `json:"referrer_id"`
	ReferrerCode string     `json:"referrer_code"`
	RefereeName  string     `json:"referee_name"`
	RefereeEmail string     `json:"referee_email"`
	RefereePhone *string    `json:"referee_phone,omitempty"`
	Converted    bool       `json:"converted"`
	ConvertedAt  *time.Time `json:"converted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PendingReferral annotates a pending Referral with how long it has been
// waiting, recomputed on every listing so follow-up views never go stale.
type PendingReferral struct {
	Referral
	DaysSinceShared int `json:"days_since_shared"`
}

type RewardRecord struct {
	ID           int64     `json:"id"`
	ReferralID   int64     `json:"referral_id"`
	RewardGiven  bool      `json:"reward_given"`
	RewardAmount *string   `json:"reward_amount,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	MarkedAt     time.Time `json:"marked_at"`
}

type ConvertedReferral struct {
	Referral
	Reward *RewardRecord `json:"reward,omitempty"`
}
