package models

import "time"

type Client struct {
	ID           int64     `json:"id"`
	BusinessID   int64     `json:"business_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	ReferralCode string    `json:"referral_code"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
