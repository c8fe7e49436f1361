package services

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnknownReferralCode = errors.New("unknown referral code")
	ErrDuplicateReferral   = errors.New("duplicate pending referral")
	ErrNotConverted        = errors.New("referral not converted")
	ErrInvalidInput        = errors.New("invalid input")
	ErrClientNotFound      = errors.New("client not found")
	ErrCarrierUnavailable  = errors.New("sms carrier is not configured")
)
