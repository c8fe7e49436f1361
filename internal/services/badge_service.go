package services

import (
	"context"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
)

// Window for the "new clients" badge.
const newClientWindow = 7 * 24 * time.Hour

type unreadCounter interface {
	UnreadCountTotal(ctx context.Context, businessID int64) (int, error)
}

type clientCounter interface {
	CountCreatedSince(ctx context.Context, businessID int64, since time.Time) (int, error)
}

type pendingReferralCounter interface {
	CountPending(ctx context.Context, businessID int64) (int, error)
}

// ActivityCounts are the slow-moving badge sources, polled together on the
// longer interval. Unread counts poll separately and faster.
type ActivityCounts struct {
	NewClients       int `json:"new_clients"`
	PendingReferrals int `json:"pending_referrals"`
}

type BadgeService struct {
	messages  unreadCounter
	clients   clientCounter
	referrals pendingReferralCounter
}

func NewBadgeService(messages unreadCounter, clients clientCounter, referrals pendingReferralCounter) *BadgeService {
	return &BadgeService{
		messages:  messages,
		clients:   clients,
		referrals: referrals,
	}
}

func (s *BadgeService) CountUnread(ctx context.Context, businessID int64) (int, error) {
	return s.messages.UnreadCountTotal(ctx, businessID)
}

func (s *BadgeService) CountActivity(ctx context.Context, businessID int64) (ActivityCounts, error) {
	newClients, err := s.clients.CountCreatedSince(ctx, businessID, time.Now().UTC().Add(-newClientWindow))
	if err != nil {
		return ActivityCounts{}, err
	}

	pending, err := s.referrals.CountPending(ctx, businessID)
	if err != nil {
		return ActivityCounts{}, err
	}

	return ActivityCounts{NewClients: newClients, PendingReferrals: pending}, nil
}

// CombineBadges merges independently fetched counts into one badge row.
// A nil input means that source has no snapshot yet (or is unavailable)
// and its badge degrades to the previous value.
func CombineBadges(prev models.BadgeCounts, unread *int, activity *ActivityCounts) models.BadgeCounts {
	next := prev
	if unread != nil {
		next.UnreadMessages = *unread
	}
	if activity != nil {
		next.NewClients = activity.NewClients
		next.PendingReferrals = activity.PendingReferrals
	}
	return next
}
