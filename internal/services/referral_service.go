package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/repository"
)

type referralClientReader interface {
	GetByReferralCode(ctx context.Context, businessID int64, code string) (*models.Client, error)
}

type referralStore interface {
	Create(ctx context.Context, input repository.CreateReferralInput) (*models.Referral, error)
	GetByID(ctx context.Context, businessID, referralID int64) (*models.Referral, error)
	HasPendingDuplicate(ctx context.Context, businessID int64, code, refereeEmail string) (bool, error)
	MarkConverted(ctx context.Context, businessID, referralID int64) (bool, error)
	FindPendingByContact(ctx context.Context, businessID int64, email, phone string) (*models.Referral, error)
	ListPending(ctx context.Context, businessID int64, maxAge *time.Duration) ([]models.Referral, error)
	ListConverted(ctx context.Context, businessID int64) ([]models.ConvertedReferral, error)
}

type rewardStore interface {
	Upsert(ctx context.Context, input repository.UpsertRewardInput) (*models.RewardRecord, error)
}

type activityAppender interface {
	Append(ctx context.Context, input repository.AppendActivityInput) (*models.ActivityLogEntry, error)
}

type ReferralService struct {
	clients    referralClientReader
	referrals  referralStore
	rewards    rewardStore
	activity   activityAppender
	carrier    SmsCarrier
	fromNumber string
}

func NewReferralService(
	clients referralClientReader,
	referrals referralStore,
	rewards rewardStore,
	activity activityAppender,
	carrier SmsCarrier,
	fromNumber string,
) *ReferralService {
	return &ReferralService{
		clients:    clients,
		referrals:  referrals,
		rewards:    rewards,
		activity:   activity,
		carrier:    carrier,
		fromNumber: fromNumber,
	}
}

type RegisterReferralInput struct {
	Code         string
	RefereeName  string
	RefereeEmail string
	RefereePhone *string
}

func (s *ReferralService) RegisterReferral(
	ctx context.Context,
	businessID int64,
	input RegisterReferralInput,
) (*models.Referral, error) {
	code := strings.TrimSpace(input.Code)
	email := strings.TrimSpace(input.RefereeEmail)
	if code == "" || email == "" {
		return nil, ErrInvalidInput
	}

	client, err := s.clients.GetByReferralCode(ctx, businessID, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownReferralCode
		}
		return nil, err
	}
	// Deactivated referrers keep their code but stop attributing.
	if !client.Active {
		return nil, ErrUnknownReferralCode
	}

	duplicate, err := s.referrals.HasPendingDuplicate(ctx, businessID, code, email)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, ErrDuplicateReferral
	}

	return s.referrals.Create(ctx, repository.CreateReferralInput{
		BusinessID:   businessID,
		ReferrerID:   client.ID,
		ReferrerCode: code,
		RefereeName:  strings.TrimSpace(input.RefereeName),
		RefereeEmail: email,
		RefereePhone: input.RefereePhone,
	})
}

// RecordConversion flips a pending referral to converted. Calling it again
// for the same referral is a safe no-op: the second caller gets the referral
// back with alreadyConverted=true, and no second activity entry is written.
func (s *ReferralService) RecordConversion(
	ctx context.Context,
	businessID int64,
	referralID int64,
) (*models.Referral, bool, error) {
	if referralID <= 0 {
		return nil, false, ErrInvalidInput
	}

	referral, err := s.referrals.GetByID(ctx, businessID, referralID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	transitioned, err := s.referrals.MarkConverted(ctx, businessID, referralID)
	if err != nil {
		return nil, false, err
	}
	if !transitioned {
		// Lost the race or already converted earlier. The ledger holds
		// exactly one converted_at; re-read so the caller sees the
		// converted row, not the pre-transition snapshot.
		current, err := s.referrals.GetByID(ctx, businessID, referralID)
		if err != nil {
			return nil, false, err
		}
		return current, true, nil
	}

	if _, err := s.activity.Append(ctx, repository.AppendActivityInput{
		BusinessID:  businessID,
		Type:        models.ActivityReferralConverted,
		Description: fmt.Sprintf("%s converted a referral from code %s", referral.RefereeName, referral.ReferrerCode),
	}); err != nil {
		return nil, false, err
	}

	updated, err := s.referrals.GetByID(ctx, businessID, referralID)
	if err != nil {
		return nil, false, err
	}

	return updated, false, nil
}

// ResolveConversion maps a booking event to its pending referral and
// converts it. Events for contacts that were never referred are not errors;
// they report found=false so the webhook can acknowledge and move on.
func (s *ReferralService) ResolveConversion(
	ctx context.Context,
	businessID int64,
	refereeEmail string,
	refereePhone string,
) (*models.Referral, bool, error) {
	email := strings.TrimSpace(refereeEmail)
	phone := strings.TrimSpace(refereePhone)
	if email == "" && phone == "" {
		return nil, false, ErrInvalidInput
	}

	referral, err := s.referrals.FindPendingByContact(ctx, businessID, email, phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	converted, _, err := s.RecordConversion(ctx, businessID, referral.ID)
	if err != nil {
		return nil, false, err
	}

	return converted, true, nil
}

type SetRewardInput struct {
	RewardGiven  bool
	RewardAmount *string
	Notes        *string
}

func (s *ReferralService) SetReward(
	ctx context.Context,
	businessID int64,
	referralID int64,
	input SetRewardInput,
) (*models.RewardRecord, error) {
	referral, err := s.referrals.GetByID(ctx, businessID, referralID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !referral.Converted {
		return nil, ErrNotConverted
	}

	return s.rewards.Upsert(ctx, repository.UpsertRewardInput{
		ReferralID:   referralID,
		RewardGiven:  input.RewardGiven,
		RewardAmount: input.RewardAmount,
		Notes:        input.Notes,
	})
}

// ListPending returns pending referrals oldest first, each annotated with
// how many whole days ago it was shared. Recomputed per call.
func (s *ReferralService) ListPending(
	ctx context.Context,
	businessID int64,
	maxAgeDays *int,
) ([]models.PendingReferral, error) {
	var maxAge *time.Duration
	if maxAgeDays != nil {
		if *maxAgeDays <= 0 {
			return nil, ErrInvalidInput
		}
		d := time.Duration(*maxAgeDays) * 24 * time.Hour
		maxAge = &d
	}

	referrals, err := s.referrals.ListPending(ctx, businessID, maxAge)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pending := make([]models.PendingReferral, 0, len(referrals))
	for _, referral := range referrals {
		days := int(now.Sub(referral.CreatedAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		pending = append(pending, models.PendingReferral{
			Referral:        referral,
			DaysSinceShared: days,
		})
	}

	return pending, nil
}

func (s *ReferralService) ListConverted(ctx context.Context, businessID int64) ([]models.ConvertedReferral, error) {
	return s.referrals.ListConverted(ctx, businessID)
}

// SendReminder nudges the referee of a still-pending referral over SMS.
func (s *ReferralService) SendReminder(ctx context.Context, businessID, referralID int64) error {
	referral, err := s.referrals.GetByID(ctx, businessID, referralID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if referral.Converted {
		return ErrInvalidInput
	}
	if referral.RefereePhone == nil || strings.TrimSpace(*referral.RefereePhone) == "" {
		return ErrInvalidInput
	}

	body := fmt.Sprintf(
		"Hi %s! Just a reminder that you were referred with code %s. Book your first appointment to claim the offer.",
		referral.RefereeName,
		referral.ReferrerCode,
	)
	if _, err := s.carrier.Send(ctx, *referral.RefereePhone, s.fromNumber, body); err != nil {
		return err
	}

	_, err = s.activity.Append(ctx, repository.AppendActivityInput{
		BusinessID:  businessID,
		Type:        models.ActivityReferralReminderSent,
		Description: fmt.Sprintf("Reminder sent to %s for code %s", referral.RefereeName, referral.ReferrerCode),
	})
	return err
}
