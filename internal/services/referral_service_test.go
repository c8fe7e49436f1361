package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/repository"
)

type fakeReferralClients struct {
	byCode map[string]*models.Client
}

func (f *fakeReferralClients) GetByReferralCode(_ context.Context, _ int64, code string) (*models.Client, error) {
	client, ok := f.byCode[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return client, nil
}

type fakeReferralStore struct {
	nextID    int64
	referrals map[int64]*models.Referral
}

func newFakeReferralStore() *fakeReferralStore {
	return &fakeReferralStore{nextID: 1, referrals: make(map[int64]*models.Referral)}
}

func (f *fakeReferralStore) Create(_ context.Context, input repository.CreateReferralInput) (*models.Referral, error) {
	referral := &models.Referral{
		ID:           f.nextID,
		BusinessID:   input.BusinessID,
		ReferrerID:   input.ReferrerID,
		ReferrerCode: input.ReferrerCode,
		RefereeName:  input.RefereeName,
		RefereeEmail: input.RefereeEmail,
		RefereePhone: input.RefereePhone,
		CreatedAt:    time.Now().UTC(),
	}
	f.referrals[referral.ID] = referral
	f.nextID++
	return copyReferral(referral), nil
}

func (f *fakeReferralStore) GetByID(_ context.Context, businessID, referralID int64) (*models.Referral, error) {
	referral, ok := f.referrals[referralID]
	if !ok || referral.BusinessID != businessID {
		return nil, pgx.ErrNoRows
	}
	return copyReferral(referral), nil
}

func (f *fakeReferralStore) HasPendingDuplicate(_ context.Context, businessID int64, code, refereeEmail string) (bool, error) {
	for _, referral := range f.referrals {
		if referral.BusinessID == businessID && referral.ReferrerCode == code &&
			referral.RefereeEmail == refereeEmail && !referral.Converted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReferralStore) MarkConverted(_ context.Context, businessID, referralID int64) (bool, error) {
	referral, ok := f.referrals[referralID]
	if !ok || referral.BusinessID != businessID || referral.Converted {
		return false, nil
	}
	now := time.Now().UTC()
	referral.Converted = true
	referral.ConvertedAt = &now
	return true, nil
}

func (f *fakeReferralStore) FindPendingByContact(_ context.Context, businessID int64, email, phone string) (*models.Referral, error) {
	var match *models.Referral
	for _, referral := range f.referrals {
		if referral.BusinessID != businessID || referral.Converted {
			continue
		}
		emailHit := email != "" && referral.RefereeEmail == email
		phoneHit := phone != "" && referral.RefereePhone != nil && *referral.RefereePhone == phone
		if !emailHit && !phoneHit {
			continue
		}
		if match == nil || referral.CreatedAt.Before(match.CreatedAt) {
			match = referral
		}
	}
	if match == nil {
		return nil, pgx.ErrNoRows
	}
	return copyReferral(match), nil
}

func (f *fakeReferralStore) ListPending(_ context.Context, businessID int64, maxAge *time.Duration) ([]models.Referral, error) {
	pending := make([]models.Referral, 0)
	for _, referral := range f.referrals {
		if referral.BusinessID != businessID || referral.Converted {
			continue
		}
		if maxAge != nil && referral.CreatedAt.Before(time.Now().UTC().Add(-*maxAge)) {
			continue
		}
		pending = append(pending, *referral)
	}
	for i := 0; i < len(pending); i++ {
		for j := i + 1; j < len(pending); j++ {
			if pending[j].CreatedAt.Before(pending[i].CreatedAt) {
				pending[i], pending[j] = pending[j], pending[i]
			}
		}
	}
	return pending, nil
}

func (f *fakeReferralStore) ListConverted(_ context.Context, businessID int64) ([]models.ConvertedReferral, error) {
	converted := make([]models.ConvertedReferral, 0)
	for _, referral := range f.referrals {
		if referral.BusinessID == businessID && referral.Converted {
			converted = append(converted, models.ConvertedReferral{Referral: *referral})
		}
	}
	return converted, nil
}

func copyReferral(referral *models.Referral) *models.Referral {
	clone := *referral
	return &clone
}

type fakeRewardStore struct {
	nextID      int64
	byReferral  map[int64]*models.RewardRecord
	upsertCalls int
}

func newFakeRewardStore() *fakeRewardStore {
	return &fakeRewardStore{nextID: 1, byReferral: make(map[int64]*models.RewardRecord)}
}

func (f *fakeRewardStore) Upsert(_ context.Context, input repository.UpsertRewardInput) (*models.RewardRecord, error) {
	f.upsertCalls++
	record, ok := f.byReferral[input.ReferralID]
	if !ok {
		record = &models.RewardRecord{ID: f.nextID, ReferralID: input.ReferralID}
		f.byReferral[input.ReferralID] = record
		f.nextID++
	}
	record.RewardGiven = input.RewardGiven
	record.RewardAmount = input.RewardAmount
	record.Notes = input.Notes
	record.MarkedAt = time.Now().UTC()
	clone := *record
	return &clone, nil
}

type fakeActivityLog struct {
	entries []repository.AppendActivityInput
}

func (f *fakeActivityLog) Append(_ context.Context, input repository.AppendActivityInput) (*models.ActivityLogEntry, error) {
	f.entries = append(f.entries, input)
	return &models.ActivityLogEntry{
		ID:          int64(len(f.entries)),
		BusinessID:  input.BusinessID,
		Type:        input.Type,
		Description: input.Description,
		Timestamp:   time.Now().UTC(),
	}, nil
}

func (f *fakeActivityLog) countByType(activityType string) int {
	count := 0
	for _, entry := range f.entries {
		if entry.Type == activityType {
			count++
		}
	}
	return count
}

type stubCarrier struct {
	providerID string
	err        error
	sent       []string
}

func (s *stubCarrier) Send(_ context.Context, to, _, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, to)
	return s.providerID, nil
}

func newReferralFixture() (*ReferralService, *fakeReferralStore, *fakeRewardStore, *fakeActivityLog, *stubCarrier) {
	clients := &fakeReferralClients{byCode: map[string]*models.Client{
		"ABC123": {ID: 1, BusinessID: 10, Name: "Dana", Phone: "+15550001", ReferralCode: "ABC123", Active: true},
		"GONE99": {ID: 2, BusinessID: 10, Name: "Lee", Phone: "+15550002", ReferralCode: "GONE99", Active: false},
	}}
	referrals := newFakeReferralStore()
	rewards := newFakeRewardStore()
	activity := &fakeActivityLog{}
	carrier := &stubCarrier{providerID: "prov-1"}
	service := NewReferralService(clients, referrals, rewards, activity, carrier, "+15559999")
	return service, referrals, rewards, activity, carrier
}

func TestRegisterReferralUnknownCode(t *testing.T) {
	service, _, _, _, _ := newReferralFixture()

	_, err := service.RegisterReferral(context.Background(), 10, RegisterReferralInput{
		Code:         "NOPE",
		RefereeName:  "Sam",
		RefereeEmail: "sam@example.com",
	})
	if !errors.Is(err, ErrUnknownReferralCode) {
		t.Fatalf("expected ErrUnknownReferralCode, got %v", err)
	}
}

func TestRegisterReferralInactiveReferrerDoesNotAttribute(t *testing.T) {
	service, _, _, _, _ := newReferralFixture()

	_, err := service.RegisterReferral(context.Background(), 10, RegisterReferralInput{
		Code:         "GONE99",
		RefereeName:  "Sam",
		RefereeEmail: "sam@example.com",
	})
	if !errors.Is(err, ErrUnknownReferralCode) {
		t.Fatalf("expected ErrUnknownReferralCode for inactive referrer, got %v", err)
	}
}

func TestRegisterReferralRejectsDuplicatePending(t *testing.T) {
	service, _, _, _, _ := newReferralFixture()

	if _, err := service.RegisterReferral(context.Background(), 10, RegisterReferralInput{
		Code:         "ABC123",
		RefereeName:  "Sam",
		RefereeEmail: "x@y.com",
	}); err != nil {
		t.Fatalf("first registration: %v", err)
	}

	_, err := service.RegisterReferral(context.Background(), 10, RegisterReferralInput{
		Code:         "ABC123",
		RefereeName:  "Sam Again",
		RefereeEmail: "x@y.com",
	})
	if !errors.Is(err, ErrDuplicateReferral) {
		t.Fatalf("expected ErrDuplicateReferral, got %v", err)
	}
}

func TestRecordConversionIsIdempotent(t *testing.T) {
	service, _, _, activity, _ := newReferralFixture()

	referral, err := service.RegisterReferral(context.Background(), 10, RegisterReferralInput{
		Code:         "ABC123",
		RefereeName:  "Sam",
		RefereeEmail: "x@y.com",
	})
	if err != nil {
		t.Fatalf("RegisterReferral: %v", err)
	}

	first, already, err := service.RecordConversion(context.Background(), 10, referral.ID)
	if err != nil {
		t.Fatalf("first conversion: %v", err)
	}
	if already || !first.Converted || first.ConvertedAt == nil {
		t.Fatalf("expected a fresh conversion, got already=%v converted=%v", already, first.Converted)
	}

	second, already, err := service.RecordConversion(context.Background(), 10, referral.ID)
	if err != nil {
		t.Fatalf("second conversion: %v", err)
	}
	if !already {
		t.Fatalf("expected already_converted on repeat call")
	}
	if !second.Converted {
		t.Fatalf("repeat call must still report the converted referral")
	}

	if got := activity.countByType(models.ActivityReferralConverted); got != 1 {
		t.Fatalf("expected exactly one referral_converted entry, got %d", got)
	}
}

// racingReferralStore loses every conversion race: by the time MarkConverted
// runs, another caller has already flipped the row.
type racingReferralStore struct {
	*fakeReferralStore
}

func (r *racingReferralStore) MarkConverted(ctx context.Context, businessID, referralID int64) (bool, error) {
	if _, err := r.fakeReferralStore.MarkConverted(ctx, businessID, referralID); err != nil {
		return false, err
	}
	return false, nil
}

func TestRecordConversionLostRaceReturnsConvertedRow(t *testing.T) {
	service, referrals, _, activity, _ := newReferralFixture()
	service.referrals = &racingReferralStore{fakeReferralStore: referrals}

	pending := &models.Referral{
		ID: 70, BusinessID: 10, ReferrerID: 1, ReferrerCode: "ABC123",
		RefereeName: "Sam", RefereeEmail: "x@y.com",
		CreatedAt: time.Now().UTC(),
	}
	referrals.referrals[pending.ID] = pending

	referral, already, err := service.RecordConversion(context.Background(), 10, pending.ID)
	if err != nil {
		t.Fatalf("RecordConversion: %v", err)
	}
	if !already {
		t.Fatalf("a lost race must report already_converted")
	}
	if !referral.Converted || referral.ConvertedAt == nil {
		t.Fatalf("the returned referral must reflect the winner's transition, got %+v", referral)
	}
	if got := activity.countByType(models.ActivityReferralConverted); got != 0 {
		t.Fatalf("the losing caller must not append activity, got %d entries", got)
	}
}

func TestRecordConversionUnknownReferral(t *testing.T) {
	service, _, _, _, _ := newReferralFixture()

	_, _, err := service.RecordConversion(context.Background(), 10, 404)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetRewardRequiresConversion(t *testing.T) {
	service, _, _, _, _ := newReferralFixture()

	referral, err := service.RegisterReferral(context.Background(), 10, RegisterReferralInput{
		Code:         "ABC123",
		RefereeName:  "Sam",
		RefereeEmail: "x@y.com",
	})
	if err != nil {
		t.Fatalf("RegisterReferral: %v", err)
	}

	_, err = service.SetReward(context.Background(), 10, referral.ID, SetRewardInput{RewardGiven: true})
	if !errors.Is(err, ErrNotConverted) {
		t.Fatalf("expected ErrNotConverted, got %v", err)
	}
}

func TestSetRewardUpsertsSingleRecord(t *testing.T) {
	service, _, rewards, _, _ := newReferralFixture()

	referral, err := service.RegisterReferral(context.Background(), 10, RegisterReferralInput{
		Code:         "ABC123",
		RefereeName:  "Sam",
		RefereeEmail: "x@y.com",
	})
	if err != nil {
		t.Fatalf("RegisterReferral: %v", err)
	}
	if _, _, err := service.RecordConversion(context.Background(), 10, referral.ID); err != nil {
		t.Fatalf("RecordConversion: %v", err)
	}

	amount := "$25"
	firstRecord, err := service.SetReward(context.Background(), 10, referral.ID, SetRewardInput{
		RewardGiven:  true,
		RewardAmount: &amount,
	})
	if err != nil {
		t.Fatalf("first SetReward: %v", err)
	}

	secondRecord, err := service.SetReward(context.Background(), 10, referral.ID, SetRewardInput{
		RewardGiven:  true,
		RewardAmount: &amount,
	})
	if err != nil {
		t.Fatalf("second SetReward: %v", err)
	}

	if len(rewards.byReferral) != 1 {
		t.Fatalf("expected exactly one reward record, got %d", len(rewards.byReferral))
	}
	if firstRecord.ID != secondRecord.ID {
		t.Fatalf("repeat SetReward must update the same record, got ids %d and %d", firstRecord.ID, secondRecord.ID)
	}
	if !secondRecord.RewardGiven || secondRecord.RewardAmount == nil || *secondRecord.RewardAmount != "$25" {
		t.Fatalf("unexpected reward state: %+v", secondRecord)
	}
	if secondRecord.MarkedAt.Before(firstRecord.MarkedAt) {
		t.Fatalf("marked_at must reflect the last call")
	}
}

func TestListPendingOrdersOldestFirstAndAnnotatesAge(t *testing.T) {
	service, referrals, _, _, _ := newReferralFixture()

	old := &models.Referral{
		ID: 50, BusinessID: 10, ReferrerID: 1, ReferrerCode: "ABC123",
		RefereeName: "Old", RefereeEmail: "old@example.com",
		CreatedAt: time.Now().UTC().Add(-72 * time.Hour),
	}
	fresh := &models.Referral{
		ID: 51, BusinessID: 10, ReferrerID: 1, ReferrerCode: "ABC123",
		RefereeName: "Fresh", RefereeEmail: "fresh@example.com",
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	referrals.referrals[old.ID] = old
	referrals.referrals[fresh.ID] = fresh

	pending, err := service.ListPending(context.Background(), 10, nil)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}

	if len(pending) != 2 {
		t.Fatalf("expected 2 pending referrals, got %d", len(pending))
	}
	if pending[0].RefereeName != "Old" {
		t.Fatalf("expected the most overdue referral first, got %q", pending[0].RefereeName)
	}
	if pending[0].DaysSinceShared != 3 {
		t.Fatalf("expected 3 days since shared, got %d", pending[0].DaysSinceShared)
	}
	if pending[1].DaysSinceShared != 0 {
		t.Fatalf("expected 0 days since shared for the fresh referral, got %d", pending[1].DaysSinceShared)
	}

	maxAge := 1
	recent, err := service.ListPending(context.Background(), 10, &maxAge)
	if err != nil {
		t.Fatalf("ListPending with max age: %v", err)
	}
	if len(recent) != 1 || recent[0].RefereeName != "Fresh" {
		t.Fatalf("expected only the fresh referral within 1 day, got %+v", recent)
	}
}

func TestResolveConversionWithoutMatchIsNotAnError(t *testing.T) {
	service, _, _, activity, _ := newReferralFixture()

	referral, found, err := service.ResolveConversion(context.Background(), 10, "walkin@example.com", "")
	if err != nil {
		t.Fatalf("ResolveConversion: %v", err)
	}
	if found || referral != nil {
		t.Fatalf("expected no match for an unreferred contact")
	}
	if len(activity.entries) != 0 {
		t.Fatalf("no activity should be written without a conversion")
	}
}

func TestResolveConversionConvertsPendingReferral(t *testing.T) {
	service, _, _, activity, _ := newReferralFixture()

	if _, err := service.RegisterReferral(context.Background(), 10, RegisterReferralInput{
		Code:         "ABC123",
		RefereeName:  "Sam",
		RefereeEmail: "x@y.com",
	}); err != nil {
		t.Fatalf("RegisterReferral: %v", err)
	}

	referral, found, err := service.ResolveConversion(context.Background(), 10, "x@y.com", "")
	if err != nil {
		t.Fatalf("ResolveConversion: %v", err)
	}
	if !found || !referral.Converted {
		t.Fatalf("expected the pending referral to convert, got found=%v", found)
	}
	if got := activity.countByType(models.ActivityReferralConverted); got != 1 {
		t.Fatalf("expected one conversion entry, got %d", got)
	}
}

func TestSendReminderOnlyForPendingWithPhone(t *testing.T) {
	service, referrals, _, activity, carrier := newReferralFixture()

	phone := "+15553333"
	pending := &models.Referral{
		ID: 60, BusinessID: 10, ReferrerID: 1, ReferrerCode: "ABC123",
		RefereeName: "Sam", RefereeEmail: "x@y.com", RefereePhone: &phone,
		CreatedAt: time.Now().UTC(),
	}
	referrals.referrals[pending.ID] = pending

	if err := service.SendReminder(context.Background(), 10, pending.ID); err != nil {
		t.Fatalf("SendReminder: %v", err)
	}
	if len(carrier.sent) != 1 || carrier.sent[0] != phone {
		t.Fatalf("expected one SMS to %s, got %v", phone, carrier.sent)
	}
	if got := activity.countByType(models.ActivityReferralReminderSent); got != 1 {
		t.Fatalf("expected one reminder entry, got %d", got)
	}

	pending.Converted = true
	if err := service.SendReminder(context.Background(), 10, pending.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a converted referral, got %v", err)
	}
}
