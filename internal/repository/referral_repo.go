package repository

import (
	"context"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
)

type ReferralRepository struct {
	db DBTX
}

func NewReferralRepository(db DBTX) *ReferralRepository {
	return &ReferralRepository{db: db}
}

type CreateReferralInput struct {
	BusinessID   int64
	ReferrerID   int64
	ReferrerCode string
	RefereeName  string
	RefereeEmail string
	RefereePhone *string
}

func (r *ReferralRepository) Create(ctx context.Context, input CreateReferralInput) (*models.Referral, error) {
	query := `
		INSERT INTO referrals (business_id, referrer_id, referrer_code, referee_name, referee_email, referee_phone, converted)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id, business_id, referrer_id, referrer_code, referee_name, referee_email, referee_phone,
			converted, converted_at, created_at
	`

	var referral models.Referral
	err := r.db.QueryRow(ctx, query,
		input.BusinessID,
		input.ReferrerID,
		input.ReferrerCode,
		input.RefereeName,
		input.RefereeEmail,
		input.RefereePhone,
	).Scan(
		&referral.ID,
		&referral.BusinessID,
		&referral.ReferrerID,
		&referral.ReferrerCode,
		&referral.RefereeName,
		&referral.RefereeEmail,
		&referral.RefereePhone,
		&referral.Converted,
		&referral.ConvertedAt,
		&referral.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &referral, nil
}

func (r *ReferralRepository) GetByID(ctx context.Context, businessID, referralID int64) (*models.Referral, error) {
	query := `
		SELECT id, business_id, referrer_id, referrer_code, referee_name, referee_email, referee_phone,
			converted, converted_at, created_at
		FROM referrals
		WHERE business_id = $1 AND id = $2
	`

	var referral models.Referral
	err := r.db.QueryRow(ctx, query, businessID, referralID).Scan(
		&referral.ID,
		&referral.BusinessID,
		&referral.ReferrerID,
		&referral.ReferrerCode,
		&referral.RefereeName,
		&referral.RefereeEmail,
		&referral.RefereePhone,
		&referral.Converted,
		&referral.ConvertedAt,
		&referral.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &referral, nil
}

// HasPendingDuplicate reports whether an identical (code, referee email) pair
// is already waiting. Converted referrals do not count: the same contact may
// be referred again after a completed cycle.
func (r *ReferralRepository) HasPendingDuplicate(ctx context.Context, businessID int64, code, refereeEmail string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM referrals
			WHERE business_id = $1
			  AND referrer_code = $2
			  AND LOWER(referee_email) = LOWER($3)
			  AND converted = FALSE
		)
	`, businessID, code, refereeEmail).Scan(&exists)
	return exists, err
}

// MarkConverted flips a pending referral to converted. The WHERE guard makes
// the transition monotonic and exactly-once: a repeat call matches no row and
// reports transitioned=false instead of touching converted_at again.
func (r *ReferralRepository) MarkConverted(ctx context.Context, businessID, referralID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE referrals
		SET converted = TRUE, converted_at = NOW()
		WHERE business_id = $1 AND id = $2 AND converted = FALSE
	`, businessID, referralID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FindPendingByContact resolves a booking event to the pending referral it
// converts, matching on referee email first and phone as a fallback. Oldest
// pending referral wins when a contact was referred more than once.
func (r *ReferralRepository) FindPendingByContact(ctx context.Context, businessID int64, email, phone string) (*models.Referral, error) {
	query := `
		SELECT id, business_id, referrer_id, referrer_code, referee_name, referee_email, referee_phone,
			converted, converted_at, created_at
		FROM referrals
		WHERE business_id = $1
		  AND converted = FALSE
		  AND (
			($2 <> '' AND LOWER(referee_email) = LOWER($2))
			OR ($3 <> '' AND referee_phone = $3)
		  )
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	var referral models.Referral
	err := r.db.QueryRow(ctx, query, businessID, email, phone).Scan(
		&referral.ID,
		&referral.BusinessID,
		&referral.ReferrerID,
		&referral.ReferrerCode,
		&referral.RefereeName,
		&referral.RefereeEmail,
		&referral.RefereePhone,
		&referral.Converted,
		&referral.ConvertedAt,
		&referral.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &referral, nil
}

func (r *ReferralRepository) ListPending(ctx context.Context, businessID int64, maxAge *time.Duration) ([]models.Referral, error) {
	query := `
		SELECT id, business_id, referrer_id, referrer_code, referee_name, referee_email, referee_phone,
			converted, converted_at, created_at
		FROM referrals
		WHERE business_id = $1
		  AND converted = FALSE
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at ASC, id ASC
	`

	var cutoff *time.Time
	if maxAge != nil {
		t := time.Now().UTC().Add(-*maxAge)
		cutoff = &t
	}

	rows, err := r.db.Query(ctx, query, businessID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	referrals := make([]models.Referral, 0)
	for rows.Next() {
		var referral models.Referral
		if err := rows.Scan(
			&referral.ID,
			&referral.BusinessID,
			&referral.ReferrerID,
			&referral.ReferrerCode,
			&referral.RefereeName,
			&referral.RefereeEmail,
			&referral.RefereePhone,
			&referral.Converted,
			&referral.ConvertedAt,
			&referral.CreatedAt,
		); err != nil {
			return nil, err
		}
		referrals = append(referrals, referral)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return referrals, nil
}

func (r *ReferralRepository) ListConverted(ctx context.Context, businessID int64) ([]models.ConvertedReferral, error) {
	query := `
		SELECT r.id, r.business_id, r.referrer_id, r.referrer_code, r.referee_name, r.referee_email, r.referee_phone,
			r.converted, r.converted_at, r.created_at,
			w.id, w.referral_id, w.reward_given, w.reward_amount, w.notes, w.marked_at
		FROM referrals r
		LEFT JOIN reward_records w ON w.referral_id = r.id
		WHERE r.business_id = $1 AND r.converted = TRUE
		ORDER BY r.converted_at DESC, r.id DESC
	`

	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	converted := make([]models.ConvertedReferral, 0)
	for rows.Next() {
		var item models.ConvertedReferral
		var rewardID *int64
		var rewardReferralID *int64
		var rewardGiven *bool
		var rewardAmount *string
		var rewardNotes *string
		var rewardMarkedAt *time.Time

		if err := rows.Scan(
			&item.ID,
			&item.BusinessID,
			&item.ReferrerID,
			&item.ReferrerCode,
			&item.RefereeName,
			&item.RefereeEmail,
			&item.RefereePhone,
			&item.Converted,
			&item.ConvertedAt,
			&item.CreatedAt,
			&rewardID,
			&rewardReferralID,
			&rewardGiven,
			&rewardAmount,
			&rewardNotes,
			&rewardMarkedAt,
		); err != nil {
			return nil, err
		}

		if rewardID != nil {
			item.Reward = &models.RewardRecord{
				ID:           *rewardID,
				ReferralID:   *rewardReferralID,
				RewardGiven:  *rewardGiven,
				RewardAmount: rewardAmount,
				Notes:        rewardNotes,
				MarkedAt:     *rewardMarkedAt,
			}
		}

		converted = append(converted, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return converted, nil
}

func (r *ReferralRepository) CountPending(ctx context.Context, businessID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM referrals
		WHERE business_id = $1 AND converted = FALSE
	`, businessID).Scan(&count)
	return count, err
}
