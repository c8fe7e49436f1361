package repository

import (
	"context"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
)

type RewardRepository struct {
	db DBTX
}

func NewRewardRepository(db DBTX) *RewardRepository {
	return &RewardRepository{db: db}
}

type UpsertRewardInput struct {
	ReferralID   int64
	RewardGiven  bool
	RewardAmount *string
	Notes        *string
}

// Upsert writes the single reward record for a referral. The unique
// constraint on referral_id means repeat calls update the one row in place,
// so a double toggle can never issue a second reward.
func (r *RewardRepository) Upsert(ctx context.Context, input UpsertRewardInput) (*models.RewardRecord, error) {
	query := `
		INSERT INTO reward_records (referral_id, reward_given, reward_amount, notes, marked_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (referral_id)
		DO UPDATE SET
			reward_given = EXCLUDED.reward_given,
			reward_amount = EXCLUDED.reward_amount,
			notes = EXCLUDED.notes,
			marked_at = NOW()
		RETURNING id, referral_id, reward_given, reward_amount, notes, marked_at
	`

	var record models.RewardRecord
	err := r.db.QueryRow(ctx, query,
		input.ReferralID,
		input.RewardGiven,
		input.RewardAmount,
		input.Notes,
	).Scan(
		&record.ID,
		&record.ReferralID,
		&record.RewardGiven,
		&record.RewardAmount,
		&record.Notes,
		&record.MarkedAt,
	)
	if err != nil {
		return nil, err
	}

	return &record, nil
}
