package repository

import (
	"context"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
)

type ClientRepository struct {
	db DBTX
}

func NewClientRepository(db DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

type CreateClientInput struct {
	BusinessID   int64
	Name         string
	Email        string
	Phone        string
	ReferralCode string
}

func (r *ClientRepository) Create(ctx context.Context, input CreateClientInput) (*models.Client, error) {
	query := `
		INSERT INTO clients (business_id, name, email, phone, referral_code, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, business_id, name, email, phone, referral_code, active, created_at, updated_at
	`

	var client models.Client
	err := r.db.QueryRow(ctx, query,
		input.BusinessID,
		input.Name,
		input.Email,
		input.Phone,
		input.ReferralCode,
	).Scan(
		&client.ID,
		&client.BusinessID,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.ReferralCode,
		&client.Active,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &client, nil
}

func (r *ClientRepository) GetByID(ctx context.Context, businessID, clientID int64) (*models.Client, error) {
	query := `
		SELECT id, business_id, name, email, phone, referral_code, active, created_at, updated_at
		FROM clients
		WHERE business_id = $1 AND id = $2
	`
	return r.scanClient(r.db.QueryRow(ctx, query, businessID, clientID))
}

func (r *ClientRepository) GetByReferralCode(ctx context.Context, businessID int64, code string) (*models.Client, error) {
	query := `
		SELECT id, business_id, name, email, phone, referral_code, active, created_at, updated_at
		FROM clients
		WHERE business_id = $1 AND referral_code = $2
	`
	return r.scanClient(r.db.QueryRow(ctx, query, businessID, code))
}

func (r *ClientRepository) GetByPhone(ctx context.Context, businessID int64, phone string) (*models.Client, error) {
	query := `
		SELECT id, business_id, name, email, phone, referral_code, active, created_at, updated_at
		FROM clients
		WHERE business_id = $1 AND phone = $2
		ORDER BY id ASC
		LIMIT 1
	`
	return r.scanClient(r.db.QueryRow(ctx, query, businessID, phone))
}

func (r *ClientRepository) List(ctx context.Context, businessID int64, limit, offset int) ([]models.Client, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM clients WHERE business_id = $1
	`, businessID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, business_id, name, email, phone, referral_code, active, created_at, updated_at
		FROM clients
		WHERE business_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, businessID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	clients := make([]models.Client, 0)
	for rows.Next() {
		var client models.Client
		if err := rows.Scan(
			&client.ID,
			&client.BusinessID,
			&client.Name,
			&client.Email,
			&client.Phone,
			&client.ReferralCode,
			&client.Active,
			&client.CreatedAt,
			&client.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return clients, total, nil
}

// Deactivate soft-disables a client. Clients are never hard-deleted because
// referrals and messages keep pointing at them for auditing.
func (r *ClientRepository) Deactivate(ctx context.Context, businessID, clientID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE clients
		SET active = FALSE, updated_at = NOW()
		WHERE business_id = $1 AND id = $2
	`, businessID, clientID)
	return err
}

func (r *ClientRepository) CountCreatedSince(ctx context.Context, businessID int64, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM clients
		WHERE business_id = $1 AND created_at >= $2
	`, businessID, since).Scan(&count)
	return count, err
}

func (r *ClientRepository) scanClient(row interface{ Scan(dest ...any) error }) (*models.Client, error) {
	var client models.Client
	err := row.Scan(
		&client.ID,
		&client.BusinessID,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.ReferralCode,
		&client.Active,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}
