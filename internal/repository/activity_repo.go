package repository

import (
	"context"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
)

type ActivityRepository struct {
	db DBTX
}

func NewActivityRepository(db DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

type AppendActivityInput struct {
	BusinessID  int64
	Type        string
	Description string
	Metadata    *string
}

// Append writes one audit entry. The table is append-only: nothing in the
// codebase updates or deletes rows here.
func (r *ActivityRepository) Append(ctx context.Context, input AppendActivityInput) (*models.ActivityLogEntry, error) {
	query := `
		INSERT INTO activity_log (business_id, type, description, metadata, timestamp)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, business_id, type, description, metadata, timestamp
	`

	var entry models.ActivityLogEntry
	err := r.db.QueryRow(ctx, query,
		input.BusinessID,
		input.Type,
		input.Description,
		input.Metadata,
	).Scan(
		&entry.ID,
		&entry.BusinessID,
		&entry.Type,
		&entry.Description,
		&entry.Metadata,
		&entry.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (r *ActivityRepository) ListRecent(ctx context.Context, businessID int64, limit int) ([]models.ActivityLogEntry, error) {
	query := `
		SELECT id, business_id, type, description, metadata, timestamp
		FROM activity_log
		WHERE business_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.ActivityLogEntry, 0)
	for rows.Next() {
		var entry models.ActivityLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.BusinessID,
			&entry.Type,
			&entry.Description,
			&entry.Metadata,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
