package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/sartorlabs/sartor/libs/db"
	"github.com/sartorlabs/sartor/services/booking-service/internal/model"
)

// MeasurementRepository stores customer measurement sets. Details are kept as
// an opaque jsonb document; structural validation happens at decode time.
type MeasurementRepository struct {
	pool *db.Pool
}

func NewMeasurementRepository(pool *db.Pool) *MeasurementRepository {
	return &MeasurementRepository{pool: pool}
}

func (r *MeasurementRepository) Create(ctx context.Context, rec *model.MeasurementRecord) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO measurements (id, customer_id, name, details)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, rec.ID, rec.CustomerID, rec.Name, details).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *MeasurementRepository) ListByCustomer(ctx context.Context, customerID string) ([]model.MeasurementRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, customer_id, name, details, created_at, updated_at
		FROM measurements
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.MeasurementRecord
	for rows.Next() {
		rec, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func (r *MeasurementRepository) FindByID(ctx context.Context, id string) (model.MeasurementRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, name, details, created_at, updated_at
		FROM measurements
		WHERE id = $1
	`, id)
	return scanMeasurement(row)
}

func scanMeasurement(row pgx.Row) (model.MeasurementRecord, error) {
	var rec model.MeasurementRecord
	var details []byte
	if err := row.Scan(&rec.ID, &rec.CustomerID, &rec.Name, &details, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return model.MeasurementRecord{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &rec.Details); err != nil {
			return model.MeasurementRecord{}, err
		}
	}
	return rec, nil
}
