package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sartorlabs/sartor/libs/db"
	"github.com/sartorlabs/sartor/services/booking-service/internal/model"
	"github.com/sartorlabs/sartor/services/booking-service/internal/outbox"
)

const appointmentColumns = `
	id, customer_id, customer_email, COALESCE(customer_name, ''), COALESCE(staff_id::text, ''),
	start_time, end_time, status, COALESCE(notes, ''), created_at, updated_at`

// AppointmentRepository is the persistent appointment store. Mutations that
// carry a lifecycle event write the outbox row in the same transaction, so an
// event exists iff its mutation committed.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	CustomerID string
	StaffID    string
	Status     model.Status
	From       time.Time
	To         time.Time
}

func (r *AppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, customer_id, customer_email, customer_name, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING created_at, updated_at
	`, appt.ID, appt.CustomerID, appt.CustomerEmail, appt.CustomerName,
		appt.StartTime, appt.EndTime, appt.Status, appt.Notes).
		Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return err
	}

	if err := r.insertEvent(ctx, tx, *appt, outbox.EventAppointmentCreated); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

// FindOverlapping returns every non-cancelled appointment whose half-open
// interval intersects [start, end), optionally excluding one appointment id
// (used by reschedule to skip itself).
func (r *AppointmentRepository) FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE status <> 'CANCELLED'
			AND start_time < $2
			AND end_time > $1
			AND ($3 = '' OR id::text <> $3)
		ORDER BY start_time ASC
	`, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *AppointmentRepository) List(ctx context.Context, f Filter) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE ($1 = '' OR customer_id::text = $1)
			AND ($2 = '' OR staff_id::text = $2)
			AND ($3 = '' OR status = $3)
			AND ($4::timestamptz IS NULL OR start_time >= $4)
			AND ($5::timestamptz IS NULL OR start_time < $5)
		ORDER BY start_time ASC
	`, f.CustomerID, f.StaffID, string(f.Status), nullableTime(f.From), nullableTime(f.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING`+appointmentColumns, id, status)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, err
	}

	switch status {
	case model.StatusConfirmed:
		err = r.insertEvent(ctx, tx, appt, outbox.EventAppointmentConfirmed)
	case model.StatusCancelled:
		err = r.insertEvent(ctx, tx, appt, outbox.EventAppointmentCancelled)
	}
	if err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) UpdateSchedule(ctx context.Context, id string, start, end time.Time) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2, end_time = $3, updated_at = now()
		WHERE id = $1
		RETURNING`+appointmentColumns, id, start, end)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, err
	}

	if err := r.insertEvent(ctx, tx, appt, outbox.EventAppointmentRescheduled); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) AssignStaff(ctx context.Context, id, staffID string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET staff_id = $2, updated_at = now()
		WHERE id = $1
		RETURNING`+appointmentColumns, id, staffID)
	return scanAppointment(row)
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *AppointmentRepository) insertEvent(ctx context.Context, tx pgx.Tx, appt model.Appointment, eventType string) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"customer_id":    appt.CustomerID,
		"customer_email": appt.CustomerEmail,
		"customer_name":  appt.CustomerName,
		"staff_id":       appt.StaffID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"status":         appt.Status,
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.CustomerID,
		&appt.CustomerEmail,
		&appt.CustomerName,
		&appt.StaffID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.Notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
