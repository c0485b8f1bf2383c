package reminders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sartorlabs/sartor/libs/db"
)

// Reminder is a scheduled pre-appointment email. One row per confirmed
// appointment; the appointment id is the idempotency key, so replayed
// confirmation events do not duplicate reminders.
type Reminder struct {
	ID            int64
	AppointmentID string
	Recipient     string
	CustomerName  string
	StartTime     time.Time
	RemindAt      time.Time
	Attempts      int
	MaxAttempts   int
	NextRunAt     time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, rem Reminder) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminder_jobs (appointment_id, recipient, customer_name, start_time, remind_at, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (appointment_id) DO UPDATE
		SET recipient = EXCLUDED.recipient,
		    customer_name = EXCLUDED.customer_name,
		    start_time = EXCLUDED.start_time,
		    remind_at = EXCLUDED.remind_at,
		    next_run_at = EXCLUDED.next_run_at,
		    status = 'pending',
		    attempts = 0,
		    updated_at = now()
	`, rem.AppointmentID, rem.Recipient, rem.CustomerName, rem.StartTime, rem.RemindAt)
	return err
}

// CancelByAppointment drops any pending reminder; cancelled appointments must
// not be reminded about.
func (r *Repository) CancelByAppointment(ctx context.Context, appointmentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = 'cancelled', updated_at = now()
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID)
	return err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Reminder, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, appointment_id, recipient, customer_name, start_time, remind_at, attempts, max_attempts, next_run_at
		FROM reminder_jobs
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var rem Reminder
		if err := rows.Scan(&rem.ID, &rem.AppointmentID, &rem.Recipient, &rem.CustomerName,
			&rem.StartTime, &rem.RemindAt, &rem.Attempts, &rem.MaxAttempts, &rem.NextRunAt); err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = 'processed', updated_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts int, maxAttempts int, nextRunAt time.Time, lastError string) error {
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, attempts, status, nextRunAt, lastError)
	return err
}
