package storage

import (
	"context"

	"github.com/sartorlabs/sartor/libs/db"
)

// Notification is one delivery attempt, kept as an audit trail. Failures are
// recorded here and in the logs; they are never surfaced to the booking flow.
type Notification struct {
	AppointmentID string
	Kind          string
	Recipient     string
	Subject       string
	Status        string
	Error         string
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, kind, recipient, subject, status, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.AppointmentID, n.Kind, n.Recipient, n.Subject, n.Status, n.Error)
	return err
}
