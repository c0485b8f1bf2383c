package reminders

import (
	"context"
	"log/slog"
	"time"

	"github.com/sartorlabs/sartor/libs/db"
	"github.com/sartorlabs/sartor/services/notification-service/internal/email"
	"github.com/sartorlabs/sartor/services/notification-service/internal/storage"
)

// RemindAt computes when to remind for an appointment starting at start.
// Reminders whose send time already passed are not scheduled at all: a
// same-day confirmation should not fire an instant "upcoming" email.
func RemindAt(start time.Time, offset time.Duration, now time.Time) (time.Time, bool) {
	at := start.Add(-offset)
	if !at.After(now) {
		return time.Time{}, false
	}
	return at, true
}

// Worker polls due reminders and sends the reminder email. Send failures are
// retried with a fixed backoff until max_attempts, then parked as failed.
type Worker struct {
	pool      *db.Pool
	repo      *Repository
	log       *storage.Repository
	sender    email.Sender
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(pool *db.Pool, repo *Repository, log *storage.Repository, sender email.Sender, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		log:       log,
		sender:    sender,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	due, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return tx.Commit(ctx)
	}

	var sent []int64
	for _, rem := range due {
		subject, body := email.Reminder(rem.CustomerName, rem.StartTime)
		if err := w.sender.Send(rem.Recipient, subject, body); err != nil {
			w.logger.Error("reminder email failed", "appointment_id", rem.AppointmentID, "err", err)
			attempts := rem.Attempts + 1
			nextRunAt := time.Now().UTC().Add(w.backoff)
			if err := w.repo.MarkFailed(ctx, tx, rem.ID, attempts, rem.MaxAttempts, nextRunAt, err.Error()); err != nil {
				return err
			}
			continue
		}
		sent = append(sent, rem.ID)
		w.logNotification(ctx, rem, subject)
	}

	if err := w.repo.MarkProcessed(ctx, tx, sent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (w *Worker) logNotification(ctx context.Context, rem Reminder, subject string) {
	err := w.log.Insert(ctx, storage.Notification{
		AppointmentID: rem.AppointmentID,
		Kind:          "reminder",
		Recipient:     rem.Recipient,
		Subject:       subject,
		Status:        storage.StatusSent,
	})
	if err != nil {
		w.logger.Error("notification audit write failed", "appointment_id", rem.AppointmentID, "err", err)
	}
}
