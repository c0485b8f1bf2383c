package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sartorlabs/sartor/libs/config"
	"github.com/sartorlabs/sartor/libs/db"
	"github.com/sartorlabs/sartor/libs/httpx"
	"github.com/sartorlabs/sartor/libs/kafkax"
	otelx "github.com/sartorlabs/sartor/libs/otel"
	"github.com/sartorlabs/sartor/libs/runtime"
	"github.com/sartorlabs/sartor/services/notification-service/internal/consumer"
	"github.com/sartorlabs/sartor/services/notification-service/internal/email"
	"github.com/sartorlabs/sartor/services/notification-service/internal/inbox"
	"github.com/sartorlabs/sartor/services/notification-service/internal/reminders"
	"github.com/sartorlabs/sartor/services/notification-service/internal/storage"
)

type appointmentEvent struct {
	AppointmentID string `json:"appointment_id"`
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", ""),
	)
	notifLog := storage.NewRepository(pool)
	reminderRepo := reminders.NewRepository(pool)
	reminderOffset := config.Seconds("REMINDER_OFFSET_SECONDS", 24*time.Hour)

	inboxRepo := inbox.NewRepository(pool)
	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	parseEvent := func(msg kafka.Message) (appointmentEvent, time.Time, bool) {
		var evt appointmentEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return evt, time.Time{}, false
		}
		if evt.AppointmentID == "" || evt.CustomerEmail == "" {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return evt, time.Time{}, false
		}
		start, err := time.Parse(time.RFC3339, evt.StartTime)
		if err != nil {
			logger.Error("invalid start_time in event", "err", err, "topic", msg.Topic)
			return evt, time.Time{}, false
		}
		return evt, start, true
	}

	send := func(ctx context.Context, evt appointmentEvent, kind, subject, body string) {
		n := storage.Notification{
			AppointmentID: evt.AppointmentID,
			Kind:          kind,
			Recipient:     evt.CustomerEmail,
			Subject:       subject,
			Status:        storage.StatusSent,
		}
		if err := sender.Send(evt.CustomerEmail, subject, body); err != nil {
			// Delivery problems stay here; the booking flow never sees them.
			logger.Error("email send failed", "kind", kind, "appointment_id", evt.AppointmentID, "err", err)
			n.Status = storage.StatusFailed
			n.Error = err.Error()
		}
		if err := notifLog.Insert(ctx, n); err != nil {
			logger.Error("notification audit write failed", "appointment_id", evt.AppointmentID, "err", err)
		}
	}

	onConfirmed := func(ctx context.Context, msg kafka.Message) error {
		evt, start, ok := parseEvent(msg)
		if !ok {
			return nil
		}
		subject, body := email.Confirmed(evt.CustomerName, start)
		send(ctx, evt, "confirmation", subject, body)

		remindAt, due := reminders.RemindAt(start, reminderOffset, time.Now().UTC())
		if !due {
			return nil
		}
		return reminderRepo.Insert(ctx, reminders.Reminder{
			AppointmentID: evt.AppointmentID,
			Recipient:     evt.CustomerEmail,
			CustomerName:  evt.CustomerName,
			StartTime:     start,
			RemindAt:      remindAt,
		})
	}

	onCancelled := func(ctx context.Context, msg kafka.Message) error {
		evt, start, ok := parseEvent(msg)
		if !ok {
			return nil
		}
		if err := reminderRepo.CancelByAppointment(ctx, evt.AppointmentID); err != nil {
			return err
		}
		subject, body := email.Cancelled(evt.CustomerName, start)
		send(ctx, evt, "cancellation", subject, body)
		return nil
	}

	if kafkaBrokers != "" {
		confirmedConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: kafkaBrokers,
			GroupID: groupID,
			Topic:   config.String("KAFKA_CONFIRMED_TOPIC", "booking.appointment.confirmed.v1"),
		}, onConfirmed)
		go confirmedConsumer.Run(ctx)

		cancelledConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: kafkaBrokers,
			GroupID: groupID,
			Topic:   config.String("KAFKA_CANCELLED_TOPIC", "booking.appointment.cancelled.v1"),
		}, onCancelled)
		go cancelledConsumer.Run(ctx)
	} else {
		logger.Warn("KAFKA_BROKERS empty; no appointment events will be consumed")
	}

	worker := reminders.NewWorker(pool, reminderRepo, notifLog, sender, logger, reminders.WorkerConfig{
		Interval:  config.Seconds("REMINDER_POLL_SECONDS", 15*time.Second),
		BatchSize: config.Int("REMINDER_BATCH_SIZE", 50),
		Backoff:   config.Seconds("REMINDER_BACKOFF_SECONDS", time.Minute),
	})
	go worker.Run(ctx)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if kafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
