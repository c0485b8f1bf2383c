package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sartorlabs/sartor/libs/cache"
	"github.com/sartorlabs/sartor/services/booking-service/internal/model"
	"github.com/sartorlabs/sartor/services/booking-service/internal/slots"
	"github.com/sartorlabs/sartor/services/booking-service/internal/storage"
)

// DefaultLockTTL bounds how long a crashed request can keep a slot locked.
const DefaultLockTTL = 60 * time.Second

// Store is the appointment persistence surface the coordinator needs.
// *storage.AppointmentRepository satisfies it; tests use an in-memory fake.
type Store interface {
	Create(ctx context.Context, appt *model.Appointment) error
	FindByID(ctx context.Context, id string) (model.Appointment, error)
	FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error)
	List(ctx context.Context, f storage.Filter) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
	UpdateSchedule(ctx context.Context, id string, start, end time.Time) (model.Appointment, error)
	AssignStaff(ctx context.Context, id, staffID string) (model.Appointment, error)
	Delete(ctx context.Context, id string) error
}

// Actor is the authenticated caller, extracted from the request token.
type Actor struct {
	ID    string
	Email string
	Role  model.Role
}

// CreateInput is a booking request for one slot on one day. Times are wall
// clocks (HH:mm) interpreted in UTC.
type CreateInput struct {
	Date         string
	StartTime    string
	EndTime      string
	CustomerName string
	Notes        string
}

// Service coordinates bookings: it serializes races on a slot through a
// short-lived distributed lock, re-checks overlap while holding it, and keeps
// the slot cache coherent after every mutation.
type Service struct {
	store   Store
	locks   cache.Store
	slots   *slots.Generator
	logger  *slog.Logger
	lockTTL time.Duration
}

func NewService(store Store, locks cache.Store, gen *slots.Generator, logger *slog.Logger, lockTTL time.Duration) *Service {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Service{store: store, locks: locks, slots: gen, logger: logger, lockTTL: lockTTL}
}

func lockKey(date, startClock string) string {
	return fmt.Sprintf("slot:lock:%s:%s", date, startClock)
}

// Create books a slot for the acting customer. Contention on the same slot
// fails fast with ErrSlotLocked rather than queueing behind the lock.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (model.Appointment, error) {
	if !Allowed(ActionCreate, actor.Role, true) {
		return model.Appointment{}, ErrForbidden
	}
	start, end, err := parseWindow(in.Date, in.StartTime, in.EndTime)
	if err != nil {
		return model.Appointment{}, err
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return model.Appointment{}, invalidf("customerName is required")
	}

	key := lockKey(in.Date, in.StartTime)
	acquired, err := s.locks.Lock(ctx, key, s.lockTTL)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("acquire slot lock: %w", err)
	}
	if !acquired {
		return model.Appointment{}, ErrSlotLocked
	}
	defer s.unlock(ctx, key)

	conflicts, err := s.store.FindOverlapping(ctx, start, end, "")
	if err != nil {
		return model.Appointment{}, err
	}
	if len(conflicts) > 0 {
		return model.Appointment{}, ErrSlotTaken
	}

	appt := model.Appointment{
		ID:            uuid.NewString(),
		CustomerID:    actor.ID,
		CustomerEmail: actor.Email,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		StartTime:     start,
		EndTime:       end,
		Status:        model.StatusPending,
		Notes:         in.Notes,
	}
	if err := s.store.Create(ctx, &appt); err != nil {
		return model.Appointment{}, err
	}
	s.slots.Invalidate(ctx, in.Date)
	s.logger.Info("appointment created", "id", appt.ID, "date", in.Date, "start", in.StartTime)
	return appt, nil
}

// Get returns one appointment if the actor may see it.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (model.Appointment, error) {
	appt, err := s.find(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !Allowed(ActionRead, actor.Role, belongsTo(appt, actor)) {
		return model.Appointment{}, ErrForbidden
	}
	return appt, nil
}

// List returns appointments scoped to the actor: customers see only their
// own, staff only those assigned to them, admins everything the filter
// matches.
func (s *Service) List(ctx context.Context, actor Actor, f storage.Filter) ([]model.Appointment, error) {
	switch actor.Role {
	case model.RoleCustomer:
		f.CustomerID = actor.ID
	case model.RoleStaff:
		f.StaffID = actor.ID
	}
	return s.store.List(ctx, f)
}

// UpdateStatus applies one state-machine transition. The target status picks
// the authorization action; an illegal transition is reported separately from
// a role failure.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id string, to model.Status) (model.Appointment, error) {
	appt, err := s.find(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}

	action := ActionComplete
	switch to {
	case model.StatusConfirmed:
		action = ActionConfirm
	case model.StatusCancelled:
		action = ActionCancel
	}
	if !Allowed(action, actor.Role, appt.CustomerID == actor.ID) {
		return model.Appointment{}, ErrForbidden
	}
	if !CanTransition(appt.Status, to) {
		return model.Appointment{}, &TransitionError{From: appt.Status, To: to}
	}

	updated, err := s.store.UpdateStatus(ctx, id, to)
	if err != nil {
		return model.Appointment{}, s.mapNotFound(err)
	}
	if to == model.StatusCancelled {
		s.slots.Invalidate(ctx, dateOf(appt))
	}
	s.logger.Info("appointment status changed", "id", id, "from", appt.Status, "to", to)
	return updated, nil
}

// Cancel is UpdateStatus to CANCELLED; customers can cancel their own.
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) (model.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, model.StatusCancelled)
}

// Reschedule moves an appointment to a new window. The new slot is guarded by
// the same distributed lock as Create, and the conflict scan excludes the
// appointment itself.
func (s *Service) Reschedule(ctx context.Context, actor Actor, id string, date, startClock, endClock string) (model.Appointment, error) {
	start, end, err := parseWindow(date, startClock, endClock)
	if err != nil {
		return model.Appointment{}, err
	}
	appt, err := s.find(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !Allowed(ActionReschedule, actor.Role, appt.CustomerID == actor.ID) {
		return model.Appointment{}, ErrForbidden
	}
	if appt.Status.Terminal() {
		return model.Appointment{}, invalidf("cannot reschedule a %s appointment", appt.Status)
	}

	key := lockKey(date, startClock)
	acquired, err := s.locks.Lock(ctx, key, s.lockTTL)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("acquire slot lock: %w", err)
	}
	if !acquired {
		return model.Appointment{}, ErrSlotLocked
	}
	defer s.unlock(ctx, key)

	conflicts, err := s.store.FindOverlapping(ctx, start, end, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if len(conflicts) > 0 {
		return model.Appointment{}, ErrSlotTaken
	}

	updated, err := s.store.UpdateSchedule(ctx, id, start, end)
	if err != nil {
		return model.Appointment{}, s.mapNotFound(err)
	}
	s.slots.Invalidate(ctx, dateOf(appt))
	s.slots.Invalidate(ctx, date)
	s.logger.Info("appointment rescheduled", "id", id, "date", date, "start", startClock)
	return updated, nil
}

// AssignStaff sets the staff member responsible for the appointment.
func (s *Service) AssignStaff(ctx context.Context, actor Actor, id, staffID string) (model.Appointment, error) {
	if !Allowed(ActionAssign, actor.Role, false) {
		return model.Appointment{}, ErrForbidden
	}
	if strings.TrimSpace(staffID) == "" {
		return model.Appointment{}, invalidf("staffId is required")
	}
	updated, err := s.store.AssignStaff(ctx, id, staffID)
	if err != nil {
		return model.Appointment{}, s.mapNotFound(err)
	}
	return updated, nil
}

// Delete removes an appointment record entirely and frees its slot.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	if !Allowed(ActionDelete, actor.Role, false) {
		return ErrForbidden
	}
	appt, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.mapNotFound(err)
	}
	s.slots.Invalidate(ctx, dateOf(appt))
	return nil
}

func (s *Service) find(ctx context.Context, id string) (model.Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return model.Appointment{}, invalidf("id is required")
	}
	appt, err := s.store.FindByID(ctx, id)
	if err != nil {
		return model.Appointment{}, s.mapNotFound(err)
	}
	return appt, nil
}

func (s *Service) mapNotFound(err error) error {
	if storage.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (s *Service) unlock(ctx context.Context, key string) {
	if err := s.locks.Unlock(ctx, key); err != nil {
		s.logger.Warn("slot lock release failed", "key", key, "err", err)
	}
}

func parseWindow(date, startClock, endClock string) (time.Time, time.Time, error) {
	start, end, err := slots.Window(date, startClock, endClock)
	if err != nil {
		return time.Time{}, time.Time{}, invalidf("invalid date or time: use %s and %s", slots.DateLayout, slots.ClockLayout)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, invalidf("startTime must be before endTime")
	}
	return start, end, nil
}

func dateOf(appt model.Appointment) string {
	return appt.StartTime.UTC().Format(slots.DateLayout)
}

func belongsTo(appt model.Appointment, actor Actor) bool {
	if actor.Role == model.RoleStaff {
		return appt.StaffID != "" && appt.StaffID == actor.ID
	}
	return appt.CustomerID == actor.ID
}
