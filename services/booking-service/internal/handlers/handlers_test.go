package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sartorlabs/sartor/libs/auth"
	"github.com/sartorlabs/sartor/libs/cache"
	"github.com/sartorlabs/sartor/libs/httpx"
	"github.com/sartorlabs/sartor/services/booking-service/internal/booking"
	"github.com/sartorlabs/sartor/services/booking-service/internal/model"
	"github.com/sartorlabs/sartor/services/booking-service/internal/slots"
	"github.com/sartorlabs/sartor/services/booking-service/internal/storage"
)

const testSecret = "test-secret"

type memStore struct {
	mu    sync.Mutex
	appts map[string]model.Appointment
}

func (f *memStore) Create(_ context.Context, appt *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt.CreatedAt = time.Now().UTC()
	appt.UpdatedAt = appt.CreatedAt
	f.appts[appt.ID] = *appt
	return nil
}

func (f *memStore) FindByID(_ context.Context, id string) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return appt, nil
}

func (f *memStore) FindOverlapping(_ context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Appointment
	for _, a := range f.appts {
		if a.ID != excludeID && a.Status != model.StatusCancelled && a.Overlaps(start, end) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *memStore) List(_ context.Context, filter storage.Filter) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Appointment
	for _, a := range f.appts {
		if filter.CustomerID != "" && a.CustomerID != filter.CustomerID {
			continue
		}
		if filter.StaffID != "" && a.StaffID != filter.StaffID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *memStore) UpdateStatus(_ context.Context, id string, status model.Status) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, pgx.ErrNoRows
	}
	appt.Status = status
	f.appts[id] = appt
	return appt, nil
}

func (f *memStore) UpdateSchedule(_ context.Context, id string, start, end time.Time) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, pgx.ErrNoRows
	}
	appt.StartTime = start
	appt.EndTime = end
	f.appts[id] = appt
	return appt, nil
}

func (f *memStore) AssignStaff(_ context.Context, id, staffID string) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, pgx.ErrNoRows
	}
	appt.StaffID = staffID
	f.appts[id] = appt
	return appt, nil
}

func (f *memStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.appts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.appts, id)
	return nil
}

type memMeasurements struct {
	mu   sync.Mutex
	recs []model.MeasurementRecord
}

func (m *memMeasurements) Create(_ context.Context, rec *model.MeasurementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.CreatedAt = time.Now().UTC()
	m.recs = append(m.recs, *rec)
	return nil
}

func (m *memMeasurements) ListByCustomer(_ context.Context, customerID string) ([]model.MeasurementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MeasurementRecord
	for _, rec := range m.recs {
		if rec.CustomerID == customerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store := &memStore{appts: map[string]model.Appointment{}}
	mem := cache.NewMemoryStore()
	gen := slots.NewGenerator(store, mem, logger, slots.Config{})
	svc := booking.NewService(store, mem, gen, logger, time.Minute)

	slotHandler := NewSlotHandler(gen, logger)
	apptHandler := NewAppointmentHandler(svc, logger)
	measHandler := NewMeasurementHandler(&memMeasurements{}, logger)

	authed := RequireAuth(testSecret)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/public/slots", slotHandler.Day)
	mux.HandleFunc("/api/v1/public/slots/check", slotHandler.Check)
	mux.Handle("/api/v1/appointments", httpx.Chain(http.HandlerFunc(apptHandler.Collection), authed))
	mux.Handle("/api/v1/appointments/get", httpx.Chain(http.HandlerFunc(apptHandler.Get), authed))
	mux.Handle("/api/v1/appointments/status", httpx.Chain(http.HandlerFunc(apptHandler.UpdateStatus), authed))
	mux.Handle("/api/v1/appointments/cancel", httpx.Chain(http.HandlerFunc(apptHandler.Cancel), authed))
	mux.Handle("/api/v1/appointments/reschedule", httpx.Chain(http.HandlerFunc(apptHandler.Reschedule), authed))
	mux.Handle("/api/v1/appointments/assign", httpx.Chain(http.HandlerFunc(apptHandler.Assign), authed))
	mux.Handle("/api/v1/measurements", httpx.Chain(http.HandlerFunc(measHandler.Collection), authed))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, sub, email string, role model.Role) string {
	t.Helper()
	now := time.Now()
	tok, err := auth.SignHS256(auth.Claims{
		Sub:   sub,
		Email: email,
		Role:  string(role),
		Iat:   now.Unix(),
		Exp:   now.Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func do(t *testing.T, method, url, bearer, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeAppointment(t *testing.T, resp *http.Response) appointmentResponse {
	t.Helper()
	var out appointmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAuth_MissingAndInvalidToken(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/appointments", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/v1/appointments", "not-a-jwt", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d, want 401", resp.StatusCode)
	}
}

func TestPublicSlots_NoAuthNeeded(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/public/slots?date=2025-11-15", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var grid []model.Slot
	if err := json.NewDecoder(resp.Body).Decode(&grid); err != nil {
		t.Fatalf("decode grid: %v", err)
	}
	if len(grid) != 10 {
		t.Fatalf("expected 10 slots, got %d", len(grid))
	}
}

func TestBookingFlow_CreateConflictConfirmCancel(t *testing.T) {
	srv := newTestServer(t)
	cust := token(t, "cust-1", "cust-1@example.com", model.RoleCustomer)
	adm := token(t, "admin-1", "admin-1@example.com", model.RoleAdmin)

	body := `{"date":"2025-11-15","start_time":"10:00","end_time":"11:00","customer_name":"Ada Quilt"}`
	resp := do(t, http.MethodPost, srv.URL+"/api/v1/appointments", cust, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d, want 201", resp.StatusCode)
	}
	appt := decodeAppointment(t, resp)
	if appt.Status != string(model.StatusPending) {
		t.Fatalf("status %s, want PENDING", appt.Status)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/appointments", cust, body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double book: status %d, want 409", resp.StatusCode)
	}

	// The booked window shows up in the public availability check.
	resp = do(t, http.MethodGet, srv.URL+"/api/v1/public/slots/check?date=2025-11-15&start=10:00&end=11:00", "", "")
	var check map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&check); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	if check["available"] {
		t.Fatal("booked window reported available")
	}

	confirm := `{"appointment_id":"` + appt.AppointmentID + `","status":"CONFIRMED"}`
	resp = do(t, http.MethodPost, srv.URL+"/api/v1/appointments/status", cust, confirm)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer confirm: status %d, want 403", resp.StatusCode)
	}
	resp = do(t, http.MethodPost, srv.URL+"/api/v1/appointments/status", adm, confirm)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin confirm: status %d, want 200", resp.StatusCode)
	}

	complete := `{"appointment_id":"` + appt.AppointmentID + `","status":"PENDING"}`
	resp = do(t, http.MethodPost, srv.URL+"/api/v1/appointments/status", adm, complete)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("illegal transition: status %d, want 400", resp.StatusCode)
	}

	cancel := `{"appointment_id":"` + appt.AppointmentID + `"}`
	resp = do(t, http.MethodPost, srv.URL+"/api/v1/appointments/cancel", cust, cancel)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: status %d, want 200", resp.StatusCode)
	}
	if got := decodeAppointment(t, resp).Status; got != string(model.StatusCancelled) {
		t.Fatalf("status %s, want CANCELLED", got)
	}
}

func TestList_ScopedByRole(t *testing.T) {
	srv := newTestServer(t)
	cust1 := token(t, "cust-1", "cust-1@example.com", model.RoleCustomer)
	cust2 := token(t, "cust-2", "cust-2@example.com", model.RoleCustomer)
	adm := token(t, "admin-1", "admin-1@example.com", model.RoleAdmin)

	do(t, http.MethodPost, srv.URL+"/api/v1/appointments", cust1,
		`{"date":"2025-11-15","start_time":"09:00","end_time":"10:00","customer_name":"One"}`)
	do(t, http.MethodPost, srv.URL+"/api/v1/appointments", cust2,
		`{"date":"2025-11-15","start_time":"14:00","end_time":"15:00","customer_name":"Two"}`)

	var mine []appointmentResponse
	resp := do(t, http.MethodGet, srv.URL+"/api/v1/appointments", cust1, "")
	if err := json.NewDecoder(resp.Body).Decode(&mine); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(mine) != 1 || mine[0].CustomerID != "cust-1" {
		t.Fatalf("customer list not scoped: %+v", mine)
	}

	var all []appointmentResponse
	resp = do(t, http.MethodGet, srv.URL+"/api/v1/appointments", adm, "")
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin should see 2 appointments, got %d", len(all))
	}

	stf := token(t, "staff-1", "staff-1@example.com", model.RoleStaff)
	var unassigned []appointmentResponse
	resp = do(t, http.MethodGet, srv.URL+"/api/v1/appointments", stf, "")
	if err := json.NewDecoder(resp.Body).Decode(&unassigned); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(unassigned) != 0 {
		t.Fatalf("unassigned staff should see nothing, got %d", len(unassigned))
	}

	do(t, http.MethodPost, srv.URL+"/api/v1/appointments/assign", adm,
		fmt.Sprintf(`{"appointment_id":%q,"staff_id":"staff-1"}`, mine[0].AppointmentID))

	var assigned []appointmentResponse
	resp = do(t, http.MethodGet, srv.URL+"/api/v1/appointments", stf, "")
	if err := json.NewDecoder(resp.Body).Decode(&assigned); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(assigned) != 1 || assigned[0].AppointmentID != mine[0].AppointmentID {
		t.Fatalf("staff list not scoped to assignments: %+v", assigned)
	}
}

func TestDelete_AdminOnly(t *testing.T) {
	srv := newTestServer(t)
	cust := token(t, "cust-1", "cust-1@example.com", model.RoleCustomer)
	adm := token(t, "admin-1", "admin-1@example.com", model.RoleAdmin)

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/appointments", cust,
		`{"date":"2025-11-15","start_time":"10:00","end_time":"11:00","customer_name":"X"}`)
	appt := decodeAppointment(t, resp)

	resp = do(t, http.MethodDelete, srv.URL+"/api/v1/appointments?id="+appt.AppointmentID, cust, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer delete: status %d, want 403", resp.StatusCode)
	}
	resp = do(t, http.MethodDelete, srv.URL+"/api/v1/appointments?id="+appt.AppointmentID, adm, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("admin delete: status %d, want 204", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/v1/appointments/get?id="+appt.AppointmentID, adm, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted appointment fetch: status %d, want 404", resp.StatusCode)
	}
}

func TestMeasurements_CreateAndList(t *testing.T) {
	srv := newTestServer(t)
	cust := token(t, "cust-1", "cust-1@example.com", model.RoleCustomer)

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/measurements", cust,
		`{"name":"wedding suit","details":{"chest":102,"waist":86.5}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d, want 201", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/measurements", cust,
		`{"name":"bad","details":{"chest":"wide"}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-numeric measurement: status %d, want 400", resp.StatusCode)
	}

	var recs []measurementResponse
	resp = do(t, http.MethodGet, srv.URL+"/api/v1/measurements", cust, "")
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(recs) != 1 || recs[0].Details["chest"] != 102 {
		t.Fatalf("unexpected records: %+v", recs)
	}
}
