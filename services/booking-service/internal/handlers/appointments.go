package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sartorlabs/sartor/services/booking-service/internal/booking"
	"github.com/sartorlabs/sartor/services/booking-service/internal/model"
	"github.com/sartorlabs/sartor/services/booking-service/internal/slots"
	"github.com/sartorlabs/sartor/services/booking-service/internal/storage"
)

type AppointmentHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewAppointmentHandler(svc *booking.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

type createAppointmentRequest struct {
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	CustomerName string `json:"customer_name"`
	Notes        string `json:"notes"`
}

type updateStatusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type assignRequest struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
}

type appointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	StaffID       string `json:"staff_id,omitempty"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		AppointmentID: a.ID,
		CustomerID:    a.CustomerID,
		CustomerName:  a.CustomerName,
		StaffID:       a.StaffID,
		StartTime:     a.StartTime.UTC().Format(time.RFC3339),
		EndTime:       a.EndTime.UTC().Format(time.RFC3339),
		Status:        string(a.Status),
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Collection routes /api/v1/appointments: POST creates, GET lists,
// DELETE removes by id.
func (h *AppointmentHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AppointmentHandler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	appt, err := h.svc.Create(r.Context(), actor, booking.CreateInput{
		Date:         strings.TrimSpace(req.Date),
		StartTime:    strings.TrimSpace(req.StartTime),
		EndTime:      strings.TrimSpace(req.EndTime),
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toResponse(appt))
}

func (h *AppointmentHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	q := r.URL.Query()
	var f storage.Filter
	if s := q.Get("status"); s != "" {
		status, ok := model.ParseStatus(s)
		if !ok {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		f.Status = status
	}
	if s := q.Get("staff_id"); s != "" {
		f.StaffID = s
	}
	if s := q.Get("from"); s != "" {
		day, err := slots.ParseDate(s)
		if err != nil {
			http.Error(w, "invalid from date", http.StatusBadRequest)
			return
		}
		f.From = day
	}
	if s := q.Get("to"); s != "" {
		day, err := slots.ParseDate(s)
		if err != nil {
			http.Error(w, "invalid to date", http.StatusBadRequest)
			return
		}
		// Inclusive end date.
		f.To = day.AddDate(0, 0, 1)
	}
	appts, err := h.svc.List(r.Context(), actor, f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toResponse(a))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *AppointmentHandler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := h.svc.Delete(r.Context(), actor, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	appt, err := h.svc.Get(r.Context(), actor, r.URL.Query().Get("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toResponse(appt))
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := decodePost[updateStatusRequest](w, r)
	if !ok {
		return
	}
	status, valid := model.ParseStatus(req.Status)
	if !valid {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	appt, err := h.svc.UpdateStatus(r.Context(), actor, req.AppointmentID, status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toResponse(appt))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := decodePost[cancelRequest](w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Cancel(r.Context(), actor, req.AppointmentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toResponse(appt))
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := decodePost[rescheduleRequest](w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Reschedule(r.Context(), actor, req.AppointmentID,
		strings.TrimSpace(req.Date), strings.TrimSpace(req.StartTime), strings.TrimSpace(req.EndTime))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toResponse(appt))
}

func (h *AppointmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := decodePost[assignRequest](w, r)
	if !ok {
		return
	}
	appt, err := h.svc.AssignStaff(r.Context(), actor, req.AppointmentID, strings.TrimSpace(req.StaffID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toResponse(appt))
}

func decodePost[T any](w http.ResponseWriter, r *http.Request) (booking.Actor, T, bool) {
	var req T
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return booking.Actor{}, req, false
	}
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return booking.Actor{}, req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return booking.Actor{}, req, false
	}
	return actor, req, true
}

func (h *AppointmentHandler) writeError(w http.ResponseWriter, err error) {
	var verr *booking.ValidationError
	var terr *booking.TransitionError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Msg, http.StatusBadRequest)
	case errors.As(err, &terr):
		http.Error(w, terr.Error(), http.StatusBadRequest)
	case errors.Is(err, slots.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, booking.ErrSlotLocked), errors.Is(err, booking.ErrSlotTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, booking.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error("appointment request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
