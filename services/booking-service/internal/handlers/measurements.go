package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sartorlabs/sartor/services/booking-service/internal/model"
)

// MeasurementStore is the persistence surface for measurement records.
type MeasurementStore interface {
	Create(ctx context.Context, rec *model.MeasurementRecord) error
	ListByCustomer(ctx context.Context, customerID string) ([]model.MeasurementRecord, error)
}

// MeasurementHandler serves customer body-measurement records. Records are
// always scoped to the acting customer; staff and admin read them through
// the same endpoint with an explicit customer_id.
type MeasurementHandler struct {
	store  MeasurementStore
	logger *slog.Logger
}

func NewMeasurementHandler(store MeasurementStore, logger *slog.Logger) *MeasurementHandler {
	return &MeasurementHandler{store: store, logger: logger}
}

type createMeasurementRequest struct {
	Name    string             `json:"name"`
	Details model.Measurements `json:"details"`
}

type measurementResponse struct {
	MeasurementID string             `json:"measurement_id"`
	Name          string             `json:"name"`
	Details       model.Measurements `json:"details"`
	CreatedAt     string             `json:"created_at"`
}

func toMeasurementResponse(rec model.MeasurementRecord) measurementResponse {
	return measurementResponse{
		MeasurementID: rec.ID,
		Name:          rec.Name,
		Details:       rec.Details,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *MeasurementHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *MeasurementHandler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req createMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid measurement body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Details) == 0 {
		http.Error(w, "name and details are required", http.StatusBadRequest)
		return
	}

	rec := model.MeasurementRecord{
		ID:         uuid.NewString(),
		CustomerID: actor.ID,
		Name:       req.Name,
		Details:    req.Details,
	}
	if err := h.store.Create(r.Context(), &rec); err != nil {
		h.logger.Error("measurement create failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toMeasurementResponse(rec))
}

func (h *MeasurementHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	customerID := actor.ID
	if other := r.URL.Query().Get("customer_id"); other != "" && other != actor.ID {
		if actor.Role == model.RoleCustomer {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		customerID = other
	}
	recs, err := h.store.ListByCustomer(r.Context(), customerID)
	if err != nil {
		h.logger.Error("measurement list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]measurementResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toMeasurementResponse(rec))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
