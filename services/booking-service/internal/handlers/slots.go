package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sartorlabs/sartor/services/booking-service/internal/slots"
)

// SlotHandler serves the public slot availability endpoints. No auth: the
// grid leaks nothing beyond which windows are free.
type SlotHandler struct {
	gen    *slots.Generator
	logger *slog.Logger
}

func NewSlotHandler(gen *slots.Generator, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{gen: gen, logger: logger}
}

func (h *SlotHandler) Day(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	grid, err := h.gen.DaySlots(r.Context(), date, r.URL.Query().Get("type"))
	if err != nil {
		if errors.Is(err, slots.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("slot grid failed", "date", date, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(grid)
}

func (h *SlotHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	date, start, end := q.Get("date"), q.Get("start"), q.Get("end")
	if date == "" || start == "" || end == "" {
		http.Error(w, "date, start and end are required", http.StatusBadRequest)
		return
	}
	free, err := h.gen.WindowFree(r.Context(), date, start, end)
	if err != nil {
		if errors.Is(err, slots.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("slot check failed", "date", date, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"available": free})
}
