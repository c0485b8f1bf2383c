package slots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sartorlabs/sartor/libs/cache"
	"github.com/sartorlabs/sartor/services/booking-service/internal/model"
)

// ErrInvalidInput is returned when a date or clock value does not parse.
var ErrInvalidInput = errors.New("invalid date or time")

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	cacheKeyPrefix = "slots:"
)

// Source is the slice of the appointment store the generator reads from.
type Source interface {
	FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]model.Appointment, error)
}

type Config struct {
	OpenHour   int           // first bookable hour of day, UTC
	CloseHour  int           // end of business hours, exclusive
	SlotLength time.Duration
	CacheTTL   time.Duration
}

func (c Config) withDefaults() Config {
	if c.OpenHour <= 0 {
		c.OpenHour = 8
	}
	if c.CloseHour <= c.OpenHour {
		c.CloseHour = 18
	}
	if c.SlotLength <= 0 {
		c.SlotLength = time.Hour
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 60 * time.Second
	}
	return c
}

// Generator derives the bookable slot grid for a day from the appointment
// store, with a short-TTL cache in front. The cache is best-effort: any cache
// failure falls through to the store, so availability answers are never
// blocked on Redis.
type Generator struct {
	source Source
	cache  cache.Store
	logger *slog.Logger
	cfg    Config
}

func NewGenerator(source Source, cacheStore cache.Store, logger *slog.Logger, cfg Config) *Generator {
	return &Generator{
		source: source,
		cache:  cacheStore,
		logger: logger,
		cfg:    cfg.withDefaults(),
	}
}

// DaySlots returns the full ordered grid for one date. The optional type
// filter keys a separate cache entry but does not alter slot geometry.
func (g *Generator) DaySlots(ctx context.Context, date, slotType string) ([]model.Slot, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	key := cacheKeyPrefix + date
	if slotType != "" {
		key += ":" + slotType
	}

	if raw, ok, err := g.cache.Get(ctx, key); err != nil {
		g.logger.Warn("slot cache read failed", "err", err, "date", date)
	} else if ok {
		var cached []model.Slot
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
		g.logger.Warn("slot cache entry corrupt, regenerating", "date", date)
	}

	open := day.Add(time.Duration(g.cfg.OpenHour) * time.Hour)
	close := day.Add(time.Duration(g.cfg.CloseHour) * time.Hour)

	booked, err := g.source.FindOverlapping(ctx, open, close, "")
	if err != nil {
		return nil, err
	}

	var grid []model.Slot
	index := 0
	for slotStart := open; slotStart.Before(close); slotStart = slotStart.Add(g.cfg.SlotLength) {
		slotEnd := slotStart.Add(g.cfg.SlotLength)
		taken := false
		for _, appt := range booked {
			if appt.Overlaps(slotStart, slotEnd) {
				taken = true
				break
			}
		}
		grid = append(grid, model.Slot{
			ID:        fmt.Sprintf("slot_%d", index),
			Date:      date,
			StartTime: slotStart.Format(ClockLayout),
			EndTime:   slotEnd.Format(ClockLayout),
			Available: !taken,
		})
		index++
	}

	if raw, err := json.Marshal(grid); err == nil {
		if err := g.cache.Set(ctx, key, string(raw), g.cfg.CacheTTL); err != nil {
			g.logger.Warn("slot cache write failed", "err", err, "date", date)
		}
	}
	return grid, nil
}

// WindowFree reports whether an arbitrary candidate window (not bound to the
// fixed grid) is free of non-cancelled appointments. Always answered from the
// store, never the cache.
func (g *Generator) WindowFree(ctx context.Context, date, startClock, endClock string) (bool, error) {
	start, end, err := Window(date, startClock, endClock)
	if err != nil {
		return false, err
	}
	if !start.Before(end) {
		return false, nil
	}

	conflicts, err := g.source.FindOverlapping(ctx, start, end, "")
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Invalidate drops every cached grid for the date, including type-filtered
// variants. Call after any mutation that changes the day's availability.
func (g *Generator) Invalidate(ctx context.Context, date string) {
	if err := g.cache.DeleteByPrefix(ctx, cacheKeyPrefix+date); err != nil {
		g.logger.Warn("slot cache invalidation failed", "err", err, "date", date)
	}
}

// ParseDate parses a YYYY-MM-DD day into its UTC midnight instant.
func ParseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidInput, date)
	}
	return day, nil
}

// Window combines a date with HH:mm start/end clocks into UTC instants.
// Callers supply already-correct UTC wall-clock values; no timezone
// conversion happens here.
func Window(date, startClock, endClock string) (time.Time, time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := clockOn(day, startClock)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := clockOn(day, endClock)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func clockOn(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidInput, clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}
