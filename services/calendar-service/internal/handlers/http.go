package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/cache"
	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/outbox"
	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/schedule"
	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxRangeDays caps how much availability one request may resolve.
const maxRangeDays = 366

type CalendarHandler struct {
	repo       *storage.Repository
	outboxRepo *outbox.Repository
	cache      *cache.AvailabilityCache
	logger     *slog.Logger
}

func NewCalendarHandler(repo *storage.Repository, outboxRepo *outbox.Repository, availCache *cache.AvailabilityCache, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		cache:      availCache,
		logger:     logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, schedule.ErrInvalidTimeBlock):
		return "invalid_time_block"
	case errors.Is(err, schedule.ErrOverlappingTimeBlock):
		return "overlapping_time_block"
	case errors.Is(err, schedule.ErrDuplicateOverride):
		return "duplicate_override"
	case errors.Is(err, schedule.ErrAmbiguousLocalTime):
		return "ambiguous_local_time"
	case errors.Is(err, schedule.ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, schedule.ErrPatternDateRange):
		return "pattern_date_range_invalid"
	default:
		return ""
	}
}

func writeValidationError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: errorKind(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type createCalendarRequest struct {
	Timezone            string `json:"timezone"`
	BufferBeforeMinutes int    `json:"buffer_before_minutes"`
	BufferAfterMinutes  int    `json:"buffer_after_minutes"`
	MinimumNoticeValue  int    `json:"minimum_notice_value"`
	MinimumNoticeUnit   string `json:"minimum_notice_unit"`
	BookingWindowDays   int    `json:"booking_window_days"`
	SlotIntervalMinutes int    `json:"slot_interval_minutes"`
}

func (h *CalendarHandler) CreateCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return
	}
	if req.BufferBeforeMinutes < 0 || req.BufferAfterMinutes < 0 ||
		req.MinimumNoticeValue < 0 || req.BookingWindowDays < 0 || req.SlotIntervalMinutes < 0 {
		http.Error(w, "constraints must not be negative", http.StatusBadRequest)
		return
	}
	unit := schedule.NoticeUnit(strings.TrimSpace(req.MinimumNoticeUnit))
	if unit == "" {
		unit = schedule.NoticeMinutes
	}
	switch unit {
	case schedule.NoticeMinutes, schedule.NoticeHours, schedule.NoticeDays, schedule.NoticeWeeks:
	default:
		http.Error(w, "invalid minimum_notice_unit", http.StatusBadRequest)
		return
	}

	constraints := schedule.BookingConstraints{
		BufferBefore:       time.Duration(req.BufferBeforeMinutes) * time.Minute,
		BufferAfter:        time.Duration(req.BufferAfterMinutes) * time.Minute,
		MinimumNoticeValue: req.MinimumNoticeValue,
		MinimumNoticeUnit:  unit,
		BookingWindowDays:  req.BookingWindowDays,
		SlotInterval:       time.Duration(req.SlotIntervalMinutes) * time.Minute,
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateCalendar(ctx, tx, req.Timezone, constraints)
	if err != nil {
		http.Error(w, "failed to create calendar", http.StatusInternalServerError)
		return
	}
	payload, err := json.Marshal(map[string]any{
		"calendar_id": id,
		"timezone":    req.Timezone,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "calendar",
		AggregateID:   id,
		EventType:     outbox.EventCalendarCreated,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"calendar_id": id})
}

type dayAvailabilityView struct {
	Enabled    bool                 `json:"enabled"`
	TimeBlocks []schedule.TimeBlock `json:"time_blocks"`
}

func (h *CalendarHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	calendarID := strings.TrimSpace(r.URL.Query().Get("calendar_id"))
	if calendarID == "" {
		http.Error(w, "calendar_id required", http.StatusBadRequest)
		return
	}

	cal, err := h.repo.GetCalendar(r.Context(), calendarID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "calendar not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load calendar", http.StatusInternalServerError)
		return
	}

	weekly := make(map[string]dayAvailabilityView, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		day := cal.Weekly[wd]
		blocks := day.Blocks
		if blocks == nil {
			blocks = []schedule.TimeBlock{}
		}
		weekly[strings.ToLower(wd.String())] = dayAvailabilityView{Enabled: day.Enabled, TimeBlocks: blocks}
	}
	patterns := cal.Patterns
	if patterns == nil {
		patterns = []schedule.RecurringPattern{}
	}
	overrides := cal.Overrides
	if overrides == nil {
		overrides = []schedule.DateOverride{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"calendar_id": cal.ID,
		"timezone":    cal.Timezone,
		"constraints": map[string]any{
			"buffer_before_minutes": int(cal.Constraints.BufferBefore / time.Minute),
			"buffer_after_minutes":  int(cal.Constraints.BufferAfter / time.Minute),
			"minimum_notice_value":  cal.Constraints.MinimumNoticeValue,
			"minimum_notice_unit":   string(cal.Constraints.MinimumNoticeUnit),
			"booking_window_days":   cal.Constraints.BookingWindowDays,
			"slot_interval_minutes": int(cal.Constraints.SlotInterval / time.Minute),
		},
		"weekly_schedule": weekly,
		"patterns":        patterns,
		"overrides":       overrides,
	})
}

type upsertScheduleRequest struct {
	CalendarID string               `json:"calendar_id"`
	Weekday    string               `json:"weekday"`
	Enabled    bool                 `json:"enabled"`
	TimeBlocks []schedule.TimeBlock `json:"time_blocks"`
}

func (h *CalendarHandler) UpsertSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req upsertScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CalendarID = strings.TrimSpace(req.CalendarID)
	if req.CalendarID == "" {
		http.Error(w, "calendar_id required", http.StatusBadRequest)
		return
	}
	weekday, err := schedule.ParseWeekday(req.Weekday)
	if err != nil {
		http.Error(w, "invalid weekday", http.StatusBadRequest)
		return
	}

	// Validate the full resulting day before anything is committed; a bad
	// block rejects only this edit, not unrelated days.
	if err := schedule.ValidateBlocks(req.TimeBlocks); err != nil {
		writeValidationError(w, http.StatusUnprocessableEntity, err)
		return
	}
	for i := range req.TimeBlocks {
		if strings.TrimSpace(req.TimeBlocks[i].ID) == "" {
			req.TimeBlocks[i].ID = uuid.NewString()
		}
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	day := schedule.DayAvailability{Enabled: req.Enabled, Blocks: req.TimeBlocks}
	if err := h.repo.UpsertWeeklyHours(ctx, tx, req.CalendarID, weekday, day); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "calendar not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update schedule", http.StatusInternalServerError)
		return
	}
	if err := h.insertScheduleEvent(r, tx, req.CalendarID, outbox.EventScheduleUpdated, map[string]any{
		"calendar_id": req.CalendarID,
		"weekday":     strings.ToLower(weekday.String()),
		"enabled":     req.Enabled,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.cache.Bump(ctx, req.CalendarID)
	writeJSON(w, http.StatusOK, map[string]any{"calendar_id": req.CalendarID, "weekday": strings.ToLower(weekday.String())})
}

func (h *CalendarHandler) CreatePattern(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	var scoped struct {
		CalendarID string `json:"calendar_id"`
	}
	if err := json.Unmarshal(body, &scoped); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	scoped.CalendarID = strings.TrimSpace(scoped.CalendarID)
	if scoped.CalendarID == "" {
		http.Error(w, "calendar_id required", http.StatusBadRequest)
		return
	}

	var pattern schedule.RecurringPattern
	if err := json.Unmarshal(body, &pattern); err != nil {
		http.Error(w, fmt.Sprintf("invalid pattern: %v", err), http.StatusBadRequest)
		return
	}
	if err := pattern.Validate(); err != nil {
		writeValidationError(w, http.StatusUnprocessableEntity, err)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreatePattern(ctx, tx, scoped.CalendarID, pattern)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "calendar not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to create pattern", http.StatusInternalServerError)
		return
	}
	if err := h.insertScheduleEvent(r, tx, scoped.CalendarID, outbox.EventPatternChanged, map[string]any{
		"calendar_id": scoped.CalendarID,
		"pattern_id":  id,
		"action":      "created",
		"type":        string(pattern.Type),
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.cache.Bump(ctx, scoped.CalendarID)
	writeJSON(w, http.StatusCreated, map[string]string{"pattern_id": id})
}

type updatePatternRequest struct {
	CalendarID   string  `json:"calendar_id"`
	PatternID    string  `json:"pattern_id"`
	Name         *string `json:"name,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
	EndDate      *string `json:"end_date,omitempty"`
	ClearEndDate bool    `json:"clear_end_date,omitempty"`
}

func (h *CalendarHandler) UpdatePattern(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updatePatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CalendarID = strings.TrimSpace(req.CalendarID)
	req.PatternID = strings.TrimSpace(req.PatternID)
	if req.CalendarID == "" || req.PatternID == "" {
		http.Error(w, "calendar_id and pattern_id required", http.StatusBadRequest)
		return
	}

	patch := storage.PatternPatch{Name: req.Name, Active: req.IsActive, ClearEnd: req.ClearEndDate}
	if req.EndDate != nil {
		d, err := schedule.ParseDate(*req.EndDate)
		if err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}
		patch.EndDate = &d
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpdatePattern(ctx, tx, req.CalendarID, req.PatternID, patch); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "pattern not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update pattern", http.StatusInternalServerError)
		return
	}
	if err := h.insertScheduleEvent(r, tx, req.CalendarID, outbox.EventPatternChanged, map[string]any{
		"calendar_id": req.CalendarID,
		"pattern_id":  req.PatternID,
		"action":      "updated",
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.cache.Bump(ctx, req.CalendarID)
	writeJSON(w, http.StatusOK, map[string]string{"pattern_id": req.PatternID})
}

type deleteEntityRequest struct {
	CalendarID string `json:"calendar_id"`
	PatternID  string `json:"pattern_id,omitempty"`
	OverrideID string `json:"override_id,omitempty"`
}

func (h *CalendarHandler) DeletePattern(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CalendarID = strings.TrimSpace(req.CalendarID)
	req.PatternID = strings.TrimSpace(req.PatternID)
	if req.CalendarID == "" || req.PatternID == "" {
		http.Error(w, "calendar_id and pattern_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.DeletePattern(ctx, tx, req.CalendarID, req.PatternID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "pattern not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete pattern", http.StatusInternalServerError)
		return
	}
	if err := h.insertScheduleEvent(r, tx, req.CalendarID, outbox.EventPatternChanged, map[string]any{
		"calendar_id": req.CalendarID,
		"pattern_id":  req.PatternID,
		"action":      "deleted",
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.cache.Bump(ctx, req.CalendarID)
	w.WriteHeader(http.StatusNoContent)
}

type createOverrideRequest struct {
	CalendarID  string `json:"calendar_id"`
	Date        string `json:"date"`
	IsAvailable bool   `json:"is_available"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (h *CalendarHandler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CalendarID = strings.TrimSpace(req.CalendarID)
	if req.CalendarID == "" {
		http.Error(w, "calendar_id required", http.StatusBadRequest)
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	override := schedule.DateOverride{
		Date:      date,
		Available: req.IsAvailable,
		Reason:    strings.TrimSpace(req.Reason),
	}
	if strings.TrimSpace(req.StartTime) != "" || strings.TrimSpace(req.EndTime) != "" {
		start, err := schedule.ParseLocalTime(req.StartTime)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		end, err := schedule.ParseLocalTime(req.EndTime)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return
		}
		override.Start, override.End = &start, &end
	}
	if err := override.Validate(); err != nil {
		writeValidationError(w, http.StatusUnprocessableEntity, err)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateOverride(ctx, tx, req.CalendarID, override)
	if err != nil {
		if errors.Is(err, schedule.ErrDuplicateOverride) {
			writeValidationError(w, http.StatusConflict, err)
			return
		}
		if storage.IsNotFound(err) {
			http.Error(w, "calendar not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to create override", http.StatusInternalServerError)
		return
	}
	if err := h.insertScheduleEvent(r, tx, req.CalendarID, outbox.EventOverrideChanged, map[string]any{
		"calendar_id":  req.CalendarID,
		"override_id":  id,
		"date":         date.String(),
		"is_available": req.IsAvailable,
		"action":       "created",
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.cache.Bump(ctx, req.CalendarID)
	writeJSON(w, http.StatusCreated, map[string]string{"override_id": id})
}

func (h *CalendarHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CalendarID = strings.TrimSpace(req.CalendarID)
	req.OverrideID = strings.TrimSpace(req.OverrideID)
	if req.CalendarID == "" || req.OverrideID == "" {
		http.Error(w, "calendar_id and override_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.DeleteOverride(ctx, tx, req.CalendarID, req.OverrideID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "override not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete override", http.StatusInternalServerError)
		return
	}
	if err := h.insertScheduleEvent(r, tx, req.CalendarID, outbox.EventOverrideChanged, map[string]any{
		"calendar_id": req.CalendarID,
		"override_id": req.OverrideID,
		"action":      "deleted",
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.cache.Bump(ctx, req.CalendarID)
	w.WriteHeader(http.StatusNoContent)
}

type intervalView struct {
	StartUTC string `json:"start_utc"`
	EndUTC   string `json:"end_utc"`
}

func intervalViews(in []schedule.Interval) []intervalView {
	out := make([]intervalView, 0, len(in))
	for _, iv := range in {
		out = append(out, intervalView{
			StartUTC: iv.Start.UTC().Format(time.RFC3339),
			EndUTC:   iv.End.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// Availability resolves the open intervals per date in the requested range.
func (h *CalendarHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	calendarID, from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	cacheKey := "resolve:" + from.String() + ":" + to.String()
	if payload, hit := h.cache.Get(r.Context(), calendarID, cacheKey); hit {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
		return
	}

	cal, err := h.repo.GetCalendar(r.Context(), calendarID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "calendar not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load calendar", http.StatusInternalServerError)
		return
	}

	days, err := schedule.Resolve(cal, from, to)
	if err != nil {
		if kind := errorKind(err); kind != "" {
			writeValidationError(w, http.StatusUnprocessableEntity, err)
			return
		}
		h.logger.Error("availability resolution failed", "err", err, "calendar_id", calendarID)
		http.Error(w, "failed to resolve availability", http.StatusInternalServerError)
		return
	}

	resp := make(map[string][]intervalView, len(days))
	for _, day := range days {
		resp[day.Date.String()] = intervalViews(day.Intervals)
	}
	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	h.cache.Set(r.Context(), calendarID, cacheKey, body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Slots resolves availability, subtracts existing bookings, and slices the
// rest into bookable slots.
func (h *CalendarHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	calendarID, from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	durationMins := 30
	if raw := strings.TrimSpace(r.URL.Query().Get("service_duration_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 8*60 {
			http.Error(w, "invalid service_duration_minutes", http.StatusBadRequest)
			return
		}
		durationMins = n
	}

	// Slot output depends on now (notice and window cutoffs), so the cache
	// TTL bounds how stale those cutoffs can be. Booking events bump the
	// version, so occupied time never goes stale past the consumer lag.
	cacheKey := fmt.Sprintf("slots:%s:%s:%d", from, to, durationMins)
	if payload, hit := h.cache.Get(r.Context(), calendarID, cacheKey); hit {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
		return
	}

	cal, err := h.repo.GetCalendar(r.Context(), calendarID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "calendar not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load calendar", http.StatusInternalServerError)
		return
	}

	days, err := schedule.Resolve(cal, from, to)
	if err != nil {
		if kind := errorKind(err); kind != "" {
			writeValidationError(w, http.StatusUnprocessableEntity, err)
			return
		}
		h.logger.Error("availability resolution failed", "err", err, "calendar_id", calendarID)
		http.Error(w, "failed to resolve availability", http.StatusInternalServerError)
		return
	}

	var open []schedule.Interval
	for _, day := range days {
		open = append(open, day.Intervals...)
	}

	var bookings []schedule.Booking
	if len(open) > 0 {
		windowStart, windowEnd := open[0].Start, open[len(open)-1].End
		bookings, err = h.repo.ListBookings(r.Context(), calendarID, windowStart, windowEnd)
		if err != nil {
			http.Error(w, "failed to load bookings", http.StatusInternalServerError)
			return
		}
	}

	slots, err := schedule.GenerateSlots(open, time.Duration(durationMins)*time.Minute, cal.Constraints, bookings, time.Now().UTC())
	if err != nil {
		writeValidationError(w, http.StatusUnprocessableEntity, err)
		return
	}
	body, err := json.Marshal(intervalViews(slots))
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	h.cache.Set(r.Context(), calendarID, cacheKey, body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *CalendarHandler) parseRange(w http.ResponseWriter, r *http.Request) (string, schedule.Date, schedule.Date, bool) {
	calendarID := strings.TrimSpace(r.URL.Query().Get("calendar_id"))
	startStr := strings.TrimSpace(r.URL.Query().Get("start"))
	endStr := strings.TrimSpace(r.URL.Query().Get("end"))
	if calendarID == "" || startStr == "" || endStr == "" {
		http.Error(w, "calendar_id, start, and end are required", http.StatusBadRequest)
		return "", schedule.Date{}, schedule.Date{}, false
	}
	from, err := schedule.ParseDate(startStr)
	if err != nil {
		http.Error(w, "invalid start date", http.StatusBadRequest)
		return "", schedule.Date{}, schedule.Date{}, false
	}
	to, err := schedule.ParseDate(endStr)
	if err != nil {
		http.Error(w, "invalid end date", http.StatusBadRequest)
		return "", schedule.Date{}, schedule.Date{}, false
	}
	if to.Before(from) {
		http.Error(w, "end must not be before start", http.StatusBadRequest)
		return "", schedule.Date{}, schedule.Date{}, false
	}
	if to.DaysSince(from) >= maxRangeDays {
		http.Error(w, fmt.Sprintf("range too large (max %d days)", maxRangeDays), http.StatusBadRequest)
		return "", schedule.Date{}, schedule.Date{}, false
	}
	return calendarID, from, to, true
}

func (h *CalendarHandler) insertScheduleEvent(r *http.Request, tx pgx.Tx, calendarID, eventType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(r.Context(), tx, outbox.Event{
		AggregateType: "calendar",
		AggregateID:   calendarID,
		EventType:     eventType,
		Payload:       body,
	})
}
