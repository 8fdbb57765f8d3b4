package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Lorvello/real-bookings-assistant-sub000/libs/db"
	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/schedule"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) CreateCalendar(ctx context.Context, tx pgx.Tx, timezone string, c schedule.BookingConstraints) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO calendars
			(id, timezone, buffer_before_minutes, buffer_after_minutes,
			 minimum_notice_value, minimum_notice_unit, booking_window_days, slot_interval_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, timezone,
		int(c.BufferBefore/time.Minute), int(c.BufferAfter/time.Minute),
		c.MinimumNoticeValue, string(c.MinimumNoticeUnit),
		c.BookingWindowDays, int(c.SlotInterval/time.Minute))
	if err != nil {
		return "", err
	}

	// Seed the default weekly schedule: Mon-Fri 09:00-17:00, weekend closed.
	defaultBlocks, err := json.Marshal([]schedule.TimeBlock{{
		Start: schedule.NewLocalTime(9, 0),
		End:   schedule.NewLocalTime(17, 0),
	}})
	if err != nil {
		return "", err
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		enabled := wd >= time.Monday && wd <= time.Friday
		blocks := defaultBlocks
		if !enabled {
			blocks = []byte("[]")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO calendar_weekly_hours (calendar_id, weekday, enabled, blocks)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (calendar_id, weekday) DO NOTHING
		`, id, int(wd), enabled, blocks); err != nil {
			return "", err
		}
	}
	return id, nil
}

// GetCalendar loads the full schedule snapshot (weekly hours, patterns,
// overrides) inside one read transaction so a resolution sees consistent
// state even while edits land concurrently.
func (r *Repository) GetCalendar(ctx context.Context, calendarID string) (*schedule.Calendar, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cal := &schedule.Calendar{ID: calendarID, Weekly: schedule.WeeklySchedule{}}
	var (
		bufferBeforeMins, bufferAfterMins, slotIntervalMins int
		noticeUnit                                          string
	)
	err = tx.QueryRow(ctx, `
		SELECT timezone, buffer_before_minutes, buffer_after_minutes,
			minimum_notice_value, minimum_notice_unit, booking_window_days, slot_interval_minutes
		FROM calendars
		WHERE id = $1
	`, calendarID).Scan(&cal.Timezone, &bufferBeforeMins, &bufferAfterMins,
		&cal.Constraints.MinimumNoticeValue, &noticeUnit,
		&cal.Constraints.BookingWindowDays, &slotIntervalMins)
	if err != nil {
		return nil, err
	}
	cal.Constraints.BufferBefore = time.Duration(bufferBeforeMins) * time.Minute
	cal.Constraints.BufferAfter = time.Duration(bufferAfterMins) * time.Minute
	cal.Constraints.SlotInterval = time.Duration(slotIntervalMins) * time.Minute
	cal.Constraints.MinimumNoticeUnit = schedule.NoticeUnit(noticeUnit)

	if err := r.loadWeeklyHours(ctx, tx, cal); err != nil {
		return nil, err
	}
	if err := r.loadPatterns(ctx, tx, cal); err != nil {
		return nil, err
	}
	if err := r.loadOverrides(ctx, tx, cal); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return cal, nil
}

func (r *Repository) loadWeeklyHours(ctx context.Context, tx pgx.Tx, cal *schedule.Calendar) error {
	rows, err := tx.Query(ctx, `
		SELECT weekday, enabled, blocks
		FROM calendar_weekly_hours
		WHERE calendar_id = $1
		ORDER BY weekday ASC
	`, cal.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			weekday int
			day     schedule.DayAvailability
			blocks  []byte
		)
		if err := rows.Scan(&weekday, &day.Enabled, &blocks); err != nil {
			return err
		}
		if len(blocks) > 0 {
			if err := json.Unmarshal(blocks, &day.Blocks); err != nil {
				return fmt.Errorf("weekday %d blocks: %w", weekday, err)
			}
		}
		cal.Weekly[time.Weekday(weekday)] = day
	}
	return rows.Err()
}

func (r *Repository) loadPatterns(ctx context.Context, tx pgx.Tx, cal *schedule.Calendar) error {
	rows, err := tx.Query(ctx, `
		SELECT id::text, type, name, start_date, end_date, is_active, schedule_data
		FROM recurring_patterns
		WHERE calendar_id = $1
		ORDER BY created_at ASC
	`, cal.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p       schedule.RecurringPattern
			typ     string
			start   time.Time
			end     *time.Time
			rawData []byte
		)
		if err := rows.Scan(&p.ID, &typ, &p.Name, &start, &end, &p.Active, &rawData); err != nil {
			return err
		}
		p.Type = schedule.PatternType(typ)
		p.StartDate = schedule.DateOf(start)
		if end != nil {
			d := schedule.DateOf(*end)
			p.EndDate = &d
		}
		if err := p.DecodeScheduleData(rawData); err != nil {
			return fmt.Errorf("pattern %s: %w", p.ID, err)
		}
		cal.Patterns = append(cal.Patterns, p)
	}
	return rows.Err()
}

func (r *Repository) loadOverrides(ctx context.Context, tx pgx.Tx, cal *schedule.Calendar) error {
	rows, err := tx.Query(ctx, `
		SELECT id::text, date, is_available, start_minute, end_minute, reason
		FROM date_overrides
		WHERE calendar_id = $1
		ORDER BY date ASC
	`, cal.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o        schedule.DateOverride
			date     time.Time
			startMin *int
			endMin   *int
			reason   *string
		)
		if err := rows.Scan(&o.ID, &date, &o.Available, &startMin, &endMin, &reason); err != nil {
			return err
		}
		o.Date = schedule.DateOf(date)
		if startMin != nil && endMin != nil {
			s := schedule.LocalTime(*startMin)
			e := schedule.LocalTime(*endMin)
			o.Start, o.End = &s, &e
		}
		if reason != nil {
			o.Reason = *reason
		}
		cal.Overrides = append(cal.Overrides, o)
	}
	return rows.Err()
}

func (r *Repository) UpsertWeeklyHours(ctx context.Context, tx pgx.Tx, calendarID string, weekday time.Weekday, day schedule.DayAvailability) error {
	if err := r.requireCalendar(ctx, tx, calendarID); err != nil {
		return err
	}
	blocks, err := json.Marshal(day.Blocks)
	if err != nil {
		return err
	}
	if day.Blocks == nil {
		blocks = []byte("[]")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO calendar_weekly_hours (calendar_id, weekday, enabled, blocks)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (calendar_id, weekday) DO UPDATE
		SET enabled = EXCLUDED.enabled,
			blocks = EXCLUDED.blocks,
			updated_at = now()
	`, calendarID, int(weekday), day.Enabled, blocks)
	return err
}

func (r *Repository) CreatePattern(ctx context.Context, tx pgx.Tx, calendarID string, p schedule.RecurringPattern) (string, error) {
	if err := r.requireCalendar(ctx, tx, calendarID); err != nil {
		return "", err
	}
	data, err := p.ScheduleData()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	var endDate *time.Time
	if p.EndDate != nil {
		t := time.Date(p.EndDate.Year, p.EndDate.Month, p.EndDate.Day, 0, 0, 0, 0, time.UTC)
		endDate = &t
	}
	startDate := time.Date(p.StartDate.Year, p.StartDate.Month, p.StartDate.Day, 0, 0, 0, 0, time.UTC)
	_, err = tx.Exec(ctx, `
		INSERT INTO recurring_patterns (id, calendar_id, type, name, start_date, end_date, is_active, schedule_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, calendarID, string(p.Type), p.Name, startDate, endDate, p.Active, data)
	if err != nil {
		return "", err
	}
	return id, nil
}

// PatternPatch carries the mutable pattern fields; nil means leave unchanged.
type PatternPatch struct {
	Name     *string
	Active   *bool
	EndDate  *schedule.Date
	ClearEnd bool
}

func (r *Repository) UpdatePattern(ctx context.Context, tx pgx.Tx, calendarID, patternID string, patch PatternPatch) error {
	var endDate *time.Time
	if patch.EndDate != nil {
		t := time.Date(patch.EndDate.Year, patch.EndDate.Month, patch.EndDate.Day, 0, 0, 0, 0, time.UTC)
		endDate = &t
	}
	tag, err := tx.Exec(ctx, `
		UPDATE recurring_patterns
		SET name = COALESCE($3, name),
			is_active = COALESCE($4, is_active),
			end_date = CASE WHEN $6 THEN NULL ELSE COALESCE($5, end_date) END,
			updated_at = now()
		WHERE calendar_id = $1 AND id = $2
	`, calendarID, patternID, patch.Name, patch.Active, endDate, patch.ClearEnd)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) DeletePattern(ctx context.Context, tx pgx.Tx, calendarID, patternID string) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM recurring_patterns
		WHERE calendar_id = $1 AND id = $2
	`, calendarID, patternID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) CreateOverride(ctx context.Context, tx pgx.Tx, calendarID string, o schedule.DateOverride) (string, error) {
	if err := r.requireCalendar(ctx, tx, calendarID); err != nil {
		return "", err
	}
	id := uuid.NewString()
	var startMin, endMin *int
	if o.Start != nil && o.End != nil {
		s, e := int(*o.Start), int(*o.End)
		startMin, endMin = &s, &e
	}
	date := time.Date(o.Date.Year, o.Date.Month, o.Date.Day, 0, 0, 0, 0, time.UTC)
	_, err := tx.Exec(ctx, `
		INSERT INTO date_overrides (id, calendar_id, date, is_available, start_minute, end_minute, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, calendarID, date, o.Available, startMin, endMin, o.Reason)
	if err != nil {
		// The (calendar_id, date) unique constraint backs the one-override-
		// per-date invariant.
		if IsConflict(err) {
			return "", schedule.ErrDuplicateOverride
		}
		return "", err
	}
	return id, nil
}

func (r *Repository) DeleteOverride(ctx context.Context, tx pgx.Tx, calendarID, overrideID string) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM date_overrides
		WHERE calendar_id = $1 AND id = $2
	`, calendarID, overrideID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListBookings returns the non-cancelled bookings overlapping [from, to).
// Bookings are written by the external booking subsystem; this service only
// reads them to exclude occupied time.
func (r *Repository) ListBookings(ctx context.Context, calendarID string, from, to time.Time) ([]schedule.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, start_time, end_time, status
		FROM bookings
		WHERE calendar_id = $1
			AND status <> 'cancelled'
			AND end_time > $2
			AND start_time < $3
		ORDER BY start_time ASC
	`, calendarID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Booking
	for rows.Next() {
		var b schedule.Booking
		if err := rows.Scan(&b.ID, &b.Start, &b.End, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) requireCalendar(ctx context.Context, tx pgx.Tx, calendarID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM calendars WHERE id = $1)
	`, calendarID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}
	return nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
