package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/db"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/availability"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/model"
)

const (
	readAttempts  = 3
	retryBackoff  = 150 * time.Millisecond
	appointmentID = `id::text`
)

const appointmentColumns = `
	id, provider_id, patient_nif, patient_name, day, start_minute, duration_minutes,
	is_online, status, cancelled_at, COALESCE(cancel_reason, ''), created_at`

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// lockProviderDay serializes writers touching the same provider/day pair.
// The advisory lock is transaction-scoped, so it releases on commit or
// rollback; writers for other days or providers proceed in parallel.
func lockProviderDay(ctx context.Context, tx pgx.Tx, providerID string, day time.Time) error {
	key := fmt.Sprintf("%s|%s", providerID, day.Format("2006-01-02"))
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

// hasOverlap re-checks the requested range against scheduled appointments
// inside the locked transaction. Half-open comparison, so back-to-back
// appointments pass.
func hasOverlap(ctx context.Context, tx pgx.Tx, providerID string, day time.Time, startMinute, durationMinutes int, excludeID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1
				AND day = $2
				AND status = 'scheduled'
				AND ($5 = '' OR `+appointmentID+` <> $5)
				AND start_minute < $3 + $4
				AND start_minute + duration_minutes > $3
		)
	`, providerID, day, startMinute, durationMinutes, excludeID).Scan(&exists)
	return exists, err
}

// Create inserts a scheduled appointment after taking the provider/day lock
// and re-validating overlap. Returns availability.ErrSlotConflict when the
// slot was taken since the caller last looked; the table's exclusion
// constraint backstops the same rule at the storage level.
func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	if err := lockProviderDay(ctx, tx, appt.ProviderID, appt.Day); err != nil {
		return "", err
	}
	taken, err := hasOverlap(ctx, tx, appt.ProviderID, appt.Day, appt.StartMinute, appt.DurationMinutes, "")
	if err != nil {
		return "", err
	}
	if taken {
		return "", availability.ErrSlotConflict
	}

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(provider_id, patient_nif, patient_name, day, start_minute, duration_minutes, is_online, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, appt.ProviderID, appt.PatientNIF, appt.PatientName, appt.Day, appt.StartMinute,
		appt.DurationMinutes, appt.IsOnline, model.StatusScheduled).Scan(&id)
	if err != nil {
		if IsConflict(err) {
			return "", availability.ErrSlotConflict
		}
		return "", err
	}
	return id, nil
}

// Reschedule moves an appointment to a new day/start under the lock for the
// destination day, excluding the appointment itself from the overlap check so
// a move within the same day never collides with its own slot.
func (r *AppointmentRepository) Reschedule(ctx context.Context, tx pgx.Tx, id string, day time.Time, startMinute, durationMinutes int) (model.Appointment, error) {
	appt, err := r.GetForUpdate(ctx, tx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status != model.StatusScheduled {
		return model.Appointment{}, fmt.Errorf("appointment %s is %s, not scheduled", id, appt.Status)
	}

	if err := lockProviderDay(ctx, tx, appt.ProviderID, day); err != nil {
		return model.Appointment{}, err
	}
	taken, err := hasOverlap(ctx, tx, appt.ProviderID, day, startMinute, durationMinutes, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if taken {
		return model.Appointment{}, availability.ErrSlotConflict
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET day = $2, start_minute = $3, duration_minutes = $4
		WHERE id = $1
	`, id, day, startMinute, durationMinutes)
	if err != nil {
		if IsConflict(err) {
			return model.Appointment{}, availability.ErrSlotConflict
		}
		return model.Appointment{}, err
	}

	appt.Day = day
	appt.StartMinute = startMinute
	appt.DurationMinutes = durationMinutes
	return appt, nil
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	var appt model.Appointment
	err := r.withRetry(ctx, func() error {
		row := r.pool.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE id = $1
		`, id)
		var err error
		appt, err = scanAppointment(row)
		return err
	})
	return appt, err
}

func (r *AppointmentRepository) Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancel_reason = $2
		WHERE id = $1 AND status = 'scheduled'
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// ListScheduled returns the occupied ranges on a provider's day, ascending,
// satisfying availability.BookingSource. excludeID omits one appointment so
// a reschedule can treat its own slot as free.
func (r *AppointmentRepository) ListScheduled(ctx context.Context, providerID string, day time.Time, excludeID string) ([]availability.Busy, error) {
	var busy []availability.Busy
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT start_minute, duration_minutes
			FROM appointments
			WHERE provider_id = $1
				AND day = $2
				AND status = 'scheduled'
				AND ($3 = '' OR `+appointmentID+` <> $3)
			ORDER BY start_minute ASC
		`, providerID, day, excludeID)
		if err != nil {
			return err
		}
		defer rows.Close()

		busy = busy[:0]
		for rows.Next() {
			var start, duration int
			if err := rows.Scan(&start, &duration); err != nil {
				return err
			}
			busy = append(busy, availability.Busy{StartMinute: start, EndMinute: start + duration})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return busy, nil
}

// ListBetween returns appointments of any status in [from, to), optionally
// narrowed to one provider, for the calendar feed.
func (r *AppointmentRepository) ListBetween(ctx context.Context, from, to time.Time, providerID string) ([]model.Appointment, error) {
	var appts []model.Appointment
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE day >= $1 AND day < $2
				AND ($3 = '' OR provider_id = $3)
			ORDER BY day ASC, start_minute ASC
		`, from, to, providerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		appts = appts[:0]
		for rows.Next() {
			appt, err := scanAppointment(rows)
			if err != nil {
				return err
			}
			appts = append(appts, appt)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return appts, nil
}

type DayCounts struct {
	Total      int
	Online     int
	Presencial int
}

// CountOnDay tallies the day's scheduled appointments split by channel.
func (r *AppointmentRepository) CountOnDay(ctx context.Context, day time.Time) (DayCounts, error) {
	var c DayCounts
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(*),
				COUNT(*) FILTER (WHERE is_online),
				COUNT(*) FILTER (WHERE NOT is_online)
			FROM appointments
			WHERE day = $1 AND status = 'scheduled'
		`, day).Scan(&c.Total, &c.Online, &c.Presencial)
	})
	return c, err
}

// Upcoming returns the next scheduled appointments from a day forward.
func (r *AppointmentRepository) Upcoming(ctx context.Context, from time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 5
	}
	var appts []model.Appointment
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE status = 'scheduled' AND day >= $1
			ORDER BY day ASC, start_minute ASC
			LIMIT $2
		`, from, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		appts = appts[:0]
		for rows.Next() {
			appt, err := scanAppointment(rows)
			if err != nil {
				return err
			}
			appts = append(appts, appt)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return appts, nil
}

// withRetry reruns a read on transient failure. Reads feed advisory slot
// lists and dashboards, so a couple of quick retries beat surfacing a blip;
// writes never pass through here.
func (r *AppointmentRepository) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < readAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
		if err = op(); err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, context.Canceled) {
			return err
		}
	}
	return err
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.ProviderID,
		&appt.PatientNIF,
		&appt.PatientName,
		&appt.Day,
		&appt.StartMinute,
		&appt.DurationMinutes,
		&appt.IsOnline,
		&appt.Status,
		&cancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	return appt, nil
}

// IsConflict reports an exclusion constraint violation (23P01), the
// database-level backstop for double booking.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
