package availability

import (
	"context"
	"time"

	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/schedule"
)

// Busy is an occupied range on a provider's day, minutes from midnight,
// half-open [StartMinute, EndMinute).
type Busy struct {
	StartMinute int
	EndMinute   int
}

// Overlaps reports whether [start, end) intersects the busy range. Both
// ranges are half-open, so back-to-back appointments do not collide.
func (b Busy) Overlaps(start, end int) bool {
	return start < b.EndMinute && b.StartMinute < end
}

// BookingSource lists the scheduled appointments that block slots on a
// provider's day. excludeID, when non-empty, omits one appointment so a
// reschedule does not collide with itself.
type BookingSource interface {
	ListScheduled(ctx context.Context, providerID string, day time.Time, excludeID string) ([]Busy, error)
}

// Directory answers whether a provider exists.
type Directory interface {
	ProviderExists(ctx context.Context, providerID string) (bool, error)
}

// Request describes one availability question: which provider, which day,
// how long an appointment, and optionally an appointment to ignore (its own
// slot reads as free during a reschedule). Online is carried so channel-aware
// stores can narrow what counts as busy; the default store blocks a taken
// slot for both channels.
type Request struct {
	ProviderID      string
	Day             time.Time
	DurationMinutes int
	Online          bool
	IgnoreID        string
}

// Resolver computes the free slots of a provider's day: the policy's
// candidate starts minus the ones that overlap a scheduled appointment or
// have already passed. The result is advisory; the storage write path
// re-validates under a lock before committing.
type Resolver struct {
	policy *schedule.Policy
	source BookingSource
	dir    Directory
	now    func() time.Time
}

func NewResolver(policy *schedule.Policy, source BookingSource, dir Directory) *Resolver {
	return &Resolver{policy: policy, source: source, dir: dir, now: time.Now}
}

// Resolve returns the free slot starts as "HH:MM" strings, ascending. An
// unknown provider is a NotFoundError, bad input a ValidationError, and a
// store failure an UpstreamError; a valid day with nothing free returns an
// empty (non-nil) slice.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]string, error) {
	if req.ProviderID == "" {
		return nil, &ValidationError{Field: "provider", Reason: "is required"}
	}
	if req.Day.IsZero() {
		return nil, &ValidationError{Field: "data", Reason: "is required"}
	}
	if req.DurationMinutes <= 0 {
		return nil, &ValidationError{Field: "duracao", Reason: "must be positive"}
	}

	ok, err := r.dir.ProviderExists(ctx, req.ProviderID)
	if err != nil {
		return nil, &UpstreamError{Op: "check provider", Err: err}
	}
	if !ok {
		return nil, &NotFoundError{Resource: "provider", ID: req.ProviderID}
	}

	free := make([]string, 0, 8)

	candidates := r.policy.SlotStarts(req.Day.Weekday(), req.DurationMinutes)
	if len(candidates) == 0 {
		return free, nil
	}

	// One snapshot of the day's bookings for the whole resolve, so every
	// candidate is judged against the same state.
	busy, err := r.source.ListScheduled(ctx, req.ProviderID, req.Day, req.IgnoreID)
	if err != nil {
		return nil, &UpstreamError{Op: "list bookings", Err: err}
	}

	cutoff, applyCutoff := r.dayCutoff(req.Day)

	for _, start := range candidates {
		if applyCutoff {
			if r.policy.Cutoff == schedule.CutoffInclusive && start <= cutoff {
				continue
			}
			if r.policy.Cutoff == schedule.CutoffExclusive && start < cutoff {
				continue
			}
		}
		if overlapsAny(busy, start, start+req.DurationMinutes) {
			continue
		}
		free = append(free, schedule.FormatMinutes(start))
	}
	return free, nil
}

// dayCutoff returns the current minute of day when req.Day is today in the
// policy timezone. Past days are fully cut (every start compares below the
// sentinel); future days are never cut.
func (r *Resolver) dayCutoff(day time.Time) (int, bool) {
	now := r.now().In(r.policy.Location)
	today := r.policy.Today(now)
	d := day.In(r.policy.Location)
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.policy.Location)

	switch {
	case dayStart.Before(today):
		return 24 * 60, true
	case dayStart.After(today):
		return 0, false
	default:
		return now.Hour()*60 + now.Minute(), true
	}
}

func overlapsAny(busy []Busy, start, end int) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
