package schedule

import "time"

// SlotStarts generates the candidate slot starts for a weekday, in minutes
// from midnight, ascending. Within each work interval the cursor advances by
// StepMinutes from the interval start; a start is emitted only while the full
// duration still fits inside that interval, so a long appointment near the
// end of the morning block is never offered even though a shorter one would
// be. Non-working days produce an empty list.
func (p *Policy) SlotStarts(wd time.Weekday, durationMinutes int) []int {
	if durationMinutes <= 0 {
		return nil
	}
	var starts []int
	for _, iv := range p.Intervals(wd) {
		for cursor := iv.StartMinute; cursor+durationMinutes <= iv.EndMinute; cursor += p.StepMinutes {
			starts = append(starts, cursor)
		}
	}
	return starts
}
