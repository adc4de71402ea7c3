// Package calendar derives per-month compliance status for inspection
// templates and compliance documents. Everything here is pure: no I/O, no
// clock reads, deterministic for a given input set and "now".
package calendar

import (
	"fmt"
	"time"

	"propcheck/internal/domain"
)

// DueWindowDays is the inclusive look-ahead window for the "due" status.
// A business constant, not derived from the report year.
const DueWindowDays = 30

const dateLayout = "2006-01-02"

// MonthBucket counts the inspection instances of one template falling in one
// calendar month. Counting only; classification happens in ResolveMonth.
type MonthBucket struct {
	Count          int
	CompletedCount int
	OverdueCount   int
	DueCount       int
}

// Bucket filters instances to templateID and scheduled year, then groups them
// into 12 month buckets. OverdueCount counts instances scheduled strictly
// before now's date and not completed; DueCount counts non-completed
// instances scheduled within [now, now+DueWindowDays].
func Bucket(instances []domain.InspectionInstance, templateID string, year int, now time.Time) ([12]MonthBucket, error) {
	var buckets [12]MonthBucket
	today := dateOnly(now)
	dueLimit := today.AddDate(0, 0, DueWindowDays)
	for _, in := range instances {
		if in.TemplateID != templateID {
			continue
		}
		sched, err := time.Parse(dateLayout, in.ScheduledDate)
		if err != nil {
			return buckets, fmt.Errorf("instance %s: invalid scheduled_date %q: %w", in.ID, in.ScheduledDate, err)
		}
		if sched.Year() != year {
			continue
		}
		m := int(sched.Month()) - 1
		buckets[m].Count++
		if in.Status == domain.InspectionCompleted {
			buckets[m].CompletedCount++
			continue
		}
		if sched.Before(today) {
			buckets[m].OverdueCount++
		} else if !sched.After(dueLimit) {
			buckets[m].DueCount++
		}
	}
	return buckets, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
