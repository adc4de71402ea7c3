package calendar

import (
	"fmt"
	"math"
)

// MonthStatus is the resolved compliance status of one template-month.
type MonthStatus string

const (
	StatusCompleted    MonthStatus = "completed"
	StatusOverdue      MonthStatus = "overdue"
	StatusDue          MonthStatus = "due"
	StatusScheduled    MonthStatus = "scheduled"
	StatusNotScheduled MonthStatus = "not_scheduled"
)

func (s MonthStatus) IsValid() bool {
	switch s {
	case StatusCompleted, StatusOverdue, StatusDue, StatusScheduled, StatusNotScheduled:
		return true
	}
	return false
}

func (s MonthStatus) String() string { return string(s) }

// ResolveMonth maps a bucket to exactly one status. Precedence, first match
// wins: completed beats overdue (a late-but-finished inspection should not
// alarm anyone), overdue beats due/scheduled because it is an unmet
// obligation.
func ResolveMonth(b MonthBucket) MonthStatus {
	switch {
	case b.Count > 0 && b.CompletedCount == b.Count:
		return StatusCompleted
	case b.OverdueCount > 0:
		return StatusOverdue
	case b.DueCount > 0:
		return StatusDue
	case b.Count > 0:
		return StatusScheduled
	default:
		return StatusNotScheduled
	}
}

// MonthCell is the derived, non-persisted value consumed by reports. It is
// recomputed on every request because overdue/due depend on "now".
type MonthCell struct {
	MonthIndex     int         `json:"month_index"`
	Status         MonthStatus `json:"status" enum:"completed,overdue,due,scheduled,not_scheduled"`
	Count          int         `json:"count"`
	CompletedCount int         `json:"completed_count"`
	OverdueCount   int         `json:"overdue_count"`
}

// ComplianceRate returns 100*completedMonths/scheduledMonths rounded to the
// nearest integer, where scheduledMonths counts every month whose status is
// not not_scheduled. Zero scheduled months yields 0, never NaN.
func ComplianceRate(cells [12]MonthCell) int {
	scheduled, completed := 0, 0
	for _, c := range cells {
		if c.Status == StatusNotScheduled {
			continue
		}
		scheduled++
		if c.Status == StatusCompleted {
			completed++
		}
	}
	if scheduled == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(scheduled)))
}

func (b MonthBucket) validate() error {
	if b.Count < 0 || b.CompletedCount < 0 || b.OverdueCount < 0 || b.DueCount < 0 {
		return fmt.Errorf("negative bucket count: %+v", b)
	}
	if b.CompletedCount+b.OverdueCount+b.DueCount > b.Count {
		return fmt.Errorf("bucket counts exceed total: %+v", b)
	}
	return nil
}

func cellsFromBuckets(buckets [12]MonthBucket) ([12]MonthCell, error) {
	var cells [12]MonthCell
	for i, b := range buckets {
		if err := b.validate(); err != nil {
			return cells, fmt.Errorf("month %d: %w", i, err)
		}
		cells[i] = MonthCell{
			MonthIndex:     i,
			Status:         ResolveMonth(b),
			Count:          b.Count,
			CompletedCount: b.CompletedCount,
			OverdueCount:   b.OverdueCount,
		}
	}
	return cells, nil
}
