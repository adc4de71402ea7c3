package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"propcheck/internal/domain"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func instance(id, templateID, scheduled string, status domain.InspectionStatus) domain.InspectionInstance {
	return domain.InspectionInstance{
		ID:            id,
		TemplateID:    templateID,
		EntityKind:    domain.EntityProperty,
		EntityID:      "prop-1",
		ScheduledDate: scheduled,
		Status:        status,
	}
}

func TestBucketFiltersTemplateAndYear(t *testing.T) {
	instances := []domain.InspectionInstance{
		instance("i1", "tpl-a", "2024-03-10", domain.InspectionScheduled),
		instance("i2", "tpl-b", "2024-03-11", domain.InspectionScheduled),
		instance("i3", "tpl-a", "2023-03-12", domain.InspectionScheduled),
		instance("i4", "tpl-a", "2024-03-20", domain.InspectionCompleted),
	}
	buckets, err := Bucket(instances, "tpl-a", 2024, testNow)
	require.NoError(t, err)
	require.Equal(t, 2, buckets[2].Count)
	require.Equal(t, 1, buckets[2].CompletedCount)
	require.Equal(t, 1, buckets[2].OverdueCount)
	for i, b := range buckets {
		if i != 2 {
			require.Zero(t, b.Count, "month %d", i)
		}
	}
}

func TestBucketRejectsMalformedDate(t *testing.T) {
	_, err := Bucket([]domain.InspectionInstance{
		instance("i1", "tpl-a", "June 2024", domain.InspectionScheduled),
	}, "tpl-a", 2024, testNow)
	require.Error(t, err)
}

func TestResolveCompletedBeatsOverdue(t *testing.T) {
	// One instance scheduled 10 days ago but completed: completion wins
	// regardless of timing.
	buckets, err := Bucket([]domain.InspectionInstance{
		instance("i1", "tpl-a", "2024-05-22", domain.InspectionCompleted),
	}, "tpl-a", 2024, testNow)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, ResolveMonth(buckets[4]))
}

func TestResolveOverdueBeatsDue(t *testing.T) {
	// Yesterday (not completed) plus one in 5 days: overdue wins.
	buckets, err := Bucket([]domain.InspectionInstance{
		instance("i1", "tpl-a", "2024-05-31", domain.InspectionScheduled),
		instance("i2", "tpl-a", "2024-06-05", domain.InspectionScheduled),
	}, "tpl-a", 2024, testNow)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, ResolveMonth(mergeBuckets(buckets[4], buckets[5])))
}

func mergeBuckets(a, b MonthBucket) MonthBucket {
	return MonthBucket{
		Count:          a.Count + b.Count,
		CompletedCount: a.CompletedCount + b.CompletedCount,
		OverdueCount:   a.OverdueCount + b.OverdueCount,
		DueCount:       a.DueCount + b.DueCount,
	}
}

func TestDueWindowInclusive(t *testing.T) {
	// Exactly now+30 days is due; now+31 is merely scheduled.
	buckets, err := Bucket([]domain.InspectionInstance{
		instance("i1", "tpl-a", "2024-07-01", domain.InspectionScheduled),
		instance("i2", "tpl-a", "2024-07-02", domain.InspectionScheduled),
	}, "tpl-a", 2024, testNow)
	require.NoError(t, err)
	require.Equal(t, 1, buckets[6].DueCount)
	require.Equal(t, StatusDue, ResolveMonth(buckets[6]))

	later, err := Bucket([]domain.InspectionInstance{
		instance("i2", "tpl-a", "2024-07-02", domain.InspectionScheduled),
	}, "tpl-a", 2024, testNow)
	require.NoError(t, err)
	require.Equal(t, StatusScheduled, ResolveMonth(later[6]))
}

func TestResolveEmptyBucket(t *testing.T) {
	require.Equal(t, StatusNotScheduled, ResolveMonth(MonthBucket{}))
}

func TestComplianceRate(t *testing.T) {
	var cells [12]MonthCell
	for i := range cells {
		cells[i] = MonthCell{MonthIndex: i, Status: StatusNotScheduled}
	}
	require.Equal(t, 0, ComplianceRate(cells), "zero scheduled months is 0, not NaN")

	cells[0].Status = StatusCompleted
	cells[1].Status = StatusCompleted
	cells[2].Status = StatusOverdue
	require.Equal(t, 67, ComplianceRate(cells), "2/3 rounds to 67")

	cells[2].Status = StatusCompleted
	require.Equal(t, 100, ComplianceRate(cells))
}
