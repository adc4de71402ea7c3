package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"propcheck/internal/domain"
)

func document(expiry string) *domain.ComplianceDocument {
	doc := &domain.ComplianceDocument{
		ID:           "doc-1",
		OrgID:        "org-1",
		DocumentType: "gas_certificate",
		CreatedAt:    "2024-01-01T00:00:00Z",
	}
	if expiry != "" {
		doc.ExpiryDate = &expiry
	}
	return doc
}

func TestEffectiveCurrentMonth(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 12, effectiveCurrentMonth(2023, now), "past year: every month is past")
	require.Equal(t, -1, effectiveCurrentMonth(2025, now), "future year: no month is past")
	require.Equal(t, 5, effectiveCurrentMonth(2024, now), "current year: literal month")
}

func TestProjectExpiryMissingDocument(t *testing.T) {
	cells, err := ProjectExpiry(nil, 2024, testNow)
	require.NoError(t, err)
	for _, c := range cells {
		require.Equal(t, DocNoExpiry, c.Status)
		require.False(t, c.HasDocument)
	}
}

func TestProjectExpiryNoExpiryDate(t *testing.T) {
	cells, err := ProjectExpiry(document(""), 2024, testNow)
	require.NoError(t, err)
	for _, c := range cells {
		require.Equal(t, DocNoExpiry, c.Status)
		require.True(t, c.HasDocument)
	}
}

func TestProjectExpirySameYear(t *testing.T) {
	// Expiry 2024-06-15 viewed in 2024 with now=2024-06-01: June is
	// expiring_soon, Jan-May valid, Jul-Dec uncovered.
	cells, err := ProjectExpiry(document("2024-06-15"), 2024, testNow)
	require.NoError(t, err)
	for i := 0; i <= 4; i++ {
		require.Equal(t, DocValid, cells[i].Status, "month %d", i)
		require.True(t, cells[i].HasDocument)
	}
	require.Equal(t, DocExpiringSoon, cells[5].Status)
	require.True(t, cells[5].HasDocument)
	for i := 6; i <= 11; i++ {
		require.Equal(t, DocExpired, cells[i].Status, "month %d", i)
		require.False(t, cells[i].HasDocument)
	}
}

func TestProjectExpiryLaterYearNotCovered(t *testing.T) {
	// No forward roll-over of validity: 2024 expiry viewed in 2025 is fully
	// expired and uncovered.
	cells, err := ProjectExpiry(document("2024-06-15"), 2025, testNow)
	require.NoError(t, err)
	for i, c := range cells {
		require.Equal(t, DocExpired, c.Status, "month %d", i)
		require.False(t, c.HasDocument, "month %d", i)
	}
}

func TestProjectExpiryFutureExpiryYear(t *testing.T) {
	cells, err := ProjectExpiry(document("2026-03-31"), 2025, testNow)
	require.NoError(t, err)
	for i, c := range cells {
		require.Equal(t, DocValid, c.Status, "month %d", i)
		require.True(t, c.HasDocument, "month %d", i)
	}
}

func TestProjectExpiryLapsedDocumentBackfillsExpired(t *testing.T) {
	// Expired in March; by June the covered months before the current month
	// are lapsed too, but they stay covered.
	cells, err := ProjectExpiry(document("2024-03-10"), 2024, testNow)
	require.NoError(t, err)
	for i := 0; i <= 2; i++ {
		require.Equal(t, DocExpired, cells[i].Status, "month %d", i)
		require.True(t, cells[i].HasDocument, "month %d", i)
	}
	for i := 3; i <= 11; i++ {
		require.Equal(t, DocExpired, cells[i].Status, "month %d", i)
		require.False(t, cells[i].HasDocument, "month %d", i)
	}
}

func TestProjectExpiryExpiredViewedInEarlierYear(t *testing.T) {
	// Viewing 2023 for a document that expired in 2024: all twelve months are
	// covered, and because the year is entirely in the past and the document
	// is lapsed, all are expired.
	cells, err := ProjectExpiry(document("2024-03-10"), 2023, testNow)
	require.NoError(t, err)
	for i, c := range cells {
		require.Equal(t, DocExpired, c.Status, "month %d", i)
		require.True(t, c.HasDocument, "month %d", i)
	}
}

func TestProjectExpiryValidViewedInEarlierYear(t *testing.T) {
	cells, err := ProjectExpiry(document("2026-03-31"), 2023, testNow)
	require.NoError(t, err)
	for i, c := range cells {
		require.Equal(t, DocValid, c.Status, "month %d", i)
		require.True(t, c.HasDocument, "month %d", i)
	}
}

func TestProjectExpiryExpiringSoonBoundary(t *testing.T) {
	// Exactly 30 days out is expiring_soon; 31 days is valid.
	cells, err := ProjectExpiry(document("2024-07-01"), 2024, testNow)
	require.NoError(t, err)
	require.Equal(t, DocExpiringSoon, cells[6].Status)

	cells, err = ProjectExpiry(document("2024-07-02"), 2024, testNow)
	require.NoError(t, err)
	require.Equal(t, DocValid, cells[6].Status)
}

func TestProjectExpiryMalformedDate(t *testing.T) {
	_, err := ProjectExpiry(document("15/06/2024"), 2024, testNow)
	require.Error(t, err)
}
