package calendar

import (
	"fmt"
	"time"

	"propcheck/internal/domain"
)

// DocMonthStatus is a document's validity status for one month of a
// projection year.
type DocMonthStatus string

const (
	DocValid        DocMonthStatus = "valid"
	DocExpiringSoon DocMonthStatus = "expiring_soon"
	DocExpired      DocMonthStatus = "expired"
	DocNoExpiry     DocMonthStatus = "no_expiry"
)

func (s DocMonthStatus) IsValid() bool {
	switch s {
	case DocValid, DocExpiringSoon, DocExpired, DocNoExpiry:
		return true
	}
	return false
}

func (s DocMonthStatus) String() string { return string(s) }

// DocMonthCell carries two independent signals: the status and whether the
// month is covered by a document at all. Consumers render "missing" from
// HasDocument, not from the status alone.
type DocMonthCell struct {
	MonthIndex  int            `json:"month_index"`
	Status      DocMonthStatus `json:"status" enum:"valid,expiring_soon,expired,no_expiry"`
	HasDocument bool           `json:"has_document"`
}

// effectiveCurrentMonth returns the month index before which a covered month
// of an already-expired document counts as lapsed, for the selected year.
// Past years: every month is past (12). Future years: no month is past (-1).
// The current year: the literal month of now.
func effectiveCurrentMonth(year int, now time.Time) int {
	switch {
	case year < now.Year():
		return 12
	case year > now.Year():
		return -1
	default:
		return int(now.Month()) - 1
	}
}

// ProjectExpiry projects a document's validity across the 12 months of year.
// A nil doc means no document of the type exists; a nil expiry date means
// permanently valid. Validity never rolls forward past the expiry month:
// viewing a later year than the expiry year yields 12 uncovered, expired
// months.
func ProjectExpiry(doc *domain.ComplianceDocument, year int, now time.Time) ([12]DocMonthCell, error) {
	var cells [12]DocMonthCell
	if doc == nil {
		for i := range cells {
			cells[i] = DocMonthCell{MonthIndex: i, Status: DocNoExpiry, HasDocument: false}
		}
		return cells, nil
	}
	if doc.ExpiryDate == nil {
		for i := range cells {
			cells[i] = DocMonthCell{MonthIndex: i, Status: DocNoExpiry, HasDocument: true}
		}
		return cells, nil
	}
	expiry, err := time.Parse(dateLayout, *doc.ExpiryDate)
	if err != nil {
		return cells, fmt.Errorf("document %s: invalid expiry_date %q: %w", doc.ID, *doc.ExpiryDate, err)
	}
	expiryYear := expiry.Year()
	expiryMonth := int(expiry.Month()) - 1
	overall := expiryStatus(expiry, now)
	ecm := effectiveCurrentMonth(year, now)

	for i := range cells {
		covered := expiryYear > year || (expiryYear == year && i <= expiryMonth)
		cell := DocMonthCell{MonthIndex: i, HasDocument: covered}
		switch {
		case !covered:
			cell.Status = DocExpired
		case expiryYear == year && i == expiryMonth:
			cell.Status = overall
		case overall == DocExpired && i < ecm:
			cell.Status = DocExpired
		default:
			cell.Status = DocValid
		}
		cells[i] = cell
	}
	return cells, nil
}

// expiryStatus classifies the expiry date itself against now: expired when
// already past, expiring_soon within the inclusive DueWindowDays window,
// valid otherwise.
func expiryStatus(expiry, now time.Time) DocMonthStatus {
	today := dateOnly(now)
	e := dateOnly(expiry)
	if e.Before(today) {
		return DocExpired
	}
	if !e.After(today.AddDate(0, 0, DueWindowDays)) {
		return DocExpiringSoon
	}
	return DocValid
}
