package engine

import "fmt"

// ValidationError reports a malformed or unsupported request field. Pure
// calendar code never sees these; they fail fast at the boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports a bulk-schedule selection colliding with an existing
// inspection for the same template and month, including collisions created by
// a racing request and detected at write time. The whole batch is rejected.
type ConflictError struct {
	TemplateID string
	MonthIndex int
	Reason     string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("template %s month %d: %s", e.TemplateID, e.MonthIndex, e.Reason)
}
