package validation

import (
	"errors"
	"strings"

	"houtveilig/models"
)

// Form field names, used by the form to focus the offending input.
const (
	FieldIncidentType = "incident_type"
	FieldReporterName = "reporter_name"
	FieldPriority     = "priority"
	FieldDescription  = "description"
)

// ErrIncomplete rejects a background save of a report without a type or a
// description.
var ErrIncomplete = errors.New("incident type and description are required")

// Error is a failed check on a single form field.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return e.Message
}

// Validate runs the checks for an explicit save or submit, in order, and
// returns the first failure.
func Validate(f models.ReportFields) error {
	switch {
	case f.IncidentType == models.IncidentUnset:
		return &Error{Field: FieldIncidentType, Message: "Select an incident type"}
	case strings.TrimSpace(f.ReporterName) == "":
		return &Error{Field: FieldReporterName, Message: "Enter your name"}
	case f.Priority == models.PriorityUnset:
		return &Error{Field: FieldPriority, Message: "Select a priority"}
	case strings.TrimSpace(f.Description) == "":
		return &Error{Field: FieldDescription, Message: "Enter a description"}
	}
	return nil
}

// Quiet is the relaxed check for background saves: a type and a description
// are enough.
func Quiet(f models.ReportFields) bool {
	return f.IncidentType != models.IncidentUnset && strings.TrimSpace(f.Description) != ""
}
