package evaluation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Status values the API uses.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

// Badge labels shown next to an evaluation.
const (
	BadgeCompleted = "COMPLETED"
	BadgeOverdue   = "OVERDUE"
	BadgeUrgent    = "URGENT"
	BadgePending   = "PENDING"
)

// UrgentWithinDays is how close a due date must be to flag an evaluation as urgent.
const UrgentWithinDays = 3

// Evaluation is the read-only display projection of an evaluation assignment.
type Evaluation struct {
	ID                     string
	Status                 string
	DisplayStatus          string
	FormTitle              string
	FacultyID              string
	FacultyName            string
	StudentID              string
	DueDate                *time.Time
	SubmittedAt            *time.Time
	Rating                 *float64
	HasFacultyRelationship *bool
	CanSubmit              bool
}

// FromRaw builds an Evaluation from a decoded API object, checking the snake
// and camel case spellings of each field.
func FromRaw(raw map[string]any) Evaluation {
	faculty, _ := raw["faculty"].(map[string]any)

	e := Evaluation{
		ID:            str(raw["id"]),
		Status:        str(raw["status"]),
		DisplayStatus: str(raw["displayStatus"]),
		FormTitle:     first(str(raw["title"]), str(raw["form_title"]), str(raw["formTitle"])),
		FacultyID:     first(str(raw["faculty_id"]), str(raw["facultyId"]), str(faculty["id"])),
		StudentID:     first(str(raw["student_id"]), str(raw["studentId"])),
		DueDate:       timeOf(first(str(raw["due_date"]), str(raw["dueDate"]))),
		SubmittedAt:   timeOf(first(str(raw["submitted_at"]), str(raw["submittedAt"]))),
		Rating:        rating(raw),
	}
	if b, ok := raw["canSubmit"].(bool); ok {
		e.CanSubmit = b
	}
	if b, ok := raw["hasFacultyRelationship"].(bool); ok {
		e.HasFacultyRelationship = &b
	}

	e.FacultyName = first(
		str(faculty["name"]),
		strings.TrimSpace(first(str(raw["faculty_firstname"]), str(faculty["firstname"]))+" "+first(str(raw["faculty_lastname"]), str(faculty["lastname"]))),
	)
	if e.FormTitle == "" {
		e.FormTitle = "Evaluation Form"
	}
	if e.FacultyName == "" {
		e.FacultyName = "Faculty Member"
	}
	return e
}

// FromList converts a decoded API list, skipping entries that are not objects.
func FromList(list []any) []Evaluation {
	out := make([]Evaluation, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, FromRaw(obj))
		}
	}
	return out
}

// IsCompleted reports whether the evaluation has been submitted.
// INVARIANT: Evaluation fields are not mutated
func (e Evaluation) IsCompleted() bool {
	return e.Status == StatusCompleted || e.SubmittedAt != nil || e.DisplayStatus == "Completed"
}

// IsOverdue reports whether the due date has passed at now.
// INVARIANT: Evaluation fields are not mutated
func (e Evaluation) IsOverdue(now time.Time) bool {
	return e.DueDate != nil && e.DueDate.Before(now)
}

// DaysRemaining returns the whole days until the due date, rounded up, or nil without a due date.
// INVARIANT: Evaluation fields are not mutated
func (e Evaluation) DaysRemaining(now time.Time) *int {
	if e.DueDate == nil {
		return nil
	}
	days := int(math.Ceil(e.DueDate.Sub(now).Hours() / 24))
	return &days
}

// Badge returns the status label for display.
// INVARIANT: Evaluation fields are not mutated
func (e Evaluation) Badge(now time.Time) string {
	if e.Status == StatusCompleted {
		return BadgeCompleted
	}
	if d := e.DaysRemaining(now); d != nil {
		if *d < 0 {
			return BadgeOverdue
		}
		if *d <= UrgentWithinDays {
			return BadgeUrgent
		}
	}
	return BadgePending
}

// ratingFields are the aliases a score has been reported under, in priority order.
var ratingFields = []string{"score", "calculated_score", "total_score", "average_rating"}

func rating(raw map[string]any) *float64 {
	for _, k := range ratingFields {
		if f, ok := toFloat(raw[k]); ok && f != 0 {
			return &f
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil && !math.IsNaN(f)
	}
	return 0, false
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

func timeOf(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
