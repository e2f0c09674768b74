package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFromRaw_Aliases verifies snake and camel case field names decode identically.
func TestFromRaw_Aliases(t *testing.T) {
	snake := FromRaw(map[string]any{
		"id":                "7",
		"form_title":        "Midterm",
		"due_date":          "2026-03-01",
		"faculty_id":        "f1",
		"faculty_firstname": "Ada",
		"faculty_lastname":  "Lovelace",
		"submitted_at":      "2026-02-01T10:00:00Z",
	})
	camel := FromRaw(map[string]any{
		"id":          "7",
		"formTitle":   "Midterm",
		"dueDate":     "2026-03-01",
		"faculty":     map[string]any{"id": "f1", "name": "Ada Lovelace"},
		"submittedAt": "2026-02-01T10:00:00Z",
	})

	assert.Equal(t, snake.FormTitle, camel.FormTitle)
	assert.Equal(t, snake.FacultyID, camel.FacultyID)
	assert.Equal(t, "Ada Lovelace", snake.FacultyName)
	assert.Equal(t, snake.FacultyName, camel.FacultyName)
	require.NotNil(t, snake.DueDate)
	require.NotNil(t, camel.DueDate)
	assert.True(t, snake.DueDate.Equal(*camel.DueDate))
	assert.True(t, snake.IsCompleted())
	assert.True(t, camel.IsCompleted())
}

// TestFromRaw_Defaults verifies missing titles and names get placeholders.
func TestFromRaw_Defaults(t *testing.T) {
	e := FromRaw(map[string]any{"id": 1.0, "status": "pending"})
	assert.Equal(t, "1", e.ID)
	assert.Equal(t, "Evaluation Form", e.FormTitle)
	assert.Equal(t, "Faculty Member", e.FacultyName)
	assert.Nil(t, e.DueDate)
	assert.Nil(t, e.Rating)
	assert.Nil(t, e.HasFacultyRelationship)
	assert.False(t, e.IsCompleted())
}

// TestFromRaw_Rating verifies the first non-zero score alias wins.
func TestFromRaw_Rating(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want float64
	}{
		{"score", map[string]any{"score": 4.5}, 4.5},
		{"numeric string", map[string]any{"calculated_score": "3.25"}, 3.25},
		{"skips zero", map[string]any{"score": 0.0, "total_score": 2.0}, 2},
		{"average", map[string]any{"average_rating": 5.0}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := FromRaw(tt.raw)
			require.NotNil(t, e.Rating)
			assert.InDelta(t, tt.want, *e.Rating, 0.0001)
		})
	}

	assert.Nil(t, FromRaw(map[string]any{"score": "n/a"}).Rating)
}

// TestBadge verifies status labels relative to now.
func TestBadge(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	due := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name string
		e    Evaluation
		want string
	}{
		{"completed wins over overdue", Evaluation{Status: StatusCompleted, DueDate: due(-48 * time.Hour)}, BadgeCompleted},
		{"overdue", Evaluation{DueDate: due(-25 * time.Hour)}, BadgeOverdue},
		{"urgent", Evaluation{DueDate: due(72 * time.Hour)}, BadgeUrgent},
		{"pending", Evaluation{DueDate: due(10 * 24 * time.Hour)}, BadgePending},
		{"no due date", Evaluation{}, BadgePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.e.Badge(now))
		})
	}
}

// TestDaysRemaining_RoundsUp verifies partial days count as a whole day.
func TestDaysRemaining_RoundsUp(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	d := now.Add(25 * time.Hour)
	days := Evaluation{DueDate: &d}.DaysRemaining(now)
	require.NotNil(t, days)
	assert.Equal(t, 2, *days)
}

// TestFromList_SkipsNonObjects verifies stray entries are ignored.
func TestFromList_SkipsNonObjects(t *testing.T) {
	list := FromList([]any{map[string]any{"id": "1"}, "junk", 3.0, map[string]any{"id": "2"}})
	require.Len(t, list, 2)
	assert.Equal(t, "2", list[1].ID)
}
