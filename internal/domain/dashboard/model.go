package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// StatKey names one counter of the admin dashboard.
type StatKey string

// Stat keys, in display order.
const (
	KeyFaculties            StatKey = "faculties"
	KeyStudents             StatKey = "students"
	KeyEvaluationForms      StatKey = "evaluationForms"
	KeySubmittedEvaluations StatKey = "submittedEvaluations"
	KeyClasses              StatKey = "classes"
	KeySubjects             StatKey = "subjects"
	KeyAcademicYears        StatKey = "academicYears"
	KeyPendingEvaluations   StatKey = "pendingEvaluations"
)

// Keys lists every counter. Stats always carries a value for each of them.
var Keys = []StatKey{
	KeyFaculties,
	KeyStudents,
	KeyEvaluationForms,
	KeySubmittedEvaluations,
	KeyClasses,
	KeySubjects,
	KeyAcademicYears,
	KeyPendingEvaluations,
}

// ErrMalformedBody is returned when a successful response is not JSON.
var ErrMalformedBody = errors.New("response body is not valid JSON")

// Stats is the fixed set of admin dashboard counters.
// The zero value is a valid Stats with every counter at 0.
type Stats struct {
	Faculties            int
	Students             int
	EvaluationForms      int
	SubmittedEvaluations int
	Classes              int
	Subjects             int
	AcademicYears        int
	PendingEvaluations   int
}

// Get returns the counter for key; unknown keys read as 0.
// INVARIANT: Stats fields are not mutated
func (s Stats) Get(key StatKey) int {
	if p := s.field(key); p != nil {
		return *p
	}
	return 0
}

// Set stores n for key, clamping negatives to 0. Unknown keys are ignored.
// POST: Get(key) >= 0
func (s *Stats) Set(key StatKey, n int) {
	if n < 0 {
		n = 0
	}
	if p := s.field(key); p != nil {
		*p = n
	}
}

// Map returns the counters keyed by name.
func (s Stats) Map() map[StatKey]int {
	m := make(map[StatKey]int, len(Keys))
	for _, k := range Keys {
		m[k] = s.Get(k)
	}
	return m
}

func (s *Stats) field(key StatKey) *int {
	switch key {
	case KeyFaculties:
		return &s.Faculties
	case KeyStudents:
		return &s.Students
	case KeyEvaluationForms:
		return &s.EvaluationForms
	case KeySubmittedEvaluations:
		return &s.SubmittedEvaluations
	case KeyClasses:
		return &s.Classes
	case KeySubjects:
		return &s.Subjects
	case KeyAcademicYears:
		return &s.AcademicYears
	case KeyPendingEvaluations:
		return &s.PendingEvaluations
	}
	return nil
}

// countProbe extracts a candidate count from a decoded response body.
type countProbe func(body any) int

// countProbes is the ordered alias list for count responses. The API has
// returned each of these shapes at some point:
//
//	{"success":true,"count":3}
//	{"success":true,"total":3}
//	{"success":true,"data":[...]}
//	{"length":3}
//	[...]
//
// The first probe yielding a positive value wins, so a zero count falls
// through to the next alias.
var countProbes = []countProbe{
	numberField("count"),
	numberField("total"),
	dataLength,
	numberField("length"),
	arrayLength,
}

// DecodeCount normalizes a count response.
// PRE: ok reports whether the request reached the API and got a 2xx status
// POST: Returns 0 when ok is false, when the body says success:false, or when no alias matches;
// returns ErrMalformedBody when ok is true and the body is not JSON
func DecodeCount(body []byte, ok bool) (int, error) {
	if !ok {
		return 0, nil
	}
	decoded, err := decodeJSON(body)
	if err != nil {
		return 0, err
	}
	if obj, isObj := decoded.(map[string]any); isObj {
		if success, present := obj["success"].(bool); present && !success {
			return 0, nil
		}
	}
	for _, probe := range countProbes {
		if n := probe(decoded); n > 0 {
			return n, nil
		}
	}
	return 0, nil
}

// DecodeArray extracts a list from a response shaped as a bare array,
// {"data":[...]} or {"<key>":[...]} for any of altKeys.
func DecodeArray(body []byte, altKeys ...string) ([]any, error) {
	decoded, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}
	switch t := decoded.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if list, ok := t["data"].([]any); ok {
			return list, nil
		}
		for _, k := range altKeys {
			if list, ok := t[k].([]any); ok {
				return list, nil
			}
		}
	}
	return nil, nil
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, ErrMalformedBody
	}
	return v, nil
}

func numberField(name string) countProbe {
	return func(body any) int {
		obj, ok := body.(map[string]any)
		if !ok {
			return 0
		}
		return ToInt(obj[name])
	}
}

func dataLength(body any) int {
	obj, ok := body.(map[string]any)
	if !ok {
		return 0
	}
	if list, ok := obj["data"].([]any); ok {
		return len(list)
	}
	return 0
}

func arrayLength(body any) int {
	if list, ok := body.([]any); ok {
		return len(list)
	}
	return 0
}

// ToInt converts a decoded JSON number or numeric string to an int.
// Anything else, including fractions, reads as 0.
func ToInt(v any) int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil && f == math.Trunc(f) {
			return int(f)
		}
	case float64:
		if t == math.Trunc(t) {
			return int(t)
		}
	case int:
		return t
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return 0
}
