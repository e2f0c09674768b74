package account

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Role is the canonical access level of a user.
type Role string

// Role constants
const (
	RoleUnknown Role = ""
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

// ValidRoles contains the roles a user can register or log in as.
var ValidRoles = []Role{RoleAdmin, RoleFaculty, RoleStudent}

// legacyRoleCodes maps the numeric userType codes still sent by older API builds.
var legacyRoleCodes = map[int]Role{
	1: RoleAdmin,
	2: RoleFaculty,
	3: RoleStudent,
}

// Domain errors
var (
	ErrInvalidRole = errors.New("role must be one of: admin, faculty, student")
	ErrEmptyUser   = errors.New("user record is empty")
)

// ParseRole maps any string or legacy numeric encoding to the canonical Role.
// Unrecognized values map to RoleUnknown.
// INVARIANT: ParseRole("faculty") == ParseRole(2) == ParseRole("2")
func ParseRole(v any) Role {
	switch t := v.(type) {
	case Role:
		return ParseRole(string(t))
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		for _, r := range ValidRoles {
			if s == string(r) {
				return r
			}
		}
		if n, err := strconv.Atoi(s); err == nil {
			return legacyRoleCodes[n]
		}
	case int:
		return legacyRoleCodes[t]
	case int64:
		return legacyRoleCodes[int(t)]
	case float64:
		if t == float64(int(t)) {
			return legacyRoleCodes[int(t)]
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return legacyRoleCodes[int(n)]
		}
	}
	return RoleUnknown
}

// IsValid reports whether r is one of the canonical roles.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleFaculty || r == RoleStudent
}

// FlexString is a JSON value that may arrive as a string or a number.
type FlexString string

// UnmarshalJSON accepts strings, numbers and null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the underlying value.
func (f FlexString) String() string { return string(f) }

// Class is a class section as returned by the API.
type Class struct {
	ID         FlexString `json:"id"`
	Curriculum string     `json:"curriculum"`
	Level      FlexString `json:"level"`
	Section    string     `json:"section"`
}

// Label renders the class the way pickers display it.
func (c Class) Label() string {
	return c.Curriculum + " - Year " + c.Level.String() + " - Section " + c.Section
}

// UserRecord holds the user as stored in the session.
type UserRecord struct {
	ID             string
	Firstname      string
	Lastname       string
	Email          string
	Role           Role
	SchoolID       string
	ProfilePicture string
	Class          *Class
}

// userRecordWire mirrors the field aliases the API has used over time.
type userRecordWire struct {
	ID                FlexString      `json:"id"`
	Firstname         string          `json:"firstname"`
	Lastname          string          `json:"lastname"`
	Email             string          `json:"email"`
	UserType          json.RawMessage `json:"userType"`
	UserTypeSnake     json.RawMessage `json:"user_type"`
	SchoolID          FlexString      `json:"school_id"`
	SchoolIDCamel     FlexString      `json:"schoolId"`
	AdminID           FlexString      `json:"admin_id"`
	ProfilePicture    string          `json:"profile_picture"`
	ProfilePictureAlt string          `json:"profilePicture"`
	Avatar            string          `json:"avatar"`
	Class             *Class          `json:"class"`
}

// UnmarshalJSON decodes a user record, normalizing the role at this boundary.
func (u *UserRecord) UnmarshalJSON(data []byte) error {
	var w userRecordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	rawRole := w.UserType
	if len(rawRole) == 0 || string(rawRole) == "null" {
		rawRole = w.UserTypeSnake
	}
	*u = UserRecord{
		ID:             w.ID.String(),
		Firstname:      w.Firstname,
		Lastname:       w.Lastname,
		Email:          w.Email,
		Role:           parseRoleJSON(rawRole),
		SchoolID:       firstNonEmpty(w.SchoolID.String(), w.SchoolIDCamel.String(), w.AdminID.String()),
		ProfilePicture: firstNonEmpty(w.ProfilePicture, w.ProfilePictureAlt, w.Avatar),
		Class:          w.Class,
	}
	return nil
}

// DecodeUserRecord parses a persisted user record.
// PRE: data is the JSON the API returned at login
// POST: Returns the record with a canonical Role, or an error if data is not a JSON object
func DecodeUserRecord(data []byte) (UserRecord, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return UserRecord{}, ErrEmptyUser
	}
	var u UserRecord
	if err := json.Unmarshal(data, &u); err != nil {
		return UserRecord{}, err
	}
	return u, nil
}

// DisplayName joins first and last name.
// INVARIANT: UserRecord fields are not mutated
func (u UserRecord) DisplayName() string {
	return strings.TrimSpace(u.Firstname + " " + u.Lastname)
}

func parseRoleJSON(raw json.RawMessage) Role {
	if len(raw) == 0 {
		return RoleUnknown
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return RoleUnknown
	}
	return ParseRole(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" && v != "null" && v != "undefined" {
			return v
		}
	}
	return ""
}
