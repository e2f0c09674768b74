package registration

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"facultyeval/internal/domain/account"
)

// Step is one state of the registration wizard.
type Step int

// Wizard states, in order.
const (
	StepAccountType Step = iota + 1
	StepProfilePicture
	StepClassInfo
	StepSecurity
	StepComplete
)

// Steps lists every state in display order.
var Steps = []Step{StepAccountType, StepProfilePicture, StepClassInfo, StepSecurity, StepComplete}

var stepInfo = map[Step][2]string{
	StepAccountType:    {"Account Type", "Choose your role"},
	StepProfilePicture: {"Profile Picture", "Add your photo"},
	StepClassInfo:      {"Class Info", "Academic details"},
	StepSecurity:       {"Security", "Set password"},
	StepComplete:       {"Complete", "Finish registration"},
}

// Title returns the short heading for the step.
func (s Step) Title() string { return stepInfo[s][0] }

// Description returns the subheading for the step.
func (s Step) Description() string { return stepInfo[s][1] }

// IsValid reports whether s is one of the five wizard states.
func (s Step) IsValid() bool { return s >= StepAccountType && s <= StepComplete }

// MinPasswordLength is the shortest password the wizard accepts.
const MinPasswordLength = 6

// Roles a visitor can register as. Administrators are provisioned by the API.
var RegistrableRoles = []account.Role{account.RoleStudent, account.RoleFaculty}

// Errors
var (
	ErrDraftNotFound = errors.New("registration draft not found")
	// ErrDraftUnreadable marks a stored draft whose sealed credentials can no
	// longer be opened, e.g. after a key rotation.
	ErrDraftUnreadable = errors.New("registration draft unreadable")
	ErrUnknownAvatar = errors.New("unknown avatar")
)

// Draft accumulates the wizard input between steps.
// INVARIANT: at most one of ProfilePicture and SelectedAvatar is set
type Draft struct {
	ID              string
	Step            Step
	UserType        account.Role
	SchoolID        string
	Firstname       string
	Lastname        string
	Email           string
	ClassID         string
	ClassesHandled  []string
	Password        string
	ConfirmPassword string
	ProfilePicture  string // upload handle of the preview image
	SelectedAvatar  string
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewDraft starts a wizard at the first step with the student role preselected.
// POST: Step == StepAccountType, ID is a fresh UUID
func NewDraft(now time.Time) Draft {
	return Draft{
		ID:        uuid.NewString(),
		Step:      StepAccountType,
		UserType:  account.RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AccountInput is the form data of the account type step.
type AccountInput struct {
	UserType  string
	SchoolID  string
	Firstname string
	Lastname  string
	Email     string
}

// SetAccount stores the identity fields. Changing the role drops class choices
// that only make sense for the previous role.
func (d *Draft) SetAccount(in AccountInput) {
	role := account.ParseRole(in.UserType)
	if role != d.UserType {
		d.ClassID = ""
		d.ClassesHandled = nil
	}
	d.UserType = role
	d.SchoolID = strings.TrimSpace(in.SchoolID)
	d.Firstname = strings.TrimSpace(in.Firstname)
	d.Lastname = strings.TrimSpace(in.Lastname)
	d.Email = strings.TrimSpace(in.Email)
}

// SetClasses stores the class choice matching the draft's role.
func (d *Draft) SetClasses(classID string, handled []string) {
	d.ClassID = ""
	d.ClassesHandled = nil
	switch d.UserType {
	case account.RoleStudent:
		d.ClassID = strings.TrimSpace(classID)
	case account.RoleFaculty:
		for _, id := range handled {
			id = strings.TrimSpace(id)
			if id != "" && !slices.Contains(d.ClassesHandled, id) {
				d.ClassesHandled = append(d.ClassesHandled, id)
			}
		}
	}
}

// SetCredentials stores the password pair exactly as typed.
func (d *Draft) SetCredentials(password, confirm string) {
	d.Password = password
	d.ConfirmPassword = confirm
}

// SetUpload attaches a preview image and drops any chosen avatar.
// POST: Returns the handle it replaced, which the caller must release
func (d *Draft) SetUpload(handle string) (released string) {
	released = d.ProfilePicture
	if released == handle {
		released = ""
	}
	d.ProfilePicture = handle
	d.SelectedAvatar = ""
	return released
}

// SelectAvatar picks one of the bundled avatars and drops any uploaded preview.
// POST: Returns the preview handle it replaced, which the caller must release
func (d *Draft) SelectAvatar(name string) (released string, err error) {
	if !IsDefaultAvatar(name) {
		return "", ErrUnknownAvatar
	}
	released = d.ProfilePicture
	d.ProfilePicture = ""
	d.SelectedAvatar = name
	return released, nil
}

// ClearPicture removes both the upload and the avatar.
// POST: Returns the preview handle it dropped, which the caller must release
func (d *Draft) ClearPicture() (released string) {
	released = d.ProfilePicture
	d.ProfilePicture = ""
	d.SelectedAvatar = ""
	return released
}

// DefaultAvatars are the avatar images served under /uploads.
var DefaultAvatars = []string{"ad.png", "dwight.png", "lebron.png", "russell.png", "default-avatar.png"}

// IsDefaultAvatar reports whether name is one of DefaultAvatars.
func IsDefaultAvatar(name string) bool {
	return slices.Contains(DefaultAvatars, name)
}
