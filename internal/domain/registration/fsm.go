package registration

import (
	"errors"
	"fmt"
	"slices"

	"facultyeval/internal/domain/account"
)

// Event drives a wizard transition.
type Event string

// Wizard events.
const (
	EventNext         Event = "next"
	EventBack         Event = "back"
	EventSubmitOK     Event = "submit_ok"
	EventSubmitFailed Event = "submit_failed"
)

// ErrTransitionNotAllowed is returned for an event the current step does not accept.
var ErrTransitionNotAllowed = errors.New("transition not allowed")

// ValidationError blocks a step from advancing. Msg is shown to the user.
type ValidationError struct {
	Step Step
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d: %s", e.Step, e.Msg)
}

// transition is one edge of the wizard. When guarded, the source step's
// validator must pass before the edge is taken.
type transition struct {
	to      Step
	guarded bool
}

// transitions is the complete wizard graph. Any (step, event) pair absent
// here is rejected with ErrTransitionNotAllowed.
var transitions = map[Step]map[Event]transition{
	StepAccountType: {
		EventNext: {to: StepProfilePicture, guarded: true},
		EventBack: {to: StepAccountType},
	},
	StepProfilePicture: {
		EventNext: {to: StepClassInfo, guarded: true},
		EventBack: {to: StepAccountType},
	},
	StepClassInfo: {
		EventNext: {to: StepSecurity, guarded: true},
		EventBack: {to: StepProfilePicture},
	},
	StepSecurity: {
		EventBack:         {to: StepClassInfo},
		EventSubmitOK:     {to: StepComplete},
		EventSubmitFailed: {to: StepSecurity},
	},
}

// validators checks the fields each step collects.
var validators = map[Step]func(Draft) error{
	StepAccountType:    validateAccount,
	StepProfilePicture: func(Draft) error { return nil },
	StepClassInfo:      validateClasses,
	StepSecurity:       validateSecurity,
}

// Can reports whether the current step accepts ev, ignoring validation.
// INVARIANT: Draft fields are not mutated
func (d Draft) Can(ev Event) bool {
	_, ok := transitions[d.Step][ev]
	return ok
}

// Fire applies ev to the draft.
// PRE: d.Step is a valid step
// POST: On success d.Step is the transition target and d.Error is cleared;
// on a ValidationError the step is unchanged and d.Error carries the message
func (d *Draft) Fire(ev Event) error {
	t, ok := transitions[d.Step][ev]
	if !ok {
		return fmt.Errorf("%w: %s from step %d", ErrTransitionNotAllowed, ev, d.Step)
	}
	if t.guarded {
		if err := d.ValidateStep(d.Step); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				d.Error = verr.Msg
			}
			return err
		}
	}
	d.Step = t.to
	d.Error = ""
	return nil
}

// Next advances one step if the current step validates.
func (d *Draft) Next() error { return d.Fire(EventNext) }

// Back returns one step without validating. Step 1 stays at step 1.
func (d *Draft) Back() error { return d.Fire(EventBack) }

// Submitted records the outcome of the registration request. A failure keeps
// the draft on the security step with msg shown inline.
// PRE: d.Step == StepSecurity
func (d *Draft) Submitted(ok bool, msg string) error {
	if ok {
		return d.Fire(EventSubmitOK)
	}
	if err := d.Fire(EventSubmitFailed); err != nil {
		return err
	}
	if msg == "" {
		msg = "Registration failed"
	}
	d.Error = msg
	return nil
}

// ValidateStep runs the validator of one step.
// INVARIANT: Draft fields are not mutated
func (d Draft) ValidateStep(s Step) error {
	v, ok := validators[s]
	if !ok {
		return nil
	}
	return v(d)
}

// ValidateForSubmit runs every step's validator in order and returns the first failure.
// INVARIANT: Draft fields are not mutated
func (d Draft) ValidateForSubmit() error {
	for _, s := range []Step{StepAccountType, StepProfilePicture, StepClassInfo, StepSecurity} {
		if err := d.ValidateStep(s); err != nil {
			return err
		}
	}
	return nil
}

func validateAccount(d Draft) error {
	if !slices.Contains(RegistrableRoles, d.UserType) {
		return &ValidationError{Step: StepAccountType, Msg: "Please select account type"}
	}
	if d.SchoolID == "" || d.Firstname == "" || d.Lastname == "" || d.Email == "" {
		return &ValidationError{Step: StepAccountType, Msg: "Please fill all required fields"}
	}
	return nil
}

func validateClasses(d Draft) error {
	if d.UserType == account.RoleStudent && d.ClassID == "" {
		return &ValidationError{Step: StepClassInfo, Msg: "Please select your class"}
	}
	return nil
}

func validateSecurity(d Draft) error {
	if d.Password == "" || d.ConfirmPassword == "" {
		return &ValidationError{Step: StepSecurity, Msg: "Please fill password fields"}
	}
	if d.Password != d.ConfirmPassword {
		return &ValidationError{Step: StepSecurity, Msg: "Passwords do not match"}
	}
	if len([]rune(d.Password)) < MinPasswordLength {
		return &ValidationError{Step: StepSecurity, Msg: "Password must be at least 6 characters"}
	}
	return nil
}
