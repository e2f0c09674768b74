package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"facultyeval/internal/domain/registration"
)

// DraftStore persists wizard drafts.
type DraftStore interface {
	Get(ctx context.Context, id string) (registration.Draft, error)
	Save(ctx context.Context, d registration.Draft) error
	Delete(ctx context.Context, id string) error
}

// UploadStore holds profile picture previews.
type UploadStore interface {
	Save(r io.Reader, size int64) (handle, contentType string, err error)
	Open(handle string) (*os.File, error)
	ContentType(handle string) string
	Release(handle string)
}

// WizardAction is a button of the registration form.
type WizardAction string

// Wizard actions.
const (
	ActionNext          WizardAction = "next"
	ActionBack          WizardAction = "back"
	ActionUpload        WizardAction = "upload"
	ActionAvatar        WizardAction = "avatar"
	ActionRemovePicture WizardAction = "remove_picture"
)

// ErrUnknownAction is returned for a form button the wizard does not know.
var ErrUnknownAction = errors.New("unknown wizard action")

// UploadInput is a picture posted with the form.
type UploadInput struct {
	Reader io.Reader
	Size   int64
}

// WizardStepInput carries one posted wizard form. Only the fields belonging
// to the draft's current step are applied.
type WizardStepInput struct {
	DraftID         string
	Action          WizardAction
	Account         registration.AccountInput
	ClassID         string
	ClassesHandled  []string
	Password        string
	ConfirmPassword string
	Avatar          string
	Upload          *UploadInput
}

// WizardDeps holds dependencies for the wizard orchestrators.
type WizardDeps struct {
	Drafts  DraftStore
	Uploads UploadStore
	Now     func() time.Time
	Logger  *zap.Logger // optional
}

func (d WizardDeps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d WizardDeps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// getDraft loads a draft, discarding one that can no longer be read.
// POST: An unreadable draft is deleted, its preview released, and
// ErrDraftNotFound returned in its place
func getDraft(ctx context.Context, id string, deps WizardDeps) (registration.Draft, error) {
	d, err := deps.Drafts.Get(ctx, id)
	if !errors.Is(err, registration.ErrDraftUnreadable) {
		return d, err
	}
	deps.logger().Warn("draft_discarded", zap.String("draft_id", id), zap.Error(err))
	deps.Uploads.Release(d.ProfilePicture)
	if derr := deps.Drafts.Delete(ctx, id); derr != nil {
		return registration.Draft{}, fmt.Errorf("discard draft: %w", derr)
	}
	return registration.Draft{}, registration.ErrDraftNotFound
}

// ExecuteLoadDraft returns the draft for id, starting a new one when id is
// empty, unknown or unreadable.
// POST: The returned draft is persisted; callers store its ID in the cookie
func ExecuteLoadDraft(ctx context.Context, id string, deps WizardDeps) (registration.Draft, error) {
	if id != "" {
		d, err := getDraft(ctx, id, deps)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, registration.ErrDraftNotFound) {
			return registration.Draft{}, err
		}
	}
	d := registration.NewDraft(deps.now())
	if err := deps.Drafts.Save(ctx, d); err != nil {
		return registration.Draft{}, fmt.Errorf("start draft: %w", err)
	}
	deps.logger().Debug("wizard_started", zap.String("draft_id", d.ID))
	return d, nil
}

// ExecuteWizardStep applies one posted form to the draft and moves the wizard.
// PRE: input.Action is not a submission; use ExecuteRegister for that
// POST: Validation failures leave the step unchanged with Draft.Error set and
// return a nil error; replaced preview files are released
func ExecuteWizardStep(ctx context.Context, input WizardStepInput, deps WizardDeps) (registration.Draft, error) {
	d, err := ExecuteLoadDraft(ctx, input.DraftID, deps)
	if err != nil {
		return registration.Draft{}, err
	}
	applyStepFields(&d, input)

	switch input.Action {
	case ActionNext:
		err = d.Next()
	case ActionBack:
		err = d.Back()
	case ActionUpload:
		err = attachUpload(&d, input.Upload, deps.Uploads)
	case ActionAvatar:
		var released string
		released, err = d.SelectAvatar(input.Avatar)
		if errors.Is(err, registration.ErrUnknownAvatar) {
			err = &registration.ValidationError{Step: d.Step, Msg: "Please choose one of the listed avatars"}
		} else {
			deps.Uploads.Release(released)
			d.Error = ""
		}
	case ActionRemovePicture:
		deps.Uploads.Release(d.ClearPicture())
		d.Error = ""
	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownAction, input.Action)
	}

	var verr *registration.ValidationError
	switch {
	case errors.As(err, &verr):
		d.Error = verr.Msg
	case err != nil:
		return d, err
	}

	d.UpdatedAt = deps.now()
	if err := deps.Drafts.Save(ctx, d); err != nil {
		return registration.Draft{}, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

// applyStepFields copies the form fields of the draft's current step.
func applyStepFields(d *registration.Draft, in WizardStepInput) {
	switch d.Step {
	case registration.StepAccountType:
		d.SetAccount(in.Account)
	case registration.StepClassInfo:
		d.SetClasses(in.ClassID, in.ClassesHandled)
	case registration.StepSecurity:
		d.SetCredentials(in.Password, in.ConfirmPassword)
	}
}

func attachUpload(d *registration.Draft, in *UploadInput, uploads UploadStore) error {
	if in == nil || in.Reader == nil {
		return &registration.ValidationError{Step: d.Step, Msg: "Please select a valid image file (JPEG, PNG, GIF, or WebP)"}
	}
	handle, _, err := uploads.Save(in.Reader, in.Size)
	if err != nil {
		return err
	}
	uploads.Release(d.SetUpload(handle))
	d.Error = ""
	return nil
}

// ExecuteResetWizard discards a draft and its preview.
// POST: No draft with id remains and its upload is released
func ExecuteResetWizard(ctx context.Context, id string, deps WizardDeps) error {
	if id == "" {
		return nil
	}
	d, err := getDraft(ctx, id, deps)
	if errors.Is(err, registration.ErrDraftNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	deps.Uploads.Release(d.ClearPicture())
	return deps.Drafts.Delete(ctx, id)
}
