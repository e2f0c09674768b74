package orchestrators

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"facultyeval/internal/adapters/api"
	"facultyeval/internal/adapters/email"
	"facultyeval/internal/domain/profile"
	"facultyeval/internal/domain/registration"
	"facultyeval/internal/metrics"
)

// RegisterAPI is the upstream registration call.
type RegisterAPI interface {
	Register(ctx context.Context, in api.RegisterRequest, progress api.Progress) (string, error)
}

// RegisterInput carries the final wizard form.
type RegisterInput struct {
	DraftID         string
	Password        string
	ConfirmPassword string
}

// RegisterDeps holds dependencies for Register.
type RegisterDeps struct {
	WizardDeps
	API      RegisterAPI
	Email    email.Sender     // optional; nil skips the welcome email
	LoginURL string           // absolute link used in the welcome email
	Progress api.Progress     // optional
	Metrics  *metrics.Metrics // optional
}

// RegisterResult carries the outcome of a submission.
type RegisterResult struct {
	Draft     registration.Draft
	Completed bool
	Message   string // server message on success
}

// Registration outcomes counted in fes_registrations_total.
const (
	registrationOK       = "ok"
	registrationInvalid  = "invalid"
	registrationRejected = "rejected"
	registrationError    = "error"
)

// ExecuteRegister re-validates the whole draft and submits it to the API.
// PRE: The draft is on the security step
// POST: On success the draft is complete and deleted, its preview released and
// the welcome email attempted; on failure the draft stays on the failing step
// with every field retained and Draft.Error set, and the error is nil
func ExecuteRegister(ctx context.Context, input RegisterInput, deps RegisterDeps) (RegisterResult, error) {
	logger := deps.logger()
	d, err := getDraft(ctx, input.DraftID, deps.WizardDeps)
	if err != nil {
		return RegisterResult{}, err
	}
	if d.Step != registration.StepSecurity {
		return RegisterResult{Draft: d}, fmt.Errorf("%w: submit from step %d", registration.ErrTransitionNotAllowed, d.Step)
	}
	d.SetCredentials(input.Password, input.ConfirmPassword)

	if err := d.ValidateForSubmit(); err != nil {
		var verr *registration.ValidationError
		if !errors.As(err, &verr) {
			return RegisterResult{}, err
		}
		d.Step, d.Error = verr.Step, verr.Msg
		deps.Metrics.ObserveRegistration(registrationInvalid)
		return RegisterResult{Draft: d}, saveDraft(ctx, &d, deps.WizardDeps)
	}

	req, closePicture, err := buildRegisterRequest(d, deps.Uploads)
	if err != nil {
		logger.Warn("preview_missing", zap.String("draft_id", d.ID), zap.Error(err))
		d.ClearPicture()
		d.Step, d.Error = registration.StepProfilePicture, "Your photo preview expired, please upload it again"
		return RegisterResult{Draft: d}, saveDraft(ctx, &d, deps.WizardDeps)
	}
	msg, err := deps.API.Register(ctx, req, deps.Progress)
	closePicture()

	if err != nil {
		failure := "Registration failed"
		var apiErr *api.Error
		switch {
		case errors.As(err, &apiErr):
			failure = apiErr.Message
			deps.Metrics.ObserveRegistration(registrationRejected)
			logger.Info("registration_rejected", zap.String("draft_id", d.ID), zap.Int("status", apiErr.Status), zap.String("message", apiErr.Message))
		case errors.Is(err, context.DeadlineExceeded):
			failure = "Registration failed: the server took too long to respond"
			deps.Metrics.ObserveRegistration(registrationError)
			logger.Warn("registration_timeout", zap.String("draft_id", d.ID))
		default:
			deps.Metrics.ObserveRegistration(registrationError)
			logger.Warn("registration_error", zap.String("draft_id", d.ID), zap.Error(err))
		}
		if ferr := d.Submitted(false, failure); ferr != nil {
			return RegisterResult{}, ferr
		}
		return RegisterResult{Draft: d}, saveDraft(ctx, &d, deps.WizardDeps)
	}

	if err := d.Submitted(true, ""); err != nil {
		return RegisterResult{}, err
	}
	deps.Metrics.ObserveRegistration(registrationOK)
	logger.Info("registration_completed", zap.String("draft_id", d.ID), zap.String("role", string(d.UserType)))

	deps.Uploads.Release(d.ClearPicture())
	if err := deps.Drafts.Delete(ctx, d.ID); err != nil {
		logger.Warn("draft_delete_failed", zap.String("draft_id", d.ID), zap.Error(err))
	}
	sendWelcome(ctx, d, deps)
	d.SetCredentials("", "")
	return RegisterResult{Draft: d, Completed: true, Message: msg}, nil
}

func saveDraft(ctx context.Context, d *registration.Draft, deps WizardDeps) error {
	d.UpdatedAt = deps.now()
	if err := deps.Drafts.Save(ctx, *d); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// buildRegisterRequest maps the draft to the multipart fields. The returned
// func closes the opened preview file and is always safe to call.
func buildRegisterRequest(d registration.Draft, uploads UploadStore) (api.RegisterRequest, func(), error) {
	req := api.RegisterRequest{
		UserType:        string(d.UserType),
		SchoolID:        d.SchoolID,
		Firstname:       d.Firstname,
		Lastname:        d.Lastname,
		Email:           d.Email,
		Password:        d.Password,
		ConfirmPassword: d.ConfirmPassword,
		SelectedAvatar:  d.SelectedAvatar,
		ClassID:         d.ClassID,
		ClassesHandled:  d.ClassesHandled,
	}
	if d.ProfilePicture == "" {
		return req, func() {}, nil
	}
	f, err := uploads.Open(d.ProfilePicture)
	if err != nil {
		return api.RegisterRequest{}, func() {}, fmt.Errorf("open preview: %w", err)
	}
	req.Picture = &api.Picture{
		Filename:    d.ProfilePicture,
		ContentType: uploads.ContentType(d.ProfilePicture),
		Data:        f,
	}
	return req, func() { f.Close() }, nil
}

// sendWelcome is best effort; a failed email never fails the registration.
func sendWelcome(ctx context.Context, d registration.Draft, deps RegisterDeps) {
	if deps.Email == nil {
		return
	}
	msg, err := email.Welcome(email.WelcomeInput{
		Email:     d.Email,
		Firstname: d.Firstname,
		Role:      profile.RoleLabel(d.UserType),
		LoginURL:  deps.LoginURL,
	})
	if err == nil {
		_, err = deps.Email.Send(ctx, msg)
	}
	if err != nil {
		deps.logger().Warn("welcome_email_failed", zap.String("draft_id", d.ID), zap.Error(err))
	}
}
