package web

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"facultyeval/internal/application/orchestrators"
	"facultyeval/internal/domain/account"
	"facultyeval/internal/domain/registration"
)

// draftCookieName holds the id of the visitor's registration draft.
const draftCookieName = "fes_draft"

// actionSubmit is the final button of the security step.
const actionSubmit = "submit"

// registerView is the data of register.html.
type registerView struct {
	Draft       registration.Draft
	Steps       []registration.Step
	Roles       []account.Role
	Avatars     []string
	Classes     []account.Class
	ClassesErr  bool
	Help        template.HTML
	HasPreview  bool
	MinPassword int
	Completed   bool
	Message     string
}

// PageError implements the layout error banner.
func (v registerView) PageError() string { return v.Draft.Error }

func (s *server) setDraftCookie(w http.ResponseWriter, id string) {
	c := &http.Cookie{
		Name:     draftCookieName,
		Value:    id,
		HttpOnly: true,
		Secure:   s.deps.Options.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/register",
	}
	if ttl := s.deps.Options.DraftTTL; ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, c)
}

func (s *server) clearDraftCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     draftCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   s.deps.Options.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/register",
		MaxAge:   -1,
	})
}

func draftID(r *http.Request) string {
	if c, err := r.Cookie(draftCookieName); err == nil {
		return c.Value
	}
	return ""
}

// handleRegisterPage renders the wizard at the draft's current step.
func (s *server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	d, err := orchestrators.ExecuteLoadDraft(r.Context(), draftID(r), s.wizardDeps())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.setDraftCookie(w, d.ID)
	s.renderWizard(w, r, http.StatusOK, d)
}

// handleRegister handles every button of the wizard form: step navigation,
// picture choices and the final submission.
func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	id := draftID(r)
	action, avatar, _ := strings.Cut(r.PostFormValue("action"), ":")

	if action == actionSubmit {
		s.submitRegistration(w, r, id)
		return
	}

	input := orchestrators.WizardStepInput{
		DraftID: id,
		Action:  orchestrators.WizardAction(action),
		Account: registration.AccountInput{
			UserType:  r.PostFormValue("userType"),
			SchoolID:  r.PostFormValue("schoolId"),
			Firstname: r.PostFormValue("firstname"),
			Lastname:  r.PostFormValue("lastname"),
			Email:     r.PostFormValue("email"),
		},
		ClassID:         r.PostFormValue("classId"),
		ClassesHandled:  r.PostForm["classesHandled"],
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
		Avatar:          avatar,
	}

	// A picked file is attached before whichever button was pressed.
	file, header, err := r.FormFile("picture")
	if err == nil {
		defer file.Close()
		upload := input
		upload.Action = orchestrators.ActionUpload
		upload.Upload = &orchestrators.UploadInput{Reader: file, Size: header.Size}
		d, err := orchestrators.ExecuteWizardStep(r.Context(), upload, s.wizardDeps())
		if err != nil {
			s.wizardError(w, r, err)
			return
		}
		input.DraftID = d.ID
		if d.Error != "" {
			s.setDraftCookie(w, d.ID)
			s.renderWizard(w, r, http.StatusUnprocessableEntity, d)
			return
		}
		if input.Action == orchestrators.ActionUpload {
			s.setDraftCookie(w, d.ID)
			s.renderWizard(w, r, http.StatusOK, d)
			return
		}
	} else if input.Action == orchestrators.ActionUpload {
		input.Upload = &orchestrators.UploadInput{}
	}

	d, err := orchestrators.ExecuteWizardStep(r.Context(), input, s.wizardDeps())
	if err != nil {
		s.wizardError(w, r, err)
		return
	}
	s.setDraftCookie(w, d.ID)
	status := http.StatusOK
	if d.Error != "" {
		status = http.StatusUnprocessableEntity
	}
	s.renderWizard(w, r, status, d)
}

func (s *server) submitRegistration(w http.ResponseWriter, r *http.Request, id string) {
	res, err := orchestrators.ExecuteRegister(r.Context(), orchestrators.RegisterInput{
		DraftID:         id,
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}, orchestrators.RegisterDeps{
		WizardDeps: s.wizardDeps(),
		API:        s.deps.API,
		Email:      s.deps.Email,
		LoginURL:   s.publicURL("/login"),
		Progress:   s.uploadProgress(id),
		Metrics:    s.deps.Metrics,
	})
	if err != nil {
		s.wizardError(w, r, err)
		return
	}
	if res.Completed {
		s.clearDraftCookie(w)
		view := registerView{Draft: res.Draft, Steps: registration.Steps, Completed: true, Message: res.Message}
		s.render(w, r, http.StatusOK, "register.html", "Registration complete", view)
		return
	}
	s.renderWizard(w, r, http.StatusUnprocessableEntity, res.Draft)
}

// uploadProgress logs the multipart upload in quarter steps.
func (s *server) uploadProgress(draftID string) func(sent, total int64) {
	next := int64(25)
	return func(sent, total int64) {
		if total <= 0 {
			return
		}
		pct := sent * 100 / total
		if pct < next {
			return
		}
		s.log.Debug("registration_upload_progress", zap.String("draft_id", draftID), zap.Int64("percent", pct))
		next = (pct/25 + 1) * 25
	}
}

// wizardError maps orchestrator failures: a stale or foreign draft restarts
// the wizard, an out-of-order action re-renders the current step.
func (s *server) wizardError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registration.ErrDraftNotFound):
		s.clearDraftCookie(w)
		http.Redirect(w, r, "/register", http.StatusSeeOther)
	case errors.Is(err, registration.ErrTransitionNotAllowed), errors.Is(err, orchestrators.ErrUnknownAction):
		s.log.Info("wizard_rejected", zap.Error(err))
		http.Redirect(w, r, "/register", http.StatusSeeOther)
	default:
		s.internalError(w, r, err)
	}
}

// renderWizard renders the current step; the class step loads its picker options.
func (s *server) renderWizard(w http.ResponseWriter, r *http.Request, status int, d registration.Draft) {
	view := registerView{
		Draft:       d,
		Steps:       registration.Steps,
		Roles:       registration.RegistrableRoles,
		Avatars:     registration.DefaultAvatars,
		Help:        s.copy["step"+strconv.Itoa(int(d.Step))],
		HasPreview:  d.ProfilePicture != "",
		MinPassword: registration.MinPasswordLength,
	}
	if d.Step == registration.StepClassInfo {
		classes, err := s.deps.API.ListClasses(r.Context())
		if err != nil {
			s.log.Warn("classes_load_failed", zap.Error(err))
			view.ClassesErr = true
		}
		view.Classes = classes
	}
	s.render(w, r, status, "register.html", "Create account", view)
}

// handleRegisterPreview serves the uploaded picture of the visitor's own draft.
func (s *server) handleRegisterPreview(w http.ResponseWriter, r *http.Request) {
	id := draftID(r)
	if id == "" {
		http.NotFound(w, r)
		return
	}
	d, err := s.deps.Drafts.Get(r.Context(), id)
	if err != nil || d.ProfilePicture == "" {
		http.NotFound(w, r)
		return
	}
	f, err := s.deps.Uploads.Open(d.ProfilePicture)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", s.deps.Uploads.ContentType(d.ProfilePicture))
	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, r, d.ProfilePicture, info.ModTime(), f)
}

// handleRegisterReset handles POST /register/reset
func (s *server) handleRegisterReset(w http.ResponseWriter, r *http.Request) {
	if err := orchestrators.ExecuteResetWizard(r.Context(), draftID(r), s.wizardDeps()); err != nil {
		s.internalError(w, r, err)
		return
	}
	s.clearDraftCookie(w)
	http.Redirect(w, r, "/register", http.StatusSeeOther)
}

// publicURL builds a link to path on the configured public base URL.
// INVARIANT: never derived from the request Host
func (s *server) publicURL(path string) string {
	base := s.deps.Options.PublicURL
	if base == "" {
		return ""
	}
	return base + path
}
