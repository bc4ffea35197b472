// Package onboarding owns the signup funnel: the landing page form, the
// confirmation mail, and the dispatcher that creates the store once the
// user comes back confirmed.
package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/tiendita-shop/tiendita/internal/auth"
	"github.com/tiendita-shop/tiendita/internal/shared"
	"github.com/tiendita-shop/tiendita/internal/tenant"
	"github.com/tiendita-shop/tiendita/internal/validate"
	"github.com/tiendita-shop/tiendita/internal/view"
	"github.com/tiendita-shop/tiendita/jobs"
)

// Session keys carrying the desired store between signup and the
// post-confirmation dispatcher.
const (
	pendingNameKey = "pending_store_name"
	pendingSlugKey = "pending_store_slug"
)

// MailEnqueuer submits outbound mail to the job queue. Satisfied by
// jobs.Client.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Handler serves the landing page, signup and the onboarding dispatcher.
type Handler struct {
	logger  *slog.Logger
	auth    *auth.Service
	tenants *tenant.Service
	mail    MailEnqueuer
	views   *view.Engine
	siteURL string
}

// NewHandler constructs the onboarding handler.
func NewHandler(logger *slog.Logger, authSvc *auth.Service, tenants *tenant.Service, mail MailEnqueuer, views *view.Engine, siteURL string) *Handler {
	return &Handler{logger: logger, auth: authSvc, tenants: tenants, mail: mail, views: views, siteURL: siteURL}
}

// MountRoutes registers onboarding routes at the site root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.landing)
	r.Post("/signup", h.signup)
	r.Get("/onboarding", h.dispatch)
}

type signupForm struct {
	TenantName string
	TenantSlug string
	Email      string
}

type landingPage struct {
	Form   signupForm
	Errors validate.Fields
}

func (h *Handler) landing(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/landing.html", "Open your store", landingPage{Errors: validate.Fields{}})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	errs := validate.Fields{}
	name := r.PostFormValue("tenantName")
	slug := validate.CleanSlug(r.PostFormValue("tenantSlug"))
	email, emailErr := validate.Email(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	if msg := validate.TenantName(name); msg != "" {
		errs["tenantName"] = msg
	}
	if msg := validate.Slug(slug); msg != "" {
		errs["tenantSlug"] = msg
	}
	if emailErr != "" {
		errs["email"] = emailErr
	}
	if msg := validate.Password(password); msg != "" {
		errs["password"] = msg
	}

	page := landingPage{
		Form:   signupForm{TenantName: name, TenantSlug: slug, Email: email},
		Errors: errs,
	}
	if !errs.Ok() {
		h.render(w, r, "pages/landing.html", "Open your store", page)
		return
	}

	taken, err := h.tenants.SlugTaken(r.Context(), slug)
	if err != nil {
		h.logger.Error("slug check", slog.String("error", err.Error()))
		page.Errors["general"] = shared.UserSafeMessage(err)
		h.render(w, r, "pages/landing.html", "Open your store", page)
		return
	}
	if taken {
		page.Errors["tenantSlug"] = "That store link is already taken"
		h.render(w, r, "pages/landing.html", "Open your store", page)
		return
	}

	user, err := h.auth.SignUp(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			page.Errors["email"] = "An account with this email already exists. Try logging in."
		} else {
			h.logger.Error("signup", slog.String("error", err.Error()))
			page.Errors["general"] = shared.UserSafeMessage(err)
		}
		h.render(w, r, "pages/landing.html", "Open your store", page)
		return
	}

	// The desired store rides in the session until the user comes back
	// confirmed and the dispatcher creates it.
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Set(pendingNameKey, name)
		sess.Set(pendingSlugKey, slug)
	}

	payload := jobs.ConfirmationEmail(h.siteURL, user.Email, user.ConfirmToken)
	if _, err := h.mail.EnqueueSendEmail(r.Context(), payload); err != nil {
		h.logger.Error("enqueue confirmation mail", slog.String("error", err.Error()))
		page.Errors["general"] = shared.UserSafeMessage(err)
		h.render(w, r, "pages/landing.html", "Open your store", page)
		return
	}

	target := "/auth/check-email?" + url.Values{"email": {user.Email}}.Encode()
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// dispatch routes a confirmed user to the right place: their existing
// admin, a fresh store created from the pending signup, or back home when
// there is nothing pending.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		http.Redirect(w, r, "/auth/login?next=%2Fonboarding", http.StatusSeeOther)
		return
	}

	membership, err := h.tenants.MembershipForUser(r.Context(), sess.User())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if membership != nil {
		http.Redirect(w, r, "/t/"+membership.TenantSlug+"/admin/products", http.StatusSeeOther)
		return
	}

	name := sess.Get(pendingNameKey)
	slug := sess.Get(pendingSlugKey)
	if slug == "" || validate.Slug(slug) != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if name == "" {
		name = slug
	}

	taken, err := h.tenants.SlugTaken(r.Context(), slug)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if taken {
		h.render(w, r, "pages/onboarding_exists.html", "Store already exists", struct{ Slug string }{Slug: slug})
		return
	}

	created, err := h.tenants.CreateForUser(r.Context(), sess.User(), name, slug)
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			h.render(w, r, "pages/onboarding_exists.html", "Store already exists", struct{ Slug string }{Slug: slug})
			return
		}
		h.renderError(w, r, err)
		return
	}

	sess.Delete(pendingNameKey)
	sess.Delete(pendingSlugKey)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Your store is ready!"})
	http.Redirect(w, r, "/t/"+created.Slug+"/admin/products", http.StatusSeeOther)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("onboarding failed", slog.String("error", err.Error()))
	w.WriteHeader(http.StatusInternalServerError)
	h.render(w, r, "pages/onboarding_error.html", "Something went wrong",
		struct{ Message string }{Message: shared.UserSafeMessage(err)})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	td := view.TemplateData{Title: title, CurrentPath: r.URL.Path, Data: data}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		td.CSRFToken = sess.Get(shared.CSRFSessionKey)
		td.Flash = sess.PopFlash()
	}
	if err := h.views.Render(w, name, td); err != nil {
		h.logger.Error("render failed", slog.String("template", name), slog.String("error", err.Error()))
	}
}
