package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tiendita-shop/tiendita/internal/shared"
	"github.com/tiendita-shop/tiendita/internal/validate"
	"github.com/tiendita-shop/tiendita/internal/view"
)

// Handler serves login, logout and email confirmation pages.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
	views    *view.Engine
}

// NewHandler constructs the auth handler.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, views *view.Engine) *Handler {
	return &Handler{logger: logger, service: service, sessions: sessions, views: views}
}

// MountRoutes registers auth routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.loginForm)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Get("/check-email", h.checkEmail)
	r.Get("/callback", h.callback)
}

type loginPage struct {
	Next   string
	Form   struct{ Email string }
	Errors validate.Fields
}

func (h *Handler) loginForm(w http.ResponseWriter, r *http.Request) {
	page := loginPage{Next: SafeNext(r.URL.Query().Get("next"))}
	page.Form.Email = r.URL.Query().Get("email")
	h.renderLogin(w, r, page)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	page := loginPage{Next: SafeNext(r.PostFormValue("next")), Errors: validate.Fields{}}
	email, emailErr := validate.Email(r.PostFormValue("email"))
	page.Form.Email = email
	password := r.PostFormValue("password")
	if emailErr != "" {
		page.Errors["Email"] = emailErr
	}
	if password == "" {
		page.Errors["Password"] = "Enter your password"
	}
	if !page.Errors.Ok() {
		h.renderLogin(w, r, page)
		return
	}

	user, err := h.service.Authenticate(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailNotConfirmed):
			page.Errors["general"] = "Please confirm your email first. Check your inbox for the link."
		case errors.Is(err, shared.ErrInvalidCredentials):
			page.Errors["general"] = shared.UserSafeMessage(err)
		default:
			h.logger.Error("login failed", slog.String("error", err.Error()))
			page.Errors["general"] = shared.UserSafeMessage(err)
		}
		h.renderLogin(w, r, page)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	sess.SetUser(user.ID)
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, h.sessions.TTL(), clientIP(r), r.UserAgent()); err != nil {
		h.logger.Warn("session audit write failed", slog.String("error", err.Error()))
	}

	next := page.Next
	if next == "" {
		next = "/onboarding"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("session audit delete failed", slog.String("error", err.Error()))
		}
		h.sessions.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) checkEmail(w http.ResponseWriter, r *http.Request) {
	data := struct{ Email string }{Email: r.URL.Query().Get("email")}
	h.render(w, r, "pages/auth/check_email.html", "Check your email", data)
}

// callback lands the user from the confirmation link. A spent or unknown
// token still sends them to login so a double-clicked link is harmless.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	next := SafeNext(r.URL.Query().Get("next"))

	sess := shared.SessionFromContext(r.Context())
	user, err := h.service.Confirm(r.Context(), token)
	if err != nil {
		if !errors.Is(err, ErrTokenInvalid) {
			h.logger.Error("confirmation failed", slog.String("error", err.Error()))
		}
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "That confirmation link is invalid or was already used."})
		}
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Email confirmed. You can sign in now."})
	}
	target := "/auth/login?" + url.Values{"email": {user.Email}, "next": {next}}.Encode()
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, page loginPage) {
	if page.Errors == nil {
		page.Errors = validate.Fields{}
	}
	h.render(w, r, "pages/auth/login.html", "Sign in", page)
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

// SafeNext keeps return URLs on-site. Anything that is not a local path
// collapses to empty.
func SafeNext(next string) string {
	if next == "" {
		return ""
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	return next
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
