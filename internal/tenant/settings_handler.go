package tenant

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/tiendita-shop/tiendita/internal/shared"
	"github.com/tiendita-shop/tiendita/internal/validate"
	"github.com/tiendita-shop/tiendita/internal/view"
)

// SettingsHandler serves the store settings pages under the tenant admin.
type SettingsHandler struct {
	logger  *slog.Logger
	service *Service
	views   *view.Engine
}

// NewSettingsHandler constructs the settings handler.
func NewSettingsHandler(logger *slog.Logger, service *Service, views *view.Engine) *SettingsHandler {
	return &SettingsHandler{logger: logger, service: service, views: views}
}

// MountRoutes registers settings routes on the admin subrouter.
func (h *SettingsHandler) MountRoutes(r chi.Router) {
	r.Get("/settings", h.settingsForm)
	r.Post("/settings", h.saveSettings)
}

type settingsPage struct {
	Tenant *Tenant
	Form   struct{ WhatsAppNumber string }
	Errors validate.Fields
}

func (h *SettingsHandler) settingsForm(w http.ResponseWriter, r *http.Request) {
	t, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	page := settingsPage{Tenant: t, Errors: validate.Fields{}}
	page.Form.WhatsAppNumber = t.WhatsAppNumber
	h.render(w, r, page)
}

func (h *SettingsHandler) saveSettings(w http.ResponseWriter, r *http.Request) {
	t, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	page := settingsPage{Tenant: t, Errors: validate.Fields{}}
	number := r.PostFormValue("whatsapp_number")
	page.Form.WhatsAppNumber = number
	if msg := validate.WhatsAppNumber(number); msg != "" {
		page.Errors["whatsapp_number"] = msg
		h.render(w, r, page)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if err := h.service.UpdateWhatsAppNumber(r.Context(), t, sess.User(), number); err != nil {
		h.logger.Error("update whatsapp number", slog.String("tenant_id", t.ID), slog.String("error", err.Error()))
		page.Errors["general"] = shared.UserSafeMessage(err)
		h.render(w, r, page)
		return
	}

	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Settings saved."})
	}
	http.Redirect(w, r, "/t/"+t.Slug+"/admin/settings", http.StatusSeeOther)
}

// requireMember resolves the tenant, bounces anonymous users to login and
// rejects authenticated non-members outright.
func (h *SettingsHandler) requireMember(w http.ResponseWriter, r *http.Request) (*Tenant, bool) {
	slug := chi.URLParam(r, "tenantSlug")
	t, err := h.service.Resolve(r.Context(), slug)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
			return nil, false
		}
		h.logger.Error("resolve tenant", slog.String("slug", slug), slog.String("error", err.Error()))
		http.Error(w, shared.UserSafeMessage(err), http.StatusInternalServerError)
		return nil, false
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		next := url.Values{"next": {r.URL.Path}}
		http.Redirect(w, r, "/auth/login?"+next.Encode(), http.StatusSeeOther)
		return nil, false
	}
	if err := h.service.Authorize(r.Context(), t.ID, sess.User()); err != nil {
		http.Error(w, shared.UserSafeMessage(shared.ErrPermissionDenied), http.StatusForbidden)
		return nil, false
	}
	return t, true
}

func (h *SettingsHandler) render(w http.ResponseWriter, r *http.Request, page settingsPage) {
	td := view.TemplateData{Title: "Settings", CurrentPath: r.URL.Path, Data: page}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		td.CSRFToken = sess.Get(shared.CSRFSessionKey)
		td.Flash = sess.PopFlash()
	}
	if err := h.views.Render(w, "pages/admin/settings.html", td); err != nil {
		h.logger.Error("render failed", slog.String("error", err.Error()))
	}
}
