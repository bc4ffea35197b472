package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/tiendita-shop/tiendita/internal/images"
	"github.com/tiendita-shop/tiendita/internal/shared"
	"github.com/tiendita-shop/tiendita/internal/tenant"
	"github.com/tiendita-shop/tiendita/internal/validate"
	"github.com/tiendita-shop/tiendita/internal/view"
)

const maxUploadBytes = 32 << 20

// Handler serves the tenant admin product pages.
type Handler struct {
	logger   *slog.Logger
	tenants  *tenant.Service
	service  *Service
	ingestor *images.Ingestor
	views    *view.Engine
}

// NewHandler constructs the admin catalog handler.
func NewHandler(logger *slog.Logger, tenants *tenant.Service, service *Service, ingestor *images.Ingestor, views *view.Engine) *Handler {
	return &Handler{logger: logger, tenants: tenants, service: service, ingestor: ingestor, views: views}
}

// MountRoutes registers product admin routes on the admin subrouter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/new", h.newForm)
	r.Post("/products", h.create)
	r.Get("/products/{productID}/edit", h.editForm)
	r.Post("/products/{productID}", h.update)
	r.Post("/products/{productID}/decrement", h.decrement)
	r.Post("/products/{productID}/cleanup-images", h.cleanupImages)
}

type productForm struct {
	Name           string
	Brand          string
	Size           string
	Code           string
	Description    string
	Details        string
	Extras         string
	Price          string
	InventoryCount string
}

type formPage struct {
	Tenant  *tenant.Tenant
	Product *Product
	Form    productForm
	Errors  validate.Fields
}

type listPage struct {
	Tenant   *tenant.Tenant
	Products []*Product
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	t, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	products, err := h.service.List(r.Context(), t.ID)
	if err != nil {
		h.logger.Error("list products", slog.String("tenant_id", t.ID), slog.String("error", err.Error()))
		http.Error(w, shared.UserSafeMessage(err), http.StatusInternalServerError)
		return
	}
	page := listPage{Tenant: t}
	for i := range products {
		page.Products = append(page.Products, &products[i])
	}
	h.render(w, r, "pages/admin/products_list.html", "Products", page)
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	t, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/admin/product_form.html", "New product", formPage{Tenant: t, Errors: validate.Fields{}})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	t, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	form, input, errs := h.parseProductForm(r)
	page := formPage{Tenant: t, Form: form, Errors: errs}
	if !errs.Ok() {
		h.render(w, r, "pages/admin/product_form.html", "New product", page)
		return
	}

	uploads, uploadErr := h.ingest(r, t.Slug)
	if uploadErr != nil && len(uploads) == 0 {
		page.Errors["general"] = "Images failed to upload. Please try again."
		h.render(w, r, "pages/admin/product_form.html", "New product", page)
		return
	}

	if _, err := h.service.Create(r.Context(), t.ID, input, uploads); err != nil {
		h.logger.Error("create product", slog.String("tenant_id", t.ID), slog.String("error", err.Error()))
		page.Errors["general"] = shared.UserSafeMessage(err)
		h.render(w, r, "pages/admin/product_form.html", "New product", page)
		return
	}

	h.flashAfterSave(r, uploadErr, "Product created.")
	http.Redirect(w, r, "/t/"+t.Slug+"/admin/products", http.StatusSeeOther)
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	t, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), t.ID, chi.URLParam(r, "productID"))
	if err != nil {
		h.productError(w, r, t, err)
		return
	}
	page := formPage{
		Tenant:  t,
		Product: p,
		Errors:  validate.Fields{},
		Form: productForm{
			Name:           p.Name,
			Brand:          p.Brand,
			Size:           p.Size,
			Code:           p.Code,
			Description:    p.Description,
			Details:        p.Details,
			Extras:         p.Extras,
			Price:          fmt.Sprintf("%g", p.Price),
			InventoryCount: fmt.Sprintf("%d", p.InventoryCount),
		},
	}
	h.render(w, r, "pages/admin/product_form.html", "Edit product", page)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	t, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	existing, err := h.service.Get(r.Context(), t.ID, productID)
	if err != nil {
		h.productError(w, r, t, err)
		return
	}

	form, input, errs := h.parseProductForm(r)
	page := formPage{Tenant: t, Product: existing, Form: form, Errors: errs}
	if !errs.Ok() {
		h.render(w, r, "pages/admin/product_form.html", "Edit product", page)
		return
	}

	uploads, uploadErr := h.ingest(r, t.Slug)
	if uploadErr != nil && len(uploads) == 0 {
		page.Errors["general"] = "Images failed to upload. Please try again."
		h.render(w, r, "pages/admin/product_form.html", "Edit product", page)
		return
	}

	if _, err := h.service.Update(r.Context(), t.ID, productID, input, uploads); err != nil {
		h.logger.Error("update product", slog.String("product_id", productID), slog.String("error", err.Error()))
		page.Errors["general"] = shared.UserSafeMessage(err)
		h.render(w, r, "pages/admin/product_form.html", "Edit product", page)
		return
	}

	h.flashAfterSave(r, uploadErr, "Product updated.")
	http.Redirect(w, r, "/t/"+t.Slug+"/admin/products", http.StatusSeeOther)
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	t, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	previous, next, err := h.service.DecrementInventory(r.Context(), t.ID, productID)
	if err != nil {
		h.productError(w, r, t, err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{
			Kind:    "success",
			Message: fmt.Sprintf("Stock updated: %d → %d", previous, next),
		})
	}
	http.Redirect(w, r, "/t/"+t.Slug+"/admin/products", http.StatusSeeOther)
}

func (h *Handler) cleanupImages(w http.ResponseWriter, r *http.Request) {
	t, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	removed, err := h.service.CleanupImages(r.Context(), t.ID, productID)
	if err != nil {
		h.productError(w, r, t, err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		msg := "No broken images found."
		if removed > 0 {
			msg = fmt.Sprintf("Removed %d broken image(s).", removed)
		}
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: msg})
	}
	http.Redirect(w, r, "/t/"+t.Slug+"/admin/products", http.StatusSeeOther)
}

// parseProductForm reads the multipart form into the raw form echo, the
// coerced input and any field errors.
func (h *Handler) parseProductForm(r *http.Request) (productForm, ProductInput, validate.Fields) {
	errs := validate.Fields{}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		errs["general"] = "Could not read the form. Try smaller images."
		return productForm{}, ProductInput{}, errs
	}

	form := productForm{
		Name:           r.PostFormValue("name"),
		Brand:          r.PostFormValue("brand"),
		Size:           r.PostFormValue("size"),
		Code:           r.PostFormValue("code"),
		Description:    r.PostFormValue("description"),
		Details:        r.PostFormValue("details"),
		Extras:         r.PostFormValue("extras"),
		Price:          r.PostFormValue("price"),
		InventoryCount: r.PostFormValue("inventory_count"),
	}
	if form.Name == "" {
		errs["name"] = "Please enter a product name"
	}

	input := ProductInput{
		Name:           form.Name,
		Brand:          form.Brand,
		Size:           form.Size,
		Code:           form.Code,
		Description:    form.Description,
		Details:        form.Details,
		Extras:         form.Extras,
		Price:          validate.Price(form.Price),
		InventoryCount: validate.InventoryCount(form.InventoryCount),
	}
	return form, input, errs
}

// ingest uploads the attached files and converts them to catalog images.
// Partial failures come back as the error alongside the successes.
func (h *Handler) ingest(r *http.Request, tenantSlug string) ([]Image, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File["images"]
	uploads, err := h.ingestor.Ingest(r.Context(), tenantSlug, files)
	result := make([]Image, 0, len(uploads))
	for _, u := range uploads {
		result = append(result, Image{URL: u.URL, Path: u.Path})
	}
	return result, err
}

func (h *Handler) flashAfterSave(r *http.Request, uploadErr error, success string) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return
	}
	if uploadErr != nil {
		var partial *images.PartialFailure
		if errors.As(uploadErr, &partial) {
			sess.AddFlash(shared.FlashMessage{
				Kind:    "warning",
				Message: fmt.Sprintf("Saved, but %d image(s) failed to upload.", len(partial.Failed)),
			})
			return
		}
	}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: success})
}

func (h *Handler) productError(w http.ResponseWriter, r *http.Request, t *tenant.Tenant, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	h.logger.Error("product operation failed", slog.String("tenant_id", t.ID), slog.String("error", err.Error()))
	http.Error(w, shared.UserSafeMessage(err), http.StatusInternalServerError)
}

// requireMember resolves the tenant and checks the session user belongs to
// it. Anonymous users bounce to login; signed-in users without a store go
// to onboarding instead of a bare 403.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, bool) {
	slug := chi.URLParam(r, "tenantSlug")
	t, err := h.tenants.Resolve(r.Context(), slug)
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
	if err := h.tenants.Authorize(r.Context(), t.ID, sess.User()); err != nil {
		if errors.Is(err, shared.ErrPermissionDenied) {
			http.Redirect(w, r, "/onboarding", http.StatusSeeOther)
			return nil, false
		}
		h.logger.Error("authorize", slog.String("tenant_id", t.ID), slog.String("error", err.Error()))
		http.Error(w, shared.UserSafeMessage(err), http.StatusInternalServerError)
		return nil, false
	}
	return t, true
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
