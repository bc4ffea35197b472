// Package storefront serves the public shop pages: the product grid, the
// product detail page, the session cart and the WhatsApp checkout hand-off.
package storefront

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tiendita-shop/tiendita/internal/cart"
	"github.com/tiendita-shop/tiendita/internal/catalog"
	"github.com/tiendita-shop/tiendita/internal/observability"
	"github.com/tiendita-shop/tiendita/internal/shared"
	"github.com/tiendita-shop/tiendita/internal/tenant"
	"github.com/tiendita-shop/tiendita/internal/view"
)

// Handler serves the public storefront for a tenant.
type Handler struct {
	logger  *slog.Logger
	tenants *tenant.Service
	catalog *catalog.Service
	views   *view.Engine
	metrics *observability.Metrics
}

// NewHandler constructs the storefront handler. metrics may be nil.
func NewHandler(logger *slog.Logger, tenants *tenant.Service, catalogSvc *catalog.Service, views *view.Engine, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, tenants: tenants, catalog: catalogSvc, views: views, metrics: metrics}
}

// MountRoutes registers storefront routes on the tenant subrouter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.storefront)
	r.Get("/p/{productID}", h.productDetail)
	r.Post("/cart/add", h.cartAdd)
	r.Post("/cart/update", h.cartUpdate)
	r.Post("/cart/remove", h.cartRemove)
	r.Post("/cart/clear", h.cartClear)
	r.Post("/checkout", h.checkout)
}

type storefrontPage struct {
	Tenant          *tenant.Tenant
	IsAdmin         bool
	Products        []*catalog.Product
	Cart            *cart.Cart
	CheckoutEnabled bool
}

func (h *Handler) storefront(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	products, err := h.catalog.List(r.Context(), t.ID)
	if err != nil {
		h.logger.Error("list products", slog.String("tenant_id", t.ID), slog.String("error", err.Error()))
		http.Error(w, shared.UserSafeMessage(err), http.StatusInternalServerError)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	page := storefrontPage{
		Tenant:          t,
		IsAdmin:         h.isAdmin(r, t),
		Cart:            cart.FromSession(sess, t.ID),
		CheckoutEnabled: t.CheckoutEnabled(),
	}
	for i := range products {
		page.Products = append(page.Products, &products[i])
	}
	h.render(w, r, "pages/shop/storefront.html", t.Name, page)
}

func (h *Handler) productDetail(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	p, err := h.catalog.Get(r.Context(), t.ID, chi.URLParam(r, "productID"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.renderNotFound(w, r)
			return
		}
		h.logger.Error("product detail", slog.String("error", err.Error()))
		http.Error(w, shared.UserSafeMessage(err), http.StatusInternalServerError)
		return
	}
	data := struct {
		Tenant  *tenant.Tenant
		Product *catalog.Product
	}{Tenant: t, Product: p}
	h.render(w, r, "pages/shop/product_detail.html", p.Name, data)
}

func (h *Handler) cartAdd(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	productID := r.PostFormValue("product_id")
	quantity, _ := strconv.Atoi(r.PostFormValue("quantity"))
	if quantity < 1 {
		quantity = 1
	}

	p, err := h.catalog.Get(r.Context(), t.ID, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.renderNotFound(w, r)
			return
		}
		http.Error(w, shared.UserSafeMessage(err), http.StatusInternalServerError)
		return
	}

	c := cart.FromSession(sess, t.ID)
	if err := c.Add(p, quantity); err != nil {
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Sorry, that product is out of stock."})
		}
		h.redirectToStore(w, r, t)
		return
	}
	cart.SaveToSession(sess, c)
	h.redirectToStore(w, r, t)
}

func (h *Handler) cartUpdate(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	productID := r.PostFormValue("product_id")
	quantity, err := strconv.Atoi(r.PostFormValue("quantity"))
	if err != nil {
		h.redirectToStore(w, r, t)
		return
	}

	c := cart.FromSession(sess, t.ID)
	if quantity > 0 {
		// Cap the requested quantity at what the store still has.
		if p, err := h.catalog.Get(r.Context(), t.ID, productID); err == nil && quantity > p.InventoryCount {
			quantity = p.InventoryCount
		}
	}
	c.SetQuantity(productID, quantity)
	cart.SaveToSession(sess, c)
	h.redirectToStore(w, r, t)
}

func (h *Handler) cartRemove(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	c := cart.FromSession(sess, t.ID)
	c.Remove(r.PostFormValue("product_id"))
	cart.SaveToSession(sess, c)
	h.redirectToStore(w, r, t)
}

func (h *Handler) cartClear(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	cart.ClearFromSession(sess, t.ID)
	h.redirectToStore(w, r, t)
}

// checkout renders the order message and the wa.me link, then clears the
// cart: the order now lives in the WhatsApp conversation, not here.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	c := cart.FromSession(sess, t.ID)
	if c.IsEmpty() {
		h.redirectToStore(w, r, t)
		return
	}

	message := cart.ComposeMessage(t.Name, c)
	link, err := cart.CheckoutLink(t.WhatsAppNumber, message)
	if err != nil {
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(err)})
		}
		h.redirectToStore(w, r, t)
		return
	}

	cart.ClearFromSession(sess, t.ID)
	if h.metrics != nil {
		h.metrics.CheckoutHandoff()
	}
	h.logger.Info("checkout handoff",
		slog.String("tenant_id", t.ID),
		slog.Int("items", c.ItemCount()))

	data := struct {
		Tenant      *tenant.Tenant
		Message     string
		WhatsAppURL string
	}{Tenant: t, Message: message, WhatsAppURL: link}
	h.render(w, r, "pages/shop/checkout.html", "Checkout", data)
}

func (h *Handler) resolveTenant(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, bool) {
	slug := chi.URLParam(r, "tenantSlug")
	t, err := h.tenants.Resolve(r.Context(), slug)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.renderNotFound(w, r)
			return nil, false
		}
		h.logger.Error("resolve tenant", slog.String("slug", slug), slog.String("error", err.Error()))
		http.Error(w, shared.UserSafeMessage(err), http.StatusInternalServerError)
		return nil, false
	}
	return t, true
}

func (h *Handler) isAdmin(r *http.Request, t *tenant.Tenant) bool {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return false
	}
	return h.tenants.Authorize(r.Context(), t.ID, sess.User()) == nil
}

func (h *Handler) redirectToStore(w http.ResponseWriter, r *http.Request, t *tenant.Tenant) {
	http.Redirect(w, r, "/t/"+t.Slug, http.StatusSeeOther)
}

func (h *Handler) renderNotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	h.render(w, r, "pages/not_found.html", "Not found", nil)
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
