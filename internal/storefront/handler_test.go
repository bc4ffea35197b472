package storefront

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendita-shop/tiendita/internal/cart"
	"github.com/tiendita-shop/tiendita/internal/catalog"
	"github.com/tiendita-shop/tiendita/internal/shared"
	"github.com/tiendita-shop/tiendita/internal/tenant"
	"github.com/tiendita-shop/tiendita/internal/view"
)

type tenantRepo struct {
	tenants map[string]*tenant.Tenant
}

func (m *tenantRepo) FindBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	for _, t := range m.tenants {
		if t.Slug == slug {
			copy := *t
			return &copy, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *tenantRepo) FindByID(_ context.Context, id string) (*tenant.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

func (m *tenantRepo) SlugExists(_ context.Context, slug string) (bool, error) {
	_, err := m.FindBySlug(context.Background(), slug)
	return err == nil, nil
}

func (m *tenantRepo) CreateWithOwner(_ context.Context, t tenant.Tenant, _ string) error {
	stored := t
	m.tenants[t.ID] = &stored
	return nil
}

func (m *tenantRepo) UpdateWhatsAppNumber(_ context.Context, tenantID, number string) error {
	t, ok := m.tenants[tenantID]
	if !ok {
		return shared.ErrNotFound
	}
	t.WhatsAppNumber = number
	return nil
}

func (m *tenantRepo) MembershipForUser(_ context.Context, _ string) (*tenant.Membership, error) {
	return nil, shared.ErrNotFound
}

func (m *tenantRepo) IsMember(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

type productRepo struct {
	products map[string]*catalog.Product
}

func (m *productRepo) Create(_ context.Context, p catalog.Product) error {
	stored := p
	m.products[p.ID] = &stored
	return nil
}

func (m *productRepo) Update(_ context.Context, p catalog.Product) error {
	stored := p
	m.products[p.ID] = &stored
	return nil
}

func (m *productRepo) FindByID(_ context.Context, tenantID, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *productRepo) ListByTenant(_ context.Context, tenantID string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range m.products {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *productRepo) UpdateImages(_ context.Context, _, _ string, _ []catalog.Image) error {
	return nil
}

func (m *productRepo) DecrementInventory(_ context.Context, _, _ string) (int, int, error) {
	return 0, 0, shared.ErrNotFound
}

func (m *productRepo) AllProductRefs(_ context.Context) ([]catalog.ProductRef, error) {
	return nil, nil
}

type fixture struct {
	router   http.Handler
	sessions *shared.SessionManager
	tenants  *tenantRepo
	products *productRepo
	lastSess *shared.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionManager(client, "tiendita_session", "test-secret", time.Hour, false)
	views, err := view.NewEngine()
	require.NoError(t, err)

	f := &fixture{
		sessions: sessions,
		tenants:  &tenantRepo{tenants: map[string]*tenant.Tenant{}},
		products: &productRepo{products: map[string]*catalog.Product{}},
	}
	h := NewHandler(logger,
		tenant.NewService(f.tenants, logger),
		catalog.NewService(f.products, logger),
		views, nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			require.NoError(t, err)
			f.lastSess = sess
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
			require.NoError(t, sessions.Commit(req.Context(), w, req, sess))
		})
	})
	r.Route("/t/{tenantSlug}", h.MountRoutes)
	f.router = r
	return f
}

func (f *fixture) seedStore(withNumber bool) *tenant.Tenant {
	t := &tenant.Tenant{ID: "tenant-1", Name: "Tacos Dona Lupe", Slug: "tacos"}
	if withNumber {
		t.WhatsAppNumber = "+5215512345678"
	}
	f.tenants.tenants[t.ID] = t
	return t
}

func (f *fixture) seedProduct(id, name string, price float64, inventory int) {
	f.products.products[id] = &catalog.Product{
		ID: id, TenantID: "tenant-1", Name: name, Price: price, InventoryCount: inventory,
	}
}

func (f *fixture) get(target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) post(target string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) sessionCookie() []*http.Cookie {
	if f.lastSess == nil {
		return nil
	}
	return []*http.Cookie{{Name: f.sessions.CookieName(), Value: f.lastSess.ID}}
}

func TestStorefrontRendersProducts(t *testing.T) {
	f := newFixture(t)
	f.seedStore(true)
	f.seedProduct("p1", "Salsa Verde", 3.5, 5)
	f.seedProduct("p2", "Tortillas", 2, 0)

	rec := f.get("/t/tacos", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Tacos Dona Lupe")
	assert.Contains(t, body, "Salsa Verde")
	assert.Contains(t, body, "$3.50")
	assert.Contains(t, body, "Out of stock")
}

func TestStorefrontUnknownSlugIs404(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/t/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductDetail(t *testing.T) {
	f := newFixture(t)
	f.seedStore(true)
	f.seedProduct("p1", "Salsa Verde", 3.5, 5)

	rec := f.get("/t/tacos/p/p1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Salsa Verde")

	rec = f.get("/t/tacos/p/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartFlowThroughCheckout(t *testing.T) {
	f := newFixture(t)
	f.seedStore(true)
	f.seedProduct("p1", "Salsa Verde", 3.5, 5)

	rec := f.post("/t/tacos/cart/add", url.Values{"product_id": {"p1"}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := f.sessionCookie()

	rec = f.post("/t/tacos/cart/update", url.Values{"product_id": {"p1"}, "quantity": {"2"}}, cookies)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	c := cart.FromSession(f.lastSess, "tenant-1")
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 2, c.Lines[0].Quantity)

	rec = f.post("/t/tacos/checkout", url.Values{}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Salsa Verde x2")
	assert.Contains(t, body, "Total: $7.00")
	assert.Contains(t, body, "https://wa.me/5215512345678?text=")

	c = cart.FromSession(f.lastSess, "tenant-1")
	assert.True(t, c.IsEmpty())
}

func TestCartAddOutOfStock(t *testing.T) {
	f := newFixture(t)
	f.seedStore(true)
	f.seedProduct("p1", "Salsa Verde", 3.5, 0)

	rec := f.post("/t/tacos/cart/add", url.Values{"product_id": {"p1"}}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	c := cart.FromSession(f.lastSess, "tenant-1")
	assert.True(t, c.IsEmpty())
}

func TestCartUpdateClampsToInventory(t *testing.T) {
	f := newFixture(t)
	f.seedStore(true)
	f.seedProduct("p1", "Salsa Verde", 3.5, 3)

	f.post("/t/tacos/cart/add", url.Values{"product_id": {"p1"}}, nil)
	cookies := f.sessionCookie()
	f.post("/t/tacos/cart/update", url.Values{"product_id": {"p1"}, "quantity": {"99"}}, cookies)

	c := cart.FromSession(f.lastSess, "tenant-1")
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
}

func TestCartUpdateToZeroRemovesLine(t *testing.T) {
	f := newFixture(t)
	f.seedStore(true)
	f.seedProduct("p1", "Salsa Verde", 3.5, 5)

	f.post("/t/tacos/cart/add", url.Values{"product_id": {"p1"}}, nil)
	cookies := f.sessionCookie()
	f.post("/t/tacos/cart/update", url.Values{"product_id": {"p1"}, "quantity": {"0"}}, cookies)

	c := cart.FromSession(f.lastSess, "tenant-1")
	assert.True(t, c.IsEmpty())
}

func TestCheckoutWithoutNumberBouncesBack(t *testing.T) {
	f := newFixture(t)
	f.seedStore(false)
	f.seedProduct("p1", "Salsa Verde", 3.5, 5)

	f.post("/t/tacos/cart/add", url.Values{"product_id": {"p1"}}, nil)
	cookies := f.sessionCookie()
	rec := f.post("/t/tacos/checkout", url.Values{}, cookies)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/t/tacos", rec.Header().Get("Location"))

	c := cart.FromSession(f.lastSess, "tenant-1")
	assert.False(t, c.IsEmpty())
}

func TestCheckoutEmptyCartRedirects(t *testing.T) {
	f := newFixture(t)
	f.seedStore(true)

	rec := f.post("/t/tacos/checkout", url.Values{}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/t/tacos", rec.Header().Get("Location"))
}

func TestCartsAreIndependentPerStore(t *testing.T) {
	f := newFixture(t)
	f.seedStore(true)
	other := &tenant.Tenant{ID: "tenant-2", Name: "Other", Slug: "other"}
	f.tenants.tenants[other.ID] = other
	f.seedProduct("p1", "Salsa Verde", 3.5, 5)

	f.post("/t/tacos/cart/add", url.Values{"product_id": {"p1"}}, nil)

	c := cart.FromSession(f.lastSess, "tenant-2")
	assert.True(t, c.IsEmpty())
	c = cart.FromSession(f.lastSess, "tenant-1")
	assert.False(t, c.IsEmpty())
}
