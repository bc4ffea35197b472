package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendita-shop/tiendita/internal/shared"
)

type memoryRepo struct {
	products map[string]*Product
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[string]*Product{}}
}

func (m *memoryRepo) Create(_ context.Context, p Product) error {
	stored := p
	m.products[p.ID] = &stored
	return nil
}

func (m *memoryRepo) Update(_ context.Context, p Product) error {
	existing, ok := m.products[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return shared.ErrNotFound
	}
	stored := p
	m.products[p.ID] = &stored
	return nil
}

func (m *memoryRepo) FindByID(_ context.Context, tenantID, id string) (*Product, error) {
	p, ok := m.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	copy := *p
	copy.Images = append([]Image(nil), p.Images...)
	return &copy, nil
}

func (m *memoryRepo) ListByTenant(_ context.Context, tenantID string) ([]Product, error) {
	var out []Product
	for _, p := range m.products {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryRepo) UpdateImages(_ context.Context, tenantID, id string, images []Image) error {
	p, ok := m.products[id]
	if !ok || p.TenantID != tenantID {
		return shared.ErrNotFound
	}
	p.Images = append([]Image(nil), images...)
	return nil
}

func (m *memoryRepo) DecrementInventory(_ context.Context, tenantID, id string) (int, int, error) {
	p, ok := m.products[id]
	if !ok || p.TenantID != tenantID {
		return 0, 0, shared.ErrNotFound
	}
	previous := p.InventoryCount
	if p.InventoryCount > 0 {
		p.InventoryCount--
	}
	return previous, p.InventoryCount, nil
}

func (m *memoryRepo) AllProductRefs(_ context.Context) ([]ProductRef, error) {
	var refs []ProductRef
	for _, p := range m.products {
		refs = append(refs, ProductRef{TenantID: p.TenantID, ProductID: p.ID})
	}
	return refs, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func TestCreateCleansImages(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.Create(context.Background(), "tenant-1", ProductInput{Name: "Salsa"}, []Image{
		{URL: "https://cdn.example.com/a.jpg", Path: "tacos/a.jpg"},
		{URL: "undefined"},
		{URL: ""},
		{URL: "not a url"},
	})
	require.NoError(t, err)
	require.Len(t, p.Images, 1)
	assert.Equal(t, "https://cdn.example.com/a.jpg", p.Images[0].URL)
}

func TestUpdateAppendsNewImagesAndReplacesFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "tenant-1", ProductInput{Name: "Salsa", Price: 3}, []Image{
		{URL: "https://cdn.example.com/a.jpg"},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "tenant-1", created.ID,
		ProductInput{Name: "Salsa Verde", Price: 4.5, InventoryCount: 7},
		[]Image{{URL: "https://cdn.example.com/b.jpg"}, {URL: "null"}})
	require.NoError(t, err)

	assert.Equal(t, "Salsa Verde", updated.Name)
	assert.Equal(t, 4.5, updated.Price)
	assert.Equal(t, 7, updated.InventoryCount)
	require.Len(t, updated.Images, 2)
	assert.Equal(t, "https://cdn.example.com/a.jpg", updated.Images[0].URL)
	assert.Equal(t, "https://cdn.example.com/b.jpg", updated.Images[1].URL)
}

func TestUpdateDropsBrokenExistingImages(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "tenant-1", ProductInput{Name: "Salsa"}, nil)
	require.NoError(t, err)
	repo.products[created.ID].Images = []Image{
		{URL: "https://cdn.example.com/a.jpg"},
		{URL: "undefined"},
	}

	updated, err := svc.Update(ctx, "tenant-1", created.ID, ProductInput{Name: "Salsa"}, nil)
	require.NoError(t, err)
	require.Len(t, updated.Images, 1)
	assert.Equal(t, "https://cdn.example.com/a.jpg", updated.Images[0].URL)
}

func TestDecrementInventoryFloorsAtZero(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "tenant-1", ProductInput{Name: "Salsa", InventoryCount: 1}, nil)
	require.NoError(t, err)

	previous, next, err := svc.DecrementInventory(ctx, "tenant-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, previous)
	assert.Equal(t, 0, next)

	previous, next, err = svc.DecrementInventory(ctx, "tenant-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, previous)
	assert.Equal(t, 0, next)
}

func TestCleanupImagesIsIdempotent(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "tenant-1", ProductInput{Name: "Salsa"}, nil)
	require.NoError(t, err)
	repo.products[created.ID].Images = []Image{
		{URL: "https://cdn.example.com/a.jpg"},
		{URL: "undefined"},
		{URL: "null"},
	}

	removed, err := svc.CleanupImages(ctx, "tenant-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = svc.CleanupImages(ctx, "tenant-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	p, err := svc.Get(ctx, "tenant-1", created.ID)
	require.NoError(t, err)
	require.Len(t, p.Images, 1)
}

func TestSweepImagesCoversAllTenants(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, "tenant-1", ProductInput{Name: "A"}, nil)
	require.NoError(t, err)
	b, err := svc.Create(ctx, "tenant-2", ProductInput{Name: "B"}, nil)
	require.NoError(t, err)
	repo.products[a.ID].Images = []Image{{URL: "undefined"}, {URL: "https://cdn.example.com/a.jpg"}}
	repo.products[b.ID].Images = []Image{{URL: "null"}}

	removed, err := svc.SweepImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = svc.SweepImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestCrossTenantAccessRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "tenant-1", ProductInput{Name: "Salsa"}, nil)
	require.NoError(t, err)

	_, err = svc.Get(ctx, "tenant-2", created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Update(ctx, "tenant-2", created.ID, ProductInput{Name: "Hijack"}, nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, _, err = svc.DecrementInventory(ctx, "tenant-2", created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCleanImagesTable(t *testing.T) {
	in := []Image{
		{URL: "https://cdn.example.com/a.jpg"},
		{URL: ""},
		{URL: "undefined"},
		{URL: "null"},
		{URL: "relative/path.jpg"},
		{URL: "http://cdn.example.com/b.png"},
	}
	out := CleanImages(in)
	require.Len(t, out, 2)
	assert.Equal(t, "https://cdn.example.com/a.jpg", out[0].URL)
	assert.Equal(t, "http://cdn.example.com/b.png", out[1].URL)

	again := CleanImages(out)
	assert.Equal(t, out, again)
}
