package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiendita-shop/tiendita/internal/shared"
)

// Repository defines persistence operations for products. Every method is
// tenant-scoped.
type Repository interface {
	Create(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) error
	FindByID(ctx context.Context, tenantID, id string) (*Product, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Product, error)
	UpdateImages(ctx context.Context, tenantID, id string, images []Image) error
	DecrementInventory(ctx context.Context, tenantID, id string) (previous, next int, err error)
	AllProductRefs(ctx context.Context) ([]ProductRef, error)
}

// ProductRef identifies a product across tenants, used by the background
// image sweep.
type ProductRef struct {
	TenantID  string
	ProductID string
}

// PGRepository implements Repository using PostgreSQL. Images live in a
// jsonb column so a product row stays a single fetch.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const productColumns = `id, tenant_id, name, COALESCE(brand, ''), COALESCE(size, ''), COALESCE(code, ''),
	COALESCE(description, ''), COALESCE(details, ''), COALESCE(extras, ''),
	price, inventory_count, images, created_at, updated_at`

// Create inserts a product.
func (r *PGRepository) Create(ctx context.Context, p Product) error {
	images, err := marshalImages(p.Images)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO products (id, tenant_id, name, brand, size, code, description, details, extras,
		                       price, inventory_count, images, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())`,
		p.ID, p.TenantID, p.Name, p.Brand, p.Size, p.Code, p.Description, p.Details, p.Extras,
		p.Price, p.InventoryCount, images)
	return err
}

// Update replaces all editable columns of a product.
func (r *PGRepository) Update(ctx context.Context, p Product) error {
	images, err := marshalImages(p.Images)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET name = $3, brand = $4, size = $5, code = $6, description = $7, details = $8, extras = $9,
		     price = $10, inventory_count = $11, images = $12, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2`,
		p.ID, p.TenantID, p.Name, p.Brand, p.Size, p.Code, p.Description, p.Details, p.Extras,
		p.Price, p.InventoryCount, images)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID fetches one product within the tenant scope.
func (r *PGRepository) FindByID(ctx context.Context, tenantID, id string) (*Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanProduct(row)
}

// ListByTenant returns the tenant's products, newest first.
func (r *PGRepository) ListByTenant(ctx context.Context, tenantID string) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdateImages replaces only the images column.
func (r *PGRepository) UpdateImages(ctx context.Context, tenantID, id string, images []Image) error {
	payload, err := marshalImages(images)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET images = $3, updated_at = now() WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DecrementInventory subtracts one unit, flooring at zero, in a single
// conditional statement so concurrent decrements can never go negative.
func (r *PGRepository) DecrementInventory(ctx context.Context, tenantID, id string) (int, int, error) {
	var previous, next int
	err := r.pool.QueryRow(ctx,
		`UPDATE products p
		 SET inventory_count = GREATEST(p.inventory_count - 1, 0), updated_at = now()
		 FROM (SELECT inventory_count AS prev FROM products WHERE id = $1 AND tenant_id = $2 FOR UPDATE) old
		 WHERE p.id = $1 AND p.tenant_id = $2
		 RETURNING old.prev, p.inventory_count`,
		id, tenantID).Scan(&previous, &next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, shared.ErrNotFound
		}
		return 0, 0, err
	}
	return previous, next, nil
}

// AllProductRefs lists every product across all tenants.
func (r *PGRepository) AllProductRefs(ctx context.Context) ([]ProductRef, error) {
	rows, err := r.pool.Query(ctx, `SELECT tenant_id, id FROM products`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []ProductRef
	for rows.Next() {
		var ref ProductRef
		if err := rows.Scan(&ref.TenantID, &ref.ProductID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func marshalImages(images []Image) ([]byte, error) {
	if images == nil {
		images = []Image{}
	}
	payload, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal images: %w", err)
	}
	return payload, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var images []byte
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Brand, &p.Size, &p.Code,
		&p.Description, &p.Details, &p.Extras,
		&p.Price, &p.InventoryCount, &images, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, fmt.Errorf("catalog: unmarshal images: %w", err)
		}
	}
	return &p, nil
}

var _ Repository = (*PGRepository)(nil)
