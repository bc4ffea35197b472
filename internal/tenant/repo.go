package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiendita-shop/tiendita/internal/platform/db"
	"github.com/tiendita-shop/tiendita/internal/shared"
)

// Repository defines persistence operations for tenants and memberships.
type Repository interface {
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
	FindByID(ctx context.Context, id string) (*Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateWithOwner(ctx context.Context, t Tenant, userID string) error
	UpdateWhatsAppNumber(ctx context.Context, tenantID, number string) error
	MembershipForUser(ctx context.Context, userID string) (*Membership, error)
	IsMember(ctx context.Context, tenantID, userID string) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const uniqueViolation = "23505"

// FindBySlug fetches a tenant by its public slug.
func (r *PGRepository) FindBySlug(ctx context.Context, slug string) (*Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, slug, COALESCE(whatsapp_number, ''), created_at, updated_at
		 FROM tenants WHERE slug = $1`, slug)
	return scanTenant(row)
}

// FindByID fetches a tenant by ID.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, slug, COALESCE(whatsapp_number, ''), created_at, updated_at
		 FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// SlugExists reports whether a slug is already taken.
func (r *PGRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

// CreateWithOwner inserts the tenant and its owner membership in one
// transaction so a half-created store can never exist.
func (r *PGRepository) CreateWithOwner(ctx context.Context, t Tenant, userID string) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO tenants (id, name, slug, created_at, updated_at)
			 VALUES ($1, $2, $3, now(), now())`,
			t.ID, t.Name, t.Slug); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO tenant_members (tenant_id, user_id, role, created_at)
			 VALUES ($1, $2, $3, now())`,
			t.ID, userID, RoleOwner)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shared.ErrConflict
		}
		return err
	}
	return nil
}

// UpdateWhatsAppNumber sets or clears the checkout number.
func (r *PGRepository) UpdateWhatsAppNumber(ctx context.Context, tenantID, number string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET whatsapp_number = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		tenantID, number)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MembershipForUser returns the user's membership, if any. Users hold at
// most one store.
func (r *PGRepository) MembershipForUser(ctx context.Context, userID string) (*Membership, error) {
	var m Membership
	err := r.pool.QueryRow(ctx,
		`SELECT tm.tenant_id, tm.user_id, tm.role, t.slug, tm.created_at
		 FROM tenant_members tm
		 JOIN tenants t ON t.id = tm.tenant_id
		 WHERE tm.user_id = $1
		 ORDER BY tm.created_at ASC
		 LIMIT 1`, userID).
		Scan(&m.TenantID, &m.UserID, &m.Role, &m.TenantSlug, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// IsMember reports whether the user belongs to the tenant.
func (r *PGRepository) IsMember(ctx context.Context, tenantID, userID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenant_members WHERE tenant_id = $1 AND user_id = $2)`,
		tenantID, userID).Scan(&ok)
	return ok, err
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.WhatsAppNumber, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

var _ Repository = (*PGRepository)(nil)
