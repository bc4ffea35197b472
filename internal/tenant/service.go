package tenant

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tiendita-shop/tiendita/internal/shared"
)

// Service resolves tenants and enforces membership.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the tenant service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Resolve maps a public slug to its tenant. Unknown slugs surface as
// shared.ErrNotFound so the storefront can render its 404 page.
func (s *Service) Resolve(ctx context.Context, slug string) (*Tenant, error) {
	if slug == "" {
		return nil, shared.ErrNotFound
	}
	return s.repo.FindBySlug(ctx, slug)
}

// Authorize checks the user belongs to the tenant before any admin
// operation touches its data.
func (s *Service) Authorize(ctx context.Context, tenantID, userID string) error {
	if userID == "" {
		return shared.ErrPermissionDenied
	}
	ok, err := s.repo.IsMember(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrPermissionDenied
	}
	return nil
}

// SlugTaken reports whether another store already claims the slug.
func (s *Service) SlugTaken(ctx context.Context, slug string) (bool, error) {
	return s.repo.SlugExists(ctx, slug)
}

// CreateForUser creates a tenant and makes the user its owner.
func (s *Service) CreateForUser(ctx context.Context, userID, name, slug string) (*Tenant, error) {
	t := Tenant{
		ID:   uuid.NewString(),
		Name: name,
		Slug: slug,
	}
	if err := s.repo.CreateWithOwner(ctx, t, userID); err != nil {
		return nil, err
	}
	s.logger.Info("tenant created",
		slog.String("tenant_id", t.ID),
		slog.String("slug", t.Slug))
	return &t, nil
}

// MembershipForUser returns the user's store membership, or nil when the
// user has none.
func (s *Service) MembershipForUser(ctx context.Context, userID string) (*Membership, error) {
	if userID == "" {
		return nil, nil
	}
	m, err := s.repo.MembershipForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// UpdateWhatsAppNumber sets the checkout number, or clears it when empty.
func (s *Service) UpdateWhatsAppNumber(ctx context.Context, t *Tenant, userID, number string) error {
	if err := s.Authorize(ctx, t.ID, userID); err != nil {
		return err
	}
	if err := s.repo.UpdateWhatsAppNumber(ctx, t.ID, number); err != nil {
		return err
	}
	t.WhatsAppNumber = number
	return nil
}
