package catalog

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// ProductInput carries the editable product fields from the admin form.
// Price and InventoryCount arrive already coerced by the validate package.
type ProductInput struct {
	Name           string
	Brand          string
	Size           string
	Code           string
	Description    string
	Details        string
	Extras         string
	Price          float64
	InventoryCount int
}

// Service implements catalog operations for a tenant's admin and storefront.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the catalog service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Create adds a product with freshly uploaded images.
func (s *Service) Create(ctx context.Context, tenantID string, input ProductInput, images []Image) (*Product, error) {
	p := Product{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Name:           input.Name,
		Brand:          input.Brand,
		Size:           input.Size,
		Code:           input.Code,
		Description:    input.Description,
		Details:        input.Details,
		Extras:         input.Extras,
		Price:          input.Price,
		InventoryCount: input.InventoryCount,
		Images:         CleanImages(images),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("product created",
		slog.String("tenant_id", tenantID),
		slog.String("product_id", p.ID))
	return &p, nil
}

// Update replaces the editable fields and appends new uploads to the
// existing image list. Existing images pass through CleanImages first, so
// a save quietly drops entries that went bad.
func (s *Service) Update(ctx context.Context, tenantID, id string, input ProductInput, newImages []Image) (*Product, error) {
	existing, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	existing.Name = input.Name
	existing.Brand = input.Brand
	existing.Size = input.Size
	existing.Code = input.Code
	existing.Description = input.Description
	existing.Details = input.Details
	existing.Extras = input.Extras
	existing.Price = input.Price
	existing.InventoryCount = input.InventoryCount
	existing.Images = append(CleanImages(existing.Images), CleanImages(newImages)...)

	if err := s.repo.Update(ctx, *existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Get fetches one product within the tenant scope.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Product, error) {
	return s.repo.FindByID(ctx, tenantID, id)
}

// List returns the tenant's products, newest first.
func (s *Service) List(ctx context.Context, tenantID string) ([]Product, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// DecrementInventory records one unit sold, flooring at zero. Returns the
// count before and after.
func (s *Service) DecrementInventory(ctx context.Context, tenantID, id string) (previous, next int, err error) {
	previous, next, err = s.repo.DecrementInventory(ctx, tenantID, id)
	if err != nil {
		return 0, 0, err
	}
	s.logger.Info("inventory decremented",
		slog.String("tenant_id", tenantID),
		slog.String("product_id", id),
		slog.Int("previous", previous),
		slog.Int("next", next))
	return previous, next, nil
}

// CleanupImages drops broken image entries from a product. Returns how many
// entries were removed.
func (s *Service) CleanupImages(ctx context.Context, tenantID, id string) (int, error) {
	p, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return 0, err
	}
	cleaned := CleanImages(p.Images)
	removed := len(p.Images) - len(cleaned)
	if removed == 0 {
		return 0, nil
	}
	if err := s.repo.UpdateImages(ctx, tenantID, id, cleaned); err != nil {
		return 0, err
	}
	s.logger.Info("images cleaned",
		slog.String("tenant_id", tenantID),
		slog.String("product_id", id),
		slog.Int("removed", removed))
	return removed, nil
}

// SweepImages runs CleanupImages over every product. A failing product is
// logged and skipped so one bad row does not abort the sweep.
func (s *Service) SweepImages(ctx context.Context) (int, error) {
	refs, err := s.repo.AllProductRefs(ctx)
	if err != nil {
		return 0, err
	}
	var total int
	for _, ref := range refs {
		removed, err := s.CleanupImages(ctx, ref.TenantID, ref.ProductID)
		if err != nil {
			s.logger.Warn("image sweep skipped product",
				slog.String("product_id", ref.ProductID),
				slog.String("error", err.Error()))
			continue
		}
		total += removed
	}
	return total, nil
}
