package service

import (
	"context"
	"fmt"
	"strings"

	"bwitty-orders/internal/model"
	"bwitty-orders/internal/repository"

	"github.com/rs/zerolog"
)

// Catalog page sizes.
const (
	defaultCatalogPage = 20
	maxCatalogPage     = 100
)

// productService implements ProductService. It is the only reader of the
// catalog: the product handlers and checkout pricing both go through it.
type productService struct {
	catalog repository.ProductRepository
	logger  zerolog.Logger
}

// NewProductService creates a new product service.
func NewProductService(catalog repository.ProductRepository, logger zerolog.Logger) ProductService {
	return &productService{
		catalog: catalog,
		logger:  logger.With().Str("service", "product").Logger(),
	}
}

func catalogPage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = defaultCatalogPage
	case limit > maxCatalogPage:
		limit = maxCatalogPage
	}
	return limit, max(offset, 0)
}

func (s *productService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	limit, offset = catalogPage(limit, offset)

	products, err := s.catalog.GetAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Int("limit", limit).Int("offset", offset).Msg("failed to list catalog")
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &model.NotFoundError{Resource: "product", Key: id}
	}

	product, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to load product")
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	if product == nil {
		return nil, &model.NotFoundError{Resource: "product", Key: id}
	}
	return product, nil
}

// GetByIDs loads the products for a cart in one query. Duplicate ids are
// fetched once; ids missing from the catalog are simply absent from the map.
func (s *productService) GetByIDs(ctx context.Context, ids []string) (map[string]model.Product, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	found := make(map[string]model.Product, len(unique))
	if len(unique) == 0 {
		return found, nil
	}

	products, err := s.catalog.GetByIDs(ctx, unique)
	if err != nil {
		s.logger.Error().Err(err).Strs("product_ids", unique).Msg("failed to load cart products")
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	for _, p := range products {
		found[p.ID] = p
	}

	if len(found) < len(unique) {
		s.logger.Debug().Int("requested", len(unique)).Int("found", len(found)).Msg("cart references products missing from the catalog")
	}
	return found, nil
}
