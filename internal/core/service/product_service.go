package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/hot-product/internal/core/domain"
	"github.com/rl1809/hot-product/internal/port"
)

type ProductService struct {
	store port.Store
	cache *HotProductCache
	log   zerolog.Logger
	now   func() time.Time
}

func NewProductService(store port.Store, cache *HotProductCache, logger zerolog.Logger) *ProductService {
	return &ProductService{
		store: store,
		cache: cache,
		log:   logger.With().Str("component", "product_service").Logger(),
		now:   time.Now,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := product.Validate(); err != nil {
		return nil, invalidArgument(err)
	}

	exists, err := s.store.ExistsByName(ctx, product.Name)
	if err != nil {
		return nil, fmt.Errorf("check product name: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: product name %q already exists", ErrConflict, product.Name)
	}

	now := s.now()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.store.InsertProduct(ctx, product); err != nil {
		if errors.Is(err, port.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: product name %q already exists", ErrConflict, product.Name)
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}

	// a null marker may exist for an id that was looked up before it was created
	s.cache.Invalidate(ctx, product.ID)

	s.log.Info().Int64("product_id", product.ID).Str("name", product.Name).Msg("product created")
	return product, nil
}

func (s *ProductService) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.store.FindProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find product %d: %w", id, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	return p, nil
}

func (s *ProductService) GetAllProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.store.FindAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetProductDetail serves hot ids through the cache and all others from the store.
func (s *ProductService) GetProductDetail(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.cache.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	return p, nil
}

// UpdateProductSelective applies the non-nil fields of patch and returns the
// product as re-read through the cache.
func (s *ProductService) UpdateProductSelective(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	if err := patch.Validate(); err != nil {
		return nil, invalidArgument(err)
	}

	err := s.store.InTx(ctx, func(tx port.Store) error {
		existing, err := tx.FindProductByID(ctx, id)
		if err != nil {
			return fmt.Errorf("find product %d: %w", id, err)
		}
		if existing == nil {
			return fmt.Errorf("%w: product %d", ErrNotFound, id)
		}

		if patch.Name != nil && *patch.Name != existing.Name {
			taken, err := tx.ExistsByNameExcludingID(ctx, *patch.Name, id)
			if err != nil {
				return fmt.Errorf("check product name: %w", err)
			}
			if taken {
				return fmt.Errorf("%w: product name %q already exists", ErrConflict, *patch.Name)
			}
		}

		rows, err := tx.UpdateSelective(ctx, id, patch, s.now())
		if errors.Is(err, port.ErrDuplicateKey) {
			return fmt.Errorf("%w: product name already exists", ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("update product %d: %w", id, err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("product_id", id).Msg("product updated")
	s.cache.Invalidate(ctx, id)

	return s.GetProductDetail(ctx, id)
}
