package handler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/hot-product/internal/adapter/storage"
	"github.com/rl1809/hot-product/internal/core/domain"
	"github.com/rl1809/hot-product/internal/core/service"
	"github.com/rl1809/hot-product/internal/metrics"
)

type fixture struct {
	store    *storage.MemoryStore
	registry *prometheus.Registry
	products *service.ProductService
	orders   *service.OrderService
}

func newFixture(t *testing.T, hotIDs ...int64) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	cfg := service.DefaultHotCacheConfig()
	cfg.HotIDs = hotIDs
	cfg.LockWait = 200 * time.Millisecond
	cfg.Backoff = 10 * time.Millisecond

	cache := service.NewHotProductCache(store, storage.NewMemoryCache(), cfg, zerolog.Nop(), m)
	return &fixture{
		store:    store,
		registry: reg,
		products: service.NewProductService(store, cache, zerolog.Nop()),
		orders:   service.NewOrderService(store, cache, nil, zerolog.Nop(), m),
	}
}

func (f *fixture) seed(t *testing.T, name, price string, stock int) *domain.Product {
	t.Helper()
	p, err := f.products.CreateProduct(context.Background(), &domain.Product{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return p
}
