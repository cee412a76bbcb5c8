package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rl1809/hot-product/internal/adapter/storage"
	"github.com/rl1809/hot-product/internal/core/domain"
	"github.com/rl1809/hot-product/internal/core/service"
	"github.com/rl1809/hot-product/internal/metrics"
	"github.com/rl1809/hot-product/internal/port"
)

// countingStore counts product reads reaching the store.
type countingStore struct {
	port.Store
	reads atomic.Int64
}

func (s *countingStore) FindProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	s.reads.Add(1)
	return s.Store.FindProductByID(ctx, id)
}

func main() {
	backend := flag.String("backend", "memory", "memory or live (MySQL + Redis)")
	mysqlDSN := flag.String("mysql", "root:root@tcp(localhost:3306)/hot_product?parseTime=true&clientFoundRows=true", "MySQL DSN for -backend=live")
	redisAddr := flag.String("redis", "localhost:6379", "Redis address for -backend=live")
	readers := flag.Int("readers", 500, "concurrent detail reads of the hot product")
	buyers := flag.Int("buyers", 50, "concurrent single-unit purchases")
	initialStock := flag.Int("stock", 20, "stock of the seeded product")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	logger := log.Logger
	ctx := context.Background()

	var (
		store port.Store
		cache port.CacheRepository
	)
	switch *backend {
	case "memory":
		store = storage.NewMemoryStore()
		cache = storage.NewMemoryCache()
	case "live":
		db, err := sql.Open("mysql", *mysqlDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open mysql")
		}
		defer db.Close()
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}

		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr, PoolSize: 200})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		store = mysqlAdapter
		cache = storage.NewRedisAdapter(rdb)
	default:
		fmt.Fprintf(os.Stderr, "unknown backend %q\n", *backend)
		os.Exit(2)
	}

	counted := &countingStore{Store: store}

	seedAt := time.Now().Truncate(time.Millisecond)
	product := &domain.Product{
		Name:      fmt.Sprintf("stress-%d", seedAt.UnixNano()),
		Price:     decimal.RequireFromString("19.99"),
		Stock:     *initialStock,
		CreatedAt: seedAt,
		UpdatedAt: seedAt,
	}
	if err := store.InsertProduct(ctx, product); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed product")
	}

	cfg := service.DefaultHotCacheConfig()
	cfg.HotIDs = []int64{product.ID}
	m := metrics.Nop()
	hotCache := service.NewHotProductCache(counted, cache, cfg, logger, m)
	hotCache.Invalidate(ctx, product.ID)
	productService := service.NewProductService(counted, hotCache, logger)
	orderService := service.NewOrderService(counted, hotCache, nil, logger, m)

	// Phase 1: cold stampede on the hot product
	var readOK, readFail atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := productService.GetProductDetail(ctx, product.ID); err != nil {
				readFail.Add(1)
				return
			}
			readOK.Add(1)
		}()
	}
	wg.Wait()
	readElapsed := time.Since(start)
	storeReads := counted.reads.Load()

	// Phase 2: purchase race
	var buyOK, soldOut, buyErr atomic.Int32
	start = time.Now()
	for i := 0; i < *buyers; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := orderService.CreateOrder(ctx, userID, []domain.PurchaseItem{{ProductID: product.ID, Quantity: 1}})
			switch {
			case err == nil:
				buyOK.Add(1)
			case errors.Is(err, service.ErrInsufficientStock):
				soldOut.Add(1)
			default:
				buyErr.Add(1)
			}
		}(int64(i + 1))
	}
	wg.Wait()
	buyElapsed := time.Since(start)

	finalStock, err := store.GetStock(ctx, product.ID)
	if err != nil || finalStock == nil {
		logger.Fatal().Err(err).Msg("failed to read final stock")
	}

	expectedOK := min(*buyers, *initialStock)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Backend:            %s\n", *backend)
	fmt.Printf("Product ID:         %d\n", product.ID)
	fmt.Printf("Detail Reads:       %d ok / %d failed in %v\n", readOK.Load(), readFail.Load(), readElapsed)
	fmt.Printf("Store Reads:        %d\n", storeReads)
	fmt.Printf("Initial Stock:      %d\n", *initialStock)
	fmt.Printf("Purchases:          %d ok / %d sold out / %d error in %v\n", buyOK.Load(), soldOut.Load(), buyErr.Load(), buyElapsed)
	fmt.Printf("Final Stock:        %d\n", *finalStock)
	fmt.Println("==========================================")

	pass := true
	if storeReads == 1 {
		fmt.Println("PASS: stampede collapsed to a single store read")
	} else {
		fmt.Printf("FAIL: expected 1 store read, got %d\n", storeReads)
		pass = false
	}
	if int(buyOK.Load()) == expectedOK && *finalStock == *initialStock-expectedOK {
		fmt.Printf("PASS: exactly %d orders succeeded, no oversell\n", expectedOK)
	} else {
		fmt.Printf("FAIL: expected %d orders and stock %d, got %d and %d\n",
			expectedOK, *initialStock-expectedOK, buyOK.Load(), *finalStock)
		pass = false
	}
	if !pass {
		os.Exit(1)
	}
}
