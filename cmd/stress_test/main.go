package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shoes-cart/internal/adapter/notify"
	"github.com/rl1809/shoes-cart/internal/adapter/storage"
	"github.com/rl1809/shoes-cart/internal/core/domain"
	"github.com/rl1809/shoes-cart/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	productID     = int64(1)
	cartKey       = "@shoes-cart:stress"
	initialStock  = 20
	totalRequests = 50
)

type fixedCatalog struct{}

func (fixedCatalog) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	return domain.Product{ID: id, Title: "Tênis de Caminhada Leve Confortável", Price: 179.9}, nil
}

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Clear previous test data
	rdb.Del(ctx, cartKey)

	redisAdapter := storage.NewRedisAdapter(rdb)
	if err := redisAdapter.SetStock(ctx, productID, initialStock); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	notes := notify.NewRecorder(totalRequests, nil)
	cartService := service.NewCartService(ctx, redisAdapter, fixedCatalog{}, redisAdapter, notes,
		service.WithStorageKey(cartKey))

	var successCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent adds of the same product
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if cartService.AddProduct(ctx, productID).OK() {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Stock:            %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Applied:          %d\n", success)
	fmt.Printf("Rejected:         %d\n", fail)
	fmt.Printf("Notifications:    %d\n", len(notes.Drain()))
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && fail == totalRequests-initialStock {
		fmt.Printf("PASS: exactly %d adds applied\n", initialStock)
	} else {
		fmt.Printf("FAIL: expected %d applied/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	// Verify persisted record matches memory
	record, err := redisAdapter.Get(ctx, cartKey)
	if err != nil {
		log.Fatalf("failed to read cart record: %v", err)
	}
	stored, err := domain.DecodeCart(record)
	if err != nil {
		log.Fatalf("failed to decode cart record: %v", err)
	}

	if len(stored) == 1 && stored[0].Amount == initialStock {
		fmt.Println("PASS: persisted amount equals stock")
	} else {
		fmt.Printf("FAIL: persisted cart %+v\n", stored)
	}
}
