package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shoes-cart/internal/adapter/client"
	"github.com/rl1809/shoes-cart/internal/adapter/handler"
	"github.com/rl1809/shoes-cart/internal/adapter/notify"
	"github.com/rl1809/shoes-cart/internal/adapter/storage"
	"github.com/rl1809/shoes-cart/internal/core/domain"
	"github.com/rl1809/shoes-cart/internal/core/service"
	"github.com/rl1809/shoes-cart/internal/port"
	"github.com/rl1809/shoes-cart/pkg/config"
	"github.com/rl1809/shoes-cart/pkg/logger"
	"github.com/rl1809/shoes-cart/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "shoes-cart", Env: cfg.AppEnv, Level: cfg.LogLevel})

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

type deps struct {
	stock   port.StockQuery
	catalog port.ProductCatalog
	storage port.CartStorage
	closers []func() error
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close()

	notes := notify.NewRecorder(0, notify.NewLogNotifier(log))
	cartService := service.NewCartService(ctx, d.stock, d.catalog, d.storage, notes,
		service.WithStorageKey(cfg.CartStorageKey),
		service.WithLogger(log),
	)
	cartService.Subscribe(func(e domain.Event) {
		log.Info("cart changed", "event_id", e.ID, "op", e.Op, "product_id", e.ProductID, "items", len(e.Cart))
	})
	log.Info("cart store ready", "items", cartService.ItemCount(), "storage", cfg.StorageDriver, "stock", cfg.StockSource)

	// gRPC health
	grpcServer, health := handler.NewHealthServer()
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go func() {
		log.Info("gRPC server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler.NewHTTPHandler(cartService, notes, log).WithCatalog(d.catalog).Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.APITimeout + 10*time.Second,
	}
	go func() {
		log.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	handler.MarkServing(health)
	<-ctx.Done()

	log.Info("shutting down...")
	handler.MarkStopping(health)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown", "error", err)
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")
	return nil
}

func buildDeps(ctx context.Context, cfg config.Config, log *slog.Logger) (*deps, error) {
	d := &deps{}
	fail := func(err error) (*deps, error) {
		d.close()
		return nil, err
	}

	api := client.NewAPIClient(client.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Logger:  log,
	})

	var rdb *redis.Client
	redisAdapter := func() (*storage.RedisAdapter, error) {
		if rdb == nil {
			rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			if err := rdb.Ping(ctx).Err(); err != nil {
				return nil, fmt.Errorf("connect redis: %w", err)
			}
			d.closers = append(d.closers, rdb.Close)
			log.Info("connected to redis", "addr", cfg.RedisAddr)
		}
		return storage.NewRedisAdapter(rdb), nil
	}

	var mysqlDB *storage.MySQLAdapter
	mysqlAdapter := func() (*storage.MySQLAdapter, error) {
		if mysqlDB == nil {
			db, err := sql.Open("mysql", cfg.MySQLDSN)
			if err != nil {
				return nil, fmt.Errorf("open mysql: %w", err)
			}
			db.SetMaxOpenConns(10)
			db.SetConnMaxLifetime(5 * time.Minute)
			d.closers = append(d.closers, db.Close)
			if err := db.PingContext(ctx); err != nil {
				return nil, fmt.Errorf("ping mysql: %w", err)
			}
			mysqlDB = storage.NewMySQLAdapter(db)
			if err := mysqlDB.Migrate(ctx); err != nil {
				return nil, err
			}
			log.Info("connected to mysql")
		}
		return mysqlDB, nil
	}

	switch cfg.StorageDriver {
	case "file":
		fs, err := storage.NewFileStorage(cfg.StorageDir)
		if err != nil {
			return fail(err)
		}
		d.storage = fs
	case "redis":
		r, err := redisAdapter()
		if err != nil {
			return fail(err)
		}
		d.storage = r
	default:
		return fail(fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver))
	}

	switch cfg.StockSource {
	case "api":
		d.stock = api
	case "redis":
		r, err := redisAdapter()
		if err != nil {
			return fail(err)
		}
		d.stock = r
	case "mysql":
		m, err := mysqlAdapter()
		if err != nil {
			return fail(err)
		}
		d.stock = m
	default:
		return fail(fmt.Errorf("unknown STOCK_SOURCE %q", cfg.StockSource))
	}

	switch cfg.CatalogSource {
	case "api":
		d.catalog = api
	case "mysql":
		m, err := mysqlAdapter()
		if err != nil {
			return fail(err)
		}
		d.catalog = m
	default:
		return fail(fmt.Errorf("unknown CATALOG_SOURCE %q", cfg.CatalogSource))
	}

	return d, nil
}
