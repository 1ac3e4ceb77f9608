package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HAB39/3laNota/internal/backup"
	"github.com/HAB39/3laNota/internal/cache"
	"github.com/HAB39/3laNota/internal/config"
	"github.com/HAB39/3laNota/internal/httpapi"
	"github.com/HAB39/3laNota/internal/metrics"
	"github.com/HAB39/3laNota/internal/service"
	"github.com/HAB39/3laNota/internal/store"
	"github.com/HAB39/3laNota/internal/store/memory"
	mongostore "github.com/HAB39/3laNota/internal/store/mongo"
	pgstore "github.com/HAB39/3laNota/internal/store/postgres"
	"github.com/HAB39/3laNota/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("storage %s unavailable: %v", cfg.StorageDriver, err)
	}
	ledger := store.NewLedger(store.Guard(backend, cfg.StorageTimeout))
	closers = append(closers, ledger.Close)
	log.Printf("storage: %s", cfg.StorageDriver)

	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
			_ = redisCache.Close()
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	m := metrics.New()
	svc := service.New(ledger, service.Options{
		Location: loc,
		Cache:    reportCache,
		CacheTTL: cfg.ReportCacheTTL,
		Metrics:  m,
		PageSize: cfg.PageSize,
	})
	api := httpapi.New(svc, m, cfg.AllowedOrigin)

	var scheduler *backup.Scheduler
	if cfg.BackupDir != "" {
		scheduler, err = backup.NewScheduler(svc, cfg.BackupDir, cfg.BackupAt, cfg.BackupKeep, loc)
		if err != nil {
			log.Fatalf("backup schedule: %v", err)
		}
		scheduler.Start()
		log.Printf("backups: %s daily at %s, keeping %d", cfg.BackupDir, cfg.BackupAt, cfg.BackupKeep)
	} else {
		log.Println("backups: disabled")
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("ledger backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// openBackend connects the storage named by cfg.StorageDriver. There is no
// silent fallback: a configured backend that cannot be reached stops startup.
func openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.StorageDriver {
	case "sqlite":
		return sqlite.Open(ctx, cfg.SQLitePath)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for postgres")
		}
		return pgstore.New(ctx, cfg.DatabaseURL)
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required for mongo")
		}
		return mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "memory":
		log.Println("[store] WARN: in-memory storage, records are lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}
