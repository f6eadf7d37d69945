package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"accountsvc/internal/account"
	"accountsvc/internal/cache"
	"accountsvc/internal/config"
	"accountsvc/internal/httpapi"
	"accountsvc/internal/obs"
	"accountsvc/internal/store/pg"
)

func main() {
	obs.Init()

	cfg := config.FromEnv()
	obs.InitBuildInfo(cfg.Version, os.Getenv("ACCOUNTSVC_COMMIT"))

	if cfg.PostgresDSN == "" {
		log.Fatal("missing DSN: set ACCOUNTSVC_PG_DSN")
	}
	store, err := pg.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	var opts []account.ServiceOption
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		opts = append(opts, account.WithPermissionCache(
			cache.NewPermissionCache(rdb, cfg.PermCacheTTL, "perms")))
	}

	svc, err := account.NewService(store, opts...)
	if err != nil {
		log.Fatalf("init service: %v", err)
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: store.DB()}, cfg.Version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting accountsvc %s on %s", cfg.Version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Println("Stopped")
}
