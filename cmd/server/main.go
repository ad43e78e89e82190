package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fieldtrack/internal/auth"
	"fieldtrack/internal/config"
	"fieldtrack/internal/db"
	api "fieldtrack/internal/http"
	"fieldtrack/internal/repo"
	"fieldtrack/internal/service"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, ""); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	authManager := auth.NewManager(cfg.JWTSecret)
	repository := repo.New(pool)
	svc := service.New(repository, authManager, cfg.HorizonDays)

	handler := &api.API{Repo: repository, Service: svc, Auth: authManager, Origins: splitOrigins(cfg.CORSOrigin)}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
