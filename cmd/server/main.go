package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cargamasiva-backend-go/internal/bulkimport"
	"cargamasiva-backend-go/internal/config"
	"cargamasiva-backend-go/internal/db"
	httpapi "cargamasiva-backend-go/internal/http"
	"cargamasiva-backend-go/internal/migrations"
	"cargamasiva-backend-go/internal/services"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	closeLogs, err := setupLogger(cfg.LogDir, cfg.LogRetentionDays)
	if err != nil {
		log.Printf("logger setup failed: %v", err)
	} else {
		defer closeLogs()
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()
	if err := migrations.Apply(database); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := services.EnsureRoles(ctx, database); err != nil {
		log.Fatalf("roles: %v", err)
	}
	roles, err := services.LoadRoleCatalog(ctx, database)
	if err != nil {
		log.Fatalf("roles: %v", err)
	}
	reports, err := services.NewReportStore(cfg.RedisURL, cfg.ReportTTL())
	if err != nil {
		log.Fatalf("reports: %v", err)
	}

	hub := services.NewProgressHub()
	go hub.Run(ctx)

	importer := bulkimport.NewImporter(db.NewStore(database), roles, services.PasswordHasher{}, bulkimport.ImporterConfig{
		ErrorDetailLimit: cfg.ImportErrorDetailLimit,
		PasswordLength:   cfg.TempPasswordLength,
		RoleCodes:        roles.Codes(),
		Progress:         hub,
		Metrics:          bulkimport.NewMetrics(prometheus.DefaultRegisterer),
	})
	server := httpapi.NewServer(database, cfg, importer, roles, reports, hub)

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	log.Printf("shutdown complete")
}
