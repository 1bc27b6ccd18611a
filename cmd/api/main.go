package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetdesk.org/internal/audit"
	"fleetdesk.org/internal/auth"
	"fleetdesk.org/internal/config"
	"fleetdesk.org/internal/fleet"
	"fleetdesk.org/internal/httpapi"
	"fleetdesk.org/internal/inventory"
	"fleetdesk.org/internal/obs"
	"fleetdesk.org/internal/rbac"
	"fleetdesk.org/internal/store"
	"fleetdesk.org/internal/store/pg"
	"fleetdesk.org/internal/store/redisrepl"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()

	local, err := store.OpenFile(cfg.DataFile)
	if err != nil {
		log.Fatalf("open data file: %v", err)
	}

	// Remote replication targets are optional; the local file stays
	// authoritative either way.
	var (
		targets store.Multi
		db      *sql.DB
	)
	if cfg.PGDSN != "" {
		repl, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repl.EnsureSchema(ctx); err != nil {
			log.Printf("postgres schema: %v (replication continues best-effort)", err)
		}
		cancel()
		db = repl.DB()
		targets = append(targets, repl)
	}
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		repl, err := redisrepl.Open(ctx, cfg.RedisAddr, cfg.RedisPassword)
		cancel()
		if err != nil {
			log.Fatalf("open redis: %v", err)
		}
		targets = append(targets, repl)
	}

	var remote store.Replicator
	if len(targets) > 0 {
		remote = targets
	}
	authenticated := func(ctx context.Context) bool {
		_, ok := auth.ActorFromContext(ctx)
		return ok
	}
	replicated := store.NewReplicated(local, remote, authenticated)

	// The audit log keeps its own remote sync of the newest slice, so it
	// writes through the plain local store.
	auditLog := audit.New(local, auth.ActorFromContext,
		audit.WithReplicator(remote),
		audit.WithUserAgent("fleetdesk-api/"+version),
	)

	users := rbac.NewRegistry(replicated, auditLog, auth.ActorFromContext)
	vehicles := fleet.NewVehicleRegistry(replicated, auditLog, users, auth.ActorFromContext)
	warehouses := fleet.NewWarehouseRegistry(replicated, auditLog, users, vehicles)
	campaigns := inventory.NewEngine(replicated, auditLog, users, vehicles, auth.ActorFromContext)

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, httpapi.Services{
		Audit:      auditLog,
		Users:      users,
		Campaigns:  campaigns,
		Vehicles:   vehicles,
		Warehouses: warehouses,
	}).WithRateLimit(cfg.RateBurst, cfg.RatePerSecond)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting fleetdesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	_ = srv.Shutdown(ctx)
	replicated.Flush()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
