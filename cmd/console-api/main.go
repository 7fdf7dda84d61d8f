package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Khaledaun/orion-console/internal/audit"
	"github.com/Khaledaun/orion-console/internal/auth"
	"github.com/Khaledaun/orion-console/internal/config"
	"github.com/Khaledaun/orion-console/internal/gateway"
	"github.com/Khaledaun/orion-console/internal/httpapi"
	"github.com/Khaledaun/orion-console/internal/obs"
	"github.com/Khaledaun/orion-console/internal/ratelimit"
	"github.com/Khaledaun/orion-console/internal/store/pg"
	"github.com/Khaledaun/orion-console/internal/store/redisstore"
	"github.com/Khaledaun/orion-console/internal/token"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg, err := config.Load(os.Getenv("ORION_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var db *sql.DB
	var consoleTokens auth.ConsoleTokenStore
	var sessions auth.SessionStore
	var roles auth.RoleStore
	var scopedStore token.Store
	var auditStore audit.Store
	if cfg.PostgresDSN != "" {
		db, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		consoleTokens = pg.NewConsoleTokenStore(db)
		sessions = pg.NewSessionStore(db)
		roles = pg.NewRoleStore(db)
		scopedStore = pg.NewScopedTokenStore(db)
		auditStore = pg.NewAuditStore(db)
	} else {
		log.Println("ORION_PG_DSN not set, using in-memory stores")
		consoleTokens = auth.NewMemoryConsoleTokenStore()
		sessions = auth.NewMemorySessionStore()
		roles = auth.NewMemoryRoleStore()
		scopedStore = token.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
	}

	var windows ratelimit.WindowStore
	if cfg.RedisURL != "" {
		client, err := redisstore.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("open redis: %v", err)
		}
		defer func() { _ = client.Close() }()
		windows = redisstore.NewWindowStore(client)
	} else {
		windows = ratelimit.NewMemoryWindowStore()
	}

	var verifier *auth.SessionVerifier
	if cfg.SessionSecret != "" {
		verifier, err = auth.NewSessionVerifier(cfg.SessionSecret)
		if err != nil {
			log.Fatalf("session verifier: %v", err)
		}
	} else {
		// Bearer-only mode: session cookies are rejected as credentials.
		sessions = nil
	}

	resolver, err := auth.NewResolver(consoleTokens, roles, verifier, sessions, auth.WithDegradedRolePolicy(policy))
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}
	scoped, err := token.NewService(scopedStore)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	limiter, err := ratelimit.New(windows, cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.Window))
	if err != nil {
		log.Fatalf("rate limiter: %v", err)
	}
	hashKey := []byte(cfg.AuditHashKey)
	if len(hashKey) == 0 {
		// Ephemeral key: actor hashes stay consistent within the process but
		// not across restarts. Set ORION_AUDIT_HASH_KEY in production.
		hashKey = make([]byte, 32)
		if _, err := rand.Read(hashKey); err != nil {
			log.Fatalf("audit hash key: %v", err)
		}
		log.Println("ORION_AUDIT_HASH_KEY not set, using ephemeral key")
	}
	auditLogger, err := audit.NewLogger(auditStore, hashKey)
	if err != nil {
		log.Fatalf("audit logger: %v", err)
	}

	gw, err := gateway.New(resolver, scoped, limiter, auditLogger)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	api := httpapi.New(gw)
	registerRoutes(api, gw, scoped)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting orion-console-api %s on %s", version, srv.Addr)

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
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
