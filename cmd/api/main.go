package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"garantias.org/internal/audit"
	"garantias.org/internal/auth"
	"garantias.org/internal/config"
	"garantias.org/internal/guarantee"
	"garantias.org/internal/httpapi"
	"garantias.org/internal/obs"
	"garantias.org/internal/store/memory"
	"garantias.org/internal/store/pg"
	"garantias.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

type backend interface {
	guarantee.Store
	audit.Reader
	auth.Directory
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to optional YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath, version)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := obs.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		store backend
		ready httpapi.ReadinessChecker = httpapi.ReadyProbe{}
	)
	if cfg.Local() {
		store = memory.New(memory.DemoProfiles()...)
		logger.Warn("no database configured, using the in-memory store with demo profiles")
	} else {
		pgStore, err := pg.Open(cfg.Database.DSN, pg.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		defer func() { _ = pgStore.Close() }()
		store = pgStore
		ready = httpapi.ReadyProbe{DB: pgStore.DB()}
	}

	tokens, err := auth.NewService(store, cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL))
	if err != nil {
		logger.Fatal("auth service", zap.Error(err))
	}
	if cfg.Local() {
		logDemoTokens(logger, tokens)
	}

	proxies, err := cfg.HTTP.ProxyPrefixes()
	if err != nil {
		logger.Fatal("trusted proxies", zap.Error(err))
	}

	events := stream.New[guarantee.Event](0)
	api := httpapi.New(httpapi.Deps{
		Version:           version,
		Logger:            logger,
		Ready:             ready,
		Auth:              tokens,
		Profiles:          store,
		Guarantees:        guarantee.NewService(store, audit.NewRecorder(), guarantee.WithPublisher(events), guarantee.WithLogger(logger)),
		Audit:             audit.NewService(store, store, logger),
		Events:            events,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		RatePerSecond:     cfg.HTTP.RatePerSecond,
		RateBurst:         cfg.HTTP.RateBurst,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		AuditDefaultLimit: cfg.Audit.DefaultLimit,
		TrustedProxies:    proxies,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	grpcSrv := httpapi.NewGRPCServer(ready, logger)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen", zap.Error(err), zap.String("addr", cfg.GRPCAddr))
	}

	logger.Info("starting garantias-api",
		zap.String("version", version),
		zap.String("env", cfg.Env),
		zap.String("http_addr", srv.Addr),
		zap.String("grpc_addr", cfg.GRPCAddr))

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http listen", zap.Error(err))
		}
	}()
	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil {
			logger.Error("grpc serve", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	logger.Info("stopped")
}

func logDemoTokens(logger *zap.Logger, tokens *auth.Service) {
	for _, p := range memory.DemoProfiles() {
		if !p.Active {
			continue
		}
		tok, exp, err := tokens.IssueToken(p.UserID)
		if err != nil {
			logger.Warn("issue demo token", zap.Error(err), zap.String("user_id", p.UserID))
			continue
		}
		logger.Info("demo token",
			zap.String("user_id", p.UserID),
			zap.String("email", p.Email),
			zap.String("role", string(p.Role)),
			zap.String("region", string(p.Region)),
			zap.Time("expires_at", exp),
			zap.String("token", tok))
	}
}
