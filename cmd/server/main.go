package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	docs "github.com/tazhibayda/profile-service/docs"
	"github.com/tazhibayda/profile-service/internal/config"
	api "github.com/tazhibayda/profile-service/internal/http"
	"github.com/tazhibayda/profile-service/internal/identity"
	plog "github.com/tazhibayda/profile-service/internal/log"
	"github.com/tazhibayda/profile-service/internal/metrics"
	"github.com/tazhibayda/profile-service/internal/oauth"
	"github.com/tazhibayda/profile-service/internal/profile"
	"github.com/tazhibayda/profile-service/internal/queue"
	"github.com/tazhibayda/profile-service/internal/repo"
	"github.com/tazhibayda/profile-service/internal/security"
	"github.com/tazhibayda/profile-service/internal/session"
	"github.com/tazhibayda/profile-service/internal/upstream"
)

// @title Profile API
// @version 0.1.0
// @description Clinician identity and profile settings for the rehab dashboard.
// @schemes http https
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	lg, err := plog.Init(cfg.Prod())
	if err != nil {
		panic(err)
	}
	defer lg.Sync()

	tracer.Start(
		tracer.WithService("profile-service"),
		tracer.WithEnv(cfg.Env),
		tracer.WithLogStartup(false),
	)
	defer tracer.Stop()

	metrics.MustRegister()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		store    *repo.Store
		metadata repo.MetadataStore
	)
	switch cfg.MetadataBackend {
	case "memory":
		lg.Warn("metadata backend is in-memory, settings are lost on restart")
		metadata = repo.NewMemoryMetadataStore()
	default:
		store, err = repo.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			lg.Fatal("mongo connect", zap.Error(err))
		}
		defer store.Close(context.Background())

		mm := repo.NewMongoMetadataStore(store, cfg.MetadataCollection)
		if err := mm.EnsureIndexes(ctx); err != nil {
			lg.Fatal("mongo indexes", zap.Error(err))
		}
		metadata = mm
	}

	opts := session.CookieOptions{
		Name:   cfg.SessionCookie,
		Secure: cfg.SessionSecure || cfg.Prod(),
		TTL:    time.Duration(cfg.SessionTTLHours) * time.Hour,
	}

	var (
		keys     *security.KeyManager
		rds      *repo.Redis
		sessions session.Store
	)
	if cfg.ActiveKeyPath != "" {
		keys, err = security.NewKeyManager(cfg.ActiveKid, cfg.ActiveKeyPath, cfg.NextKid, cfg.NextKeyPath)
		if err != nil {
			lg.Fatal("load signing keys", zap.Error(err))
		}
	}
	switch cfg.SessionBackend {
	case "redis":
		rds = repo.NewRedis(cfg.RedisAddr)
		if err := rds.Ping(ctx); err != nil {
			lg.Fatal("redis ping", zap.Error(err))
		}
		defer rds.Close()
		sessions = session.NewRedisStore(rds.C, opts)
	default:
		cs, err := session.NewCookieStore(cfg.SessionSecret, keys, opts)
		if err != nil {
			lg.Fatal("cookie sessions", zap.Error(err))
		}
		sessions = cs
	}

	var mgmt upstream.ManagementClient = upstream.Disabled{}
	mc := oauth.ManagementConfig{
		Domain:       cfg.MgmtDomain,
		ClientID:     cfg.MgmtClientID,
		ClientSecret: cfg.MgmtClientSecret,
		Audience:     cfg.MgmtAudience,
		Timeout:      time.Duration(cfg.MgmtTimeoutSec) * time.Second,
	}
	if mc.Enabled() {
		mgmt = upstream.New(mc.BaseURL(), oauth.NewManagementHTTPClient(context.Background(), mc))
	} else {
		lg.Warn("management API is not configured, identity writes will be skipped")
	}

	pub := queue.NewNoop()
	if cfg.RabbitURL != "" {
		pub, err = queue.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			lg.Fatal("rabbit publisher", zap.Error(err))
		}
	}
	defer pub.Close()

	adapter := identity.NewSessionAdapter(sessions, mgmt, cfg.FederatedProviders)
	pipeline := profile.NewPipeline(adapter, mgmt, metadata, pub, cfg.RabbitExchange)

	docs.SwaggerInfo.BasePath = "/"

	h := api.NewHandler(pipeline, adapter, store, rds, cfg.RateLimitPerMin)
	h.Keys = keys
	h.CORSOrigins = cfg.CORSOrigins
	h.DevLogin = cfg.DevLogin
	r := api.NewRouter(h)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe() }()

	lg.Info("profile-service listening",
		zap.String("port", cfg.Port),
		zap.String("metadata_backend", cfg.MetadataBackend),
		zap.String("session_backend", cfg.SessionBackend),
		zap.Bool("management_api", mc.Enabled()),
	)

	// graceful shutdown; SIGHUP promotes the next signing key
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

loop:
	for {
		select {
		case s := <-sig:
			if s == syscall.SIGHUP {
				rotate(lg, keys)
				continue
			}
			lg.Info("shutting down", zap.String("signal", s.String()))
			break loop
		case err := <-srvErr:
			if !errors.Is(err, http.ErrServerClosed) {
				lg.Error("server error", zap.Error(err))
			}
			break loop
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}

func rotate(lg *zap.Logger, keys *security.KeyManager) {
	if keys == nil {
		lg.Warn("SIGHUP ignored: cookies are not RS256-signed")
		return
	}
	if err := keys.Promote(); err != nil {
		lg.Warn("key rotation", zap.Error(err))
		return
	}
	lg.Info("session signing key rotated", zap.String("kid", keys.ActiveKid()))
}
