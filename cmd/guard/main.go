package main

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/storefront-guard/api/handler"
	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/internal/config"
	"github.com/fastygo/storefront-guard/internal/infrastructure/backend"
	boltInfra "github.com/fastygo/storefront-guard/internal/infrastructure/bolt"
	"github.com/fastygo/storefront-guard/internal/infrastructure/monitor"
	redisInfra "github.com/fastygo/storefront-guard/internal/infrastructure/redis"
	"github.com/fastygo/storefront-guard/internal/metrics"
	"github.com/fastygo/storefront-guard/internal/middleware"
	"github.com/fastygo/storefront-guard/internal/realtime"
	"github.com/fastygo/storefront-guard/internal/router"
	"github.com/fastygo/storefront-guard/internal/scheduler"
	"github.com/fastygo/storefront-guard/internal/services/lifecycle"
	"github.com/fastygo/storefront-guard/pkg/httpcontext"
	"github.com/fastygo/storefront-guard/pkg/logger"
	"github.com/fastygo/storefront-guard/repository"
	boltRepo "github.com/fastygo/storefront-guard/repository/bolt"
	redisRepo "github.com/fastygo/storefront-guard/repository/redis"
	"github.com/fastygo/storefront-guard/usecase"
	"github.com/fastygo/storefront-guard/usecase/access"
	authUC "github.com/fastygo/storefront-guard/usecase/auth"
	"github.com/fastygo/storefront-guard/usecase/security"
	"github.com/fastygo/storefront-guard/usecase/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, stop := manager.Listen(context.Background())
	defer stop()

	sched := scheduler.NewClock(nil)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	store, err := boltInfra.Open(cfg.Storage, boltRepo.Bucket)
	if err != nil {
		zapLogger.Fatal("failed to open credential store", zap.Error(err))
	}
	manager.Register("credential_store", func(ctx context.Context) error {
		return store.Close()
	})

	var (
		redisClient *goRedis.Client
		statusRepo  repository.StatusRepository
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisInfra.NewClient(appCtx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
		statusRepo = redisRepo.NewStatusRepository(redisClient, sched.Now)
	}

	health := monitor.NewHealth(redisClient, store, sched, 10*time.Second, zapLogger)
	health.Start()
	manager.RegisterStop("health", health.Stop)

	authUseCase := authUC.New(boltRepo.NewCredentialRepository(store), sched.Now, zapLogger)

	backendClient := backend.NewClient(cfg.Backend, nil, func(ctx context.Context) string {
		creds, err := authUseCase.Current(ctx)
		if err != nil {
			return ""
		}
		return creds.AccessToken
	}, zapLogger)
	dispatcher := usecase.NewDispatcher()
	backendClient.Register(dispatcher)

	detectors := security.DefaultDetectors()
	if cfg.Security.Strict {
		detectors = append(detectors, security.MixedContentDetector, security.CredentialExposureDetector)
	}
	probe := monitor.NewEnvironmentProbe(cfg.Realtime.APIOrigin, cfg.Security.ResourceURLs, authUseCase)
	securityMonitor, err := security.NewMonitor(probe, sched, security.Config{
		Cadence: cfg.Security.ScanSchedule,
		Penalties: security.Penalties{
			InsecureTransport: cfg.Security.InsecureTransportPenalty,
			MixedContent:      cfg.Security.MixedContentPenalty,
			MissingCredential: cfg.Security.MissingCredentialPenalty,
		},
		ClearanceScore: cfg.Security.ClearanceScore,
		Detectors:      detectors,
	}, recorder, zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid security scan schedule", zap.Error(err))
	}
	securityMonitor.Start()
	manager.RegisterStop("security_monitor", securityMonitor.Stop)

	protected := access.Requirements{
		Clearance: access.ClearanceStandard,
		MinScore:  cfg.Security.ClearanceScore,
	}
	admin := access.Requirements{
		Roles:         []string{"admin"},
		OverrideRoles: []string{"admin"},
		Clearance:     access.ClearanceStandard,
		MinScore:      cfg.Security.ClearanceScore,
	}

	gate := access.NewGate(authUseCase, securityMonitor, statusRepo, access.CollaboratorsFromDispatcher(dispatcher), sched, access.Config{
		Requirements: protected,
		Session: session.Config{
			SessionDuration: cfg.Session.Duration,
			WarningTime:     cfg.Session.WarningTime,
			TickInterval:    cfg.Session.TickInterval,
		},
		RefreshThreshold: cfg.Session.TokenRefreshThreshold,
		PollInterval:     cfg.Session.PollInterval,
		RecheckInterval:  cfg.Session.RecheckInterval,
		CallTimeout:      cfg.Backend.Timeout,
	}, recorder, zapLogger)
	gate.Session().OnWarning(func(remaining time.Duration) {
		zapLogger.Info("session about to expire", zap.Duration("remaining", remaining))
	})
	if err := gate.Start(appCtx); err != nil {
		zapLogger.Fatal("access gate failed to start", zap.Error(err))
	}
	manager.RegisterStop("access_gate", gate.Stop)

	socket := realtime.NewClient(realtime.Options{
		URL:                  cfg.Realtime.URL,
		Origins:              realtime.Origins{WebSocket: cfg.Realtime.WebSocketOrigin, HTTP: cfg.Realtime.APIOrigin},
		Enabled:              cfg.Realtime.Enabled,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		ReconnectInterval:    cfg.Realtime.ReconnectInterval,
		PingInterval:         cfg.Realtime.PingInterval,
		HandshakeTimeout:     cfg.Realtime.HandshakeTimeout,
	}, nil, sched, recorder, zapLogger)
	socket.Subscribe(func(msg domain.Message) {
		zapLogger.Debug("realtime message", zap.String("type", msg.Type))
	})
	go socket.Connect()
	manager.RegisterStop("realtime", socket.Disconnect)

	ctxAdapter := httpcontext.NewAdapter(appCtx, cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Health:  apiHandler.NewHealthHandler(health, ctxAdapter, zapLogger),
		Session: apiHandler.NewSessionHandler(gate, ctxAdapter, zapLogger),
		Area:    apiHandler.NewAreaHandler(gate, socket, securityMonitor, ctxAdapter, zapLogger),
	}
	guards := router.Guards{
		Protected: middleware.Guard(gate, protected, ctxAdapter, zapLogger),
		Admin:     middleware.Guard(gate, admin, ctxAdapter, zapLogger),
	}
	var gatherer prometheus.Gatherer
	if cfg.HTTP.EnableMetrics {
		gatherer = registry
	}
	r := router.New(handlers, guards, gatherer)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
