package http

import (
	"context"
	"fmt"
	"net/http"

	"log/slog"

	appauth "github.com/astro-web3/ts43-entitlement/internal/app/auth"
	"github.com/astro-web3/ts43-entitlement/internal/config"
	"github.com/astro-web3/ts43-entitlement/internal/domain/auth"
	"github.com/astro-web3/ts43-entitlement/internal/infra/cache"
	"github.com/astro-web3/ts43-entitlement/internal/infra/certsource"
	"github.com/astro-web3/ts43-entitlement/internal/infra/entitlement"
	"github.com/astro-web3/ts43-entitlement/pkg/logger"
	"github.com/astro-web3/ts43-entitlement/pkg/otel"
	"github.com/astro-web3/ts43-entitlement/pkg/tracer"
)

type Server struct {
	httpServer *http.Server
	library    *auth.Library
}

const (
	idleTimeoutMultiplier = 2
	serviceName           = "ts43-entitlement"
)

func NewServer(cfg *config.Config) (*Server, error) {
	logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.Format, cfg.Observability.LogSource)

	otelCfg := otel.Config{
		ServiceName:        serviceName,
		EndpointURL:        cfg.Observability.TracingEndpointURL,
		Enabled:            cfg.Observability.TraceEnabled,
		SampleRatio:        1.0,
		Insecure:           true,
		ResourceAttributes: make(map[string]string),
	}
	if err := tracer.InitTracer(serviceName, otelCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	simGateway := entitlement.NewSIMGateway(cfg.Entitlement.SIMGatewayURL)
	backend := entitlement.NewClient(simGateway)
	certSource := certsource.NewStatic(cfg.Auth.Packages, cfg.Auth.Callers)

	library := auth.NewLibrary(backend, certSource)
	library.AddListener(func(e auth.Event) {
		if e.Err != nil {
			logger.WarnContext(context.Background(), "authentication request completed with error",
				slog.String("operation", e.Op.String()),
				slog.String("error", e.Err.Kind.String()),
			)
			return
		}
		logger.InfoContext(context.Background(), "authentication request completed",
			slog.String("operation", e.Op.String()),
			slog.String("app_name", e.AppName),
		)
	})

	authCfg := &auth.Config{
		AllowedCertificates: cfg.Auth.AllowedCertificates,
		AppendShaToAppName:  cfg.Auth.AppendShaToAppName,
		OverrideAppName:     cfg.Auth.OverrideAppName,
	}

	var appService appauth.Service
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(cfg.Redis.URL, cfg.Redis.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		tokenCache := cache.NewTokenCache(redisClient)
		appService = appauth.NewServiceWithCache(library, authCfg, tokenCache, cfg.Auth.CacheTTL)
	} else {
		appService = appauth.NewService(library, authCfg)
	}

	handler := NewHandler(appService)
	router := NewRouter(handler, cfg)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * idleTimeoutMultiplier,
	}

	return &Server{
		httpServer: httpServer,
		library:    library,
	}, nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.library.Close()
	return err
}
