package di

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/wire"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shopfabric/backend/internal/certwatch"
	"github.com/shopfabric/backend/internal/config"
	"github.com/shopfabric/backend/internal/dns"
	"github.com/shopfabric/backend/internal/domain"
	"github.com/shopfabric/backend/internal/handler"
	"github.com/shopfabric/backend/internal/health"
	"github.com/shopfabric/backend/internal/metrics"
	"github.com/shopfabric/backend/internal/nginx"
	"github.com/shopfabric/backend/internal/orchestrator"
	"github.com/shopfabric/backend/internal/repository"
	"github.com/shopfabric/backend/internal/server"
	"github.com/shopfabric/backend/internal/validator"
)

const Version = "0.1.0"

var ConfigSet = wire.NewSet(
	config.Load,
)

var LoggerSet = wire.NewSet(
	ProvideLogger,
)

var DatabaseSet = wire.NewSet(
	ProvideDatabase,
)

var RepositorySet = wire.NewSet(
	repository.NewPostgresCustomDomainRepository,
	wire.Bind(new(domain.CustomDomainRepository), new(*repository.PostgresCustomDomainRepository)),
	repository.NewPostgresTenantRegistry,
	wire.Bind(new(domain.TenantRegistry), new(*repository.PostgresTenantRegistry)),
)

var MetricsSet = wire.NewSet(
	ProvideRegistry,
	ProvideMetrics,
)

var ProvisionSet = wire.NewSet(
	ProvideDNSClient,
	ProvidePropagationChecker,
	ProvideNginxProvisioner,
	ProvideValidator,
	ProvideCertClient,
	ProvideOrchestrator,
	ProvideReconciler,
)

var HandlerSet = wire.NewSet(
	ProvideHealthHandler,
	ProvideMetricsHandler,
	ProvideDomainHandler,
)

var ServerSet = wire.NewSet(
	ProvideServerConfig,
	server.New,
)

var AppSet = wire.NewSet(
	ConfigSet,
	LoggerSet,
	DatabaseSet,
	RepositorySet,
	MetricsSet,
	ProvisionSet,
	HandlerSet,
	ServerSet,
	wire.Struct(new(Application), "*"),
)

func ProvideLogger(cfg *config.Config) *slog.Logger {
	var logLevel slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var h slog.Handler
	if cfg.Server.Env == "development" {
		h = tint.NewHandler(os.Stdout, &tint.Options{Level: logLevel})
	} else {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(h)
}

func ProvideDatabase(cfg *config.Config) (*sql.DB, func(), error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cleanup := func() {
		db.Close()
	}

	return db, cleanup, nil
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func ProvideDNSClient(cfg *config.Config, logger *slog.Logger) *dns.Client {
	return dns.NewClient(dns.Config{
		BaseURL:   cfg.DNS.BaseURL,
		ZoneID:    cfg.DNS.ZoneID,
		Tokens:    dns.NewStaticTokenSource(cfg.DNS.APIToken),
		RateLimit: cfg.DNS.RateLimit,
	}, logger)
}

func ProvidePropagationChecker(cfg *config.Config, logger *slog.Logger) *dns.PropagationChecker {
	return dns.NewPropagationChecker(cfg.DNS.PublicResolver, cfg.DNS.PropagationTimeout, logger)
}

func ProvideNginxProvisioner(cfg *config.Config, logger *slog.Logger) (*nginx.Provisioner, error) {
	return nginx.NewProvisioner(nginx.Config{
		Binary:       cfg.Nginx.Binary,
		TemplatePath: cfg.Nginx.TemplatePath,
		AvailableDir: cfg.Nginx.AvailableDir,
		EnabledDir:   cfg.Nginx.EnabledDir,
	}, logger)
}

func ProvideValidator(cfg *config.Config, logger *slog.Logger) *validator.Validator {
	return validator.New(validator.Config{
		CNAMETarget:  cfg.DNS.CNAMETarget,
		ServerIP:     cfg.DNS.ServerIP,
		ProbeTimeout: cfg.Validator.ProbeTimeout,
		CacheTTL:     cfg.Validator.CacheTTL,
	}, logger)
}

func ProvideCertClient(cfg *config.Config) *certwatch.Client {
	return certwatch.NewClient(cfg.CertAuto.BaseURL)
}

func ProvideOrchestrator(
	cfg *config.Config,
	tenants domain.TenantRegistry,
	domains domain.CustomDomainRepository,
	dnsClient *dns.Client,
	propagation *dns.PropagationChecker,
	proxy *nginx.Provisioner,
	val *validator.Validator,
	certs *certwatch.Client,
	m *metrics.Metrics,
	logger *slog.Logger,
) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Config{
		Tenants:          tenants,
		Domains:          domains,
		DNS:              dnsProvisioner{dnsClient, propagation},
		Proxy:            proxy,
		Validator:        val,
		Certs:            certs,
		Metrics:          m,
		Logger:           logger,
		ServerIP:         cfg.DNS.ServerIP,
		CNAMETarget:      cfg.DNS.CNAMETarget,
		OperationTimeout: cfg.Reconcile.OperationTimeout,
	})
}

func ProvideReconciler(
	cfg *config.Config,
	domains domain.CustomDomainRepository,
	dnsClient *dns.Client,
	propagation *dns.PropagationChecker,
	proxy *nginx.Provisioner,
	val *validator.Validator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *health.Reconciler {
	return health.New(health.Config{
		Domains:     domains,
		Validator:   val,
		DNS:         dnsProvisioner{dnsClient, propagation},
		Proxy:       proxy,
		Metrics:     m,
		Logger:      logger,
		Interval:    cfg.Reconcile.Interval,
		Concurrency: cfg.Reconcile.Concurrency,
	})
}

// dnsProvisioner joins the provider client and the propagation checker into
// the one DNS surface the orchestrator and reconciler consume.
type dnsProvisioner struct {
	*dns.Client
	propagation *dns.PropagationChecker
}

func (d dnsProvisioner) CheckPropagation(ctx context.Context, hostname string) dns.PropagationResult {
	return d.propagation.Check(ctx, hostname)
}

func ProvideHealthHandler() *handler.HealthHandler {
	return handler.NewHealthHandler(Version)
}

func ProvideMetricsHandler(reg *prometheus.Registry) *handler.MetricsHandler {
	return handler.NewMetricsHandler(reg)
}

func ProvideDomainHandler(orch *orchestrator.Orchestrator, reconciler *health.Reconciler, logger *slog.Logger) *handler.DomainHandler {
	return handler.NewDomainHandler(orch, reconciler, logger)
}

func ProvideServerConfig(cfg *config.Config) server.Config {
	return server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		CorsOrigins:  cfg.Server.CORS,
	}
}

type Application struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *sql.DB
	DNSClient      *dns.Client
	Orchestrator   *orchestrator.Orchestrator
	Reconciler     *health.Reconciler
	Server         *server.Server
	HealthHandler  *handler.HealthHandler
	MetricsHandler *handler.MetricsHandler
	DomainHandler  *handler.DomainHandler
}
