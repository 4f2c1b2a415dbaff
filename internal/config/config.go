package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultPort                = 8080
	DefaultPublicResolver      = "1.1.1.1:53"
	DefaultPropagationTimeout  = 3 * time.Second
	DefaultProbeTimeout        = 5 * time.Second
	DefaultSetupTimeout        = 60 * time.Second
	DefaultCacheTTL            = 10 * time.Minute
	DefaultReconcileInterval   = 5 * time.Minute
	DefaultReconcileConcurrent = 8
	DefaultProviderRateLimit   = 4
	DefaultNginxBin            = "nginx"
	DefaultNginxAvailableDir   = "/etc/nginx/sites-available"
	DefaultNginxEnabledDir     = "/etc/nginx/sites-enabled"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	DNS       DNSConfig
	Nginx     NginxConfig
	Validator ValidatorConfig
	Reconcile ReconcileConfig
	CertAuto  CertAutoConfig
}

type ServerConfig struct {
	Env      string
	Host     string
	Port     int
	LogLevel string
	CORS     string
}

type DatabaseConfig struct {
	URL string
}

type DNSConfig struct {
	// Provider credentials: API token plus the zone the tenant hostnames
	// live under.
	APIToken string
	ZoneID   string
	BaseURL  string

	// Where provisioned records must point.
	ServerIP    string
	CNAMETarget string

	// Public resolver for propagation checks, independent of the provider.
	PublicResolver     string
	PropagationTimeout time.Duration

	// Provider API calls per second.
	RateLimit int
}

type NginxConfig struct {
	Binary       string
	TemplatePath string
	AvailableDir string
	EnabledDir   string
}

type ValidatorConfig struct {
	ProbeTimeout time.Duration
	CacheTTL     time.Duration
}

type ReconcileConfig struct {
	Interval    time.Duration
	Concurrency int
	// One SetupDomain/RemoveDomain invocation gets this overall budget.
	OperationTimeout time.Duration
}

type CertAutoConfig struct {
	BaseURL string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Env:      getEnv("APP_ENV", "development"),
			Host:     getEnv("HOST", "0.0.0.0"),
			Port:     getEnvInt("PORT", DefaultPort),
			LogLevel: getEnv("LOG_LEVEL", "info"),
			CORS:     getEnv("CORS_ORIGINS", ""),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		DNS: DNSConfig{
			APIToken:           getEnv("DNS_API_TOKEN", ""),
			ZoneID:             getEnv("DNS_ZONE_ID", ""),
			BaseURL:            getEnv("DNS_API_BASE_URL", ""),
			ServerIP:           getEnv("SERVER_IP", ""),
			CNAMETarget:        getEnv("DNS_CNAME_TARGET", ""),
			PublicResolver:     getEnv("DNS_PUBLIC_RESOLVER", DefaultPublicResolver),
			PropagationTimeout: getEnvDuration("DNS_PROPAGATION_TIMEOUT", DefaultPropagationTimeout),
			RateLimit:          getEnvInt("DNS_API_RATE_LIMIT", DefaultProviderRateLimit),
		},
		Nginx: NginxConfig{
			Binary:       getEnv("NGINX_BIN", DefaultNginxBin),
			TemplatePath: getEnv("NGINX_VHOST_TEMPLATE", defaultTemplatePath()),
			AvailableDir: getEnv("NGINX_AVAILABLE_DIR", DefaultNginxAvailableDir),
			EnabledDir:   getEnv("NGINX_ENABLED_DIR", DefaultNginxEnabledDir),
		},
		Validator: ValidatorConfig{
			ProbeTimeout: getEnvDuration("VALIDATION_PROBE_TIMEOUT", DefaultProbeTimeout),
			CacheTTL:     getEnvDuration("VALIDATION_CACHE_TTL", DefaultCacheTTL),
		},
		Reconcile: ReconcileConfig{
			Interval:         getEnvDuration("RECONCILE_INTERVAL", DefaultReconcileInterval),
			Concurrency:      getEnvInt("RECONCILE_CONCURRENCY", DefaultReconcileConcurrent),
			OperationTimeout: getEnvDuration("SETUP_TIMEOUT", DefaultSetupTimeout),
		},
		CertAuto: CertAutoConfig{
			BaseURL: getEnv("CERT_AUTOMATION_URL", "http://127.0.0.1:9701"),
		},
	}
}

// Validate rejects configurations that would only fail later, deep inside a
// remote call.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DNS.APIToken == "" {
		return fmt.Errorf("DNS_API_TOKEN is required")
	}
	if c.DNS.ZoneID == "" {
		return fmt.Errorf("DNS_ZONE_ID is required")
	}
	if c.DNS.ServerIP == "" {
		return fmt.Errorf("SERVER_IP is required")
	}
	if c.Reconcile.Concurrency < 1 {
		return fmt.Errorf("RECONCILE_CONCURRENCY must be at least 1")
	}
	return nil
}

func defaultTemplatePath() string {
	return filepath.Join("templates", "vhost.conf.tmpl")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
