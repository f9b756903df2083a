// Package config loads s3gate's configuration from a YAML file and
// environment variables, and builds the immutable credential/ACL/CORS
// snapshot the core consumes (SPEC_FULL §6, §9).
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/prn-tf/s3gate/internal/domain"
)

// Config represents the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Lock    LockConfig    `mapstructure:"lock"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Sweeper SweeperConfig `mapstructure:"sweeper"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// StorageConfig holds the settings that feed the core's consumed
// snapshot: storage_root, default_acl, default_cors,
// multipart_expiry_seconds, default_region (SPEC_FULL §6).
type StorageConfig struct {
	Root            string           `mapstructure:"root"`
	DefaultRegion   string           `mapstructure:"default_region"`
	MultipartExpiry time.Duration    `mapstructure:"multipart_expiry"`
	DefaultACL      ACLConfig        `mapstructure:"default_acl"`
	DefaultCORS     []CORSRuleConfig `mapstructure:"default_cors"`
}

// ACLConfig mirrors domain.ACL with mapstructure tags so viper can bind
// snake_case config keys onto it; ToDomain converts the bound value.
type ACLConfig struct {
	Public       bool     `mapstructure:"public"`
	PublicWrite  bool     `mapstructure:"public_write"`
	AllowedCIDRs []string `mapstructure:"allowed_cidrs"`
}

func (c ACLConfig) ToDomain() domain.ACL {
	return domain.ACL{Public: c.Public, PublicWrite: c.PublicWrite, AllowedCIDRs: c.AllowedCIDRs}
}

// CORSRuleConfig mirrors domain.CORSRule with mapstructure tags.
type CORSRuleConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func (c CORSRuleConfig) ToDomain() domain.CORSRule {
	return domain.CORSRule{AllowedOrigins: c.AllowedOrigins, AllowedMethods: c.AllowedMethods, AllowedHeaders: c.AllowedHeaders}
}

// CredentialConfig mirrors domain.Credential with mapstructure tags.
type CredentialConfig struct {
	AccessKeyID     string                  `mapstructure:"access_key_id"`
	SecretAccessKey string                  `mapstructure:"secret_access_key"`
	Permissions     []PermissionRuleConfig  `mapstructure:"permissions"`
}

func (c CredentialConfig) ToDomain() domain.Credential {
	rules := make([]domain.PermissionRule, 0, len(c.Permissions))
	for _, p := range c.Permissions {
		rules = append(rules, domain.PermissionRule{ActionPattern: p.Action, ResourcePattern: p.Resource})
	}
	return domain.Credential{AccessKeyID: c.AccessKeyID, SecretAccessKey: c.SecretAccessKey, Permissions: rules}
}

// PermissionRuleConfig mirrors domain.PermissionRule with mapstructure tags.
type PermissionRuleConfig struct {
	Action   string `mapstructure:"action"`
	Resource string `mapstructure:"resource"`
}

// AuthConfig holds SigV4 verification settings plus the externally
// supplied credential list the snapshot is built from.
type AuthConfig struct {
	Region          string             `mapstructure:"region"`
	Service         string             `mapstructure:"service"`
	MaxSignatureAge time.Duration      `mapstructure:"max_signature_age"`
	Credentials     []CredentialConfig `mapstructure:"credentials"`
}

// LockConfig selects the advisory lock backend (SPEC_FULL §5, §11).
type LockConfig struct {
	Backend string           `mapstructure:"backend"` // "memory" or "redis"
	TTL     time.Duration    `mapstructure:"ttl"`
	Redis   RedisLockConfig  `mapstructure:"redis"`
}

// RedisLockConfig holds Redis connection settings for RedisLocker.
type RedisLockConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address in host:port form.
func (c RedisLockConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuditConfig selects the audit trail backend (SPEC_FULL §3, §11).
type AuditConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Backend     string `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SweeperConfig holds the expired-multipart-upload sweeper's schedule.
type SweeperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// CredentialSet builds the immutable credential snapshot the auth layer
// and dispatcher consume, per SPEC_FULL §9's hot-reload note: a fresh
// config load always produces a brand new snapshot value, never a
// mutation of a prior one.
func (c *Config) CredentialSet() *domain.CredentialSet {
	creds := make([]domain.Credential, 0, len(c.Auth.Credentials))
	for _, cc := range c.Auth.Credentials {
		creds = append(creds, cc.ToDomain())
	}
	return domain.NewCredentialSet(creds)
}

// Load reads configuration from the specified file and environment
// variables. Environment variables take precedence and use the
// S3GATE_ prefix with "." replaced by "_" (e.g. S3GATE_STORAGE_ROOT
// overrides storage.root).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("S3GATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/s3gate")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 5*1024*1024*1024) // 5GB

	v.SetDefault("storage.root", "./data")
	v.SetDefault("storage.default_region", domain.DefaultRegion)
	v.SetDefault("storage.multipart_expiry", 24*time.Hour)

	v.SetDefault("auth.region", "us-east-1")
	v.SetDefault("auth.service", "s3")
	v.SetDefault("auth.max_signature_age", 15*time.Minute)

	v.SetDefault("lock.backend", "memory")
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("lock.redis.host", "localhost")
	v.SetDefault("lock.redis.port", 6379)
	v.SetDefault("lock.redis.pool_size", 10)
	v.SetDefault("lock.redis.dial_timeout", 5*time.Second)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.backend", "sqlite")
	v.SetDefault("audit.sqlite_path", "./data/audit.db")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", 1*time.Hour)
}

// Validate rejects out-of-range ports, unknown backend names, and a
// missing storage root before the snapshot is built.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}

	validLockBackends := map[string]bool{"memory": true, "redis": true}
	if !validLockBackends[c.Lock.Backend] {
		return fmt.Errorf("lock.backend must be 'memory' or 'redis'")
	}

	if c.Audit.Enabled {
		validAuditBackends := map[string]bool{"sqlite": true, "postgres": true}
		if !validAuditBackends[c.Audit.Backend] {
			return fmt.Errorf("audit.backend must be 'sqlite' or 'postgres'")
		}
		if c.Audit.Backend == "sqlite" && c.Audit.SQLitePath == "" {
			return fmt.Errorf("audit.sqlite_path is required for the sqlite backend")
		}
		if c.Audit.Backend == "postgres" && c.Audit.PostgresDSN == "" {
			return fmt.Errorf("audit.postgres_dsn is required for the postgres backend")
		}
	}

	for _, cred := range c.Auth.Credentials {
		if cred.AccessKeyID == "" || cred.SecretAccessKey == "" {
			return fmt.Errorf("auth.credentials entries require access_key_id and secret_access_key")
		}
	}

	for _, cidr := range c.Storage.DefaultACL.AllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("storage.default_acl.allowed_cidrs: %w", err)
		}
	}

	return nil
}

// MustLoad loads configuration or panics on error. Useful for main
// function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
