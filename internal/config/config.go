package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the optimization controller.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Optimization OptimizationConfig `yaml:"optimization"`
	Worker       WorkerConfig       `yaml:"worker"`
	Platform     PlatformConfig     `yaml:"platform"`
	Archive      ArchiveConfig      `yaml:"archive"`
	Warehouse    WarehouseConfig    `yaml:"warehouse"`
}

// ArchiveConfig configures the S3 MonitorRun archiver. Empty Bucket leaves
// archiving disabled.
type ArchiveConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
	S3Prefix string `yaml:"s3_prefix"`
}

// WarehouseConfig configures the Snowflake KPI/trend export. Empty Account
// leaves warehouse export disabled.
type WarehouseConfig struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	if c.Host != "" {
		return c.Host
	}
	return "localhost"
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetimeDuration returns the connection max lifetime as a Duration.
func (c DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Minute
}

// OptimizationConfig carries the six tunables named for the Decision Engine
// and Outcome Verifier, plus the dry-run execution switch.
type OptimizationConfig struct {
	AutoApproveThreshold   float64 `yaml:"auto_approve_threshold"`
	MaxProposalsPerHour    int     `yaml:"max_proposals_per_hour"`
	MaxBudgetChangePct     float64 `yaml:"max_budget_change_pct"`
	MinChannelFloorPct     float64 `yaml:"min_channel_floor_pct"`
	DefaultCooldownMinutes int     `yaml:"default_cooldown_minutes"`
	VerificationDelayHours int     `yaml:"verification_delay_hours"`
	UseDryRunExecution     bool    `yaml:"use_dry_run_execution"`
}

// WorkerConfig configures the background monitor-cycle scheduler.
type WorkerConfig struct {
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	LockTTLSeconds       int    `yaml:"lock_ttl_seconds"`
	RedisURL             string `yaml:"redis_url"`
}

// PollInterval returns the worker poll interval as a Duration.
func (c WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// LockTTL returns the distributed lock TTL as a Duration.
func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// PlatformConfig carries the credentials the platform adapters need.
type PlatformConfig struct {
	MetaAppID       string `yaml:"meta_app_id"`
	MetaAppSecret   string `yaml:"meta_app_secret"`
	MetaAdAccountID string `yaml:"meta_ad_account_id"`
	MetaPageID      string `yaml:"meta_page_id"`
}

// Load reads Config from a YAML file at path and applies documented defaults
// to any field left at its zero value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	// Defaults to true; a bool zero value can't distinguish "absent" from an
	// explicit false, so seed before unmarshal — yaml only overwrites keys
	// present in the document.
	cfg.Optimization.UseDryRunExecution = true
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}

	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5
	}

	if cfg.Optimization.AutoApproveThreshold == 0 {
		cfg.Optimization.AutoApproveThreshold = 0.85
	}
	if cfg.Optimization.MaxProposalsPerHour == 0 {
		cfg.Optimization.MaxProposalsPerHour = 3
	}
	if cfg.Optimization.MaxBudgetChangePct == 0 {
		cfg.Optimization.MaxBudgetChangePct = 0.20
	}
	if cfg.Optimization.MinChannelFloorPct == 0 {
		cfg.Optimization.MinChannelFloorPct = 0.05
	}
	if cfg.Optimization.DefaultCooldownMinutes == 0 {
		cfg.Optimization.DefaultCooldownMinutes = 60
	}
	if cfg.Optimization.VerificationDelayHours == 0 {
		cfg.Optimization.VerificationDelayHours = 24
	}

	if cfg.Worker.PollIntervalSeconds == 0 {
		cfg.Worker.PollIntervalSeconds = 300
	}
	if cfg.Worker.LockTTLSeconds == 0 {
		cfg.Worker.LockTTLSeconds = 120
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides. It
// automatically loads a .env file (if present) before reading env vars, so
// secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}

	if v := os.Getenv("OPTIMIZATION_AUTO_APPROVE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Optimization.AutoApproveThreshold = f
		}
	}
	if v := os.Getenv("OPTIMIZATION_MAX_PROPOSALS_PER_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Optimization.MaxProposalsPerHour = n
		}
	}
	if v := os.Getenv("OPTIMIZATION_MAX_BUDGET_CHANGE_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Optimization.MaxBudgetChangePct = f
		}
	}
	if v := os.Getenv("OPTIMIZATION_MIN_CHANNEL_FLOOR_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Optimization.MinChannelFloorPct = f
		}
	}
	if v := os.Getenv("OPTIMIZATION_DEFAULT_COOLDOWN_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Optimization.DefaultCooldownMinutes = n
		}
	}
	if v := os.Getenv("OPTIMIZATION_VERIFICATION_DELAY_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Optimization.VerificationDelayHours = n
		}
	}
	if v := os.Getenv("USE_DRY_RUN_EXECUTION"); v != "" {
		cfg.Optimization.UseDryRunExecution = v == "true" || v == "1"
	}

	if v := os.Getenv("WORKER_REDIS_URL"); v != "" {
		cfg.Worker.RedisURL = v
	}

	if v := os.Getenv("META_APP_ID"); v != "" {
		cfg.Platform.MetaAppID = v
	}
	if v := os.Getenv("META_APP_SECRET"); v != "" {
		cfg.Platform.MetaAppSecret = v
	}
	if v := os.Getenv("META_AD_ACCOUNT_ID"); v != "" {
		cfg.Platform.MetaAdAccountID = v
	}
	if v := os.Getenv("META_PAGE_ID"); v != "" {
		cfg.Platform.MetaPageID = v
	}

	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.S3Bucket = v
	}
	if v := os.Getenv("ARCHIVE_S3_REGION"); v != "" {
		cfg.Archive.S3Region = v
	}
	if v := os.Getenv("ARCHIVE_S3_PREFIX"); v != "" {
		cfg.Archive.S3Prefix = v
	}

	if v := os.Getenv("SNOWFLAKE_ACCOUNT"); v != "" {
		cfg.Warehouse.Account = v
	}
	if v := os.Getenv("SNOWFLAKE_USER"); v != "" {
		cfg.Warehouse.User = v
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Warehouse.Password = v
	}
	if v := os.Getenv("SNOWFLAKE_DATABASE"); v != "" {
		cfg.Warehouse.Database = v
	}
	if v := os.Getenv("SNOWFLAKE_SCHEMA"); v != "" {
		cfg.Warehouse.Schema = v
	}
	if v := os.Getenv("SNOWFLAKE_WAREHOUSE"); v != "" {
		cfg.Warehouse.Warehouse = v
	}

	return cfg, nil
}
