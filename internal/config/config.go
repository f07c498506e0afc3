// Package config loads the application configuration using the layered
// Flags > Env > YAML file > defaults hierarchy, following the same pattern
// as the reference implementation this pipeline was adapted from.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/livingdocs/pipeline/internal/logger"
)

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Database DBConfig       `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  logger.Config  `mapstructure:"logging"`
}

// PipelineConfig holds the per-stage suspension-point deadlines from §5.
type PipelineConfig struct {
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	ParseTimeout    time.Duration `mapstructure:"parse_timeout"`
	UploadTimeout   time.Duration `mapstructure:"upload_timeout"`
	DeliverTimeout  time.Duration `mapstructure:"deliver_timeout"`
}

// AuthConfig configures the bearer-token check at the HTTP API boundary.
// The backend that issues tokens (email+OTP+JWT, or username+password+
// role) is out of scope per §1; this is only the shared-secret stand-in
// the core depends on to resolve a token to a core.Principal.
type AuthConfig struct {
	StaticTokens map[string]string `mapstructure:"static_tokens"` // token -> principal id
	AdminTokens  []string          `mapstructure:"admin_tokens"`
}

// ServerConfig configures the orchestrator's HTTP server and worker pool.
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	MaxWorkers   int    `mapstructure:"max_workers"`
	SharedSecret string `mapstructure:"shared_secret"`
}

// ProviderConfig configures access to the upstream source-control provider
// (GitHub App install auth, or a plain PAT for CLI use).
type ProviderConfig struct {
	AppID          int64  `mapstructure:"app_id"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	Token          string `mapstructure:"token"`
}

// DBConfig configures the relational index connection.
type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// GetDSN builds a libpq-style connection string.
func (db *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// StorageConfig configures the S3-compatible object backend of the
// Artifact Store.
type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// DeliveryConfig configures the Delivery Agent's branch/PR behavior.
type DeliveryConfig struct {
	TargetBranch string `mapstructure:"target_branch"`
	DocsRoot     string `mapstructure:"docs_root"`
}

// LoadConfig loads the configuration using Viper with the hierarchy:
// Flags (handled by caller via pflag binding) > Env Vars > Config File >
// Defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.living-docs")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded configuration", "file", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_workers", 4)

	v.SetDefault("provider.private_key_path", "keys/living-docs-app.private-key.pem")

	v.SetDefault("storage.use_path_style", false)

	v.SetDefault("delivery.target_branch", "main")
	v.SetDefault("delivery.docs_root", "docs")

	v.SetDefault("pipeline.fetch_timeout", "2m")
	v.SetDefault("pipeline.parse_timeout", "1m")
	v.SetDefault("pipeline.upload_timeout", "5m")
	v.SetDefault("pipeline.deliver_timeout", "2m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "livingdocs")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "5m")
}

// ValidateForServer checks the fields required to run the orchestrator HTTP
// server (webhook ingestion + worker pool).
func (c *Config) ValidateForServer() error {
	if c.Provider.AppID == 0 && c.Provider.Token == "" {
		return errors.New("provider.app_id or provider.token is required")
	}
	if c.Provider.WebhookSecret == "" {
		return errors.New("provider.webhook_secret is required")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required")
	}
	return nil
}

// ValidateForCLI checks the fields required to run the delivery-agent CLI.
// Nearly all of the CLI's required inputs arrive as environment variables
// per the CLI surface (PROVIDER_TOKEN, REPO_OWNER, REPO_NAME, COMMIT_SHA)
// rather than this config file, and DOCS_BUCKET_PATH — the one input that
// would otherwise map to storage.Bucket — is itself optional, so there is
// nothing left for this config file to require.
func (c *Config) ValidateForCLI() error {
	return nil
}
