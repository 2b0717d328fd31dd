// Package config loads and validates the process configuration from
// files, environment, and flags.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/folio-sh/folio/database"
	"github.com/folio-sh/folio/objectstore"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for folio.
type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	Database    database.Config    `mapstructure:"database"`
	ObjectStore objectstore.Config `mapstructure:"object_store"`
	Auth        AuthConfig         `mapstructure:"auth"`
	Presign     PresignConfig      `mapstructure:"presign"`
	Gateway     GatewayConfig      `mapstructure:"gateway"`
	Log         LogConfig          `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"min=0"`
}

// AuthConfig holds authentication configuration. AdminEmail grants the
// admin role to exactly one signup email; empty means no admin.
type AuthConfig struct {
	Secret      string `mapstructure:"secret" validate:"required"`
	AdminEmail  string `mapstructure:"admin_email"`
	TokenTTLHrs int    `mapstructure:"token_ttl_hours" validate:"min=0"`
}

// PresignConfig holds retrieval URL configuration.
type PresignConfig struct {
	ExpirySeconds int `mapstructure:"expiry_seconds" validate:"min=0"`
}

// GatewayConfig holds the reverse-proxy gateway configuration. BaseURL
// pins a fixed upstream; BaseURLFile points at a KEY=VALUE file that is
// re-read per request. BaseURL wins when both are set.
type GatewayConfig struct {
	Port                 int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL              string   `mapstructure:"base_url"`
	BaseURLFile          string   `mapstructure:"base_url_file"`
	BlobAllowedUpstreams []string `mapstructure:"blob_allowed_upstreams"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":      "database.type",
	"db-dsn":       "database.dsn",
	"port":         "server.port",
	"admin-email":  "auth.admin_email",
	"gateway-port": "gateway.port",
	"base-url":     "gateway.base_url",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_bytes", 10<<20)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "folio.db")
	v.SetDefault("database.tables.users", "folio_users")
	v.SetDefault("database.tables.books", "folio_books")

	v.SetDefault("object_store.endpoint", "localhost:9000")
	v.SetDefault("object_store.public_endpoint", "")
	v.SetDefault("object_store.access_key", "")
	v.SetDefault("object_store.secret_key", "")
	v.SetDefault("object_store.bucket", "folio-books")
	v.SetDefault("object_store.use_ssl", false)

	// Empty defaults register the keys so environment overrides reach
	// Unmarshal; validation still rejects the required ones when unset.
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.admin_email", "")
	v.SetDefault("auth.token_ttl_hours", 12)

	v.SetDefault("presign.expiry_seconds", 300)

	v.SetDefault("gateway.port", 3000)
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.base_url_file", "")

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
