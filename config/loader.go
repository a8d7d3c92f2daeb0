// =============================================================================
// 📦 Canvasflow configuration loader
// =============================================================================
// Unified configuration loading: YAML file + environment overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("CANVASFLOW").
//	    Load()
//
// Precedence: defaults → YAML file → environment variables
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/canvasflow/delivery"
	"github.com/BaSui01/canvasflow/layout"
	"github.com/BaSui01/canvasflow/store"
)

// =============================================================================
// 🎯 Core configuration structure
// =============================================================================

// Config is the complete canvasflow configuration.
type Config struct {
	// Server is the gateway HTTP server configuration.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Store configures the shared key-value store backing channel B.
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Redis applies when the store or draft backend is redis.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database applies when the draft backend is a SQL database.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Drafts selects and tunes draft persistence.
	Drafts DraftsConfig `yaml:"drafts" env:"DRAFTS"`

	// Delivery tunes the per-canvas delivery manager.
	Delivery DeliveryConfig `yaml:"delivery" env:"DELIVERY"`

	// Layout overrides node placement spacing.
	Layout LayoutConfig `yaml:"layout" env:"LAYOUT"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig is the gateway HTTP server configuration.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Per-connection websocket send rate limit.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// StoreConfig selects the key-value store backend.
type StoreConfig struct {
	// Type: memory, file, redis
	Type string `yaml:"type" env:"TYPE"`
	// FilePath is the data directory for the file backend.
	FilePath string `yaml:"file_path" env:"FILE_PATH"`
}

// RedisConfig is the redis connection configuration.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig is the SQL database configuration for draft storage.
type DatabaseConfig struct {
	// Driver: postgres, mysql, sqlite
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// DraftsConfig selects where tab drafts persist.
type DraftsConfig struct {
	// Backend: memory, kv, database
	Backend string `yaml:"backend" env:"BACKEND"`
}

// DeliveryConfig tunes the delivery manager.
type DeliveryConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	MaxPolls          int           `yaml:"max_polls" env:"MAX_POLLS"`
	RecordTTL         time.Duration `yaml:"record_ttl" env:"RECORD_TTL"`
	InsertionDebounce time.Duration `yaml:"insertion_debounce" env:"INSERTION_DEBOUNCE"`
}

// LayoutConfig overrides placement spacing.
type LayoutConfig struct {
	HorizontalSpacing float64 `yaml:"horizontal_spacing" env:"HORIZONTAL_SPACING"`
	VerticalSpacing   float64 `yaml:"vertical_spacing" env:"VERTICAL_SPACING"`
	DefaultX          float64 `yaml:"default_x" env:"DEFAULT_X"`
	DefaultY          float64 `yaml:"default_y" env:"DEFAULT_Y"`
	ColumnsPerRow     int     `yaml:"columns_per_row" env:"COLUMNS_PER_ROW"`
}

// LogConfig is the logging configuration.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// =============================================================================
// 🔧 Configuration loader
// =============================================================================

// Loader loads configuration (builder pattern).
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "CANVASFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends a validation hook.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads the configuration.
// Precedence: defaults → YAML file → environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile merges the YAML file over the current values. A missing
// file is not an error; defaults apply.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks the struct recursively, overriding tagged
// fields from the environment.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration parses as a duration string
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string slices
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 Helpers
// =============================================================================

// MustLoad loads configuration, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks the loaded configuration for coherent values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}

	switch store.StoreType(c.Store.Type) {
	case store.StoreTypeMemory, store.StoreTypeFile, store.StoreTypeRedis:
	default:
		errs = append(errs, fmt.Sprintf("unknown store type %q", c.Store.Type))
	}

	switch c.Drafts.Backend {
	case "memory", "kv", "database":
	default:
		errs = append(errs, fmt.Sprintf("unknown draft backend %q", c.Drafts.Backend))
	}

	if c.Delivery.MaxPolls < 0 {
		errs = append(errs, "max_polls must not be negative")
	}
	if c.Delivery.RecordTTL <= 0 {
		errs = append(errs, "record_ttl must be positive")
	}
	if c.Layout.ColumnsPerRow <= 0 {
		errs = append(errs, "columns_per_row must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the database connection string for the selected driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// StoreConfigFor converts to the store package's configuration.
func (c *Config) StoreConfigFor() store.Config {
	out := store.DefaultConfig()
	out.Type = store.StoreType(c.Store.Type)
	if c.Store.FilePath != "" {
		out.BaseDir = c.Store.FilePath
	}
	out.Redis.Addr = c.Redis.Addr
	out.Redis.Password = c.Redis.Password
	out.Redis.DB = c.Redis.DB
	out.Redis.PoolSize = c.Redis.PoolSize
	return out
}

// DeliveryConfigFor converts to the delivery package's configuration,
// folding in the layout overrides.
func (c *Config) DeliveryConfigFor() delivery.Config {
	out := delivery.DefaultConfig()
	if c.Delivery.PollInterval > 0 {
		out.PollInterval = c.Delivery.PollInterval
	}
	if c.Delivery.MaxPolls > 0 {
		out.MaxPolls = c.Delivery.MaxPolls
	}
	if c.Delivery.RecordTTL > 0 {
		out.RecordTTL = c.Delivery.RecordTTL
	}
	if c.Delivery.InsertionDebounce > 0 {
		out.InsertionDebounce = c.Delivery.InsertionDebounce
	}
	out.Layout = c.LayoutOptions()
	return out
}

// LayoutOptions converts to the layout package's options.
func (c *Config) LayoutOptions() layout.Options {
	out := layout.DefaultOptions()
	if c.Layout.HorizontalSpacing > 0 {
		out.HorizontalSpacing = c.Layout.HorizontalSpacing
	}
	if c.Layout.VerticalSpacing > 0 {
		out.VerticalSpacing = c.Layout.VerticalSpacing
	}
	if c.Layout.DefaultX > 0 {
		out.DefaultX = c.Layout.DefaultX
	}
	if c.Layout.DefaultY > 0 {
		out.DefaultY = c.Layout.DefaultY
	}
	if c.Layout.ColumnsPerRow > 0 {
		out.ColumnsPerRow = c.Layout.ColumnsPerRow
	}
	return out
}
