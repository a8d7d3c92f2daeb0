// =============================================================================
// 📦 Canvasflow default configuration
// =============================================================================
// Sensible defaults for every configuration section.
// =============================================================================
package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:   DefaultServerConfig(),
		Store:    DefaultStoreConfig(),
		Redis:    DefaultRedisConfig(),
		Database: DefaultDatabaseConfig(),
		Drafts:   DefaultDraftsConfig(),
		Delivery: DefaultDeliveryConfig(),
		Layout:   DefaultLayoutConfig(),
		Log:      DefaultLogConfig(),
	}
}

// DefaultServerConfig returns the default gateway server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

// DefaultStoreConfig returns the default key-value store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:     "memory",
		FilePath: "./data/store",
	}
}

// DefaultRedisConfig returns the default redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig returns the default database configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "canvasflow",
		Password:        "",
		Name:            "canvasflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultDraftsConfig returns the default draft persistence selection.
func DefaultDraftsConfig() DraftsConfig {
	return DraftsConfig{Backend: "kv"}
}

// DefaultDeliveryConfig returns the default delivery manager tuning.
func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		PollInterval:      time.Second,
		MaxPolls:          10,
		RecordTTL:         10 * time.Second,
		InsertionDebounce: time.Second,
	}
}

// DefaultLayoutConfig returns the default placement spacing.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		HorizontalSpacing: 200,
		VerticalSpacing:   150,
		DefaultX:          250,
		DefaultY:          250,
		ColumnsPerRow:     3,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
