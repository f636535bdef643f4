// Package config provides centralized configuration management for the transfer tool.
// Settings come from struct-tag defaults, an optional YAML file, and environment
// variables (in that order of precedence), and are validated on startup so
// misconfiguration fails fast.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Transfer TransferConfig `yaml:"transfer"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds asset store connection settings.
type DatabaseConfig struct {
	// Driver selects the asset store: postgres or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres" yaml:"driver"`

	// URL is the PostgreSQL connection string or the SQLite file path (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true" yaml:"url"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10" yaml:"max_conns"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2" yaml:"min_conns"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h" yaml:"max_conn_lifetime"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m" yaml:"max_conn_idle_time"`
}

// TransferConfig holds import/export limits and concurrency settings.
type TransferConfig struct {
	// MaxEntryBytes caps the decompressed size of one ZIP member (default: 5MiB)
	MaxEntryBytes int64 `env:"TRANSFER_MAX_ENTRY_BYTES" default:"5242880" yaml:"max_entry_bytes"`

	// MaxArchiveBytes caps the cumulative decompressed size of one archive (default: 100MiB)
	MaxArchiveBytes int64 `env:"TRANSFER_MAX_ARCHIVE_BYTES" default:"104857600" yaml:"max_archive_bytes"`

	// MaxUploadBytes caps the raw size of an imported file (default: 100MiB)
	MaxUploadBytes int64 `env:"TRANSFER_MAX_UPLOAD_BYTES" default:"104857600" yaml:"max_upload_bytes"`

	// ExportChunkSize is the number of records per streamed export chunk (default: 500)
	ExportChunkSize int `env:"TRANSFER_EXPORT_CHUNK_SIZE" default:"500" yaml:"export_chunk_size"`

	// ImportBatchSize is the number of records per transactional write (default: 100)
	ImportBatchSize int `env:"TRANSFER_IMPORT_BATCH_SIZE" default:"100" yaml:"import_batch_size"`

	// WriteConcurrency is the number of batches written in parallel (default: 4)
	WriteConcurrency int `env:"TRANSFER_WRITE_CONCURRENCY" default:"4" yaml:"write_concurrency"`

	// MaxConcurrent is the maximum number of transfers running at once (default: 5)
	MaxConcurrent int `env:"TRANSFER_MAX_CONCURRENT" default:"5" yaml:"max_concurrent"`

	// MaxWaitTime is how long to wait for a transfer slot (default: 30s)
	MaxWaitTime time.Duration `env:"TRANSFER_MAX_WAIT_TIME" default:"30s" yaml:"max_wait_time"`

	// Timeout is the maximum duration of a single transfer (default: 10m)
	Timeout time.Duration `env:"TRANSFER_TIMEOUT" default:"10m" yaml:"timeout"`
}

// StorageConfig holds S3 settings for export destinations given as s3:// URLs.
type StorageConfig struct {
	// S3Region is the AWS region (optional, uses default chain if empty)
	S3Region string `env:"S3_REGION" yaml:"s3_region"`

	// S3Endpoint is a custom endpoint for S3-compatible providers (MinIO, R2)
	S3Endpoint string `env:"S3_ENDPOINT" yaml:"s3_endpoint"`

	// S3UsePathStyle forces path-style addressing (default: false)
	S3UsePathStyle bool `env:"S3_USE_PATH_STYLE" default:"false" yaml:"s3_use_path_style"`

	// S3Prefix is prepended to every object key (optional)
	S3Prefix string `env:"S3_PREFIX" yaml:"s3_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" yaml:"level"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" yaml:"format"`
}
