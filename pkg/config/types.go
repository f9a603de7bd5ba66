package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/folio/pkg/telemetry"
)

// Config is the complete folio configuration as read from folio.yaml and the
// environment.
type Config struct {
	// Database configures the SQLite project store.
	Database DatabaseConfig `yaml:"database"`

	// Server configures the HTTP adapter.
	Server ServerConfig `yaml:"server"`

	// Backup configures scheduled database snapshots.
	Backup BackupConfig `yaml:"backup"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// DatabaseConfig holds the store location and connection pool settings.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path" env:"FOLIO_DB_PATH" validate:"required"`

	// MaxOpenConns bounds the reader pool.
	MaxOpenConns int `yaml:"max_open_conns" env:"FOLIO_DB_MAX_OPEN_CONNS" validate:"gte=1"`

	// MaxIdleConns is the number of idle reader connections kept around.
	MaxIdleConns int `yaml:"max_idle_conns" validate:"gte=0"`

	// ConnMaxLifetime recycles pooled connections after this long.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`

	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"FOLIO_DB_BUSY_TIMEOUT" validate:"gte=0"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// ListenAddress is the host:port the HTTP server binds.
	ListenAddress string `yaml:"listen_address" env:"FOLIO_LISTEN_ADDR" validate:"required"`

	// Mode is the gin mode (debug, release, test).
	Mode string `yaml:"mode" env:"GIN_MODE" validate:"oneof=debug release test"`

	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gte=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// BackupConfig holds scheduled backup settings.
type BackupConfig struct {
	// Schedule is a cron expression with an optional seconds field.
	// Empty disables scheduled backups.
	Schedule string `yaml:"schedule" env:"FOLIO_BACKUP_SCHEDULE" validate:"omitempty,cronspec"`

	// Dir receives the snapshot files.
	Dir string `yaml:"dir" env:"FOLIO_BACKUP_DIR" validate:"required_with=Schedule"`

	// Keep is how many snapshots to retain. Zero keeps all of them.
	Keep int `yaml:"keep" env:"FOLIO_BACKUP_KEEP" validate:"gte=0"`
}

// Enabled reports whether scheduled backups are configured.
func (b BackupConfig) Enabled() bool {
	return b.Schedule != ""
}

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	// Field is the dotted path of the offending field.
	Field string `json:"field"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is the set of problems found in one configuration.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}
