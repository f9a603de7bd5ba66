package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/openfroyo/folio/pkg/config"
	"github.com/openfroyo/folio/pkg/projects"
	"github.com/openfroyo/folio/pkg/stores"
	"github.com/openfroyo/folio/pkg/telemetry"
)

// app holds what a command needs to work with the project store.
type app struct {
	cfg     *config.Config
	cfgPath string
	tel     *telemetry.Telemetry
	store   *stores.SQLiteStore
	svc     *projects.Service
}

// loadConfig resolves the config file from --config, falling back to
// ./folio.yaml when it exists and to built-in defaults otherwise. With
// allowMissing, a --config file that does not exist yet also means defaults.
func loadConfig(allowMissing bool) (*config.Config, string, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		}
	}

	cfg, err := config.Load(path)
	if err != nil && allowMissing && errors.Is(err, fs.ErrNotExist) {
		path = ""
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, "", err
	}

	cfg.Telemetry.ServiceVersion = buildVersion
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	return cfg, path, nil
}

// openApp loads configuration, sets up telemetry and opens the store with
// its schema in place.
func openApp(ctx context.Context, allowMissingConfig bool) (*app, error) {
	cfg, path, err := loadConfig(allowMissingConfig)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := stores.NewSQLiteStore(storeConfig(cfg.Database))
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	svc := projects.NewService(store, tel)
	if err := svc.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	return &app{
		cfg:     cfg,
		cfgPath: path,
		tel:     tel,
		store:   store,
		svc:     svc,
	}, nil
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.store.Close(), a.tel.Shutdown(ctx))
}

func storeConfig(db config.DatabaseConfig) stores.Config {
	return stores.Config{
		Path:            db.Path,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		BusyTimeout:     db.BusyTimeout,
	}
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
