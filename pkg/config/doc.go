// Package config loads and validates folio configuration.
//
// Values are layered in this order, later layers winning:
//
//  1. built-in defaults (Default)
//  2. the YAML file, usually folio.yaml
//  3. dotenv files such as .env, which never override variables already set
//  4. environment variables (FOLIO_DB_PATH, FOLIO_LISTEN_ADDR, LOG_LEVEL, ...)
//
// The result is checked with validator struct tags plus the telemetry
// package's own Validate. Every problem is reported at once as
// ValidationErrors, with fields named by their YAML keys.
//
// # Usage
//
//	cfg, err := config.Load("folio.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Reloading
//
// Watcher uses fsnotify to pick up edits to the file while the server runs.
// Only settings that can change safely at runtime, such as the log level,
// are applied by the caller:
//
//	w := config.NewWatcher("folio.yaml", nil, logger)
//	_ = w.Watch(ctx, func(cfg *config.Config) {
//	    logger.SetLevel(cfg.Telemetry.Logging.Level)
//	})
package config
