// Package telemetry provides observability instrumentation for folio.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and project lifecycle events into a
// single bundle that the project service and HTTP adapter share.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("projects")
//	logger.WithProjectID(42).Info("project created")
//	logger.WithError(err).Error("listing failed")
//
// Levels: trace, debug, info, warn, error, fatal. SetLevel changes the level
// of a logger and all loggers derived from it, which is how config reloads
// take effect. Output other than stdout/stderr is treated as a file path and
// rotated with lumberjack.
//
// # Store Operations
//
// Every store call is wrapped in an instrumented operation:
//
//	ic := tel.StartOperation(ctx, "add_project")
//	id, err := store.AddProject(ic.Ctx, p)
//	ic.End(err, string(stores.KindOf(err)))
//
// End closes the span and records the store_operations_total,
// store_operation_duration_seconds and store_errors_total metrics.
//
// # Events
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("%s: %s\n", event.Type, event.Message)
//	}, telemetry.FilterByType(telemetry.EventTypeProjectCreated))
//
// Event filters: FilterByLevel, FilterByType, FilterByProjectID
//
// # Configuration
//
//	// Development (debug logging, stdout traces when enabled)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
package telemetry
