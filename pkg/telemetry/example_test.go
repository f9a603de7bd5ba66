package telemetry_test

import (
	"context"
	"fmt"
	"os"

	"github.com/openfroyo/folio/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	// Output can vary, so we don't specify output for this example
}

// Example_eventSubscription demonstrates synchronous project events.
func Example_eventSubscription() {
	publisher, err := telemetry.NewEventPublisher(telemetry.EventsConfig{
		Enabled:    true,
		BufferSize: 8,
	})
	if err != nil {
		panic(err)
	}

	publisher.Subscribe(func(event telemetry.Event) {
		fmt.Println(event.Type, event.ProjectID)
	}, telemetry.FilterByType(telemetry.EventTypeProjectCreated, telemetry.EventTypeProjectDeleted))

	_ = publisher.PublishProjectCreated(7, "Weather Station")
	_ = publisher.PublishProjectDeleted(7, true)
	_ = publisher.PublishProjectDeleted(8, false)

	// Output:
	// project.created 7
	// project.deleted 7
}

// Example_levelChange demonstrates changing the log level at runtime.
func Example_levelChange() {
	logger := telemetry.NewLoggerWithWriter(os.Stdout, telemetry.LoggingConfig{
		Level:  "warn",
		Format: "json",
	}).NewComponentLogger("example")

	logger.Info("hidden")
	logger.SetLevel("info")
	fmt.Println(logger.Level())

	// Output: info
}
