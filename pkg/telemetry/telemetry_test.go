package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "default", mutate: func(c *Config) {}},
		{name: "production needs endpoint", mutate: func(c *Config) { *c = *ProductionConfig() }, wantErr: true},
		{name: "production with endpoint", mutate: func(c *Config) {
			*c = *ProductionConfig()
			c.Tracing.Endpoint = "localhost:4317"
		}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "bad exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, wantErr: true},
		{name: "bad sampling", mutate: func(c *Config) { c.Tracing.SamplingRate = 2 }, wantErr: true},
		{name: "no service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: true},
		{name: "zero buffer", mutate: func(c *Config) { c.Events.BufferSize = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LoggingConfig{Level: "warn", Format: "json"})
	child := logger.NewComponentLogger("projects").WithProjectID(3)

	child.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be dropped at warn level, got %q", buf.String())
	}

	logger.SetLevel("info")
	child.Info("kept")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "kept" {
		t.Errorf("expected message 'kept', got %v", entry["message"])
	}
	if entry["component"] != "projects" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
	if entry["project_id"] != float64(3) {
		t.Errorf("expected project_id 3, got %v", entry["project_id"])
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LoggingConfig{Level: "info", Format: "json"})

	logger.WithError(errors.New("disk full")).Error("write failed")

	if !strings.Contains(buf.String(), `"error":"disk full"`) {
		t.Errorf("expected error field in %q", buf.String())
	}
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := t.TempDir() + "/folio.log"
	logger, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("to file")
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"trace", "debug", "info", "warn", "error", "fatal"} {
		if got := parseLogLevel(level).String(); got != level {
			t.Errorf("parseLogLevel(%q) = %q", level, got)
		}
	}
	if got := parseLogLevel("nonsense").String(); got != "info" {
		t.Errorf("expected fallback to info, got %q", got)
	}
	if !ValidLevel("debug") || ValidLevel("verbose") {
		t.Error("ValidLevel returned unexpected result")
	}
}

func TestEventPublisherSync(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 4})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}

	var got []Event
	ep.Subscribe(func(e Event) { got = append(got, e) }, FilterByProjectID(5))

	_ = ep.PublishProjectCreated(5, "Five")
	_ = ep.PublishProjectCreated(6, "Six")
	_ = ep.PublishProjectDeleted(5, false)

	if len(got) != 2 {
		t.Fatalf("expected 2 events for project 5, got %d", len(got))
	}
	if got[0].Type != EventTypeProjectCreated || got[1].Type != EventTypeProjectDeleteMissed {
		t.Errorf("unexpected event types: %s, %s", got[0].Type, got[1].Type)
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Error("expected publisher to assign ID and timestamp")
	}
}

func TestEventPublisherAsyncFlushesOnShutdown(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 64, MaxBatchSize: 4, EnableAsync: true})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}

	var (
		mu    sync.Mutex
		count int
	)
	ep.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, FilterByLevel(EventLevelError))

	for i := 0; i < 10; i++ {
		_ = ep.PublishStoreError("list_projects", "read_failed", errors.New("boom"))
		_ = ep.PublishProjectCreated(int64(i), "noise")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ep.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 10 {
		t.Errorf("expected 10 error events delivered, got %d", count)
	}

	if err := ep.Publish(Event{Type: "late"}); err == nil {
		t.Error("expected publish after shutdown to fail")
	}
}

func TestEventPublisherDisabled(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	if err := ep.PublishProjectCreated(1, "x"); err != nil {
		t.Errorf("disabled publisher should accept events silently, got %v", err)
	}
	if err := ep.Shutdown(context.Background()); err != nil {
		t.Errorf("disabled shutdown failed: %v", err)
	}
}

func TestMetricsRecordOperation(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	m.RecordOperation("add_project", "success", 2*time.Millisecond)
	m.RecordOperation("add_project", "success", 3*time.Millisecond)
	m.RecordOperation("add_project", "failure", time.Millisecond)
	m.RecordError("write_failed")
	m.RecordError("")
	m.SetProjectCount(4)
	m.RecordHTTPRequest("GET", "/projects", 200, time.Millisecond)
	m.RecordBackup(nil)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("add_project", "success")); got != 2 {
		t.Errorf("expected 2 successful adds, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorsByKind.WithLabelValues("unknown")); got != 1 {
		t.Errorf("expected empty kind to count as unknown, got %v", got)
	}
	if got := testutil.ToFloat64(m.projectsStored); got != 4 {
		t.Errorf("expected projects_stored 4, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/projects", "200")); got != 1 {
		t.Errorf("expected 1 http request, got %v", got)
	}
	if got := testutil.ToFloat64(m.backups.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 backup, got %v", got)
	}
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	m.RecordOperation("add_project", "success", time.Millisecond)
	m.RecordError("write_failed")
	m.SetProjectCount(1)
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	m.RecordBackup(errors.New("x"))

	if m.Registry() != nil {
		t.Error("expected nil registry when disabled")
	}
	if err := m.StartMetricsServer(nil); err != nil {
		t.Errorf("expected no-op server start, got %v", err)
	}
}

func TestStartOperationRecordsSpanAndMetrics(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	tel := Nop()
	tel.Tracer = NewTracerWithProvider(provider, "test")
	metrics, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	tel.Metrics = metrics

	ok := tel.StartOperation(context.Background(), "list_projects")
	ok.End(nil, "")

	failed := tel.StartOperation(context.Background(), "add_project", AttrProjectID.Int64(9))
	failed.End(errors.New("disk full"), "write_failed")

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(spans))
	}
	if spans[0].Name() != "store.list_projects" || spans[0].Status().Code != codes.Ok {
		t.Errorf("unexpected first span: %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[1].Status())
	}

	if got := testutil.ToFloat64(metrics.operations.WithLabelValues("add_project", "failure")); got != 1 {
		t.Errorf("expected 1 failed add, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.errorsByKind.WithLabelValues("write_failed")); got != 1 {
		t.Errorf("expected 1 write_failed error, got %v", got)
	}
}

func TestNewTelemetryShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Output = "stderr"

	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}

	ctx := tel.WithContext(context.Background())
	if FromTelemetryContext(ctx) != tel {
		t.Error("expected telemetry in context")
	}
	if FromContext(ctx) != tel.Logger {
		t.Error("expected logger in context")
	}

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}
