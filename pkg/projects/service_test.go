package projects

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/openfroyo/folio/pkg/stores"
	"github.com/openfroyo/folio/pkg/telemetry"
)

// recorder collects events delivered by a synchronous publisher.
type recorder struct {
	events []telemetry.Event
}

func (r *recorder) types() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestTelemetry(t *testing.T) (*telemetry.Telemetry, *recorder) {
	t.Helper()

	tel := telemetry.Nop()

	events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true, BufferSize: 16})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	rec := &recorder{}
	events.Subscribe(func(e telemetry.Event) { rec.events = append(rec.events, e) }, nil)
	tel.Events = events

	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	tel.Metrics = metrics

	return tel, rec
}

func setupTestService(t *testing.T) (*Service, *recorder, *telemetry.Telemetry) {
	t.Helper()

	store, err := stores.NewSQLiteStore(stores.Config{
		Path: filepath.Join(t.TempDir(), "projects.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tel, rec := newTestTelemetry(t)
	svc := NewService(store, tel)

	if err := svc.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	return svc, rec, tel
}

// failingStore fails every operation with a typed store error.
type failingStore struct {
	stores.Store
	err error
}

func (f *failingStore) EnsureSchema(ctx context.Context) error { return f.err }

func (f *failingStore) AddProject(ctx context.Context, p stores.NewProject) (stores.ProjectID, error) {
	return 0, f.err
}

func (f *failingStore) ListAllProjects(ctx context.Context) ([]stores.Project, error) {
	return nil, f.err
}

func (f *failingStore) DeleteProject(ctx context.Context, id stores.ProjectID) (stores.DeleteResult, error) {
	return stores.DeleteResultNotFound, f.err
}

func (f *failingStore) HealthCheck(ctx context.Context) error { return f.err }

func (f *failingStore) Backup(ctx context.Context, dest string) error { return f.err }

func TestServiceAddListDelete(t *testing.T) {
	svc, rec, tel := setupTestService(t)
	ctx := context.Background()

	id, err := svc.Add(ctx, stores.NewProject{Title: "Robot Arm", Description: "servo rig", ImageFileName: "arm.png"})
	if err != nil {
		t.Fatalf("failed to add project: %v", err)
	}

	projects, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("failed to list projects: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != id || projects[0].Title != "Robot Arm" {
		t.Fatalf("unexpected projects: %+v", projects)
	}

	expected := `
# HELP test_projects_stored Number of projects seen by the last successful listing
# TYPE test_projects_stored gauge
test_projects_stored 1
`
	if err := testutil.GatherAndCompare(tel.Metrics.Registry(), strings.NewReader(expected), "test_projects_stored"); err != nil {
		t.Errorf("unexpected projects_stored gauge: %v", err)
	}

	result, err := svc.Delete(ctx, id)
	if err != nil {
		t.Fatalf("failed to delete project: %v", err)
	}
	if result != stores.DeleteResultDeleted {
		t.Errorf("expected deleted, got %s", result)
	}

	result, err = svc.Delete(ctx, id)
	if err != nil {
		t.Fatalf("second delete should succeed: %v", err)
	}
	if result != stores.DeleteResultNotFound {
		t.Errorf("expected not_found, got %s", result)
	}

	want := []string{
		telemetry.EventTypeProjectCreated,
		telemetry.EventTypeProjectDeleted,
		telemetry.EventTypeProjectDeleteMissed,
	}
	got := rec.types()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected events %v, got %v", want, got)
	}
	if rec.events[0].ProjectID != int64(id) {
		t.Errorf("expected created event for %d, got %d", id, rec.events[0].ProjectID)
	}
}

func TestServiceListEmpty(t *testing.T) {
	svc, _, _ := setupTestService(t)

	projects, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if projects == nil || len(projects) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", projects)
	}
}

func TestServiceFailuresKeepKind(t *testing.T) {
	tests := []struct {
		name string
		kind stores.ErrorKind
		call func(svc *Service) error
	}{
		{
			name: "add",
			kind: stores.ErrorKindWriteFailed,
			call: func(svc *Service) error {
				_, err := svc.Add(context.Background(), stores.NewProject{Title: "x"})
				return err
			},
		},
		{
			name: "list",
			kind: stores.ErrorKindReadFailed,
			call: func(svc *Service) error {
				_, err := svc.List(context.Background())
				return err
			},
		},
		{
			name: "delete",
			kind: stores.ErrorKindDeleteFailed,
			call: func(svc *Service) error {
				_, err := svc.Delete(context.Background(), 1)
				return err
			},
		},
		{
			name: "ensure schema",
			kind: stores.ErrorKindStorageUnavailable,
			call: func(svc *Service) error {
				return svc.EnsureSchema(context.Background())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel, rec := newTestTelemetry(t)
			storeErr := &stores.StoreError{Kind: tt.kind, Op: tt.name, Err: errors.New("disk on fire")}
			svc := NewService(&failingStore{err: storeErr}, tel)

			err := tt.call(svc)
			if stores.KindOf(err) != tt.kind {
				t.Fatalf("expected kind %s, got %v", tt.kind, err)
			}

			if len(rec.events) != 1 || rec.events[0].Type != telemetry.EventTypeStoreError {
				t.Fatalf("expected one store.error event, got %v", rec.types())
			}
			if rec.events[0].Data["kind"] != string(tt.kind) {
				t.Errorf("expected event kind %s, got %v", tt.kind, rec.events[0].Data["kind"])
			}
		})
	}
}

func TestServiceListFailureLeavesGauge(t *testing.T) {
	tel, _ := newTestTelemetry(t)
	svc := NewService(&failingStore{err: stores.ErrReadFailed}, tel)

	if _, err := svc.List(context.Background()); !errors.Is(err, stores.ErrReadFailed) {
		t.Fatalf("expected read failure, got %v", err)
	}

	expected := `
# HELP test_projects_stored Number of projects seen by the last successful listing
# TYPE test_projects_stored gauge
test_projects_stored 0
`
	if err := testutil.GatherAndCompare(tel.Metrics.Registry(), strings.NewReader(expected), "test_projects_stored"); err != nil {
		t.Errorf("gauge should be untouched: %v", err)
	}
}

func TestServiceBackup(t *testing.T) {
	svc, rec, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, stores.NewProject{Title: "Kept"}); err != nil {
		t.Fatalf("failed to add: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "nested", "snapshot.db")
	if err := svc.Backup(ctx, dest); err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected snapshot file: %v", err)
	}

	last := rec.events[len(rec.events)-1]
	if last.Type != telemetry.EventTypeBackupCompleted {
		t.Errorf("expected backup.completed event, got %s", last.Type)
	}

	restored, err := stores.NewSQLiteStore(stores.Config{Path: dest})
	if err != nil {
		t.Fatalf("failed to open snapshot: %v", err)
	}
	defer restored.Close()
	if err := restored.Init(ctx); err != nil {
		t.Fatalf("failed to init snapshot: %v", err)
	}
	projects, err := restored.ListAllProjects(ctx)
	if err != nil {
		t.Fatalf("failed to list snapshot: %v", err)
	}
	if len(projects) != 1 || projects[0].Title != "Kept" {
		t.Errorf("unexpected snapshot contents: %+v", projects)
	}
}

func TestServiceHealth(t *testing.T) {
	svc, _, _ := setupTestService(t)
	if err := svc.Health(context.Background()); err != nil {
		t.Errorf("expected healthy store, got %v", err)
	}

	broken := NewService(&failingStore{err: stores.ErrStorageUnavailable}, nil)
	if err := broken.Health(context.Background()); err == nil {
		t.Error("expected health failure")
	}
}
