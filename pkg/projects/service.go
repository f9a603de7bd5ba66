// Package projects is the application layer over the project store. It adds
// logging, tracing, metrics and lifecycle events to each store call and is
// what the HTTP adapter and the CLI talk to.
package projects

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/folio/pkg/stores"
	"github.com/openfroyo/folio/pkg/telemetry"
)

// Service performs project operations against a store.
type Service struct {
	store stores.Store
	tel   *telemetry.Telemetry
}

// NewService creates a service over store. A nil tel disables instrumentation.
func NewService(store stores.Store, tel *telemetry.Telemetry) *Service {
	if tel == nil {
		tel = telemetry.Nop()
	}
	return &Service{
		store: store,
		tel:   tel,
	}
}

// EnsureSchema makes sure the backing table exists.
func (s *Service) EnsureSchema(ctx context.Context) error {
	ic := s.start(ctx, "ensure_schema")
	err := s.store.EnsureSchema(ic.Ctx)
	ic.End(err, string(stores.KindOf(err)))
	if err != nil {
		s.fail(ic, "ensure_schema", err)
		return err
	}
	ic.Logger.Debug("Schema ready")
	return nil
}

// Add stores a new project and returns its id.
func (s *Service) Add(ctx context.Context, p stores.NewProject) (stores.ProjectID, error) {
	ic := s.start(ctx, "add_project")
	id, err := s.store.AddProject(ic.Ctx, p)
	if err == nil {
		ic.Span.SetAttributes(telemetry.AttrProjectID.Int64(int64(id)))
	}
	ic.End(err, string(stores.KindOf(err)))
	if err != nil {
		s.fail(ic, "add_project", err)
		return 0, err
	}

	ic.Logger.WithProjectID(int64(id)).
		WithField("duration_ms", ic.Timer.Duration().Milliseconds()).
		Info("Project added")
	_ = s.tel.Events.PublishProjectCreated(int64(id), p.Title)

	return id, nil
}

// List returns every project in insertion order. It never returns a nil
// slice on success.
func (s *Service) List(ctx context.Context) ([]stores.Project, error) {
	ic := s.start(ctx, "list_projects")
	projects, err := s.store.ListAllProjects(ic.Ctx)
	if err == nil {
		ic.Span.SetAttributes(telemetry.AttrRecordRows.Int(len(projects)))
	}
	ic.End(err, string(stores.KindOf(err)))
	if err != nil {
		s.fail(ic, "list_projects", err)
		return nil, err
	}

	s.tel.Metrics.SetProjectCount(len(projects))
	ic.Logger.WithField("count", len(projects)).Debug("Projects listed")

	return projects, nil
}

// Delete removes the project with id. Deleting an id that does not exist
// succeeds with DeleteResultNotFound.
func (s *Service) Delete(ctx context.Context, id stores.ProjectID) (stores.DeleteResult, error) {
	ic := s.start(ctx, "delete_project", telemetry.AttrProjectID.Int64(int64(id)))
	result, err := s.store.DeleteProject(ic.Ctx, id)
	if err == nil {
		ic.Span.SetAttributes(telemetry.AttrDeleteHit.Bool(result == stores.DeleteResultDeleted))
	}
	ic.End(err, string(stores.KindOf(err)))
	if err != nil {
		s.fail(ic, "delete_project", err)
		return stores.DeleteResultNotFound, err
	}

	logger := ic.Logger.WithProjectID(int64(id)).WithField("result", result.String())
	if result == stores.DeleteResultDeleted {
		logger.Info("Project deleted")
	} else {
		logger.Debug("Project not found, nothing deleted")
	}
	_ = s.tel.Events.PublishProjectDeleted(int64(id), result == stores.DeleteResultDeleted)

	return result, nil
}

// Health reports whether the store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}

// Backup writes a snapshot of the database to dest, creating the parent
// directory when needed.
func (s *Service) Backup(ctx context.Context, dest string) error {
	ic := s.start(ctx, "backup")

	err := os.MkdirAll(filepath.Dir(dest), 0o755)
	if err != nil {
		err = fmt.Errorf("failed to create backup directory: %w", err)
	} else {
		err = s.store.Backup(ic.Ctx, dest)
	}

	ic.End(err, "backup_failed")
	s.tel.Metrics.RecordBackup(err)
	if err != nil {
		ic.Logger.WithError(err).WithField("dest", dest).Error("Backup failed")
		return err
	}

	elapsed := ic.Timer.Duration()
	ic.Logger.WithFields(map[string]interface{}{
		"dest":        dest,
		"duration_ms": elapsed.Milliseconds(),
	}).Info("Backup written")
	_ = s.tel.Events.PublishBackupCompleted(dest, elapsed)

	return nil
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) *telemetry.InstrumentedContext {
	ic := s.tel.StartOperation(ctx, op, attrs...)
	ic.Logger = ic.Logger.WithField("component", "projects")
	return ic
}

// fail logs a store failure and publishes it as an event.
func (s *Service) fail(ic *telemetry.InstrumentedContext, op string, err error) {
	kind := string(stores.KindOf(err))
	ic.Logger.WithError(err).WithField("kind", kind).Error("Store operation failed")
	_ = s.tel.Events.PublishStoreError(op, kind, err)
}

