// Package backup takes periodic snapshots of the project database on a cron
// schedule and prunes old ones.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openfroyo/folio/pkg/config"
	"github.com/openfroyo/folio/pkg/telemetry"
)

const (
	snapshotPrefix = "projects-"
	snapshotSuffix = ".db"
	snapshotLayout = "20060102-150405.000"
)

// Backuper writes a consistent copy of the database to dest.
type Backuper interface {
	Backup(ctx context.Context, dest string) error
}

// Scheduler runs backups on a cron schedule.
type Scheduler struct {
	cfg    config.BackupConfig
	target Backuper
	logger *telemetry.Logger
	now    func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewScheduler creates a scheduler. It does nothing until Start is called.
func NewScheduler(cfg config.BackupConfig, target Backuper, logger *telemetry.Logger) *Scheduler {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Scheduler{
		cfg:    cfg,
		target: target,
		logger: logger.NewComponentLogger("backup"),
		now:    time.Now,
	}
}

// Start registers the backup job and starts the cron runner. Overlapping
// runs are skipped.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled() {
		return fmt.Errorf("backup schedule is not configured")
	}

	clog := cronLogger{s.logger}
	c := cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	_, err := c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.WithError(err).Error("Scheduled backup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create cron job: %w", err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.logger.WithFields(map[string]interface{}{
		"schedule": s.cfg.Schedule,
		"dir":      s.cfg.Dir,
	}).Info("Backup scheduler started")

	return nil
}

// Stop stops scheduling and waits for a running backup to finish or ctx to
// be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("backup scheduler stop: %w", ctx.Err())
	}
}

// RunOnce takes one snapshot into the backup directory, prunes old
// snapshots, and returns the snapshot path.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	dest := filepath.Join(s.cfg.Dir, SnapshotName(s.now()))
	if err := s.target.Backup(ctx, dest); err != nil {
		return "", err
	}

	if err := s.prune(); err != nil {
		s.logger.WithError(err).Warn("Failed to prune old backups")
	}

	return dest, nil
}

// Snapshots lists snapshot files in the backup directory, oldest first.
func (s *Scheduler) Snapshots() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		names = append(names, filepath.Join(s.cfg.Dir, name))
	}
	sort.Strings(names)

	return names, nil
}

// prune removes the oldest snapshots beyond cfg.Keep.
func (s *Scheduler) prune() error {
	if s.cfg.Keep <= 0 {
		return nil
	}

	snapshots, err := s.Snapshots()
	if err != nil {
		return err
	}

	for len(snapshots) > s.cfg.Keep {
		if err := os.Remove(snapshots[0]); err != nil {
			return fmt.Errorf("failed to remove %s: %w", snapshots[0], err)
		}
		s.logger.WithField("path", snapshots[0]).Debug("Pruned old backup")
		snapshots = snapshots[1:]
	}

	return nil
}

// SnapshotName returns the file name for a snapshot taken at t. Names sort
// in the order the snapshots were taken.
func SnapshotName(t time.Time) string {
	return snapshotPrefix + t.UTC().Format(snapshotLayout) + snapshotSuffix
}

// cronLogger adapts the telemetry logger to cron.Logger.
type cronLogger struct {
	l *telemetry.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.WithError(err).WithFields(kvFields(keysAndValues)).Error(msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
