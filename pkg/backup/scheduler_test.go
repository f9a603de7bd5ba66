package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openfroyo/folio/pkg/config"
)

// fileBackuper writes a placeholder file for each backup.
type fileBackuper struct {
	mu    sync.Mutex
	dests []string
	done  chan string
	err   error
}

func (f *fileBackuper) Backup(ctx context.Context, dest string) error {
	if f.err != nil {
		return f.err
	}
	if err := os.WriteFile(dest, []byte("snapshot"), 0o644); err != nil {
		return err
	}
	f.mu.Lock()
	f.dests = append(f.dests, dest)
	f.mu.Unlock()
	if f.done != nil {
		select {
		case f.done <- dest:
		default:
		}
	}
	return nil
}

func fixedClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Minute)
	}
}

func TestRunOncePrunes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	target := &fileBackuper{}

	s := NewScheduler(config.BackupConfig{Schedule: "@daily", Dir: dir, Keep: 3}, target, nil)
	s.now = fixedClock(time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC))

	var last string
	for i := 0; i < 5; i++ {
		dest, err := s.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		last = dest
	}

	snapshots, err := s.Snapshots()
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 snapshots kept, got %d: %v", len(snapshots), snapshots)
	}
	if snapshots[2] != last {
		t.Errorf("expected newest snapshot %s to be kept, got %v", last, snapshots)
	}
	if snapshots[0] != target.dests[2] {
		t.Errorf("expected oldest kept snapshot %s, got %s", target.dests[2], snapshots[0])
	}
}

func TestRunOnceKeepAll(t *testing.T) {
	dir := t.TempDir()
	s := NewScheduler(config.BackupConfig{Schedule: "@daily", Dir: dir, Keep: 0}, &fileBackuper{}, nil)
	s.now = fixedClock(time.Now())

	for i := 0; i < 4; i++ {
		if _, err := s.RunOnce(context.Background()); err != nil {
			t.Fatalf("run failed: %v", err)
		}
	}

	// Unrelated files are never touched
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	snapshots, err := s.Snapshots()
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(snapshots) != 4 {
		t.Errorf("expected all 4 snapshots kept, got %d", len(snapshots))
	}
}

func TestRunOnceFailure(t *testing.T) {
	boom := errors.New("disk full")
	s := NewScheduler(config.BackupConfig{Dir: t.TempDir()}, &fileBackuper{err: boom}, nil)

	if _, err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected backup error, got %v", err)
	}
}

func TestSnapshotNameOrdering(t *testing.T) {
	a := SnapshotName(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	b := SnapshotName(time.Date(2026, 1, 2, 3, 4, 5, int(time.Millisecond), time.UTC))

	if a != "projects-20260102-030405.000.db" {
		t.Errorf("unexpected name %q", a)
	}
	if !(a < b) {
		t.Errorf("expected %q to sort before %q", a, b)
	}
}

func TestStartRequiresSchedule(t *testing.T) {
	s := NewScheduler(config.BackupConfig{Dir: t.TempDir()}, &fileBackuper{}, nil)
	if err := s.Start(); err == nil {
		t.Error("expected error without schedule")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("stop without start should be a no-op: %v", err)
	}
}

func TestSchedulerRunsJob(t *testing.T) {
	target := &fileBackuper{done: make(chan string, 1)}
	s := NewScheduler(config.BackupConfig{Schedule: "* * * * * *", Dir: t.TempDir(), Keep: 2}, target, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case dest := <-target.done:
		if _, err := os.Stat(dest); err != nil {
			t.Errorf("expected snapshot at %s: %v", dest, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scheduled backup")
	}
}
