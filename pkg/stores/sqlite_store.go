package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migsqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var errNotInitialized = errors.New("database not initialized")

// SQLiteStore implements the Store interface using SQLite.
//
// Reads go through a pooled reader handle. Every write goes through a
// separate handle capped at a single open connection, so writers are
// serialized in-process instead of contending for the SQLite write lock.
type SQLiteStore struct {
	reader *sql.DB
	writer *sql.DB
	cfg    Config
}

// Config holds SQLite store configuration
type Config struct {
	// Path is the database file. It is created on Init if missing, but its
	// parent directory must already exist.
	Path string

	// MaxOpenConns caps the reader pool.
	MaxOpenConns int

	// MaxIdleConns is the number of idle connections kept per pool.
	// Zero keeps none, so every operation opens and releases its own.
	MaxIdleConns int

	ConnMaxLifetime time.Duration

	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	cfg.Path = strings.TrimSpace(cfg.Path)
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.Path == ":memory:" || strings.Contains(cfg.Path, "mode=memory") {
		return nil, fmt.Errorf("in-memory databases are not supported: reader and writer pools would see different databases")
	}

	// Set defaults
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns < 0 {
		cfg.MaxIdleConns = 0
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.cfg.Path
}

// dsn builds the file: URI for the configured path. The path is
// percent-escaped so '?', '#' and '%' stay part of the file name.
func (s *SQLiteStore) dsn() string {
	path := (&url.URL{Path: filepath.ToSlash(filepath.Clean(s.cfg.Path))}).EscapedPath()
	return fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		path,
		s.cfg.BusyTimeout.Milliseconds(),
	)
}

// Init opens the reader and writer handles and verifies the file is usable.
// Calling Init on an initialized store is a no-op.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.writer != nil {
		return nil
	}

	writer, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return newStoreError(ErrorKindStorageUnavailable, "open", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(min(s.cfg.MaxIdleConns, 1))
	writer.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	// The writer pings first so the file exists and is in WAL mode before
	// any reader connects.
	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return newStoreError(ErrorKindStorageUnavailable, "ping", err)
	}

	reader, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		_ = writer.Close()
		return newStoreError(ErrorKindStorageUnavailable, "open", err)
	}
	reader.SetMaxOpenConns(s.cfg.MaxOpenConns)
	reader.SetMaxIdleConns(s.cfg.MaxIdleConns)
	reader.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return newStoreError(ErrorKindStorageUnavailable, "ping", err)
	}

	s.reader = reader
	s.writer = writer
	return nil
}

// Close closes both database handles
func (s *SQLiteStore) Close() error {
	var errs []error
	if s.reader != nil {
		errs = append(errs, s.reader.Close())
	}
	if s.writer != nil {
		errs = append(errs, s.writer.Close())
	}
	return errors.Join(errs...)
}

// EnsureSchema creates the projects table if it does not exist yet.
// It initializes the store first when needed and is safe to call repeatedly.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := migsqlite.WithInstance(s.writer, &migsqlite.Config{})
	if err != nil {
		return newStoreError(ErrorKindStorageUnavailable, "migrate", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return newStoreError(ErrorKindStorageUnavailable, "migrate", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return newStoreError(ErrorKindStorageUnavailable, "migrate", err)
	}

	return nil
}

// withConn runs fn on a connection acquired for this call only.
func withConn(ctx context.Context, db *sql.DB, fn func(conn *sql.Conn) error) error {
	if db == nil {
		return errNotInitialized
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(conn)
}

// AddProject inserts a project and returns its assigned id.
func (s *SQLiteStore) AddProject(ctx context.Context, p NewProject) (ProjectID, error) {
	query := `INSERT INTO projects (title, description, ImageFileName) VALUES (?, ?, ?)`

	var id ProjectID
	err := withConn(ctx, s.writer, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, query,
			p.Title,
			nullString(p.Description),
			nullString(p.ImageFileName),
		)
		if err != nil {
			return err
		}

		lastID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		id = ProjectID(lastID)
		return nil
	})
	if err != nil {
		return 0, newStoreError(ErrorKindWriteFailed, "add project", err)
	}

	return id, nil
}

// ListAllProjects returns every stored project in insertion order.
// The result is never nil on success.
func (s *SQLiteStore) ListAllProjects(ctx context.Context) ([]Project, error) {
	query := `
		SELECT id, title, description, ImageFileName
		FROM projects
		ORDER BY id ASC
	`

	projects := []Project{}
	err := withConn(ctx, s.reader, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				p           Project
				description sql.NullString
				image       sql.NullString
			)
			if err := rows.Scan(&p.ID, &p.Title, &description, &image); err != nil {
				return fmt.Errorf("failed to scan project: %w", err)
			}
			p.Description = description.String
			p.ImageFileName = image.String
			projects = append(projects, p)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, newStoreError(ErrorKindReadFailed, "list projects", err)
	}

	return projects, nil
}

// DeleteProject deletes a project by ID. Deleting an unknown id succeeds
// with DeleteResultNotFound.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id ProjectID) (DeleteResult, error) {
	query := `DELETE FROM projects WHERE id = ?`

	var rows int64
	err := withConn(ctx, s.writer, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, query, int64(id))
		if err != nil {
			return err
		}

		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return DeleteResultNotFound, newStoreError(ErrorKindDeleteFailed, "delete project", err)
	}

	if rows == 0 {
		return DeleteResultNotFound, nil
	}
	return DeleteResultDeleted, nil
}

// HealthCheck performs a health check on the database
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return withConn(ctx, s.reader, func(conn *sql.Conn) error {
		if err := conn.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		var result int
		if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("database query failed: %w", err)
		}
		return nil
	})
}

// Backup writes a consistent copy of the database to dest using VACUUM INTO.
// dest must not exist.
func (s *SQLiteStore) Backup(ctx context.Context, dest string) error {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return fmt.Errorf("backup destination is required")
	}
	if filepath.Clean(dest) == filepath.Clean(s.cfg.Path) {
		return fmt.Errorf("backup destination must differ from the database path")
	}

	err := withConn(ctx, s.writer, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "VACUUM INTO ?", dest)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to back up database to %s: %w", dest, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
