package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/folio/pkg/stores"
)

func newRestoreCommand() *cobra.Command {
	var (
		backupFile string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the project database from a backup",
		Long: `Replace the project database with a snapshot made by "folio backup".

Stop the server first. The snapshot is copied next to the database and the
copy is opened and read before anything is replaced, so a damaged file is
rejected, the current database is kept and the snapshot is never modified.`,
		Example: `  # Restore into a fresh workspace
  folio restore --from data/backups/projects-20261017-020000.000.db

  # Replace an existing database
  folio restore --from snapshot.db --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(false)
			if err != nil {
				return err
			}
			dbPath := cfg.Database.Path

			log.Info().
				Str("from", backupFile).
				Str("to", dbPath).
				Bool("force", force).
				Msg("Restoring from backup")

			if _, err := os.Stat(backupFile); err != nil {
				return fmt.Errorf("backup %s is not usable: %w", backupFile, err)
			}
			if _, err := os.Stat(dbPath); err == nil && !force {
				return fmt.Errorf("database %s already exists, use --force to replace it", dbPath)
			}

			if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}

			// The copy is verified, never the backup itself
			tmp := dbPath + ".restore"
			if err := copyFile(backupFile, tmp); err != nil {
				removeDatabaseFiles(tmp)
				return err
			}
			count, err := verifySnapshot(cmd.Context(), tmp)
			if err != nil {
				removeDatabaseFiles(tmp)
				return fmt.Errorf("backup %s is not usable: %w", backupFile, err)
			}

			if err := os.Rename(tmp, dbPath); err != nil {
				removeDatabaseFiles(tmp)
				return fmt.Errorf("failed to move backup into place: %w", err)
			}

			// Stale WAL files belong to the replaced database
			for _, suffix := range []string{"-wal", "-shm"} {
				if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to remove %s: %w", dbPath+suffix, err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d projects into %s\n", count, dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&backupFile, "from", "", "backup file to restore from")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing database")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

// verifySnapshot opens path as a project store and returns how many
// projects it holds.
func verifySnapshot(ctx context.Context, path string) (int, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return 0, err
	}
	items, err := store.ListAllProjects(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// copyFile copies src to dst and syncs it to disk.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy backup: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return nil
}

// removeDatabaseFiles deletes path and its WAL side files, ignoring errors.
func removeDatabaseFiles(path string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
}
