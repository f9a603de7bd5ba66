package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/folio/pkg/backup"
)

func newBackupCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the project database",
		Long: `Write a consistent copy of the project database while it is in use.

The copy is made with SQLite's VACUUM INTO, so it is compact and safe to take
while the server is running. Without --out the snapshot goes to the
configured backup directory with a timestamped name.`,
		Example: `  # Snapshot into the backup directory
  folio backup

  # Snapshot to a specific file
  folio backup --out /mnt/usb/projects.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			dest := outFile
			if dest == "" {
				dest = filepath.Join(a.cfg.Backup.Dir, backup.SnapshotName(time.Now()))
			}

			log.Info().Str("out", dest).Msg("Creating backup")

			if err := a.svc.Backup(cmd.Context(), dest); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), map[string]string{"out": dest})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "backup output file (must not exist)")

	return cmd
}
