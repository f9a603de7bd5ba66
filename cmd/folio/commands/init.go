package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/folio/pkg/config"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a folio workspace",
		Long: `Initialize a folio workspace: create the data directory, create the
projects table if it does not exist, and write a folio.yaml with the
effective settings.

Running init again is safe. Existing data and an existing config file are
left untouched.`,
		Example: `  # Initialize in the current directory
  folio init

  # Initialize with a custom config path
  folio init --config /etc/folio/folio.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			log.Info().
				Str("config", configPath).
				Msg("Initializing workspace")

			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer a.Close(cmd.Context())

			fmt.Fprintf(out, "✓ Database ready: %s\n", a.cfg.Database.Path)

			if err := os.MkdirAll(a.cfg.Backup.Dir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", a.cfg.Backup.Dir, err)
			}
			fmt.Fprintf(out, "✓ Backup directory: %s\n", a.cfg.Backup.Dir)

			path := configPath
			if path == "" {
				path = config.DefaultPath
			}
			err = config.Save(a.cfg, path, false)
			switch {
			case errors.Is(err, fs.ErrExist):
				fmt.Fprintf(out, "✓ Config file already exists: %s\n", path)
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "✓ Created config file: %s\n", path)
			}

			fmt.Fprintf(out, "\nWorkspace initialized. Next steps:\n")
			fmt.Fprintf(out, "  folio project add --title \"My first project\"\n")
			fmt.Fprintf(out, "  folio serve --config %s\n", filepath.Clean(path))

			return nil
		},
	}

	return cmd
}
