package commands

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openfroyo/folio/pkg/stores"
)

func newProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage portfolio projects",
	}

	cmd.AddCommand(newProjectAddCommand())
	cmd.AddCommand(newProjectListCommand())
	cmd.AddCommand(newProjectDeleteCommand())

	return cmd
}

func newProjectAddCommand() *cobra.Command {
	var p stores.NewProject

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a project",
		Example: `  folio project add --title "Weather Station" --description "ESP32 sensors" --image weather.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(p.Title) == "" {
				return errors.New("title must not be blank")
			}

			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			id, err := a.svc.Add(cmd.Context(), p)
			if err != nil {
				return fmt.Errorf("failed to add project: %w", err)
			}

			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), map[string]interface{}{"id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added project %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&p.Title, "title", "", "project title")
	cmd.Flags().StringVar(&p.Description, "description", "", "project description")
	cmd.Flags().StringVar(&p.ImageFileName, "image", "", "image file name shown with the project")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newProjectListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects in insertion order",
		Example: `  folio project list
  folio project list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			items, err := a.svc.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}

			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), items)
			}

			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tDESCRIPTION\tIMAGE")
			for _, p := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, truncate(p.Title, 30), truncate(p.Description, 40), p.ImageFileName)
			}
			return w.Flush()
		},
	}

	return cmd
}

func newProjectDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Long: `Delete the project with the given id. Deleting an id that does not
exist is not an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := stores.ParseProjectID(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}

			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			result, err := a.svc.Delete(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to delete project: %w", err)
			}

			deleted := result == stores.DeleteResultDeleted
			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), map[string]interface{}{"id": id, "deleted": deleted})
			}
			if deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %d\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Project %d not found, nothing deleted\n", id)
			}
			return nil
		},
	}

	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
