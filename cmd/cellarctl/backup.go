package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mycellarapp/cellar-server/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list and restore data backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write every user's cellars and wines to a zip archive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		res, err := env.backups.Create(cmd.Context(), backup.BackupOptions{OutputPath: out})
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Wrote %s (%s)\n", res.Path, humanize.Bytes(uint64(res.Size)))
		fmt.Fprintf(w, "  users %d, cellars %d, wines %d, experienced %d\n",
			res.Counts.Users, res.Counts.Cellars, res.Counts.Wines, res.Counts.Experienced)
		fmt.Fprintf(w, "  sha256 %s\n", res.Checksum)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups in the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backups, err := env.backups.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No backups")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSIZE\tCREATED")
		for _, b := range backups {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", b.ID, humanize.Bytes(uint64(b.Size)), humanize.Time(b.CreatedAt))
		}
		return tw.Flush()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <id|file>",
	Short: "Merge a backup into the database and rebuild the search index",
	Long: `Restores a backup by ID (see "backup list") or by file path. Users that
already exist are kept; their wines from the backup are added, replacing any
record with the same ID.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		path, err := env.backups.Path(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		res, err := env.backups.Restore(ctx, path, backup.RestoreOptions{DryRun: dryRun})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		verb := "Restored"
		if dryRun {
			verb = "Would restore"
		}
		fmt.Fprintf(w, "%s users %d, cellars %d, wines %d, experienced %d\n", verb,
			res.Imported.Users, res.Imported.Cellars, res.Imported.Wines, res.Imported.Experienced)
		if res.Skipped.Users > 0 {
			fmt.Fprintf(w, "Kept %d existing users\n", res.Skipped.Users)
		}
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s %s: %s\n", e.EntityType, e.EntityID, e.Error)
		}

		if dryRun {
			return nil
		}
		if err := env.search.ReindexAll(ctx); err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		return nil
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := env.backups.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	backupCreateCmd.Flags().StringP("out", "o", "", "output file (default: <data>/backups/backup-<time>.cellar.zip)")
	backupRestoreCmd.Flags().Bool("dry-run", false, "validate and count without writing")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupDeleteCmd)
}
