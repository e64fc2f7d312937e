package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mycellarapp/cellar-server/internal/csvio"
	"github.com/mycellarapp/cellar-server/internal/service"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run one-off data migrations across every user",
}

var addCellarIDCmd = &cobra.Command{
	Use:   "add-cellar-id",
	Short: `Tag every record without a cellar as "default"`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := env.migration.AddCellarID(cmd.Context())
		if err != nil {
			return err
		}
		printCounts(cmd.OutOrStdout(), counts)
		return nil
	},
}

var reassignByLocationCmd = &cobra.Command{
	Use:   "reassign-by-location",
	Short: "Move records into cellars by their storage location",
	Long: `Reads a mapping file with one "location,cellarId" pair per line and
moves every wine and experienced wine whose location matches into that
cellar. Locations are compared trimmed and case-insensitively.

Example:
  cellarctl migrate reassign-by-location --mapping locations.csv`,
	Args: cobra.NoArgs,
	RunE: runReassignByLocation,
}

func init() {
	reassignByLocationCmd.Flags().String("mapping", "", "location,cellarId mapping file")
	_ = reassignByLocationCmd.MarkFlagRequired("mapping")

	migrateCmd.AddCommand(addCellarIDCmd)
	migrateCmd.AddCommand(reassignByLocationCmd)
}

func runReassignByLocation(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("mapping")

	f, err := os.Open(path) //#nosec G304 -- operator-supplied path
	if err != nil {
		return fmt.Errorf("open mapping: %w", err)
	}
	defer f.Close()

	mapping, err := csvio.ReadLocationMapping(f)
	if err != nil {
		return err
	}
	if len(mapping) == 0 {
		return fmt.Errorf("mapping %s has no location,cellarId lines", path)
	}

	counts, err := env.migration.ReassignByLocation(cmd.Context(), mapping)
	if err != nil {
		return err
	}
	printCounts(cmd.OutOrStdout(), counts)
	return nil
}

func printCounts(out io.Writer, counts []service.MoveCount) {
	if len(counts) == 0 {
		fmt.Fprintln(out, "Nothing to change")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tWINES\tEXPERIENCED")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", c.UserID, c.Wines, c.Experienced)
	}
	_ = tw.Flush()
}
