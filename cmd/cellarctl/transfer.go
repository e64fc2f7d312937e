package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mycellarapp/cellar-server/internal/domain"
	"github.com/mycellarapp/cellar-server/internal/service"
	"github.com/mycellarapp/cellar-server/internal/store"
)

var exportCmd = &cobra.Command{
	Use:       "export <wines|experienced>",
	Short:     "Export a user's wines as semicolon-separated CSV",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"wines", "experienced"},
	RunE:      runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import wines from a semicolon-separated CSV file",
	Long: `Adds every row of the file as a new wine for the user. Rows that fail
validation are reported by line and skipped.

Example:
  cellarctl import --user ana@example.com --cellar garage wines.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().String("user", "", "user ID or email")
		c.Flags().String("cellar", "", "cellar ID (default: the user's active cellar)")
		_ = c.MarkFlagRequired("user")
	}
	exportCmd.Flags().Bool("all", false, "export every cellar")
	exportCmd.Flags().StringP("out", "o", "", `output file, "-" for stdout (default: generated name)`)
}

// userSession resolves a user by ID or email and opens a session on their
// active cellar.
func userSession(ctx context.Context, ref string) (service.Session, error) {
	ref = strings.TrimSpace(ref)
	var (
		user *domain.User
		err  error
	)
	if strings.Contains(ref, "@") {
		user, err = env.store.GetUserByEmail(ctx, domain.NormalizeEmail(ref))
	} else {
		user, err = env.store.GetUser(ctx, ref)
	}
	if errors.Is(err, store.ErrNotFound) {
		return service.Session{}, fmt.Errorf("user %q not found", ref)
	}
	if err != nil {
		return service.Session{}, err
	}

	active, err := env.cellars.ActiveCellar(ctx, user.ID)
	if err != nil {
		return service.Session{}, err
	}
	return service.Session{UserID: user.ID, ActiveCellarID: active}, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userRef, _ := cmd.Flags().GetString("user")
	cellar, _ := cmd.Flags().GetString("cellar")
	all, _ := cmd.Flags().GetBool("all")
	outPath, _ := cmd.Flags().GetString("out")

	sess, err := userSession(ctx, userRef)
	if err != nil {
		return err
	}
	opts := service.ListOptions{CellarID: cellar, AllCellars: all}

	export := env.transfer.ExportWines
	switch args[0] {
	case "wines":
	case "experienced":
		export = env.transfer.ExportExperienced
	default:
		return fmt.Errorf("unknown export %q (valid: wines, experienced)", args[0])
	}

	if outPath == "-" {
		_, err := export(ctx, sess, opts, cmd.OutOrStdout())
		return err
	}

	var buf strings.Builder
	name, err := export(ctx, sess, opts, &buf)
	if err != nil {
		return err
	}
	if outPath == "" {
		outPath = name
	}
	if err := os.WriteFile(outPath, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outPath)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userRef, _ := cmd.Flags().GetString("user")
	cellar, _ := cmd.Flags().GetString("cellar")

	sess, err := userSession(ctx, userRef)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0]) //#nosec G304 -- operator-supplied path
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	res, err := env.transfer.Import(ctx, sess, f, cellar)
	if err != nil {
		return err
	}
	printImport(cmd.OutOrStdout(), res)
	return nil
}

func printImport(out io.Writer, res *service.ImportResult) {
	fmt.Fprintf(out, "Imported %d wines\n", res.Imported)
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  %s\n", e)
	}
}
