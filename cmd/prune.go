package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/samephoto/internal/cluster"
)

var pruneCmd = &cobra.Command{
	Use:   "prune [dir]",
	Short: "Delete duplicates, keeping the newest photo of each group",
	Long: `Scan a directory like the scan command, then delete every member of each
group except the first one. Groups are seeded by the newest photo, so the
newest copy is kept. Without --yes the command only lists what would be deleted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	addScanFlags(pruneCmd)
	pruneCmd.Flags().Bool("yes", false, "Delete the photos instead of listing them")
}

// duplicatesOf returns every group member except the seed, in group order.
func duplicatesOf(groups []cluster.Group) []string {
	var ids []string
	for _, g := range groups {
		for _, m := range g.Members[1:] {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func runPrune(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	applyScanFlags(cmd, cfg)

	confirm := mustGetBool(cmd, "yes")
	limit := mustGetInt(cmd, "limit")

	ctx, cancel := signalContext()
	defer cancel()

	run, err := scanLibrary(ctx, cfg, logger, dir, limit, true)
	if err != nil {
		return err
	}
	if run.interrupted {
		return errors.New("scan interrupted, nothing deleted")
	}

	ids := duplicatesOf(run.result.Groups)
	if len(ids) == 0 {
		fmt.Println("No duplicates found")
		return nil
	}

	size, err := run.lib.TotalSize(ids)
	if err != nil {
		return err
	}

	if !confirm {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEEP\tDELETE\tSCORE")
		fmt.Fprintln(w, "----\t------\t-----")
		for _, g := range run.result.Groups {
			for _, m := range g.Members[1:] {
				fmt.Fprintf(w, "%s\t%s\t%.4f\n", g.Members[0].ID, m.ID, m.Score)
			}
		}
		w.Flush()
		fmt.Printf("\n[DRY RUN] Would delete %d photos (%.2f MB). Re-run with --yes to delete.\n",
			len(ids), float64(size)/(1024*1024))
		return nil
	}

	result := run.lib.Delete(ids)
	for _, err := range result.Errors {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	fmt.Printf("Deleted %d photos, freed %.2f MB\n", len(result.Deleted), result.FreedMB())
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d photos could not be deleted", len(result.Errors))
	}
	return nil
}
