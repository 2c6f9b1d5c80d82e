package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/constants"
	"github.com/kozaktomas/samephoto/internal/database"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored scan runs",
	Long:  `List, show and delete scan runs saved with scan --save or by the web server.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a stored run and its groups",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsDeleteCmd)

	runsListCmd.Flags().Int("limit", constants.DefaultRunListLimit, "Maximum number of runs to list")
	runsListCmd.Flags().Bool("json", false, "Output as JSON")
	runsShowCmd.Flags().Bool("json", false, "Output as JSON")
}

// withStore opens the configured run store for the duration of fn.
func withStore(fn func(ctx context.Context, store database.Store) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, store)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	return withStore(func(ctx context.Context, store database.Store) error {
		runs, err := store.ListRuns(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if jsonOutput {
			if runs == nil {
				runs = []database.StoredRun{}
			}
			return outputJSON(runs)
		}

		if len(runs) == 0 {
			fmt.Println("No runs stored")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tROOT\tSCANNED\tGROUPS\tTHRESHOLD")
		fmt.Fprintln(w, "--\t-------\t----\t-------\t------\t---------")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Root, r.Scanned, r.GroupCount, r.Threshold)
		}
		w.Flush()
		fmt.Printf("\nTotal: %d runs\n", len(runs))
		return nil
	})
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	id := args[0]
	jsonOutput := mustGetBool(cmd, "json")

	return withStore(func(ctx context.Context, store database.Store) error {
		run, err := store.GetRun(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get run: %w", err)
		}
		if run == nil {
			return fmt.Errorf("run %s: %w", id, database.ErrRunNotFound)
		}
		groups, err := store.GetGroups(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get groups: %w", err)
		}

		if jsonOutput {
			if groups == nil {
				groups = []database.StoredGroup{}
			}
			return outputJSON(struct {
				Run    *database.StoredRun    `json:"run"`
				Groups []database.StoredGroup `json:"groups"`
			}{run, groups})
		}

		p := run.Params()
		fmt.Printf("Run:       %s\n", run.ID)
		fmt.Printf("Root:      %s\n", run.Root)
		fmt.Printf("Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
		fmt.Printf("Duration:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
		fmt.Printf("Params:    %dx%d, threshold %.2f, window %d, batch size %d\n",
			p.Width, p.Height, p.Threshold, p.Window, run.BatchSize)
		fmt.Printf("Scanned:   %d (%d skipped)\n\n", run.Scanned, run.Skipped)

		clusterGroups := make([]cluster.Group, len(groups))
		for i, g := range groups {
			clusterGroups[i] = cluster.Group{Members: g.Members}
		}
		printGroups(clusterGroups)
		return nil
	})
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	id := args[0]

	return withStore(func(ctx context.Context, store database.Store) error {
		err := store.DeleteRun(ctx, id)
		if errors.Is(err, database.ErrRunNotFound) {
			return fmt.Errorf("run %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		fmt.Printf("Deleted run %s\n", id)
		return nil
	})
}
