package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/config"
	"github.com/kozaktomas/samephoto/internal/constants"
	"github.com/kozaktomas/samephoto/internal/database"
	"github.com/kozaktomas/samephoto/internal/fingerprint"
	"github.com/kozaktomas/samephoto/internal/library"
	"github.com/kozaktomas/samephoto/internal/pipeline"
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Group near-duplicate photos in a directory",
	Long: `Scan a directory recursively and group photos that look alike.
Photos are ordered newest first and processed in batches; each photo is
compared with the photos that follow it within the comparison window.
Groups never span batches.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	addScanFlags(scanCmd)
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().Bool("save", false, "Save the run to the configured database")
}

// addScanFlags registers the clustering flags shared by scan and prune.
func addScanFlags(c *cobra.Command) {
	c.Flags().Int("width", constants.DefaultClusterWidth, "Fingerprint width in pixels")
	c.Flags().Int("height", constants.DefaultClusterHeight, "Fingerprint height in pixels")
	c.Flags().Float64("threshold", constants.DefaultThreshold, "SSIM score a pair must exceed to be grouped")
	c.Flags().Int("window", constants.DefaultComparisonWindow, "Number of following photos each photo is compared with")
	c.Flags().Int("batch-size", constants.DefaultBatchSize, "Photos extracted and clustered per batch")
	c.Flags().Int("concurrency", 0, "Number of extraction workers (0 = number of CPUs)")
	c.Flags().Int("limit", 0, "Limit number of photos to scan (0 = no limit)")
}

// applyScanFlags overrides configuration values with flags given on the command line.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.Cluster.Width = mustGetInt(cmd, "width")
	}
	if flags.Changed("height") {
		cfg.Cluster.Height = mustGetInt(cmd, "height")
	}
	if flags.Changed("threshold") {
		cfg.Cluster.Threshold = mustGetFloat64(cmd, "threshold")
	}
	if flags.Changed("window") {
		cfg.Cluster.Window = mustGetInt(cmd, "window")
	}
	if flags.Changed("batch-size") {
		cfg.Cluster.BatchSize = mustGetInt(cmd, "batch-size")
	}
	if flags.Changed("concurrency") {
		cfg.Cluster.Workers = mustGetInt(cmd, "concurrency")
	}
}

// signalContext returns a context cancelled on the first SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, finishing current batch...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// scanRun is a finished or interrupted scan of one library.
type scanRun struct {
	lib         *library.Library
	params      cluster.Params
	batchSize   int
	startedAt   time.Time
	result      *pipeline.Result
	interrupted bool
}

// scanLibrary opens dir and clusters it. An interrupted scan returns the
// completed batches with interrupted set.
func scanLibrary(ctx context.Context, cfg *config.Config, logger *slog.Logger, dir string, limit int, showProgress bool) (*scanRun, error) {
	params := cfg.ClusterParams()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	resampler, err := fingerprint.ParseResampler(cfg.Cluster.Resampler)
	if err != nil {
		return nil, err
	}
	gray, err := fingerprint.ParseGrayMode(cfg.Cluster.Grayscale)
	if err != nil {
		return nil, err
	}

	lib, err := library.Open(dir,
		library.WithLimit(limit),
		library.WithThumbnailSize(cfg.Library.ThumbnailSize),
	)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Params:    params,
		BatchSize: cfg.Cluster.BatchSize,
		Workers:   cfg.Cluster.Workers,
		Resampler: resampler,
		Gray:      gray,
		Logger:    logger,
	}

	var bar *progressbar.ProgressBar
	if showProgress && lib.Len() > 0 {
		bar = progressbar.NewOptions(lib.Len(),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		opts.OnProgress = func(p pipeline.Progress) {
			_ = bar.Set(p.Processed)
		}
	}

	p, err := pipeline.New(lib, opts)
	if err != nil {
		return nil, err
	}

	run := &scanRun{
		lib:       lib,
		params:    params,
		batchSize: cfg.Cluster.BatchSize,
		startedAt: time.Now(),
	}
	result, err := p.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		if result == nil || !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		run.interrupted = true
	}
	run.result = result
	return run, nil
}

// scanOutput is the JSON form of a scan.
type scanOutput struct {
	Root          string          `json:"root"`
	Params        cluster.Params  `json:"params"`
	BatchSize     int             `json:"batch_size"`
	Groups        []cluster.Group `json:"groups"`
	Scanned       int             `json:"scanned"`
	Skipped       int             `json:"skipped"`
	Batches       int             `json:"batches"`
	GroupedPhotos int             `json:"grouped_photos"`
	DurationMs    int64           `json:"duration_ms"`
	Interrupted   bool            `json:"interrupted,omitempty"`
	RunID         string          `json:"run_id,omitempty"`
}

func newScanOutput(run *scanRun) scanOutput {
	groups := run.result.Groups
	if groups == nil {
		groups = []cluster.Group{}
	}
	return scanOutput{
		Root:          run.lib.Root(),
		Params:        run.params,
		BatchSize:     run.batchSize,
		Groups:        groups,
		Scanned:       run.result.Scanned,
		Skipped:       run.result.Skipped,
		Batches:       run.result.Batches,
		GroupedPhotos: run.result.TotalImages(),
		DurationMs:    run.result.Duration.Milliseconds(),
		Interrupted:   run.interrupted,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	applyScanFlags(cmd, cfg)

	jsonOutput := mustGetBool(cmd, "json")
	save := mustGetBool(cmd, "save")
	limit := mustGetInt(cmd, "limit")

	ctx, cancel := signalContext()
	defer cancel()

	run, err := scanLibrary(ctx, cfg, logger, dir, limit, !jsonOutput)
	if err != nil {
		return err
	}

	out := newScanOutput(run)

	if save && !run.interrupted {
		runID, err := saveRun(context.Background(), cfg, run)
		if err != nil {
			return err
		}
		out.RunID = runID
	}

	if jsonOutput {
		return outputJSON(out)
	}

	printGroups(out.Groups)
	fmt.Printf("\nScanned %d photos (%d skipped) in %d batches, %s\n",
		out.Scanned, out.Skipped, out.Batches, run.result.Duration.Round(time.Millisecond))
	fmt.Printf("Found %d groups containing %d photos\n", len(out.Groups), out.GroupedPhotos)
	if run.interrupted {
		fmt.Println("Scan was interrupted, results cover the completed batches only")
		if save {
			fmt.Println("Interrupted scans are not saved")
		}
	}
	if out.RunID != "" {
		fmt.Printf("Saved run %s\n", out.RunID)
	}
	return nil
}

// saveRun stores a finished scan and returns the run ID.
func saveRun(ctx context.Context, cfg *config.Config, run *scanRun) (string, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer store.Close()

	stored, groups := database.NewRun(run.lib.Root(), run.params, run.batchSize, run.result, run.startedAt)
	if err := store.SaveRun(ctx, stored, groups); err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}
	return stored.ID, nil
}

// printGroups prints one row per group member. The seed of a group scores 1.
func printGroups(groups []cluster.Group) {
	if len(groups) == 0 {
		fmt.Println("No similar photos found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tSCORE\tPHOTO")
	fmt.Fprintln(w, "-----\t-----\t-----")
	for i, g := range groups {
		for _, m := range g.Members {
			fmt.Fprintf(w, "%d\t%.4f\t%s\n", i+1, m.Score, m.ID)
		}
	}
	w.Flush()
}

// outputJSON writes data to stdout as indented JSON.
func outputJSON(data any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
