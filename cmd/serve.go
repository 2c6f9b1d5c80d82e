package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/samephoto/internal/constants"
	"github.com/kozaktomas/samephoto/internal/database"
	"github.com/kozaktomas/samephoto/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the samephoto HTTP API.
The server compares and clusters uploaded images, runs directory scans as
background jobs with progress events, and serves stored runs when
DATABASE_URL is set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("scan-root", "", "Directory that HTTP scans must stay below")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if flags.Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
	if flags.Changed("scan-root") {
		cfg.Web.ScanRoot = mustGetString(cmd, "scan-root")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A nil interface keeps the runs endpoints disabled.
	var runs database.RunWriter
	store, err := openStore(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrNoDatabase):
		fmt.Println("DATABASE_URL not set, run history disabled")
	case err != nil:
		return err
	default:
		defer store.Close()
		runs = store
		backend, _ := database.BackendFor(cfg.Database.URL)
		fmt.Printf("Run history enabled (%s)\n", backend)
	}

	server := web.NewServer(cfg, runs, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting samephoto on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
