package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/samephoto/internal/config"
	"github.com/kozaktomas/samephoto/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "samephoto",
	Short: "Find groups of near-duplicate photos",
	Long: `samephoto scans a photo library, reduces every photo to a small grayscale
fingerprint and groups photos whose structural similarity (SSIM) exceeds a
threshold. Groups can be reviewed, stored, served over HTTP or pruned.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (defaults to $"+config.EnvConfigPath+")")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the configuration and sets up the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
