package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/samephoto/internal/config"
	"github.com/kozaktomas/samephoto/internal/database"

	// Run store backends register themselves with the database package.
	_ "github.com/kozaktomas/samephoto/internal/database/mariadb"
	_ "github.com/kozaktomas/samephoto/internal/database/postgres"
	_ "github.com/kozaktomas/samephoto/internal/database/sqlite"
)

// openStore connects to the run store configured by DATABASE_URL.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return store, nil
}
