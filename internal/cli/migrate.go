package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clickmarket/marketplace/internal/config"
	"github.com/clickmarket/marketplace/internal/store/sqlite"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQLite schema",
		Long: `Create or upgrade the SQLite schema. Safe to run more than once.

Example:
  DB_PATH=./clickmarket.db clickmarket migrate`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Database.Path == config.MemoryDatabase {
				return errors.New("migrate: the in-memory database has no schema to apply")
			}

			db, err := sqlite.Open(cmd.Context(), cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied to %s\n", cfg.Database.Path)
			return nil
		},
	}
}
