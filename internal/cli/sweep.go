package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clickmarket/marketplace/internal/worker"
)

// NewSweepCommand runs one overdue sweep, for use from cron when serve is
// not running.
func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "sweep",
		Short:         "Mark every issued invoice past its due date as overdue, once",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			moved := worker.NewOverdue(rt.services.Invoices, cfg.Overdue.Interval, cfg.Overdue.Batch, cfg.Overdue.Workers).
				RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s) marked overdue\n", moved)
			return nil
		},
	}
}
