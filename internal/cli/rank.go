package cli

import (
	"fmt"

	"podnest/internal/services"

	"github.com/spf13/cobra"
)

// NewRankCommand creates the rank command, a one-off popularity recompute.
func NewRankCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Recompute popularity scores of every pod",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, gdb, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}
			defer log.Sync()

			n, err := services.NewRankingService(gdb, log).RecomputeAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d pods\n", n)
			return nil
		},
	}
}
