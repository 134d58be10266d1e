package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamsave/streamsave-go/internal/stats"
)

func newStatsCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show lifetime counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cmd.Context(), state.cfg, appOptions{fs: state.fs})
			defer a.Close()

			all, err := a.counters.All(cmd.Context())
			if err != nil {
				return err
			}
			for _, key := range stats.Keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", key, all[key])
			}
			return nil
		},
	}
}
