package main

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamsave/streamsave-go/internal/config"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

type cliState struct {
	cfg *config.Config
	fs  afero.Fs
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	state := &cliState{fs: fs}

	root := &cobra.Command{
		Use:           "streamsave",
		Short:         "Detect, resolve and download videos from web pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			state.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().String("server", "", "Resolution service base URL")
	lo.Must0(viper.BindPFlag("resolver.baseurl", root.PersistentFlags().Lookup("server")))

	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	lo.Must0(viper.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level")))

	root.PersistentFlags().StringP("output", "o", "", "Download directory")
	lo.Must0(viper.BindPFlag("download.dir", root.PersistentFlags().Lookup("output")))

	root.AddCommand(
		newScanCmd(state),
		newResolveCmd(state),
		newDownloadCmd(state),
		newStatsCmd(state),
	)

	return root
}
