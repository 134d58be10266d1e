package main

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/streamsave/streamsave-go/internal/dispatch"
)

func newDownloadCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <video-url>",
		Short: "Download a video into the download directory",
		Long: "Download a video. YouTube watch URLs are resolved through the resolution service " +
			"first; any other URL is fetched directly.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quality := lo.Must(cmd.Flags().GetString("quality"))
			title := lo.Must(cmd.Flags().GetString("title"))

			a := newApp(cmd.Context(), state.cfg, appOptions{fs: state.fs})
			defer a.Close()

			resp := a.coordinator.Send(cmd.Context(), dispatch.DownloadVideo{
				TabID:    cliTabID,
				VideoURL: args[0],
				Filename: title,
				Quality:  quality,
			})
			if err := resp.Err(); err != nil {
				return fmt.Errorf("download failed: %w", err)
			}

			folder := a.coordinator.Send(cmd.Context(), dispatch.OpenDownloadFolder{})
			fmt.Fprintf(cmd.OutOrStdout(), "Download %s saved to %s\n", resp.DownloadID, folder.Path)
			return nil
		},
	}
	cmd.Flags().StringP("quality", "q", "", "Quality label, e.g. 720p (defaults to the best available)")
	cmd.Flags().StringP("title", "t", "", "File name to save under (defaults to the video title)")
	return cmd
}
