package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/resolver"
)

func newResolveCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <watch-url>",
		Short: "Show the downloadable formats of a YouTube video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON := lo.Must(cmd.Flags().GetBool("json"))

			client := resolver.NewClient(state.cfg.Resolver.BaseURL, state.cfg.Resolver.Timeout)
			info, err := client.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			return printVideoInfo(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().Bool("json", false, "Print the resolution as JSON")
	return cmd
}

func printVideoInfo(w io.Writer, info *models.VideoInfo) error {
	fmt.Fprintf(w, "%s\nby %s\n\n", info.Title, info.Author)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUALITY\tCONTAINER\tAUDIO\tSIZE")
	for _, f := range info.Formats {
		size := "-"
		if f.SizeBytes != nil {
			size = humanize.Bytes(uint64(*f.SizeBytes))
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", f.QualityLabel, f.Container, f.HasAudio, size)
	}
	return tw.Flush()
}
