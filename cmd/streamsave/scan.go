package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/streamsave/streamsave-go/internal/dispatch"
	"github.com/streamsave/streamsave-go/internal/models"
)

func newScanCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <page-url>",
		Short: "List the videos detected on a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON := lo.Must(cmd.Flags().GetBool("json"))

			a := newApp(cmd.Context(), state.cfg, appOptions{fs: state.fs})
			defer a.Close()

			videos, err := scanPage(cmd.Context(), a.coordinator, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), videos)
			}
			return printCandidates(cmd.OutOrStdout(), videos)
		},
	}
	cmd.Flags().Bool("json", false, "Print candidates as JSON")
	return cmd
}

// scanPage opens the page in the CLI tab and asks its page context for a scan.
func scanPage(ctx context.Context, c *dispatch.Coordinator, pageURL string) ([]models.VideoCandidate, error) {
	opened := c.Send(ctx, dispatch.TabUpdated{
		TabID:  cliTabID,
		URL:    pageURL,
		Status: dispatch.TabStatusComplete,
	})
	if err := opened.Err(); err != nil {
		return nil, err
	}

	resp := c.Send(ctx, dispatch.ScanForVideos{TabID: cliTabID})
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return resp.Videos, nil
}

func printCandidates(w io.Writer, videos []models.VideoCandidate) error {
	if len(videos) == 0 {
		_, err := fmt.Fprintln(w, "No videos found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tTITLE\tDURATION\tQUALITY\tURL")
	for _, v := range videos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Platform, v.Title, v.DurationLabel, v.QualityLabel, v.SourceURL)
	}
	return tw.Flush()
}
