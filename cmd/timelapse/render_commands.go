package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"timelapse/internal/frames"
	"timelapse/internal/render"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render every closed day in the frame store",
		Long: "Render each day group earlier than today into a video and thumbnail, " +
			"deleting the day's frames on success. Fails if the daemon is running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd.Context(), func(c context.Context, p *render.Pipeline) error {
				report, err := p.RenderClosed(c, frames.DateString(time.Now()))
				if err != nil {
					return err
				}
				return printReport(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newRenderRangeCommand(ctx *commandContext) *cobra.Command {
	var start, end int
	cmd := &cobra.Command{
		Use:   "render-range",
		Short: "Render a slice of the frame store without deleting frames",
		Long: "Render frames start..end (inclusive, zero-based indexes into the sorted " +
			"frame list shown by `timelapse frames --all`).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd.Context(), func(c context.Context, p *render.Pipeline) error {
				result, err := p.RenderRange(c, start, end)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "First frame index")
	cmd.Flags().IntVar(&end, "end", 0, "Last frame index (inclusive)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func printReport(out io.Writer, report render.Report) error {
	if len(report.Rendered) == 0 && len(report.Failed) == 0 {
		fmt.Fprintln(out, "No closed days to render")
		return nil
	}
	for _, result := range report.Rendered {
		printResult(out, result)
	}
	if len(report.Failed) == 0 {
		return nil
	}
	dates := make([]string, 0, len(report.Failed))
	for date := range report.Failed {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		fmt.Fprintf(out, "Failed %s: %v\n", date, report.Failed[date])
	}
	return fmt.Errorf("%d of %d days failed to render", len(report.Failed), len(report.Failed)+len(report.Rendered))
}

func printResult(out io.Writer, result render.Result) {
	fmt.Fprintf(out, "Rendered %s (%s frames, %dx%d) in %s\n",
		result.Label, count(result.FrameCount), result.Width, result.Height, result.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  video:     %s\n", result.Video)
	fmt.Fprintf(out, "  thumbnail: %s\n", result.Thumbnail)
}
