package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"timelapse/internal/artifacts"
	"timelapse/internal/config"
	"timelapse/internal/frames"
	"timelapse/internal/history"
	"timelapse/internal/logging"
)

const timeFormat = "2006-01-02 15:04:05"

func newFramesCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var jsonOut *jsonOutput
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Summarise the frame store by day",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			list, err := frames.NewStore(cfg.Paths.FramesDir).List()
			if err != nil {
				return err
			}
			today := frames.DateString(time.Now())

			if all {
				if ok, err := jsonOut.emit(cmd, list); ok {
					return err
				}
				rows := make([][]string, 0, len(list))
				for i, f := range list {
					rows = append(rows, []string{strconv.Itoa(i), f.Name, f.Time.Format(timeFormat)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
					Headers: []string{"Index", "Frame", "Captured"},
					Rows:    rows,
					Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft},
				}))
				return nil
			}

			groups := frames.GroupByDate(list)
			if jsonOut.enabled {
				type daySummary struct {
					Date   string `json:"date"`
					Frames int    `json:"frames"`
					Closed bool   `json:"closed"`
				}
				days := make([]daySummary, 0, len(groups))
				for _, g := range groups {
					days = append(days, daySummary{Date: g.Date, Frames: len(g.Frames), Closed: g.Date < today})
				}
				_, err := jsonOut.emit(cmd, days)
				return err
			}
			if len(groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No frames stored")
				return nil
			}
			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				first, last := g.Frames[0], g.Frames[len(g.Frames)-1]
				rows = append(rows, []string{
					g.Date,
					count(len(g.Frames)),
					first.Time.Format("15:04:05"),
					last.Time.Format("15:04:05"),
					yesNo(g.Date < today),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
				Headers: []string{"Date", "Frames", "First", "Last", "Closed"},
				Rows:    rows,
				Aligns:  []columnAlignment{alignLeft, alignRight},
				Footer:  []string{"Total", count(len(list))},
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "List every frame with its range-render index")
	jsonOut = addJSONFlag(cmd)
	return cmd
}

func newVideosCommand(ctx *commandContext) *cobra.Command {
	var jsonOut *jsonOutput
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List rendered timelapse videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			videos, err := catalogFor(cfg).List(cmd.Context())
			if err != nil {
				return err
			}
			if ok, err := jsonOut.emit(cmd, videos); ok {
				return err
			}
			if len(videos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No videos rendered yet")
				return nil
			}
			rows := make([][]string, 0, len(videos))
			for _, v := range videos {
				duration := "-"
				if v.Duration > 0 {
					duration = time.Duration(v.Duration * float64(time.Second)).Round(time.Second).String()
				}
				frameCount := "-"
				if v.Frames > 0 {
					frameCount = count(v.Frames)
				}
				rows = append(rows, []string{
					v.Name,
					humanSize(v.Size),
					duration,
					frameCount,
					yesNo(v.Thumbnail != ""),
					v.ModTime.Local().Format(timeFormat),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
				Headers: []string{"Video", "Size", "Duration", "Frames", "Thumbnail", "Modified"},
				Rows:    rows,
				Aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			}))
			return nil
		},
	}
	jsonOut = addJSONFlag(cmd)
	return cmd
}

func catalogFor(cfg *config.Config) *artifacts.Catalog {
	return artifacts.NewCatalog(cfg.Paths.VideoDir, cfg.Paths.ThumbnailDir, cfg.Render.FFprobeBinary, logging.NewNop())
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut *jsonOutput
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent render runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(_ *config.Config, store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ok, err := jsonOut.emit(cmd, runs); ok {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No render runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
					Headers: []string{"Started", "Kind", "Label", "Frames", "Status", "Duration", "Error"},
					Rows:    historyRows(runs),
					Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
				}))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show")
	jsonOut = addJSONFlag(cmd)
	return cmd
}

var titleCase = cases.Title(language.English)

func historyRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.FinishedAt != nil {
			duration = run.Duration().Round(time.Second).String()
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format(timeFormat),
			string(run.Kind),
			run.Label,
			count(run.FrameCount),
			titleCase.String(string(run.Status)),
			duration,
			run.ErrorMessage,
		})
	}
	return rows
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
