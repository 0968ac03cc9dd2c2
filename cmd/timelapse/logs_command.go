package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timelapse/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var event string
	var component string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var filters []func(string) bool
			if event != "" {
				filters = append(filters, logs.MatchEvent(event))
			}
			if component != "" {
				filters = append(filters, logs.MatchComponent(component))
			}
			opts := logs.TailOptions{Offset: -1, Limit: lines, Match: logs.All(filters...)}

			out := cmd.OutOrStdout()
			path := cfg.LogPath()
			for {
				result, err := logs.Tail(cmd.Context(), path, opts)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}
				opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: time.Minute, Match: opts.Match}
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing appended lines")
	cmd.Flags().StringVar(&event, "event", "", "Only lines with this event_type")
	cmd.Flags().StringVar(&component, "component", "", "Only lines from this component")
	return cmd
}
