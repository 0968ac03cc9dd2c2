package main

import (
	"github.com/spf13/cobra"

	"timelapse/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipProbe bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the capture daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:        ctx.logLevel(),
				SkipStreamProbe: skipProbe,
			})
		},
	}
	cmd.Flags().BoolVar(&skipProbe, "skip-probe", false, "Do not DESCRIBE the camera stream at startup")
	return cmd
}
