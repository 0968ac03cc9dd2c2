package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"timelapse/internal/stream"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var grab bool
	var output string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the camera stream",
		Long: "DESCRIBE the RTSP stream and list its tracks. With --grab, also capture " +
			"one frame through ffmpeg exactly as the daemon does.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			address, err := cfg.StreamAddress()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			timeout := time.Duration(cfg.Capture.TimeoutSeconds) * time.Second

			if strings.HasPrefix(strings.ToLower(address), "rtsp") {
				result, err := stream.Probe(cmd.Context(), address, cfg.Capture.RTSPTransport, timeout)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Stream %s answered in %s\n", result.Address, result.Elapsed.Round(time.Millisecond))
				for i, m := range result.Medias {
					fmt.Fprintf(out, "  track %d: %s (%s)\n", i, m.Type, strings.Join(m.Codecs, ", "))
				}
				if !result.HasVideo() {
					return fmt.Errorf("stream %s announced no video track", result.Address)
				}
			} else {
				fmt.Fprintf(out, "Stream %s is not RTSP; skipping DESCRIBE\n", stream.Redact(address))
			}

			if !grab {
				return nil
			}
			source := &stream.FFmpegSource{
				Binary:    cfg.Render.FFmpegBinary,
				Address:   address,
				Transport: cfg.Capture.RTSPTransport,
				Timeout:   timeout,
			}
			img, err := source.Grab(cmd.Context())
			if err != nil {
				return err
			}
			bounds := img.Bounds()
			fmt.Fprintf(out, "Grabbed frame %dx%d\n", bounds.Dx(), bounds.Dy())
			if output != "" {
				if err := saveJPEG(output, img, cfg.Capture.JPEGQuality); err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved frame to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&grab, "grab", false, "Capture one frame through ffmpeg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the grabbed frame to this path")
	return cmd
}
