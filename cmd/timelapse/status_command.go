package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timelapse/internal/config"
	"timelapse/internal/daemon"
	"timelapse/internal/deps"
	"timelapse/internal/frames"
	"timelapse/internal/history"
	"timelapse/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, storage, camera, dependency and render health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := &statusReport{colorize: shouldColorize(out)}

			report.section("Daemon")
			addDaemonStatus(report, cfg)

			report.section("Storage")
			addStorageStatus(report, cfg)

			report.section("Camera")
			addCameraStatus(cmd, report, cfg, probe)

			report.section("Dependencies")
			for _, s := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				addDependencyStatus(report, s)
			}

			report.section("Renders")
			addRenderStatus(cmd, ctx, report)

			fmt.Fprintln(out, report.String())
			fmt.Fprintln(out)
			fmt.Fprintln(out, statusLine("Overall", report.worst, "", report.colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Also DESCRIBE the camera stream")
	return cmd
}

func addDaemonStatus(r *statusReport, cfg *config.Config) {
	locked, err := daemon.Locked(cfg.LockPath())
	switch {
	case err != nil:
		r.add("Capture daemon", healthDown, err.Error())
	case locked:
		r.add("Capture daemon", healthGood, "capturing (lock held)")
	default:
		r.add("Capture daemon", healthDegraded, "not running, no frames are being captured")
	}
	if cfg.Server.Bind != "" {
		r.add("Dashboard", healthNote, "http://"+cfg.Server.Bind)
	}
}

func addStorageStatus(r *statusReport, cfg *config.Config) {
	addDirectoryStatus(r, "Frames", cfg.Paths.FramesDir)
	addDirectoryStatus(r, "Videos", cfg.Paths.VideoDir)
	if cfg.Paths.ThumbnailDir != cfg.Paths.VideoDir {
		addDirectoryStatus(r, "Thumbnails", cfg.Paths.ThumbnailDir)
	}
	addDirectoryStatus(r, "State", cfg.Paths.StateDir)
	for _, check := range []preflight.Result{
		preflight.CheckFreeSpace("Frames free", cfg.Paths.FramesDir, preflight.MinFreeBytes),
		preflight.CheckFreeSpace("Videos free", cfg.Paths.VideoDir, preflight.MinFreeBytes),
	} {
		h := healthGood
		if !check.Passed {
			h = healthDegraded
		}
		r.add(check.Name, h, check.Detail)
	}

	list, err := frames.NewStore(cfg.Paths.FramesDir).List()
	if err != nil {
		return
	}
	closed := frames.ClosedGroups(list, frames.DateString(time.Now()))
	detail := fmt.Sprintf("%s stored, %d closed day(s) awaiting render", count(len(list)), len(closed))
	h := healthNote
	if len(closed) > 0 {
		h = healthDegraded
	}
	r.add("Frames pending", h, detail)
}

func addDirectoryStatus(r *statusReport, label, path string) {
	check := preflight.CheckDirectoryAccess(label, path)
	if check.Passed {
		r.add(label, healthGood, check.Detail)
		return
	}
	r.add(label, healthDown, check.Detail)
}

func addCameraStatus(cmd *cobra.Command, r *statusReport, cfg *config.Config, probe bool) {
	secret := preflight.CheckStreamSecret(cfg)
	if !secret.Passed {
		r.add("Credential", healthDown, secret.Detail)
		return
	}
	r.add("Credential", healthGood, secret.Detail)
	if !probe {
		r.add("Stream", healthNote, "not probed (use --probe)")
		return
	}
	address, _ := cfg.StreamAddress()
	check := preflight.CheckStream(cmd.Context(), address, cfg.Capture.RTSPTransport, time.Duration(cfg.Capture.TimeoutSeconds)*time.Second)
	if check.Passed {
		r.add("Stream", healthGood, check.Detail)
		return
	}
	r.add("Stream", healthDown, check.Detail)
}

func addDependencyStatus(r *statusReport, s deps.Status) {
	if s.Available {
		detail := "available"
		if s.Version != "" {
			detail = s.Version
		}
		r.add(s.Name, healthGood, detail)
		return
	}
	if s.Optional {
		r.add(s.Name, healthDegraded, s.Detail)
		return
	}
	r.add(s.Name, healthDown, s.Detail)
}

func addRenderStatus(cmd *cobra.Command, ctx *commandContext, r *statusReport) {
	err := ctx.withHistory(func(_ *config.Config, store *history.Store) error {
		summary, err := store.Summarize(cmd.Context())
		if err != nil {
			return err
		}
		detail := fmt.Sprintf("%s total, %s succeeded, %s failed", count(summary.Total), count(summary.Succeeded), count(summary.Failed))
		if summary.Running > 0 {
			detail += fmt.Sprintf(", %d running", summary.Running)
		}
		r.add("Runs", healthNote, detail)
		if last := summary.LastRun; last != nil {
			h := healthGood
			if last.Status == history.StatusFailed {
				h = healthDegraded
			}
			detail := fmt.Sprintf("%s %s (%s)", last.Kind, last.Label, last.Status)
			if last.ErrorMessage != "" {
				detail += ": " + last.ErrorMessage
			}
			r.add("Last run", h, detail)
		}
		return nil
	})
	if err != nil {
		r.add("History", healthDown, err.Error())
	}
}
