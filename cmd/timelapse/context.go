package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"timelapse/internal/config"
	"timelapse/internal/daemon"
	"timelapse/internal/frames"
	"timelapse/internal/history"
	"timelapse/internal/logging"
	"timelapse/internal/render"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.logLevelFlag)
}

// commandLogger logs to stderr so table and JSON output on stdout stay clean.
// Records are also appended to the current daemon log the pointer names.
func (c *commandContext) commandLogger(cfg *config.Config) (*logging.Logger, error) {
	level := c.logLevel()
	if level == "" {
		level = cfg.Logging.Level
	}
	return logging.New(logging.Options{
		Level:   level,
		Format:  cfg.Logging.Format,
		Console: os.Stderr,
		File:    cfg.LogPath(),
	})
}

// withHistory opens the history database for the duration of fn.
func (c *commandContext) withHistory(fn func(*config.Config, *history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// withPipeline holds the daemon lock and an open history store while fn
// renders, so a CLI render never races a running daemon.
func (c *commandContext) withPipeline(cmdCtx context.Context, fn func(context.Context, *render.Pipeline) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock, err := daemon.AcquireLock(cfg.LockPath())
	if err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("%w; use the dashboard to request renders while it runs", err)
		}
		return err
	}
	defer lock.Unlock() //nolint:errcheck

	logger, err := c.commandLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	return c.withHistory(func(cfg *config.Config, store *history.Store) error {
		if _, err := store.RecoverInterrupted(cmdCtx); err != nil {
			return fmt.Errorf("recover interrupted runs: %w", err)
		}
		pipeline := daemon.NewPipeline(cfg, frames.NewStore(cfg.Paths.FramesDir), store, logger.Logger, nil)
		return fn(cmdCtx, pipeline)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

var printer = message.NewPrinter(language.English)

// count formats n with thousands separators.
func count(n int) string {
	return printer.Sprintf("%d", n)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
