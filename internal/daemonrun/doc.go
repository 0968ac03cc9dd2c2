// Package daemonrun hosts the foreground daemon runtime used by the "run"
// command: logger setup, log retention, startup checks and signal handling
// around a daemon.Daemon.
package daemonrun
