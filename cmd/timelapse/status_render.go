package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// health is the verdict shown in the first column of a status line.
type health int

const (
	healthNote health = iota
	healthGood
	healthDegraded
	healthDown
)

func (h health) verdict() string {
	switch h {
	case healthGood:
		return "ok"
	case healthDegraded:
		return "warn"
	case healthDown:
		return "down"
	default:
		return "--"
	}
}

func (h health) colors() text.Colors {
	switch h {
	case healthGood:
		return text.Colors{text.FgGreen}
	case healthDegraded:
		return text.Colors{text.FgYellow}
	case healthDown:
		return text.Colors{text.FgRed, text.Bold}
	default:
		return text.Colors{text.FgHiBlack}
	}
}

const (
	verdictWidth = 4
	labelWidth   = 16
)

// statusReport collects the sections printed by `timelapse status`.
type statusReport struct {
	colorize bool
	lines    []string
	worst    health
}

func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	title = strings.TrimSpace(title)
	if r.colorize {
		title = text.Colors{text.Bold, text.Underline}.Sprint(title)
	}
	r.lines = append(r.lines, title)
}

func (r *statusReport) add(label string, h health, detail string) {
	r.lines = append(r.lines, statusLine(label, h, detail, r.colorize))
	if h > r.worst {
		r.worst = h
	}
}

func (r *statusReport) String() string {
	return strings.Join(r.lines, "\n")
}

// statusLine renders "  <verdict> <label> <detail>" with the verdict padded
// before colouring so columns stay aligned on a terminal.
func statusLine(label string, h health, detail string, colorize bool) string {
	verdict := fmt.Sprintf("%-*s", verdictWidth, h.verdict())
	if colorize {
		verdict = h.colors().Sprint(verdict)
	}
	line := fmt.Sprintf("  %s %-*s", verdict, labelWidth, label)
	if detail != "" {
		line += " " + detail
	}
	return strings.TrimRight(line, " ")
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
