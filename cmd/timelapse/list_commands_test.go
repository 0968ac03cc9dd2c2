package main

import (
	"encoding/json"
	"strings"
	"testing"

	"timelapse/internal/testsupport"
)

func TestFramesCommandSummarisesDays(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteDay(t, env.cfg.Paths.FramesDir, dayOne, 3, env.cfg.Capture.Width, env.cfg.Capture.Height)

	out, _, err := runCLI(t, []string{"frames"}, env.configPath)
	if err != nil {
		t.Fatalf("frames: %v", err)
	}
	requireContains(t, out, "20240101")
	requireContains(t, out, "08:02:00")

	out, _, err = runCLI(t, []string{"frames", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("frames --all: %v", err)
	}
	requireContains(t, out, "20240101_080200.jpg")

	out, _, err = runCLI(t, []string{"frames", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("frames --json: %v", err)
	}
	var days []struct {
		Date   string `json:"date"`
		Frames int    `json:"frames"`
		Closed bool   `json:"closed"`
	}
	if err := json.Unmarshal([]byte(out), &days); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(days) != 1 || days[0].Frames != 3 || !days[0].Closed {
		t.Fatalf("unexpected summary %+v", days)
	}
}

func TestEmptyListings(t *testing.T) {
	env := setupCLITestEnv(t)
	for args, want := range map[string]string{
		"frames":  "No frames stored",
		"videos":  "No videos rendered yet",
		"history": "No render runs recorded",
	} {
		out, _, err := runCLI(t, []string{args}, env.configPath)
		if err != nil {
			t.Fatalf("%s: %v", args, err)
		}
		requireContains(t, out, want)
	}
}

func TestEmptyJSONListingsAreArrays(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, args := range [][]string{
		{"frames", "--all", "--json"},
		{"frames", "--json"},
		{"videos", "--json"},
		{"history", "--json"},
	} {
		out, _, err := runCLI(t, args, env.configPath)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if strings.TrimSpace(out) != "[]" {
			t.Fatalf("%v: expected [], got %q", args, out)
		}
	}
}

func TestHumanSize(t *testing.T) {
	cases := map[int64]string{
		12:      "12 B",
		2048:    "2.0 KiB",
		5 << 20: "5.0 MiB",
	}
	for in, want := range cases {
		if got := humanSize(in); got != want {
			t.Errorf("humanSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestCountUsesSeparators(t *testing.T) {
	if got := count(1234567); got != "1,234,567" {
		t.Fatalf("count = %q", got)
	}
}

func TestLogsCommandFiltersEvents(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteLines(t, env.cfg.LogPath(),
		"t INFO capture: frame captured",
		"t WARN capture: frame capture failed event_type=capture_failed",
		"t ERROR render: daily render failed event_type=render_failed",
	)
	out, _, err := runCLI(t, []string{"logs", "--event", "render_failed"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "daily render failed")
	if strings.Contains(out, "capture") {
		t.Fatalf("filter leaked other events: %q", out)
	}
}
