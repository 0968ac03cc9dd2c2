package frames_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"timelapse/internal/frames"
)

func TestNameRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 2, 900, time.Local)
	name := frames.Name(ts)
	if name != "20240309_070502.jpg" {
		t.Fatalf("unexpected name %q", name)
	}
	parsed, ok := frames.ParseName(name)
	if !ok {
		t.Fatalf("ParseName rejected %q", name)
	}
	if !parsed.Equal(ts.Truncate(time.Second)) {
		t.Fatalf("parsed %v, want %v", parsed, ts.Truncate(time.Second))
	}
	date, ok := frames.DateOf(name)
	if !ok || date != "20240309" {
		t.Fatalf("DateOf = %q, %v", date, ok)
	}
}

func TestParseNameRejectsOtherFiles(t *testing.T) {
	for _, name := range []string{
		"20240101_file_list.txt",
		"20240101.jpg",
		"20240101_120000.png",
		".20240101_120000.jpg.tmp",
		"2024010x_120000.jpg",
		"20241301_120000.jpg",
	} {
		if _, ok := frames.ParseName(name); ok {
			t.Errorf("ParseName accepted %q", name)
		}
	}
}

func TestStoreSaveRejectsSameSecond(t *testing.T) {
	store := frames.NewStore(t.TempDir())
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

	frame, err := store.Save(ts, []byte("first"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if frame.Name != "20240101_120000.jpg" {
		t.Fatalf("unexpected frame name %q", frame.Name)
	}

	_, err = store.Save(ts.Add(400*time.Millisecond), []byte("second"))
	if !errors.Is(err, frames.ErrFrameExists) {
		t.Fatalf("expected ErrFrameExists, got %v", err)
	}
	data, err := os.ReadFile(frame.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first" {
		t.Fatalf("existing frame overwritten: %q", data)
	}
}

func TestStoreListSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"20240102_000001.jpg",
		"20240101_235959.jpg",
		"20240101_000000.jpg",
		"20240101_file_list.txt",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "20240103_000000.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}

	list, err := frames.NewStore(dir).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"20240101_000000.jpg", "20240101_235959.jpg", "20240102_000001.jpg"}
	if len(list) != len(want) {
		t.Fatalf("got %d frames, want %d", len(list), len(want))
	}
	for i, f := range list {
		if f.Name != want[i] {
			t.Fatalf("frame %d = %q, want %q", i, f.Name, want[i])
		}
	}
}

func TestClosedGroupsExcludesToday(t *testing.T) {
	list := []frames.Frame{
		{Name: "20240103_080000.jpg"},
		{Name: "20240101_235959.jpg"},
		{Name: "20240101_000000.jpg"},
		{Name: "20240102_120000.jpg"},
		{Name: "20240104_010000.jpg"},
	}

	groups := frames.ClosedGroups(list, "20240103")
	if len(groups) != 2 {
		t.Fatalf("expected 2 closed groups, got %d", len(groups))
	}
	if groups[0].Date != "20240101" || groups[1].Date != "20240102" {
		t.Fatalf("unexpected group order %q, %q", groups[0].Date, groups[1].Date)
	}
	if groups[0].Frames[0].Name != "20240101_000000.jpg" || groups[0].Frames[1].Name != "20240101_235959.jpg" {
		t.Fatalf("frames not in capture order: %+v", groups[0].Frames)
	}
}

func TestClosedGroupsEmpty(t *testing.T) {
	if groups := frames.ClosedGroups(nil, "20240101"); len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
	only := []frames.Frame{{Name: "20240101_090000.jpg"}}
	if groups := frames.ClosedGroups(only, "20240101"); len(groups) != 0 {
		t.Fatalf("open day returned as closed: %+v", groups)
	}
}

func TestValidDate(t *testing.T) {
	if !frames.ValidDate("20240229") {
		t.Fatal("leap day rejected")
	}
	for _, s := range []string{"2024022", "20240230", "abcdefgh", ""} {
		if frames.ValidDate(s) {
			t.Errorf("ValidDate accepted %q", s)
		}
	}
}
