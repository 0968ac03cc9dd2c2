package frames

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"timelapse/internal/fileutil"
)

// ErrFrameExists is returned when a frame for the same second is already stored.
var ErrFrameExists = errors.New("frame already exists")

// Frame is one captured still in the store.
type Frame struct {
	Name string    `json:"name"`
	Path string    `json:"path"`
	Time time.Time `json:"captured_at"`
}

// Store is the directory of timestamp-named frames awaiting rendering.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory must already exist.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store root.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes an encoded frame captured at ts. The write is atomic and never
// replaces an existing frame.
func (s *Store) Save(ts time.Time, data []byte) (Frame, error) {
	name := Name(ts)
	path := filepath.Join(s.dir, name)
	if err := fileutil.WriteFileAtomicNoOverwrite(path, data, 0o644); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Frame{}, fmt.Errorf("%w: %s", ErrFrameExists, name)
		}
		return Frame{}, fmt.Errorf("save frame %s: %w", name, err)
	}
	return Frame{Name: name, Path: path, Time: ts.Truncate(time.Second)}, nil
}

// List takes a snapshot of the store and returns frames in capture order.
// Entries that are not frame files are ignored.
func (s *Store) List() ([]Frame, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ts, ok := ParseName(entry.Name())
		if !ok {
			continue
		}
		frames = append(frames, Frame{
			Name: entry.Name(),
			Path: filepath.Join(s.dir, entry.Name()),
			Time: ts,
		})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Name < frames[j].Name })
	return frames, nil
}

// Path resolves a frame name inside the store, rejecting anything that is not
// a well-formed frame filename.
func (s *Store) Path(name string) (string, bool) {
	if _, ok := ParseName(name); !ok || filepath.Base(name) != name {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}
