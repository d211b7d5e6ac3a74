// Package route persists recorded trajectories as pretty-printed JSON
// documents, one file per recording session.
package route

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rbignon/ER-Route-tracker/pkg/core"
)

const timestampLayout = "2006-01-02 15:04:05"

// Saver writes route documents into one destination directory.
type Saver struct {
	dir string
	now func() time.Time
}

func NewSaver(dir string) *Saver {
	return &Saver{dir: dir, now: time.Now}
}

// Dir returns the destination directory.
func (s *Saver) Dir() string { return s.dir }

// Save writes the trajectory as a timestamp-named document and returns the
// path of the written file. An empty trajectory is rejected before any
// filesystem access. Each failing stage reports distinctly; the caller
// keeps the in-memory points either way, so a failed save can be retried.
func (s *Saver) Save(points []core.RoutePoint, intervalMs uint64) (string, error) {
	return s.SaveAs(points, intervalMs, "")
}

// SaveAs is Save with a custom display name carried in the document. The
// filename stays timestamp-derived either way, so display names need no
// sanitizing.
func (s *Saver) SaveAs(points []core.RoutePoint, intervalMs uint64, name string) (string, error) {
	if len(points) == 0 {
		return "", core.ErrEmptyRoute
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create route directory: %w", err)
	}

	recordedAt := s.now().Format(timestampLayout)
	if name == "" {
		name = routeName(recordedAt)
	}
	doc := core.SavedRoute{
		Name:         name,
		RecordedAt:   recordedAt,
		DurationSecs: float64(points[len(points)-1].TimestampMs) / 1000.0,
		IntervalMs:   intervalMs,
		PointCount:   len(points),
		Points:       points,
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode route: %w", err)
	}
	path := filepath.Join(s.dir, routeName(recordedAt)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write route: %w", err)
	}
	return path, nil
}

// routeName derives a filesystem-safe name from the human-readable
// timestamp; colons and spaces never survive into filenames.
func routeName(recordedAt string) string {
	r := strings.NewReplacer(":", "-", " ", "_")
	return "route_" + r.Replace(recordedAt)
}

// Load reads one previously saved route document.
func Load(path string) (*core.SavedRoute, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route: %w", err)
	}
	var doc core.SavedRoute
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode route %s: %w", path, err)
	}
	return &doc, nil
}

// List returns the saved route filenames under dir in chronological order.
// Timestamp names sort lexicographically, so a plain sort is enough. A
// directory that does not exist yet lists as empty.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list routes: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
