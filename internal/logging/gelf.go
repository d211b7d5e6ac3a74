package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGelfWriter connects a GELF UDP writer for graylog shipping. The
// writer is fire-and-forget; a downed graylog never blocks the tracker.
func NewGelfWriter(address string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("connect graylog %s: %w", address, err)
	}
	w.Facility = "route-tracker"
	return w, nil
}
