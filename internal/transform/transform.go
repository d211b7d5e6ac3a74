// Package transform converts tile-local player positions into the single
// global frame used for reporting. The conversion table ships as a CSV of
// tile-to-anchor translations; dungeon tiles chain through intermediate
// anchors until they reach an open-world tile, whose frame is global.
package transform

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rbignon/ER-Route-tracker/pkg/core"
)

// Row is one tile-to-anchor mapping from the table.
type Row struct {
	MapID    core.MapID
	AnchorID core.MapID

	// DY is carried by the table but never applied; altitude is shared
	// across frames.
	DX, DY, DZ float32
}

// Transformer indexes the anchor table by tile id, preserving file order
// within each tile so duplicate legacy mappings resolve deterministically.
type Transformer struct {
	index   map[core.MapID][]Row
	rows    int
	skipped int
}

// NewEmpty returns a transformer with zero anchors. Every conversion fails
// and callers fall back to local coordinates, which is correct in the open
// world where engine coordinates are already global.
func NewEmpty() *Transformer {
	return &Transformer{index: make(map[core.MapID][]Row)}
}

// Load reads the anchor table from path. A missing file surfaces as an
// fs.ErrNotExist so the caller can degrade to NewEmpty instead of failing.
func Load(path string) (*Transformer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open anchor table: %w", err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("anchor table %s: %w", path, err)
	}
	return t, nil
}

// Parse builds a transformer from CSV rows of the form
// map_id,anchor_map_id,dx,dy,dz. Ids use either the m60_42_38_00 scheme or
// plain integers. A leading header row is ignored; later rows that fail to
// parse are skipped and counted.
func Parse(r io.Reader) (*Transformer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	t := NewEmpty()
	for i, rec := range records {
		row, err := parseRow(rec)
		if err != nil {
			if i > 0 {
				t.skipped++
			}
			continue
		}
		t.index[row.MapID] = append(t.index[row.MapID], row)
		t.rows++
	}
	return t, nil
}

func parseRow(rec []string) (Row, error) {
	if len(rec) < 5 {
		return Row{}, fmt.Errorf("want 5 columns, got %d", len(rec))
	}
	id, err := core.ParseMapID(rec[0])
	if err != nil {
		return Row{}, err
	}
	anchor, err := core.ParseMapID(rec[1])
	if err != nil {
		return Row{}, err
	}
	var d [3]float32
	for i, field := range rec[2:5] {
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return Row{}, err
		}
		d[i] = float32(v)
	}
	return Row{MapID: id, AnchorID: anchor, DX: d[0], DY: d[1], DZ: d[2]}, nil
}

// LocalToWorldFirst converts a point in tile's local frame to the global
// frame. The first row keyed to the tile wins; chained anchors accumulate
// their translations until an open-world anchor terminates the chain. An
// unmapped tile, a dead-end anchor or a mapping cycle all report !ok and
// the caller keeps the local coordinates.
func (t *Transformer) LocalToWorldFirst(tile core.MapID, x, y, z float32) (gx, gy, gz float32, ok bool) {
	rows, present := t.index[tile]
	if !present {
		return 0, 0, 0, false
	}

	gx, gy, gz = x, y, z
	// bound hops by the table size so a mapping cycle cannot spin forever
	for hops := 0; hops < t.rows; hops++ {
		r := rows[0]
		gx += r.DX
		gz += r.DZ
		if r.AnchorID.IsOverworld() {
			return gx, gy, gz, true
		}
		rows, present = t.index[r.AnchorID]
		if !present {
			return 0, 0, 0, false
		}
	}
	return 0, 0, 0, false
}

// Empty reports whether the table holds no rows at all.
func (t *Transformer) Empty() bool { return t.rows == 0 }

// MapCount returns the number of distinct tiles with at least one mapping.
func (t *Transformer) MapCount() int { return len(t.index) }

// RowCount returns the total number of mappings loaded.
func (t *Transformer) RowCount() int { return t.rows }

// SkippedRows returns how many malformed rows the parser dropped.
func (t *Transformer) SkippedRows() int { return t.skipped }
