// pkg/core/mapid.go
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// MapID is the packed 32-bit tile identifier used by the game engine.
// Four 8-bit fields, high byte first: area, grid X, grid Z, index.
// Tile m60_42_38_00 packs as 0x3C2A2600.
type MapID uint32

// Overworld area bytes. Tiles in these areas share the engine's global
// coordinate frame; every other area has its own local frame.
const (
	AreaLandsBetween = 60
	AreaLandOfShadow = 61
)

// Area returns the area field (high byte).
func (m MapID) Area() uint8 { return uint8(m >> 24) }

// GridX returns the horizontal tile grid field.
func (m MapID) GridX() uint8 { return uint8(m >> 16) }

// GridZ returns the vertical tile grid field.
func (m MapID) GridZ() uint8 { return uint8(m >> 8) }

// Index returns the sub-tile index field (low byte).
func (m MapID) Index() uint8 { return uint8(m) }

// IsOverworld reports whether the tile belongs to an open-world area,
// where engine coordinates are already global.
func (m MapID) IsOverworld() bool {
	a := m.Area()
	return a == AreaLandsBetween || a == AreaLandOfShadow
}

// String renders the id in the community map naming scheme, e.g.
// "m60_42_38_00". Works for any id, mapped or not.
func (m MapID) String() string {
	return fmt.Sprintf("m%02d_%02d_%02d_%02d", m.Area(), m.GridX(), m.GridZ(), m.Index())
}

// ParseMapID accepts either the "m60_42_38_00" naming scheme or a plain
// integer (decimal or 0x-prefixed) and returns the packed id.
func ParseMapID(s string) (MapID, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "m"); ok {
		parts := strings.Split(rest, "_")
		if len(parts) != 4 {
			return 0, fmt.Errorf("map id %q: want four underscore-separated fields", s)
		}
		var packed uint32
		for _, p := range parts {
			n, err := strconv.ParseUint(p, 10, 8)
			if err != nil {
				return 0, fmt.Errorf("map id %q: %w", s, err)
			}
			packed = packed<<8 | uint32(n)
		}
		return MapID(packed), nil
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("map id %q: %w", s, err)
	}
	return MapID(n), nil
}
