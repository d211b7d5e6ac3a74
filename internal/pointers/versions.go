package pointers

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a client build number in major.minor.patch form, as reported
// by the executable's version resource.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion reads a dotted version string such as "1.07.1" or
// "2.0.1.0". Missing components default to zero and anything past the
// third component (the build counter) is ignored.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) == 0 || parts[0] == "" {
		return Version{}, fmt.Errorf("empty version string")
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("parse version %q: %w", s, err)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Compare returns -1, 0 or 1 as v sorts before, equal to or after o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%02d.%d", v.Major, v.Minor, v.Patch)
}

type offsetEntry struct {
	since  Version
	offset uint64
}

// playerBlockOffsets lists, oldest first, the client releases that moved
// the local player block inside WorldChrMan. Lookup takes the newest entry
// at or below the detected version, so an unrecognized future build lands
// in the latest bucket and resolves against the most recent known layout.
// Supporting a new release is a row here, not new code.
var playerBlockOffsets = []offsetEntry{
	{since: Version{1, 0, 0}, offset: 0x18468},
	{since: Version{1, 7, 0}, offset: 0x1E508},
}

// PlayerBlockOffset returns the WorldChrMan offset of the player data
// block for the given client version. Selection always succeeds.
func PlayerBlockOffset(v Version) uint64 {
	off := playerBlockOffsets[0].offset
	for _, e := range playerBlockOffsets {
		if v.Compare(e.since) >= 0 {
			off = e.offset
		}
	}
	return off
}
