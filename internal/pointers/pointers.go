// Package pointers owns the memory map of the game client: the static
// singleton addresses, the per-release player block offset and the pointer
// chains built from them. Everything here is data; the walking logic lives
// in internal/memedit.
package pointers

import (
	"github.com/rbignon/ER-Route-tracker/internal/memedit"
)

// Static singleton addresses relative to the module base. These have been
// stable across every supported release; the layout drift between releases
// is confined to the player block offset (see versions.go).
const (
	worldChrManRVA = 0x3D65F88
	gameDataManRVA = 0x3D5DF38
)

// Offsets shared by all versions.
const (
	chrModulesOff  = 0x190 // player block -> module bank
	chrPhysicsOff  = 0x68  // module bank -> physics module
	chrPositionOff = 0x70  // physics module -> world position (3 floats)
	chrRideOff     = 0xE8  // module bank -> ride module
	mapIDOff       = 0x6C8 // player block -> packed map id

	gameDataDeathsOff = 0x94 // GameDataMan -> death counter
	gameDataIGTOff    = 0xA0 // GameDataMan -> in-game timer, millis
)

// Ride module offsets, sampled only by the torrent debug snapshot.
const (
	rideParamIDOff  = 0x18
	rideEnabledOff  = 0x30
	rideRidingOff   = 0x32
	rideIsMountOff  = 0x33
	rideNoAreaOff   = 0x34
	rideStateOff    = 0x38
	rideMountChrOff = 0x40
	mountChrHPOff   = 0x138
)

// Set bundles every chain the tracker reads. Chains are built once at
// startup from the module base and the detected client version, then
// resolved each tick without further allocation.
type Set struct {
	// Required per sample; a failed resolve skips the tick.
	Position *memedit.Chain
	MapID    *memedit.Chain

	// Auxiliary; failures default instead of skipping.
	IsRiding *memedit.Chain

	// IGT is the in-game timer. It doubles as the readiness signal: the
	// timer stays at zero until a world is loaded.
	IGT        *memedit.Chain
	DeathCount *memedit.Chain

	Torrent TorrentChains
}

// TorrentChains are the mount diagnostics behind the debug command. Each
// resolves independently; a broken chain surfaces as a null field in the
// snapshot, never as an error.
type TorrentChains struct {
	RideParamID      *memedit.Chain
	RidingEnabled    *memedit.Chain
	IsRiding         *memedit.Chain
	IsMount          *memedit.Chain
	MountState       *memedit.Chain
	MountHP          *memedit.Chain
	InsideNoRideArea *memedit.Chain
}

// NewSet builds the chain set for one client instance. moduleBase is the
// load address of the game executable and v selects the player block
// layout for this release.
func NewSet(r memedit.Reader, moduleBase uint64, v Version) *Set {
	wcm := moduleBase + worldChrManRVA
	gdm := moduleBase + gameDataManRVA
	player := PlayerBlockOffset(v)

	return &Set{
		Position:   memedit.NewChain(r, wcm, player, chrModulesOff, chrPhysicsOff, chrPositionOff),
		MapID:      memedit.NewChain(r, wcm, player, mapIDOff),
		IsRiding:   memedit.NewChain(r, wcm, player, chrModulesOff, chrRideOff, rideRidingOff),
		IGT:        memedit.NewChain(r, gdm, gameDataIGTOff),
		DeathCount: memedit.NewChain(r, gdm, gameDataDeathsOff),
		Torrent: TorrentChains{
			RideParamID:      memedit.NewChain(r, wcm, player, chrModulesOff, chrRideOff, rideParamIDOff),
			RidingEnabled:    memedit.NewChain(r, wcm, player, chrModulesOff, chrRideOff, rideEnabledOff),
			IsRiding:         memedit.NewChain(r, wcm, player, chrModulesOff, chrRideOff, rideRidingOff),
			IsMount:          memedit.NewChain(r, wcm, player, chrModulesOff, chrRideOff, rideIsMountOff),
			MountState:       memedit.NewChain(r, wcm, player, chrModulesOff, chrRideOff, rideStateOff),
			MountHP:          memedit.NewChain(r, wcm, player, chrModulesOff, chrRideOff, rideMountChrOff, mountChrHPOff),
			InsideNoRideArea: memedit.NewChain(r, wcm, player, chrModulesOff, chrRideOff, rideNoAreaOff),
		},
	}
}
