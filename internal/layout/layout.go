// Package layout holds the handful of grid constants shared by every
// component so the super-block pitch and cube edge length can't drift
// apart between align, cube and pyramid.
package layout

const (
	// SuperblockSize is the fixed 4096x4096 super-block grid pitch
	// every grouped-tile container is keyed against (spec §3).
	SuperblockSize = 4096

	// CubeShardSize is the only shard size the pyramid path accepts
	// (spec §4.B/§4.C): the cube assembler and pyramid writer work in
	// fixed 1024^3 cubes.
	CubeShardSize = 1024

	// NumPyramidLevels is the number of scales written per cube,
	// ℓ in {0..5} (spec §4.C).
	NumPyramidLevels = 6
)
