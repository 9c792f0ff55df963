package swapstore

import "github.com/cs452bohanli/phase3vm/vmerr"

// Disk is the external collaborator this module treats as out of scope:
// disk-driver read/write of fixed-size sectors. The swap store only ever
// reads or writes whole sectors addressed by (track, first sector, sector
// count); it never assumes anything about the medium underneath.
type Disk interface {
	/// Geometry reports the disk's fixed layout, queried once at Init
	/// rather than assumed, the way P2_DiskSize is queried rather than
	/// hardcoded.
	Geometry() (sectorSize, sectorsPerTrack, tracks int)

	/// ReadSectors reads sectorCount whole sectors starting at
	/// (track, firstSector) into buf, which must be exactly
	/// sectorCount*sectorSize bytes.
	ReadSectors(track, firstSector, sectorCount int, buf []byte) vmerr.Code

	/// WriteSectors writes buf (sectorCount*sectorSize bytes) to
	/// sectorCount whole sectors starting at (track, firstSector).
	WriteSectors(track, firstSector, sectorCount int, buf []byte) vmerr.Code
}
