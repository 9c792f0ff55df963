package swapstore

import "github.com/cs452bohanli/phase3vm/vmerr"

// MemDisk is an in-memory Disk, used by the test harness and unit tests in
// place of a real swap device. It is the "fake collaborator" half of a
// dependency-injection seam: production code talks to the Disk interface,
// tests talk to MemDisk.
type MemDisk struct {
	sectorSize      int
	sectorsPerTrack int
	tracks          int
	data            []byte
}

/// NewMemDisk builds a simulated disk of the given geometry.
func NewMemDisk(sectorSize, sectorsPerTrack, tracks int) *MemDisk {
	return &MemDisk{
		sectorSize:      sectorSize,
		sectorsPerTrack: sectorsPerTrack,
		tracks:          tracks,
		data:            make([]byte, sectorSize*sectorsPerTrack*tracks),
	}
}

func (d *MemDisk) Geometry() (sectorSize, sectorsPerTrack, tracks int) {
	return d.sectorSize, d.sectorsPerTrack, d.tracks
}

func (d *MemDisk) offset(track, firstSector int) int {
	return (track*d.sectorsPerTrack + firstSector) * d.sectorSize
}

func (d *MemDisk) ReadSectors(track, firstSector, sectorCount int, buf []byte) vmerr.Code {
	off := d.offset(track, firstSector)
	n := sectorCount * d.sectorSize
	if off < 0 || off+n > len(d.data) || len(buf) != n {
		return vmerr.InvalidParams
	}
	copy(buf, d.data[off:off+n])
	return vmerr.OK
}

func (d *MemDisk) WriteSectors(track, firstSector, sectorCount int, buf []byte) vmerr.Code {
	off := d.offset(track, firstSector)
	n := sectorCount * d.sectorSize
	if off < 0 || off+n > len(d.data) || len(buf) != n {
		return vmerr.InvalidParams
	}
	copy(d.data[off:off+n], buf)
	return vmerr.OK
}
