package swapstore

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/cs452bohanli/phase3vm/vmerr"
)

// FileDisk is a Disk backed by a real file, read and written sector-range
// at a time with positioned pread/pwrite (golang.org/x/sys/unix), so
// concurrent pagers never need to seek-then-read/write as two separate
// syscalls around a shared file offset. It is a file-backed alternative to
// MemDisk; nothing in this module outside its own tests constructs one, and
// the harness uses MemDisk.
type FileDisk struct {
	f               *os.File
	sectorSize      int
	sectorsPerTrack int
	tracks          int
}

/// OpenFileDisk opens (creating if necessary) a file at path sized to hold
/// exactly the given geometry, extending it with zero bytes if it is
/// shorter than that.
func OpenFileDisk(path string, sectorSize, sectorsPerTrack, tracks int) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	size := int64(sectorSize) * int64(sectorsPerTrack) * int64(tracks)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDisk{f: f, sectorSize: sectorSize, sectorsPerTrack: sectorsPerTrack, tracks: tracks}, nil
}

/// Close releases the underlying file handle.
func (d *FileDisk) Close() error { return d.f.Close() }

func (d *FileDisk) Geometry() (sectorSize, sectorsPerTrack, tracks int) {
	return d.sectorSize, d.sectorsPerTrack, d.tracks
}

func (d *FileDisk) offset(track, firstSector int) int64 {
	return int64(track*d.sectorsPerTrack+firstSector) * int64(d.sectorSize)
}

func (d *FileDisk) ReadSectors(track, firstSector, sectorCount int, buf []byte) vmerr.Code {
	want := sectorCount * d.sectorSize
	if len(buf) != want {
		return vmerr.InvalidParams
	}
	n, err := unix.Pread(int(d.f.Fd()), buf, d.offset(track, firstSector))
	if err != nil || n != want {
		return vmerr.OutOfSwap
	}
	return vmerr.OK
}

func (d *FileDisk) WriteSectors(track, firstSector, sectorCount int, buf []byte) vmerr.Code {
	want := sectorCount * d.sectorSize
	if len(buf) != want {
		return vmerr.InvalidParams
	}
	n, err := unix.Pwrite(int(d.f.Fd()), buf, d.offset(track, firstSector))
	if err != nil || n != want {
		return vmerr.OutOfSwap
	}
	return vmerr.OK
}
