// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package block provides support for operations on blockdevices.
package block

import (
	"errors"
	"fmt"
	"os"
)

// DefaultBlockSize is the default block size in bytes.
const DefaultBlockSize = 512

// ErrInvalidBufferSize indicates a sector I/O buffer whose length is not a whole sector.
var ErrInvalidBufferSize = errors.New("invalid buffer size")

// Device wraps blockdevice operations.
//
// ReadSector/WriteSector do single-sector I/O with a buffer size check;
// ReadAt/WriteAt pass arbitrary byte ranges to the file unchecked. Raw I/O
// errors from the underlying file pass through untouched.
type Device struct {
	f *os.File

	size       uint64
	sectorSize uint

	ownedFile bool
}

// NewFromFile returns a new Device from the specified file.
//
// The file is not owned by the Device and is not closed by Close.
func NewFromFile(f *os.File) (*Device, error) {
	size, sectorSize, err := probeGeometry(f)
	if err != nil {
		return nil, err
	}

	return &Device{
		f:          f,
		size:       size,
		sectorSize: sectorSize,
	}, nil
}

// GetSize returns blockdevice size in bytes.
func (d *Device) GetSize() uint64 {
	return d.size
}

// GetSectorSize returns blockdevice sector size in bytes.
func (d *Device) GetSectorSize() uint {
	return d.sectorSize
}

// ReadAt implements io.ReaderAt.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	return d.f.WriteAt(p, off)
}

// ReadSector reads a whole sector at the given LBA.
func (d *Device) ReadSector(lba uint64, buf []byte) error {
	if uint(len(buf)) != d.sectorSize {
		return fmt.Errorf("%w: %d bytes, sector size %d", ErrInvalidBufferSize, len(buf), d.sectorSize)
	}

	n, err := d.f.ReadAt(buf, int64(lba)*int64(d.sectorSize))
	if err != nil {
		return err
	}

	if uint(n) != d.sectorSize {
		return fmt.Errorf("expected to read %d bytes, read %d", d.sectorSize, n)
	}

	return nil
}

// WriteSector writes a whole sector at the given LBA.
func (d *Device) WriteSector(lba uint64, buf []byte) error {
	if uint(len(buf)) != d.sectorSize {
		return fmt.Errorf("%w: %d bytes, sector size %d", ErrInvalidBufferSize, len(buf), d.sectorSize)
	}

	n, err := d.f.WriteAt(buf, int64(lba)*int64(d.sectorSize))
	if err != nil {
		return err
	}

	if uint(n) != d.sectorSize {
		return fmt.Errorf("expected to write %d bytes, wrote %d", d.sectorSize, n)
	}

	return nil
}

// Sync forces durability of all prior writes.
func (d *Device) Sync() error {
	return d.f.Sync()
}

// Close releases the file handle if the Device owns it.
func (d *Device) Close() error {
	if !d.ownedFile {
		return nil
	}

	return d.f.Close()
}

func isPowerOf2[T uint | uint32 | uint64](n T) bool {
	return n&(n-1) == 0
}
