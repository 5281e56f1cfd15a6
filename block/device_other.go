// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !linux

package block

import (
	"fmt"
	"os"
)

// NewFromPath returns a new Device opened read-write from the specified path.
//
// Only regular files are supported on this platform.
func NewFromPath(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	dev, err := NewFromFile(f)
	if err != nil {
		f.Close() //nolint:errcheck

		return nil, err
	}

	dev.ownedFile = true

	return dev, nil
}

func probeGeometry(f *os.File) (uint64, uint, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}

	if !st.Mode().IsRegular() {
		return 0, 0, fmt.Errorf("%s: block devices are not supported on this platform", f.Name())
	}

	return uint64(st.Size()), DefaultBlockSize, nil
}

// GetIOSize returns blockdevice optimal I/O size in bytes.
func (d *Device) GetIOSize() (uint, error) {
	return DefaultBlockSize, nil
}
