// This file is part of FM2KNet.
//
// FM2KNet is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// FM2KNet is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with FM2KNet.  If not, see <https://www.gnu.org/licenses/>.

//go:build !windows

package shmem

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/fm2knet/fm2knet/curated"
)

// the directory holding named regions. /dev/shm is memory backed on linux
func regionPath(name string) string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return filepath.Join("/dev/shm", name)
	}
	return filepath.Join(os.TempDir(), name)
}

// Open maps the named region, creating it if it does not exist. A region that
// is smaller than size is grown.
func Open(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, curated.Errorf(IllegalSize, size)
	}

	pth := regionPath(name)
	f, err := os.OpenFile(pth, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, curated.Errorf(OpenFailed, name, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, curated.Errorf(OpenFailed, name, err)
	}
	if fi.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			return nil, curated.Errorf(OpenFailed, name, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, curated.Errorf(OpenFailed, name, err)
	}

	return &Region{
		name: name,
		data: data,
		closer: func() error {
			return unix.Munmap(data)
		},
	}, nil
}

// Remove the named region. Processes that have the region open are not
// affected.
func Remove(name string) error {
	err := os.Remove(regionPath(name))
	if err != nil && !os.IsNotExist(err) {
		return curated.Errorf("shmem: %v", err)
	}
	return nil
}
