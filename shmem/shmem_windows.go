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

//go:build windows

package shmem

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/fm2knet/fm2knet/curated"
)

// Open maps the named region, creating it if it does not exist. The region is
// backed by the paging file and exists for as long as one process has it
// open.
func Open(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, curated.Errorf(IllegalSize, size)
	}

	n, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, curated.Errorf(OpenFailed, name, err)
	}

	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, uint32(size), n)
	if h == 0 {
		return nil, curated.Errorf(OpenFailed, name, err)
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, curated.Errorf(OpenFailed, name, err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	return &Region{
		name: name,
		data: data,
		closer: func() error {
			err := windows.UnmapViewOfFile(addr)
			_ = windows.CloseHandle(h)
			return err
		},
	}, nil
}

// Remove does nothing on windows. The region disappears when the last handle
// to it is closed.
func Remove(name string) error {
	return nil
}
