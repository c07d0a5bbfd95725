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

package shmem

import (
	"sync/atomic"
	"unsafe"

	"github.com/fm2knet/fm2knet/curated"
)

// Patterns for errors returned by the package.
const (
	IllegalSize = "shmem: illegal size (%d)"
	OpenFailed  = "shmem: cannot open %s: %v"
	Closed      = "shmem: region is closed"
)

// Region is a block of shared memory.
type Region struct {
	name   string
	data   []byte
	closer func() error
}

// NewAnonymous creates a region that is shared only within the process. The
// memory is zeroed and aligned to eight bytes.
func NewAnonymous(size int) (*Region, error) {
	if size <= 0 {
		return nil, curated.Errorf(IllegalSize, size)
	}

	// allocating as uint64 guarantees the alignment of the atomic words
	words := make([]uint64, (size+7)/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)

	return &Region{
		name: "anonymous",
		data: data,
	}, nil
}

// Name returns the name of the region.
func (r *Region) Name() string {
	return r.name
}

// Bytes returns the contents of the region. The slice must not be used after
// the region has been closed.
func (r *Region) Bytes() []byte {
	return r.data
}

// Size of the region in bytes.
func (r *Region) Size() int {
	return len(r.data)
}

// Close the region. For named regions the mapping is removed but the named
// object itself remains until Remove() is called.
func (r *Region) Close() error {
	if r.data == nil {
		return curated.Errorf(Closed)
	}
	r.data = nil
	if r.closer != nil {
		return r.closer()
	}
	return nil
}

func (r *Region) word(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&r.data[off]))
}

// LoadUint32 atomically reads the 32-bit word at the offset.
func (r *Region) LoadUint32(off int) uint32 {
	return atomic.LoadUint32(r.word(off))
}

// StoreUint32 atomically writes the 32-bit word at the offset.
func (r *Region) StoreUint32(off int, v uint32) {
	atomic.StoreUint32(r.word(off), v)
}

// AddUint32 atomically adds delta to the 32-bit word at the offset and returns
// the new value. Subtract with AddUint32(off, ^uint32(n-1)).
func (r *Region) AddUint32(off int, delta uint32) uint32 {
	return atomic.AddUint32(r.word(off), delta)
}
