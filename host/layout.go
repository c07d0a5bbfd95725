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

package host

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/fm2knet/fm2knet/curated"
)

// Region is a named range of host memory.
type Region struct {
	Name string
	Addr uint32
	Size int
}

func (r Region) String() string {
	return fmt.Sprintf("%s [%#08x, %#08x)", r.Name, r.Addr, r.End())
}

// End returns the address one past the end of the region.
func (r Region) End() uint32 {
	return r.Addr + uint32(r.Size)
}

// Overlaps returns true if the two regions share at least one byte.
func (r Region) Overlaps(o Region) bool {
	return r.Addr < o.End() && o.Addr < r.End()
}

// Object pool geometry.
const (
	ObjectCount = 1024
	ObjectSize  = 382
	PoolSize    = ObjectCount * ObjectSize
)

// Layout is the address map of the host. The zero value is not useful. Use
// DefaultLayout().
type Layout struct {
	// the function the intercept is installed over
	ProcessInputs uint32

	// addresses of the host functions named by the Initialize and Reset
	// capabilities. the core does not call them but records them so that
	// the intercept installer and the state dump can refer to them
	InitializeFunc uint32
	ResetFunc      uint32

	// input words written by the core at every intercept
	P1Input Region
	P2Input Region

	FrameCounter Region
	RNG          Region

	// per-player input history and the input change buffer
	P1History    Region
	P2History    Region
	InputChanges Region

	// small values that make up the core of the game state
	Scalars []Region

	ObjectPool Region

	// essential runtime arrays
	HitJudge         Region
	RenderState      Region
	AnimationControl Region

	// the entire player data slot area. AnimationControl is the head of it
	PlayerData Region
}

// DefaultLayout returns the address map of the FM2K engine.
func DefaultLayout() Layout {
	return Layout{
		ProcessInputs:  0x4146d0,
		InitializeFunc: 0x412670,
		ResetFunc:      0x42cc30,

		P1Input: Region{Name: "p1 input", Addr: 0x4259c0, Size: 4},
		P2Input: Region{Name: "p2 input", Addr: 0x4259c4, Size: 4},

		FrameCounter: Region{Name: "frame counter", Addr: 0x447ee0, Size: 4},
		RNG:          Region{Name: "rng", Addr: 0x41fb1c, Size: 4},

		P1History:    Region{Name: "p1 input history", Addr: 0x4280e0, Size: 2048},
		P2History:    Region{Name: "p2 input history", Addr: 0x4290e0, Size: 2048},
		InputChanges: Region{Name: "input changes", Addr: 0x447f60, Size: 32},

		Scalars: []Region{
			{Name: "p1 hp", Addr: 0x47010c, Size: 4},
			{Name: "p2 hp", Addr: 0x47030c, Size: 4},
			{Name: "round timer", Addr: 0x470060, Size: 4},
			{Name: "game timer", Addr: 0x470044, Size: 4},
			{Name: "game mode", Addr: 0x470054, Size: 4},
			{Name: "fm2k game mode", Addr: 0x470040, Size: 4},
			{Name: "character select mode", Addr: 0x470058, Size: 4},
			{Name: "round setting", Addr: 0x470068, Size: 4},
			{Name: "p1 round count", Addr: 0x4700ec, Size: 4},
			{Name: "p1 round state", Addr: 0x4700f0, Size: 4},
			{Name: "p1 action state", Addr: 0x47019c, Size: 4},
			{Name: "p2 action state", Addr: 0x4701a0, Size: 4},
			{Name: "camera x", Addr: 0x447f2c, Size: 4},
			{Name: "camera y", Addr: 0x447f30, Size: 4},
			{Name: "timer countdown 1", Addr: 0x4456e4, Size: 4},
			{Name: "timer countdown 2", Addr: 0x447d91, Size: 4},
			{Name: "object list heads", Addr: 0x430240, Size: 4},
			{Name: "object list tails", Addr: 0x430244, Size: 4},
			{Name: "round timer counter", Addr: 0x424f00, Size: 4},
		},

		ObjectPool: Region{Name: "object pool", Addr: 0x4701e0, Size: PoolSize},

		HitJudge:         Region{Name: "hit judge tables", Addr: 0x42470c, Size: 0xba14},
		RenderState:      Region{Name: "render state", Addr: 0x4d1d60, Size: 0x20},
		AnimationControl: Region{Name: "animation control", Addr: 0x4d1d80, Size: 0x18000},
		PlayerData:       Region{Name: "player data slots", Addr: 0x4d1d80, Size: 0x701f8},
	}
}

// WithResolver returns a copy of the layout with the addresses of the
// resolvable regions replaced by the values returned by the resolver. The
// second player's input history is assumed to follow the first.
func (l Layout) WithResolver(r Resolver) (Layout, error) {
	for _, c := range Capabilities {
		addr, err := r.Resolve(c)
		if err != nil {
			return l, curated.Errorf("host: resolve %v: %v", c, err)
		}
		switch c {
		case Initialize:
			l.InitializeFunc = addr
		case Reset:
			l.ResetFunc = addr
		case ReadRNG:
			l.RNG.Addr = addr
		case ObjectPool:
			l.ObjectPool.Addr = addr
		case InputBuffers:
			d := l.P2History.Addr - l.P1History.Addr
			l.P1History.Addr = addr
			l.P2History.Addr = addr + d
		}
	}
	return l, nil
}

// Resolve implements the Resolver interface for the layout itself. Useful for
// hosts that have no resolver of their own.
func (l Layout) Resolve(c Capability) (uint32, error) {
	switch c {
	case Initialize:
		return l.InitializeFunc, nil
	case Reset:
		return l.ResetFunc, nil
	case ReadRNG:
		return l.RNG.Addr, nil
	case ObjectPool:
		return l.ObjectPool.Addr, nil
	case InputBuffers:
		return l.P1History.Addr, nil
	}
	return 0, curated.Errorf("host: unknown capability (%d)", c)
}

// Extent returns the smallest region containing every region in the layout.
func (l Layout) Extent() Region {
	all := l.Regions()
	ext := all[0]
	end := ext.End()
	for _, r := range all[1:] {
		if r.Addr < ext.Addr {
			ext.Addr = r.Addr
		}
		if r.End() > end {
			end = r.End()
		}
	}
	ext.Name = "extent"
	ext.Size = int(end - ext.Addr)
	return ext
}

// Regions returns every region in the layout sorted by address.
func (l Layout) Regions() []Region {
	all := []Region{
		l.P1Input, l.P2Input, l.FrameCounter, l.RNG,
		l.P1History, l.P2History, l.InputChanges,
		l.ObjectPool, l.HitJudge, l.RenderState, l.AnimationControl, l.PlayerData,
	}
	all = append(all, l.Scalars...)
	sort.Slice(all, func(i, j int) bool {
		return all[i].Addr < all[j].Addr
	})
	return all
}

// ReadU32 is a convenience function for reading a little-endian 32-bit value
// from host memory.
func ReadU32(mem Memory, addr uint32) (uint32, error) {
	var b [4]byte
	if err := mem.Read(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// WriteU32 is a convenience function for writing a little-endian 32-bit value
// to host memory.
func WriteU32(mem Memory, addr uint32, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return mem.Write(addr, b[:])
}
