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

// Package simhost is a deterministic simulated host. It implements the host
// ports over a flat byte slice that covers the FM2K address layout, and runs a
// small deterministic game tick each frame. It allows the core to be exercised
// end to end without the real host executable.
//
// The tick is not an emulation of the host. It is designed only to touch the
// same regions of memory in the same way: input history is appended every
// frame, the RNG is advanced with the same LCG, objects are created, moved and
// deleted in the object pool, and the frame counter is incremented.
package simhost

import (
	"encoding/binary"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/input"
)

// Patterns for errors returned by the simulated host.
const (
	AccessViolation   = "simhost: access violation at %#08x (%d bytes)"
	WrongIntercept    = "simhost: no function to intercept at %#08x"
	InterceptExists   = "simhost: intercept already installed"
	UnknownIntercept  = "simhost: unknown intercept handle (%d)"
	PoolExhausted     = "simhost: object pool exhausted"
	IllegalObjectSlot = "simhost: illegal object slot (%d)"
)

// object field offsets. the simulated host uses the same fields as the real
// host for the values the core cares about
const (
	fieldType     = 0
	fieldID       = 4
	fieldX        = 8
	fieldY        = 12
	fieldVX       = 16
	fieldVY       = 20
	fieldOwner    = 24
	fieldLifetime = 28
)

// object types used by the game tick
const (
	typePlayer     = 1
	typeProjectile = 2
	typeEffect     = 3
)

// the first slot used for projectiles and effects. slots below this are
// reserved for the players
const firstFreeSlot = 8

// slots of the two player objects
var playerSlot = [2]int{1, 2}

// playfield width
const stageWidth = 640

// Host is the simulated host. It is not safe for use from more than one
// goroutine, just like the real host.
type Host struct {
	layout host.Layout
	base   uint32
	mem    []byte

	unreadable []host.Region

	intercept host.Intercept
	handle    host.Handle

	// the intercept asked for another tick before presenting
	repeat bool

	// number of ticks run and number of ticks held by the intercept
	Ticks int
	Holds int

	// number of display frames presented by RunDisplayFrame()
	Presented int
}

// NewHost creates a simulated host for the layout. The memory is zeroed. Use
// Boot() to set the initial game state.
func NewHost(layout host.Layout) *Host {
	ext := layout.Extent()
	return &Host{
		layout: layout,
		base:   ext.Addr,
		mem:    make([]byte, ext.Size),
	}
}

// Layout returns the layout used by the host.
func (h *Host) Layout() host.Layout {
	return h.layout
}

func (h *Host) inRange(addr uint32, size int) bool {
	return addr >= h.base && size >= 0 && int(addr-h.base)+size <= len(h.mem)
}

// Readable implements the host.Memory interface.
func (h *Host) Readable(addr uint32, size int) bool {
	if !h.inRange(addr, size) {
		return false
	}
	r := host.Region{Addr: addr, Size: size}
	for _, u := range h.unreadable {
		if u.Overlaps(r) {
			return false
		}
	}
	return true
}

// Read implements the host.Memory interface.
func (h *Host) Read(addr uint32, p []byte) error {
	if !h.Readable(addr, len(p)) {
		return curated.Errorf(AccessViolation, addr, len(p))
	}
	copy(p, h.mem[addr-h.base:])
	return nil
}

// Write implements the host.Memory interface.
func (h *Host) Write(addr uint32, p []byte) error {
	if !h.Readable(addr, len(p)) {
		return curated.Errorf(AccessViolation, addr, len(p))
	}
	copy(h.mem[addr-h.base:], p)
	return nil
}

// SetUnreadable marks a region as unreadable (and unwritable). Calling with
// readable set to true removes every unreadable region equal to r.
func (h *Host) SetUnreadable(r host.Region, unreadable bool) {
	if unreadable {
		h.unreadable = append(h.unreadable, r)
		return
	}
	n := h.unreadable[:0]
	for _, u := range h.unreadable {
		if u.Addr != r.Addr || u.Size != r.Size {
			n = append(n, u)
		}
	}
	h.unreadable = n
}

// InstallIntercept implements the host.Installer interface. Only the
// input-processing function can be intercepted.
func (h *Host) InstallIntercept(addr uint32, cb host.Intercept) (host.Handle, error) {
	if addr != h.layout.ProcessInputs {
		return 0, curated.Errorf(WrongIntercept, addr)
	}
	if h.intercept != nil {
		return 0, curated.Errorf(InterceptExists)
	}
	h.intercept = cb
	h.handle++
	return h.handle, nil
}

// RemoveIntercept implements the host.Installer interface.
func (h *Host) RemoveIntercept(hnd host.Handle) error {
	if h.intercept == nil || hnd != h.handle {
		return curated.Errorf(UnknownIntercept, hnd)
	}
	h.intercept = nil
	return nil
}

// Resolve implements the host.Resolver interface.
func (h *Host) Resolve(c host.Capability) (uint32, error) {
	return h.layout.Resolve(c)
}

// the simulated host accesses its own memory directly. these functions assume
// the address is valid
func (h *Host) u32(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(h.mem[addr-h.base:])
}

func (h *Host) setU32(addr uint32, v uint32) {
	binary.LittleEndian.PutUint32(h.mem[addr-h.base:], v)
}

func (h *Host) u16(addr uint32) uint16 {
	return binary.LittleEndian.Uint16(h.mem[addr-h.base:])
}

func (h *Host) setU16(addr uint32, v uint16) {
	binary.LittleEndian.PutUint16(h.mem[addr-h.base:], v)
}

// Boot clears memory and sets up the start of a round. The seed is the
// initial value of the RNG.
func (h *Host) Boot(seed uint32) {
	for i := range h.mem {
		h.mem[i] = 0
	}

	h.setU32(h.layout.RNG.Addr, seed)
	h.setU32(h.scalar("p1 hp"), 1000)
	h.setU32(h.scalar("p2 hp"), 1000)
	h.setU32(h.scalar("round timer"), 99)
	h.setU32(h.scalar("game mode"), 3000)
	h.setU32(h.scalar("fm2k game mode"), 2)
	h.setU32(h.scalar("camera y"), 240)

	h.setObject(playerSlot[0], typePlayer, 160, 400, 0, 0)
	h.setObject(playerSlot[1], typePlayer, 480, 400, 0, 0)

	h.Ticks = 0
	h.Holds = 0
	h.Presented = 0
}

// scalar returns the address of a named scalar. it panics if the name is not
// in the layout because that is a programming error in this package
func (h *Host) scalar(name string) uint32 {
	for _, s := range h.layout.Scalars {
		if s.Name == name {
			return s.Addr
		}
	}
	panic("simhost: unknown scalar " + name)
}

func (h *Host) objectAddr(i int) uint32 {
	return h.layout.ObjectPool.Addr + uint32(i*host.ObjectSize)
}

func (h *Host) setObject(i int, typ uint32, x, y, vx, vy int32) {
	a := h.objectAddr(i)
	h.setU32(a+fieldType, typ)
	h.setU32(a+fieldID, uint32(i)|h.u32(h.layout.FrameCounter.Addr)<<10)
	h.setU32(a+fieldX, uint32(x))
	h.setU32(a+fieldY, uint32(y))
	h.setU32(a+fieldVX, uint32(vx))
	h.setU32(a+fieldVY, uint32(vy))
}

func (h *Host) deleteObject(i int) {
	a := h.objectAddr(i) - h.base
	for j := 0; j < host.ObjectSize; j++ {
		h.mem[int(a)+j] = 0
	}
}

func (h *Host) freeSlot() int {
	for i := firstFreeSlot; i < host.ObjectCount; i++ {
		if h.u32(h.objectAddr(i)+fieldType) == 0 {
			return i
		}
	}
	return -1
}

// SpawnObject places a new object in the first free slot and returns its
// index. The object's blob is filled with a pattern derived from its index so
// that objects are distinguishable byte for byte.
func (h *Host) SpawnObject(typ uint32, x, y, vx, vy int32) (int, error) {
	i := h.freeSlot()
	if i < 0 {
		return -1, curated.Errorf(PoolExhausted)
	}
	h.setObject(i, typ, x, y, vx, vy)
	a := h.objectAddr(i) - h.base
	for j := fieldLifetime + 4; j < host.ObjectSize; j++ {
		h.mem[int(a)+j] = byte(i + j)
	}
	return i, nil
}

// DeleteObject clears the object slot.
func (h *Host) DeleteObject(i int) error {
	if i < 0 || i >= host.ObjectCount {
		return curated.Errorf(IllegalObjectSlot, i)
	}
	h.deleteObject(i)
	return nil
}

// Corrupt flips a single bit of host memory. The bit is numbered from the
// least significant bit of the byte at addr.
func (h *Host) Corrupt(addr uint32, bit int) error {
	if !h.inRange(addr, 1) {
		return curated.Errorf(AccessViolation, addr, 1)
	}
	h.mem[addr-h.base] ^= 1 << (bit & 7)
	return nil
}

// Snapshot returns a copy of the host memory. Only useful for comparing two
// hosts in tests.
func (h *Host) Snapshot() []byte {
	c := make([]byte, len(h.mem))
	copy(c, h.mem)
	return c
}

// RunFrame runs one iteration of the host loop. The intercept is called first
// and, if it allows, one game tick is run. Returns true if a tick was run.
func (h *Host) RunFrame() bool {
	h.repeat = false
	if h.intercept != nil {
		switch h.intercept() {
		case host.Hold:
			h.Holds++
			return false
		case host.Repeat:
			h.repeat = true
		}
	}
	h.tick()
	h.Ticks++
	return true
}

// the most ticks run for a single display frame. the rollback window is far
// smaller than this
const maxTicksPerDisplay = 64

// RunDisplayFrame runs host loop iterations until a tick is run that the
// intercept has not asked to be repeated. Only the last tick is presented.
// Returns the number of ticks run, which is zero if the intercept held.
func (h *Host) RunDisplayFrame() int {
	n := 0
	for n < maxTicksPerDisplay {
		if !h.RunFrame() {
			break
		}
		n++
		if !h.repeat {
			break
		}
	}
	h.Presented++
	return n
}

// next value from the MSVC rand() LCG
func (h *Host) rand() uint32 {
	r := h.u32(h.layout.RNG.Addr)*0x343fd + 0x269ec3
	h.setU32(h.layout.RNG.Addr, r)
	return (r >> 16) & 0x7fff
}

func (h *Host) tick() {
	l := h.layout
	fc := h.u32(l.FrameCounter.Addr)

	var in [2]input.Input
	in[0] = input.Input(h.u32(l.P1Input.Addr)).Masked()
	in[1] = input.Input(h.u32(l.P2Input.Addr)).Masked()

	// input history is a ring of 1024 16-bit entries per player
	idx := fc % 1024
	pidx := (fc + 1023) % 1024
	var prev [2]input.Input
	prev[0] = input.Input(h.u16(l.P1History.Addr + pidx*2))
	prev[1] = input.Input(h.u16(l.P2History.Addr + pidx*2))
	h.setU16(l.P1History.Addr+idx*2, uint16(in[0]))
	h.setU16(l.P2History.Addr+idx*2, uint16(in[1]))

	c := l.InputChanges.Addr + (fc%8)*4
	h.setU16(c, uint16(in[0]^prev[0]))
	h.setU16(c+2, uint16(in[1]^prev[1]))

	rnd := h.rand()

	// players
	var px [2]int32
	for p := 0; p < 2; p++ {
		a := h.objectAddr(playerSlot[p])
		x := int32(h.u32(a + fieldX))
		switch {
		case in[p].Has(input.Left) && !in[p].Has(input.Right):
			x -= 3
		case in[p].Has(input.Right) && !in[p].Has(input.Left):
			x += 3
		}
		if x < 0 {
			x = 0
		} else if x > stageWidth {
			x = stageWidth
		}
		h.setU32(a+fieldX, uint32(x))
		px[p] = x

		action := uint32(0)
		if in[p].Has(input.Down) {
			action = 1
		}
		if p == 0 {
			h.setU32(h.scalar("p1 action state"), action)
		} else {
			h.setU32(h.scalar("p2 action state"), action)
		}

		// projectile on the press of A
		if in[p].Has(input.A) && !prev[p].Has(input.A) {
			vx := int32(6)
			if p == 1 {
				vx = -6
			}
			if i, err := h.SpawnObject(typeProjectile, x, 400, vx, 0); err == nil {
				h.setU32(h.objectAddr(i)+fieldOwner, uint32(p))
			}
		}
	}

	// random effects
	if rnd%8 == 0 {
		if i, err := h.SpawnObject(typeEffect, int32(rnd%stageWidth), 100, 0, 1); err == nil {
			h.setU32(h.objectAddr(i)+fieldLifetime, 10+rnd%20)
		}
	}

	hp := [2]uint32{h.u32(h.scalar("p1 hp")), h.u32(h.scalar("p2 hp"))}
	heads := uint32(0)
	for i := firstFreeSlot; i < host.ObjectCount; i++ {
		a := h.objectAddr(i)
		switch h.u32(a + fieldType) {
		case typeProjectile:
			x := int32(h.u32(a+fieldX)) + int32(h.u32(a+fieldVX))
			h.setU32(a+fieldX, uint32(x))
			target := 1 - h.u32(a+fieldOwner)
			d := x - px[target]
			if d > -12 && d < 12 {
				if hp[target] >= 10 {
					hp[target] -= 10
				}
				h.deleteObject(i)
			} else if x < 0 || x > stageWidth {
				h.deleteObject(i)
			} else {
				heads++
			}
		case typeEffect:
			life := h.u32(a + fieldLifetime)
			if life <= 1 {
				h.deleteObject(i)
			} else {
				h.setU32(a+fieldLifetime, life-1)
				h.setU32(a+fieldY, h.u32(a+fieldY)+h.u32(a+fieldVY))
				heads++
			}
		}
	}
	h.setU32(h.scalar("p1 hp"), hp[0])
	h.setU32(h.scalar("p2 hp"), hp[1])
	h.setU32(h.scalar("object list heads"), heads)

	// timers
	h.setU32(h.scalar("game timer"), h.u32(h.scalar("game timer"))+1)
	counter := h.u32(h.scalar("round timer counter")) + 1
	h.setU32(h.scalar("round timer counter"), counter)
	if counter%60 == 0 {
		if t := h.u32(h.scalar("round timer")); t > 0 {
			h.setU32(h.scalar("round timer"), t-1)
		}
	}
	h.setU32(h.scalar("camera x"), uint32((px[0]+px[1])/2))

	// runtime arrays
	h.setU32(l.HitJudge.Addr+(fc%256)*4, hp[0]<<16|hp[1]&0xffff)
	h.setU32(l.AnimationControl.Addr+(fc%0x4000)*4, rnd^uint32(in[0])<<16^uint32(in[1]))
	h.setU32(l.RenderState.Addr, fc)

	h.setU32(l.FrameCounter.Addr, fc+1)
}
