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

package ipc

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/snapshot"
)

// Patterns for errors returned by the ipc package.
const (
	RegionTooSmall = "ipc: region too small (%d bytes)"
	IllegalSlot    = "ipc: illegal slot (%d)"
	AddressTooLong = "ipc: address too long (%d bytes)"
)

// Region is the shared memory used by the Bridge. It is implemented by
// shmem.Region.
type Region interface {
	Bytes() []byte
}

// Role of the core in the session.
type Role uint8

// List of valid Role values.
const (
	Offline Role = iota
	Host
	Guest
)

func (r Role) String() string {
	switch r {
	case Offline:
		return "offline"
	case Host:
		return "host"
	case Guest:
		return "guest"
	}
	return "unknown"
}

// Status is published by the core every frame.
type Status struct {
	Frame uint32
	P1    input.Input
	P2    input.Input
	Valid bool

	Saves         int
	Loads         int
	AvgSaveMicros float64
	AvgLoadMicros float64

	Rollbacks           int
	MaxRollback         int
	RollbackFrames      int
	RollbacksThisSecond int
	Desyncs             int

	PlayerIndex uint8
	Role        Role
}

// Commands are written by the launcher and taken by the core.
type Commands struct {
	SaveState bool
	LoadState bool

	Rollback       bool
	RollbackFrames uint32

	SaveToSlot   bool
	LoadFromSlot bool
	TargetSlot   uint32

	ProfileRequested bool
	Profile          snapshot.Profile

	// the auto-save settings are not cleared when taken
	AutoSave         bool
	AutoSaveInterval uint32
}

// Any returns true if any of the request flags are set.
func (c Commands) Any() bool {
	return c.SaveState || c.LoadState || c.Rollback || c.SaveToSlot || c.LoadFromSlot || c.ProfileRequested
}

// NetworkConfig is written by the launcher before a session starts.
type NetworkConfig struct {
	Online        bool
	Host          bool
	RemoteAddress string
	Port          uint16
	InputDelay    uint8
}

// Bridge gives structured access to the launcher region.
type Bridge struct {
	data []byte
}

// NewBridge is the preferred method of initialisation for the Bridge type.
func NewBridge(region Region) (*Bridge, error) {
	data := region.Bytes()
	if len(data) < RegionSize {
		return nil, curated.Errorf(RegionTooSmall, len(data))
	}
	return &Bridge{data: data[:RegionSize]}, nil
}

func (b *Bridge) u8(off int) uint8 {
	return b.data[off]
}

func (b *Bridge) setU8(off int, v uint8) {
	b.data[off] = v
}

func (b *Bridge) flag(off int) bool {
	return b.data[off] != 0
}

func (b *Bridge) setFlag(off int, v bool) {
	if v {
		b.data[off] = 1
	} else {
		b.data[off] = 0
	}
}

func (b *Bridge) u16(off int) uint16 {
	return binary.LittleEndian.Uint16(b.data[off:])
}

func (b *Bridge) setU16(off int, v uint16) {
	binary.LittleEndian.PutUint16(b.data[off:], v)
}

func (b *Bridge) u32(off int) uint32 {
	return binary.LittleEndian.Uint32(b.data[off:])
}

func (b *Bridge) setU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(b.data[off:], v)
}

func (b *Bridge) f32(off int) float64 {
	return float64(math.Float32frombits(b.u32(off)))
}

func (b *Bridge) setF32(off int, v float64) {
	b.setU32(off, math.Float32bits(float32(v)))
}

// Publish the status of the core.
func (b *Bridge) Publish(st Status) {
	b.setU32(offFrame, st.Frame)
	b.setU16(offP1, uint16(st.P1))
	b.setU16(offP2, uint16(st.P2))
	b.setFlag(offValid, st.Valid)

	b.setU32(offSaves, uint32(st.Saves))
	b.setU32(offLoads, uint32(st.Loads))
	b.setF32(offAvgSave, st.AvgSaveMicros)
	b.setF32(offAvgLoad, st.AvgLoadMicros)
	b.setU32(offRollbacks, uint32(st.Rollbacks))
	b.setU32(offMaxRollback, uint32(st.MaxRollback))
	b.setU32(offTotalRollbackFrames, uint32(st.RollbackFrames))
	b.setU32(offRollbacksThisSecond, uint32(st.RollbacksThisSecond))
	b.setU32(offDesyncs, uint32(st.Desyncs))

	b.setU8(offPlayerIndex, st.PlayerIndex)
	b.setU8(offRole, uint8(st.Role))
}

// Status returns the most recently published status.
func (b *Bridge) Status() Status {
	return Status{
		Frame: b.u32(offFrame),
		P1:    input.Input(b.u16(offP1)),
		P2:    input.Input(b.u16(offP2)),
		Valid: b.flag(offValid),

		Saves:         int(b.u32(offSaves)),
		Loads:         int(b.u32(offLoads)),
		AvgSaveMicros: b.f32(offAvgSave),
		AvgLoadMicros: b.f32(offAvgLoad),

		Rollbacks:           int(b.u32(offRollbacks)),
		MaxRollback:         int(b.u32(offMaxRollback)),
		RollbackFrames:      int(b.u32(offTotalRollbackFrames)),
		RollbacksThisSecond: int(b.u32(offRollbacksThisSecond)),
		Desyncs:             int(b.u32(offDesyncs)),

		PlayerIndex: b.u8(offPlayerIndex),
		Role:        Role(b.u8(offRole)),
	}
}

// SetSlot publishes the status of a snapshot slot.
func (b *Bridge) SetSlot(i int, st snapshot.SlotStatus) error {
	if i < 0 || i >= NumSlots {
		return curated.Errorf(IllegalSlot, i)
	}

	off := offSlots + i*slotSize
	b.setU32(off+slotOccupied, 0)
	b.setFlag(off+slotOccupied, st.Occupied)
	b.setU32(off+slotFrame, st.Frame)
	binary.LittleEndian.PutUint64(b.data[off+slotTimestamp:], uint64(st.Timestamp))
	b.setU32(off+slotChecksum, st.Checksum)
	b.setU32(off+slotSizeKB, uint32(st.SizeKB))
	b.setU32(off+slotSave, uint32(st.LastSave))
	b.setU32(off+slotLoad, uint32(st.LastLoad))
	b.setU32(off+slotObjects, uint32(st.ActiveObjects))

	return nil
}

// Slot returns the published status of a snapshot slot. The Format field is
// not published.
func (b *Bridge) Slot(i int) (snapshot.SlotStatus, error) {
	if i < 0 || i >= NumSlots {
		return snapshot.SlotStatus{}, curated.Errorf(IllegalSlot, i)
	}

	off := offSlots + i*slotSize
	return snapshot.SlotStatus{
		Occupied:      b.flag(off + slotOccupied),
		Frame:         b.u32(off + slotFrame),
		Timestamp:     int64(binary.LittleEndian.Uint64(b.data[off+slotTimestamp:])),
		Checksum:      b.u32(off + slotChecksum),
		SizeKB:        int(b.u32(off + slotSizeKB)),
		LastSave:      int64(b.u32(off + slotSave)),
		LastLoad:      int64(b.u32(off + slotLoad)),
		ActiveObjects: int(b.u32(off + slotObjects)),
	}, nil
}

// TakeCommands returns the commands written by the launcher and clears the
// request flags.
func (b *Bridge) TakeCommands() Commands {
	cmd := Commands{
		SaveState:        b.flag(offSaveState),
		LoadState:        b.flag(offLoadState),
		Rollback:         b.flag(offRollback),
		RollbackFrames:   b.u32(offRollbackFrames),
		SaveToSlot:       b.flag(offSaveToSlot),
		LoadFromSlot:     b.flag(offLoadFromSlot),
		TargetSlot:       b.u32(offTargetSlot),
		ProfileRequested: b.flag(offProfileRequest),
		Profile:          snapshot.Profile(b.u8(offProfile)),
		AutoSave:         b.flag(offAutoSave),
		AutoSaveInterval: b.u32(offAutoSaveInterval),
	}

	b.setFlag(offSaveState, false)
	b.setFlag(offLoadState, false)
	b.setFlag(offRollback, false)
	b.setFlag(offSaveToSlot, false)
	b.setFlag(offLoadFromSlot, false)
	b.setFlag(offProfileRequest, false)

	return cmd
}

// Request is used by the launcher to write commands. Request flags already
// set in the region are not cleared.
func (b *Bridge) Request(cmd Commands) {
	if cmd.SaveState {
		b.setFlag(offSaveState, true)
	}
	if cmd.LoadState {
		b.setFlag(offLoadState, true)
	}
	if cmd.Rollback {
		b.setU32(offRollbackFrames, cmd.RollbackFrames)
		b.setFlag(offRollback, true)
	}
	if cmd.SaveToSlot || cmd.LoadFromSlot {
		b.setU32(offTargetSlot, cmd.TargetSlot)
	}
	if cmd.SaveToSlot {
		b.setFlag(offSaveToSlot, true)
	}
	if cmd.LoadFromSlot {
		b.setFlag(offLoadFromSlot, true)
	}
	if cmd.ProfileRequested {
		b.setU8(offProfile, uint8(cmd.Profile))
		b.setFlag(offProfileRequest, true)
	}
	b.setFlag(offAutoSave, cmd.AutoSave)
	b.setU32(offAutoSaveInterval, cmd.AutoSaveInterval)
}

// NetworkConfig returns the network configuration if it has been updated
// since the last call. The updated flag is cleared.
func (b *Bridge) NetworkConfig() (NetworkConfig, bool) {
	if !b.flag(offConfigUpdated) {
		return NetworkConfig{}, false
	}
	b.setFlag(offConfigUpdated, false)

	addr := b.data[offAddress : offAddress+MaxAddress]
	if n := bytes.IndexByte(addr, 0); n >= 0 {
		addr = addr[:n]
	}

	return NetworkConfig{
		Online:        b.flag(offOnline),
		Host:          b.flag(offHost),
		RemoteAddress: string(addr),
		Port:          b.u16(offPort),
		InputDelay:    b.u8(offInputDelay),
	}, true
}

// Configure is used by the launcher to write the network configuration.
func (b *Bridge) Configure(cfg NetworkConfig) error {
	if len(cfg.RemoteAddress) >= MaxAddress {
		return curated.Errorf(AddressTooLong, len(cfg.RemoteAddress))
	}

	b.setFlag(offOnline, cfg.Online)
	b.setFlag(offHost, cfg.Host)
	addr := b.data[offAddress : offAddress+MaxAddress]
	for i := range addr {
		addr[i] = 0
	}
	copy(addr, cfg.RemoteAddress)
	b.setU16(offPort, cfg.Port)
	b.setU8(offInputDelay, cfg.InputDelay)
	b.setFlag(offConfigUpdated, true)

	return nil
}
