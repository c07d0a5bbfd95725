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

// RegionName is the name of the named shared memory region.
const RegionName = "FM2K_InputSharedMemory"

// NumSlots is the number of slot records in the region.
const NumSlots = 8

// MaxAddress is the size of the remote address field, including the
// terminating zero.
const MaxAddress = 64

// offsets of the fields in the region
const (
	offFrame = 0
	offP1    = 4
	offP2    = 6
	offValid = 8

	offOnline        = 9
	offHost          = 10
	offConfigUpdated = 11
	offAddress       = 12
	offPort          = offAddress + MaxAddress
	offInputDelay    = offPort + 2

	// debug commands
	offSaveState        = 80
	offLoadState        = 81
	offRollback         = 82
	offSaveToSlot       = 83
	offLoadFromSlot     = 84
	offAutoSave         = 85
	offProfileRequest   = 86
	offProfile          = 87
	offRollbackFrames   = 88
	offTargetSlot       = 92
	offAutoSaveInterval = 96

	offPlayerIndex = 100
	offRole        = 101

	offSlots = 104

	// performance counters
	offSaves               = offSlots + NumSlots*slotSize
	offLoads               = offSaves + 4
	offAvgSave             = offLoads + 4
	offAvgLoad             = offAvgSave + 4
	offRollbacks           = offAvgLoad + 4
	offMaxRollback         = offRollbacks + 4
	offTotalRollbackFrames = offMaxRollback + 4
	offRollbacksThisSecond = offTotalRollbackFrames + 4
	offDesyncs             = offRollbacksThisSecond + 4

	// RegionSize is the minimum size of a region used by the Bridge
	RegionSize = offDesyncs + 4
)

// offsets of the fields in a slot record
const (
	slotOccupied  = 0
	slotFrame     = 4
	slotTimestamp = 8
	slotChecksum  = 16
	slotSizeKB    = 20
	slotSave      = 24
	slotLoad      = 28
	slotObjects   = 32
	slotSize      = 40
)
