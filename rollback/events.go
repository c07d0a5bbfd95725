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

package rollback

import (
	"fmt"

	"github.com/fm2knet/fm2knet/input"
)

// GameEventKind is the kind of a GameEvent.
type GameEventKind int

// List of valid GameEventKind values.
const (
	Save GameEventKind = iota
	Load
	Advance
)

func (k GameEventKind) String() string {
	switch k {
	case Save:
		return "save"
	case Load:
		return "load"
	case Advance:
		return "advance"
	}
	return "unknown game event"
}

// GameEvent is an instruction to the caller. Game events must be executed in
// the order they are returned by DrainGameEvents().
//
// A Save event asks the caller to save the host state to the snapshot slot
// and then to call AckSave(). A Load event asks the caller to restore the
// state from the slot. An Advance event asks the caller to run one frame of
// the host with the inputs.
type GameEvent struct {
	Kind  GameEventKind
	Frame uint32

	// snapshot slot for Save and Load events
	Slot int

	// inputs for an Advance event in player handle order
	Inputs [2]input.Input

	// Replay is true if the Advance event is part of a rollback
	Replay bool
}

func (e GameEvent) String() string {
	switch e.Kind {
	case Save, Load:
		return fmt.Sprintf("%s %d (slot %d)", e.Kind, e.Frame, e.Slot)
	case Advance:
		r := ""
		if e.Replay {
			r = " replay"
		}
		return fmt.Sprintf("advance %d [%s, %s]%s", e.Frame, e.Inputs[0], e.Inputs[1], r)
	}
	return e.Kind.String()
}

// SessionEventKind is the kind of a SessionEvent.
type SessionEventKind int

// List of valid SessionEventKind values.
const (
	PeerConnected SessionEventKind = iota
	PeerSynchronizing
	PeerSynchronized
	SessionStarted
	PeerDisconnected
	DesyncDetected
)

func (k SessionEventKind) String() string {
	switch k {
	case PeerConnected:
		return "peer connected"
	case PeerSynchronizing:
		return "peer synchronizing"
	case PeerSynchronized:
		return "peer synchronized"
	case SessionStarted:
		return "session started"
	case PeerDisconnected:
		return "peer disconnected"
	case DesyncDetected:
		return "desync detected"
	}
	return "unknown session event"
}

// SessionEvent reports a change in the state of the session.
type SessionEvent struct {
	Kind   SessionEventKind
	Handle Handle

	// frame and checksums for DesyncDetected
	Frame  uint32
	Local  uint32
	Remote uint32
}

func (e SessionEvent) String() string {
	switch e.Kind {
	case DesyncDetected:
		return fmt.Sprintf("desync detected at frame %d with player %d (%08x != %08x)", e.Frame, e.Handle, e.Local, e.Remote)
	case SessionStarted:
		return e.Kind.String()
	}
	return fmt.Sprintf("%s (player %d)", e.Kind, e.Handle)
}
