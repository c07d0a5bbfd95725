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
	"net/netip"
	"time"

	"github.com/fm2knet/fm2knet/input"
)

// Handle identifies a player in the session. Handles are assigned in the
// order players are added, starting at zero.
type Handle int

// PlayerKind says whether a player is local or remote.
type PlayerKind int

// List of valid PlayerKind values.
const (
	Local PlayerKind = iota
	Remote
)

func (k PlayerKind) String() string {
	switch k {
	case Local:
		return "local"
	case Remote:
		return "remote"
	}
	return "unknown player kind"
}

// PeerState is the state of the connection with a remote player.
type PeerState int

// List of valid PeerState values.
const (
	Resolving PeerState = iota
	Connected
	Syncing
	InSession
	Disconnected
)

func (s PeerState) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Connected:
		return "connected"
	case Syncing:
		return "syncing"
	case InSession:
		return "in session"
	case Disconnected:
		return "disconnected"
	}
	return "unknown peer state"
}

// number of frames of input remembered for each player. must be larger than
// the number of frames that can be unacknowledged at any one time
const inputHistory = 256

type player struct {
	kind   PlayerKind
	handle Handle
	addr   netip.AddrPort

	// inputs for each frame. count is the number of contiguous frames known,
	// starting at frame zero. for local players these are the inputs that
	// have been committed to a frame and for remote players the inputs that
	// have been received
	inputs [inputHistory]input.Input
	count  uint32

	// the input that was used in the most recent Advance of each frame
	used [inputHistory]input.Input

	// the most recent local sample. committed to a frame by the next advance
	pending input.Input

	// connection with a remote player
	state    PeerState
	nonce    uint32
	started  time.Time
	lastRecv time.Time

	// count of our local frames acknowledged by the peer and the ack value
	// we last sent to the peer
	ack     uint32
	sentAck uint32

	// the local input count in the most recent input message and when it
	// was sent. lastSend is the time of the most recent datagram of any kind
	sentCount  uint32
	lastInputs time.Time
	lastSend   time.Time

	// the peer has sent a sync message or an input message
	gotSync  bool
	gotInput bool

	// disconnection has been reported
	reported bool
}

func (p *player) input(frame uint32) input.Input {
	return p.inputs[frame%inputHistory]
}

func (p *player) setInput(frame uint32, in input.Input) {
	p.inputs[frame%inputHistory] = in
}

// the input to use for the frame. the second return value is true if the
// input was predicted. remote inputs that have not been received are
// predicted to be the same as the most recent known input
func (p *player) inputFor(frame uint32) (input.Input, bool) {
	if frame < p.count {
		return p.input(frame), false
	}
	if p.count == 0 {
		return input.Neutral, true
	}
	return p.input(p.count - 1), true
}
