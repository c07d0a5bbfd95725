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

// Package rollback coordinates a two player rollback session.
//
// The Session type does not touch host memory. It tells the caller what to do
// through game events, which must be executed in order:
//
//	Save    save the host state to the snapshot slot and acknowledge it
//	        with AckSave()
//	Load    restore the host state from the snapshot slot
//	Advance run one frame of the host with the inputs in the event
//
// A typical frame on the game thread looks like this:
//
//	sess.PollNetwork()
//	for _, ev := range sess.DrainSessionEvents() {
//		// connection status, desyncs
//	}
//	sess.AddLocalInput(local, in)
//	evs, err := sess.DrainGameEvents()
//	for _, ev := range evs {
//		// execute event
//	}
//
// Inputs for the remote player are predicted by repeating the most recent
// input received. When the real input arrives and differs from the input that
// was used, the next call to DrainGameEvents() begins with a Load of the
// earliest affected frame followed by a replay of every frame since. The
// simulation is never more than the prediction window ahead of the last frame
// for which remote input is known. When it would be, DrainGameEvents() returns
// no events and the caller should hold the host.
//
// Once a frame can no longer be rolled back its checksum is final. Final
// checksums are exchanged with the peer and a mismatch is reported with the
// DesyncDetected session event.
//
// The network protocol is carried by a transport.Transport. Every message is a
// single datagram. The first byte of the payload is the message kind. An
// empty payload is a keepalive.
//
// Before inputs are exchanged the peers perform a handshake. Each peer sends
// a hello containing a random nonce and the session seed until the hello is
// answered. A guest adopts the host's seed. The peers then exchange sync
// messages and the session starts when both are in session.
//
// The session runs the local simulation slightly slower or slightly faster
// when it drifts ahead of or behind the peer. See FrameDuration().
package rollback
