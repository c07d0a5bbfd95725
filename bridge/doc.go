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

// Package bridge connects the host's input-processing entry point to a
// rollback session.
//
// Every time the host is about to process input for a frame it calls
// OnHostInputEntry(). The bridge samples local input, runs the session and
// executes Save and Load events against the snapshot engine until an Advance
// event is available. The inputs of the Advance are returned to the host,
// which runs exactly one tick with them.
//
// A rollback produces several Advance events in one drain. They are served
// one per call, so the host re-simulates them on successive iterations of its
// loop. Replaying() reports whether the frame being run is a replay so that
// presentation of the frame can be skipped.
//
// When the session has no Advance to give, because the simulation is too far
// ahead of the peer or because the session hasn't started, the bridge polls
// the network in a busy loop for no longer than one frame duration. If there
// is still no Advance the host is told to hold and will call again on the next
// iteration of its loop.
package bridge
