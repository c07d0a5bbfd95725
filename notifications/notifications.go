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

package notifications

// Notice describes a session level happening that the user might want to
// know about.
type Notice string

// List of defined notifications.
const (
	// the connection with the peer has changed state. the first argument
	// is the player handle of the peer
	NotifyPeerConnected     Notice = "NotifyPeerConnected"
	NotifyPeerSynchronizing Notice = "NotifyPeerSynchronizing"
	NotifyPeerDisconnected  Notice = "NotifyPeerDisconnected"

	// both peers are synchronized and game frames are running
	NotifySessionStarted Notice = "NotifySessionStarted"

	// the checksums of a confirmed frame differ. the first argument is the
	// frame number
	NotifyDesync Notice = "NotifyDesync"

	// a rollback of the maximum depth has been performed
	NotifyRollbackLimit Notice = "NotifyRollbackLimit"

	// a debug save or load has been performed on the numbered slot
	NotifySlotSaved  Notice = "NotifySlotSaved"
	NotifySlotLoaded Notice = "NotifySlotLoaded"
)

// Notify is implemented by the application embedding the core. The
// arguments are specific to the notice.
type Notify interface {
	Notify(notice Notice, args ...interface{}) error
}
