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

package objects

import "fmt"

// EventKind describes what happened to an object.
type EventKind int

// List of valid EventKind values.
const (
	Created EventKind = iota
	Deleted
	Modified
	TypeChanged
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	case TypeChanged:
		return "type changed"
	}
	return "unknown event"
}

// Event records a change to an entry in the object pool.
type Event struct {
	Frame    uint32
	Index    int
	Kind     EventKind
	Type     uint32
	Checksum uint32
}

func (e Event) String() string {
	return fmt.Sprintf("%d: object %d %s (type %d, checksum %08x)", e.Frame, e.Index, e.Kind, e.Type, e.Checksum)
}

// maximum number of events kept. the oldest event is overwritten when the
// ring is full
const maxEvents = 256

type events struct {
	ring  [maxEvents]Event
	start int
	n     int
}

func (ev *events) reset() {
	ev.start = 0
	ev.n = 0
}

func (ev *events) push(e Event) {
	if ev.n < maxEvents {
		ev.ring[(ev.start+ev.n)%maxEvents] = e
		ev.n++
		return
	}
	ev.ring[ev.start] = e
	ev.start = (ev.start + 1) % maxEvents
}

func (ev *events) list() []Event {
	l := make([]Event, ev.n)
	for i := range l {
		l[i] = ev.ring[(ev.start+i)%maxEvents]
	}
	return l
}
