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

package css

import (
	"encoding/binary"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/input"
)

// Magic is the first word of every message.
const Magic = 0xC55C55C5

// MessageSize is the size of a message in bytes.
const MessageSize = 16

// Cursor is the selection state of one player.
type Cursor struct {
	X         uint8
	Y         uint8
	Confirmed bool

	// the button used to confirm the selection. one of the attack buttons A
	// to F
	Color input.Input
}

// Message contains the cursors of both players.
type Message struct {
	P1 Cursor
	P2 Cursor
}

// ColorButtons lists the valid values for Cursor.Color.
var ColorButtons = []input.Input{input.A, input.B, input.C, input.D, input.E, input.F}

// ValidColor returns true if the input is zero or one of the attack buttons.
func ValidColor(in input.Input) bool {
	if in == input.Neutral {
		return true
	}
	for _, c := range ColorButtons {
		if in == c {
			return true
		}
	}
	return false
}

func putCursor(b []byte, c Cursor) {
	b[0] = c.X
	b[1] = c.Y
	b[2] = 0
	if c.Confirmed {
		b[2] = 1
	}
	b[3] = 0
	binary.LittleEndian.PutUint16(b[4:], uint16(c.Color))
}

func getCursor(b []byte) Cursor {
	return Cursor{
		X:         b[0],
		Y:         b[1],
		Confirmed: b[2] != 0,
		Color:     input.Input(binary.LittleEndian.Uint16(b[4:])),
	}
}

// Marshal the message into its wire format.
func Marshal(msg Message) [MessageSize]byte {
	var b [MessageSize]byte
	binary.LittleEndian.PutUint32(b[0:], Magic)
	putCursor(b[4:10], msg.P1)
	putCursor(b[10:16], msg.P2)
	return b
}

// Unmarshal a message from its wire format.
func Unmarshal(b []byte) (Message, error) {
	if len(b) < MessageSize {
		return Message{}, curated.Errorf(Malformed, "message too short")
	}
	if m := binary.LittleEndian.Uint32(b); m != Magic {
		return Message{}, curated.Errorf(Malformed, "bad magic")
	}
	msg := Message{
		P1: getCursor(b[4:10]),
		P2: getCursor(b[10:16]),
	}
	if !ValidColor(msg.P1.Color) || !ValidColor(msg.P2.Color) {
		return Message{}, curated.Errorf(Malformed, "invalid color button")
	}
	return msg, nil
}
