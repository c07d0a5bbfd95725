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
	"encoding/binary"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/input"
)

// the first byte of every message is the message kind. an empty payload is a
// keepalive
type messageKind byte

const (
	msgInput messageKind = iota + 1
	msgHello
	msgHelloReply
	msgSync
	msgChecksum
	msgQuality
	msgQualityReply
	msgDisconnect
)

func (k messageKind) String() string {
	switch k {
	case msgInput:
		return "input"
	case msgHello:
		return "hello"
	case msgHelloReply:
		return "hello reply"
	case msgSync:
		return "sync"
	case msgChecksum:
		return "checksum"
	case msgQuality:
		return "quality"
	case msgQualityReply:
		return "quality reply"
	case msgDisconnect:
		return "disconnect"
	}
	return "unknown message"
}

// the largest number of inputs in a single input message
const maxInputsPerMessage = 128

// message is a decoded message. only the fields for the kind are used
type message struct {
	kind messageKind

	// input
	start  uint32
	count  int
	inputs [maxInputsPerMessage]input.Input
	ack    uint32

	// hello and hello reply
	nonce uint32
	seed  uint32

	// sync
	initialFrame uint32

	// checksum
	frame    uint32
	checksum uint32

	// quality
	advantage int32
	pingTime  uint64
}

// sizes of the fixed part of each message, including the kind byte
const (
	sizeInputHeader  = 1 + 4 + 1
	sizeInputTrailer = 4
	sizeHello        = 1 + 4 + 4
	sizeHelloReply   = 1 + 4
	sizeSync         = 1 + 4
	sizeChecksum     = 1 + 4 + 4
	sizeQuality      = 1 + 4 + 8
	sizeQualityReply = 1 + 8
	sizeDisconnect   = 1
)

func encodeInput(dst []byte, start uint32, inputs []input.Input, ack uint32) []byte {
	dst[0] = byte(msgInput)
	binary.LittleEndian.PutUint32(dst[1:], start)
	dst[5] = byte(len(inputs))
	p := sizeInputHeader
	for _, in := range inputs {
		binary.LittleEndian.PutUint16(dst[p:], uint16(in))
		p += input.Size
	}
	binary.LittleEndian.PutUint32(dst[p:], ack)
	return dst[:p+sizeInputTrailer]
}

func encodeHello(dst []byte, nonce uint32, seed uint32) []byte {
	dst[0] = byte(msgHello)
	binary.LittleEndian.PutUint32(dst[1:], nonce)
	binary.LittleEndian.PutUint32(dst[5:], seed)
	return dst[:sizeHello]
}

func encodeHelloReply(dst []byte, nonce uint32) []byte {
	dst[0] = byte(msgHelloReply)
	binary.LittleEndian.PutUint32(dst[1:], nonce)
	return dst[:sizeHelloReply]
}

func encodeSync(dst []byte, frame uint32) []byte {
	dst[0] = byte(msgSync)
	binary.LittleEndian.PutUint32(dst[1:], frame)
	return dst[:sizeSync]
}

func encodeChecksum(dst []byte, frame uint32, checksum uint32) []byte {
	dst[0] = byte(msgChecksum)
	binary.LittleEndian.PutUint32(dst[1:], frame)
	binary.LittleEndian.PutUint32(dst[5:], checksum)
	return dst[:sizeChecksum]
}

func encodeQuality(dst []byte, advantage int32, pingTime uint64) []byte {
	dst[0] = byte(msgQuality)
	binary.LittleEndian.PutUint32(dst[1:], uint32(advantage))
	binary.LittleEndian.PutUint64(dst[5:], pingTime)
	return dst[:sizeQuality]
}

func encodeQualityReply(dst []byte, pingTime uint64) []byte {
	dst[0] = byte(msgQualityReply)
	binary.LittleEndian.PutUint64(dst[1:], pingTime)
	return dst[:sizeQualityReply]
}

func encodeDisconnect(dst []byte) []byte {
	dst[0] = byte(msgDisconnect)
	return dst[:sizeDisconnect]
}

// decode a message into msg. the message must not be empty
func decode(src []byte, msg *message) error {
	msg.kind = messageKind(src[0])

	short := func(n int) error {
		if len(src) < n {
			return curated.Errorf(MalformedMessage, msg.kind, "too short")
		}
		return nil
	}

	switch msg.kind {
	case msgInput:
		if err := short(sizeInputHeader); err != nil {
			return err
		}
		msg.start = binary.LittleEndian.Uint32(src[1:])
		msg.count = int(src[5])
		if msg.count > maxInputsPerMessage {
			return curated.Errorf(MalformedMessage, msg.kind, "too many inputs")
		}
		if len(src) != sizeInputHeader+msg.count*input.Size+sizeInputTrailer {
			return curated.Errorf(MalformedMessage, msg.kind, "wrong length")
		}
		p := sizeInputHeader
		for i := 0; i < msg.count; i++ {
			msg.inputs[i] = input.Input(binary.LittleEndian.Uint16(src[p:]))
			p += input.Size
		}
		msg.ack = binary.LittleEndian.Uint32(src[p:])

	case msgHello:
		if err := short(sizeHello); err != nil {
			return err
		}
		msg.nonce = binary.LittleEndian.Uint32(src[1:])
		msg.seed = binary.LittleEndian.Uint32(src[5:])

	case msgHelloReply:
		if err := short(sizeHelloReply); err != nil {
			return err
		}
		msg.nonce = binary.LittleEndian.Uint32(src[1:])

	case msgSync:
		if err := short(sizeSync); err != nil {
			return err
		}
		msg.initialFrame = binary.LittleEndian.Uint32(src[1:])

	case msgChecksum:
		if err := short(sizeChecksum); err != nil {
			return err
		}
		msg.frame = binary.LittleEndian.Uint32(src[1:])
		msg.checksum = binary.LittleEndian.Uint32(src[5:])

	case msgQuality:
		if err := short(sizeQuality); err != nil {
			return err
		}
		msg.advantage = int32(binary.LittleEndian.Uint32(src[1:]))
		msg.pingTime = binary.LittleEndian.Uint64(src[5:])

	case msgQualityReply:
		if err := short(sizeQualityReply); err != nil {
			return err
		}
		msg.pingTime = binary.LittleEndian.Uint64(src[1:])

	case msgDisconnect:

	default:
		return curated.Errorf(MalformedMessage, msg.kind, "unknown kind")
	}

	return nil
}
