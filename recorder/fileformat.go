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

package recorder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fm2knet/fm2knet/curated"
)

// Patterns for errors returned by the recorder package.
const (
	RecordingError = "recorder: %v"
	PlaybackError  = "playback: %v"
	PlaybackLine   = "playback: line %d: %v"
)

const magic = "fm2knet-input"

// the current version of the file format
const version = 1

const (
	lineMagic int = iota
	lineVersion
	linePlayer
	lineSeed
	numHeaderLines
)

const fieldSep = ", "

const (
	fieldFrame int = iota
	fieldInput
	numFields
)

// Header is the information at the start of a recording.
type Header struct {
	// index of the player whose input was recorded
	Player int

	// the session seed
	Seed uint32
}

func (hdr Header) lines() string {
	lines := make([]string, numHeaderLines)
	lines[lineMagic] = magic
	lines[lineVersion] = strconv.Itoa(version)
	lines[linePlayer] = strconv.Itoa(hdr.Player)
	lines[lineSeed] = fmt.Sprintf("%08x", hdr.Seed)
	return strings.Join(lines, "\n") + "\n"
}

func readHeader(lines []string) (Header, error) {
	var hdr Header

	// a file that ends with a newline splits into a final empty line
	if len(lines) < numHeaderLines {
		return hdr, curated.Errorf(PlaybackError, "header truncated")
	}
	for _, l := range lines[:numHeaderLines] {
		if strings.TrimSpace(l) == "" {
			return hdr, curated.Errorf(PlaybackError, "header truncated")
		}
	}
	if lines[lineMagic] != magic {
		return hdr, curated.Errorf(PlaybackError, "not an input recording")
	}

	v, err := strconv.Atoi(lines[lineVersion])
	if err != nil {
		return hdr, curated.Errorf(PlaybackLine, lineVersion+1, err)
	}
	if v != version {
		return hdr, curated.Errorf(PlaybackError, fmt.Sprintf("unsupported version (%d)", v))
	}

	hdr.Player, err = strconv.Atoi(lines[linePlayer])
	if err != nil {
		return hdr, curated.Errorf(PlaybackLine, linePlayer+1, err)
	}
	if hdr.Player != 0 && hdr.Player != 1 {
		return hdr, curated.Errorf(PlaybackLine, linePlayer+1, "player index must be 0 or 1")
	}

	seed, err := strconv.ParseUint(lines[lineSeed], 16, 32)
	if err != nil {
		return hdr, curated.Errorf(PlaybackLine, lineSeed+1, err)
	}
	hdr.Seed = uint32(seed)

	return hdr, nil
}
