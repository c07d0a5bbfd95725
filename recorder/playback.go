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
	"io"
	"strconv"
	"strings"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/input"
)

type playbackEntry struct {
	frame uint32
	in    input.Input

	// the line in the recording file the entry appears
	line int
}

// Playback is used to reperform the input in a previously recorded file. It
// implements the bridge.Source interface.
type Playback struct {
	Header Header

	sequence []playbackEntry
	seqCt    int
}

func (plb Playback) String() string {
	return fmt.Sprintf("%d/%d", plb.seqCt, len(plb.sequence))
}

// NewPlayback is the preferred method of implementation for the Playback type.
func NewPlayback(r io.Reader) (*Playback, error) {
	buffer, err := io.ReadAll(r)
	if err != nil {
		return nil, curated.Errorf(PlaybackError, err)
	}

	// convert file contents to an array of lines
	lines := strings.Split(string(buffer), "\n")

	plb := &Playback{}

	plb.Header, err = readHeader(lines)
	if err != nil {
		return nil, err
	}

	for i := numHeaderLines; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}

		toks := strings.Split(lines[i], fieldSep)
		if len(toks) != numFields {
			return nil, curated.Errorf(PlaybackLine, i+1, fmt.Sprintf("expected %d fields", numFields))
		}

		entry := playbackEntry{line: i + 1}

		f, err := strconv.ParseUint(toks[fieldFrame], 10, 32)
		if err != nil {
			return nil, curated.Errorf(PlaybackLine, i+1, err)
		}
		entry.frame = uint32(f)

		if n := len(plb.sequence); n > 0 && entry.frame <= plb.sequence[n-1].frame {
			return nil, curated.Errorf(PlaybackLine, i+1, "frame out of order")
		}

		v, err := strconv.ParseUint(toks[fieldInput], 16, 16)
		if err != nil {
			return nil, curated.Errorf(PlaybackLine, i+1, err)
		}
		entry.in = input.Input(v)
		if !entry.in.Valid() {
			return nil, curated.Errorf(PlaybackLine, i+1, "input has undefined bits")
		}

		plb.sequence = append(plb.sequence, entry)
	}

	return plb, nil
}

// Sample returns the input of the next frame in the recording. Once the
// recording is exhausted the input is neutral.
func (plb *Playback) Sample() input.Input {
	if plb.seqCt >= len(plb.sequence) {
		return input.Neutral
	}
	in := plb.sequence[plb.seqCt].in
	plb.seqCt++
	return in
}

// Remaining returns the number of frames left in the recording.
func (plb *Playback) Remaining() int {
	return len(plb.sequence) - plb.seqCt
}

// NextFrame returns the frame number of the next entry. Returns false if the
// recording is exhausted.
func (plb *Playback) NextFrame() (uint32, bool) {
	if plb.seqCt >= len(plb.sequence) {
		return 0, false
	}
	return plb.sequence[plb.seqCt].frame, true
}
