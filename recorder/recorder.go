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

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/input"
)

// Recorder writes local input to a recording.
type Recorder struct {
	output io.WriteCloser

	// the most recent frame recorded. frames must be recorded in order
	last    uint32
	started bool
}

// NewRecorder is the preferred method of implementation for the Recorder type.
// The header is written immediately.
func NewRecorder(output io.WriteCloser, hdr Header) (*Recorder, error) {
	rec := &Recorder{output: output}

	if _, err := io.WriteString(rec.output, hdr.lines()); err != nil {
		rec.output.Close()
		return nil, curated.Errorf(RecordingError, err)
	}

	return rec, nil
}

// Record the input for the frame. Frames must be recorded in order. Recording
// the same frame twice replaces nothing and is an error.
func (rec *Recorder) Record(frame uint32, in input.Input) error {
	if rec.output == nil {
		return curated.Errorf(RecordingError, "recording has ended")
	}
	if rec.started && frame <= rec.last {
		return curated.Errorf(RecordingError, fmt.Sprintf("frame %d recorded out of order", frame))
	}
	rec.started = true
	rec.last = frame

	if _, err := fmt.Fprintf(rec.output, "%d%s%03x\n", frame, fieldSep, uint16(in.Masked())); err != nil {
		return curated.Errorf(RecordingError, err)
	}
	return nil
}

// End the recording and close the output.
func (rec *Recorder) End() error {
	if rec.output == nil {
		return nil
	}
	err := rec.output.Close()
	rec.output = nil
	if err != nil {
		return curated.Errorf(RecordingError, err)
	}
	return nil
}
