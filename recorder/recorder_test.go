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

package recorder_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/recorder"
	"github.com/fm2knet/fm2knet/test"
)

type closer struct {
	bytes.Buffer
	closed bool
}

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func TestRoundTrip(t *testing.T) {
	var out closer

	rec, err := recorder.NewRecorder(&out, recorder.Header{Player: 1, Seed: 0x2e7a0f31})
	test.DemandSuccess(t, err)

	inputs := []input.Input{input.Neutral, input.Right | input.A, input.Start, input.Left | input.Down | input.F}
	for i, in := range inputs {
		test.DemandSuccess(t, rec.Record(uint32(i), in))
	}

	// out of order
	err = rec.Record(2, input.A)
	test.ExpectSuccess(t, curated.Is(err, recorder.RecordingError))

	test.DemandSuccess(t, rec.End())
	test.ExpectSuccess(t, out.closed)
	test.ExpectFailure(t, rec.Record(10, input.A))

	plb, err := recorder.NewPlayback(strings.NewReader(out.String()))
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, plb.Header.Player, 1)
	test.ExpectEquality(t, plb.Header.Seed, 0x2e7a0f31)
	test.ExpectEquality(t, plb.Remaining(), len(inputs))

	for _, in := range inputs {
		test.ExpectEquality(t, plb.Sample(), in)
	}
	test.ExpectEquality(t, plb.Remaining(), 0)
	test.ExpectEquality(t, plb.Sample(), input.Neutral)
}

func TestMalformed(t *testing.T) {
	_, err := recorder.NewPlayback(strings.NewReader("not a recording\n1\n0\n00000000\n"))
	test.ExpectSuccess(t, curated.Is(err, recorder.PlaybackError))

	_, err = recorder.NewPlayback(strings.NewReader("fm2knet-input\n1\n0\n"))
	test.ExpectSuccess(t, curated.Is(err, recorder.PlaybackError))
	test.ExpectSuccess(t, strings.Contains(err.Error(), "header truncated"))

	_, err = recorder.NewPlayback(strings.NewReader("fm2knet-input\n1\n0"))
	test.ExpectSuccess(t, curated.Is(err, recorder.PlaybackError))
	test.ExpectSuccess(t, strings.Contains(err.Error(), "header truncated"))

	_, err = recorder.NewPlayback(strings.NewReader("fm2knet-input\n1\n0\n00000000\n0, 010\n1, zz\n"))
	test.ExpectSuccess(t, curated.Is(err, recorder.PlaybackLine))
	test.ExpectSuccess(t, strings.Contains(err.Error(), "line 6"))

	_, err = recorder.NewPlayback(strings.NewReader("fm2knet-input\n1\n0\n00000000\n5, 010\n4, 010\n"))
	test.ExpectSuccess(t, curated.Is(err, recorder.PlaybackLine))

	// bits above start
	_, err = recorder.NewPlayback(strings.NewReader("fm2knet-input\n1\n0\n00000000\n0, 800\n"))
	test.ExpectSuccess(t, curated.Is(err, recorder.PlaybackLine))
}
