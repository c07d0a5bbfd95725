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

package telemetry_test

import (
	"strings"
	"testing"
	"time"

	"github.com/fm2knet/fm2knet/rollback"
	"github.com/fm2knet/fm2knet/snapshot"
	"github.com/fm2knet/fm2knet/telemetry"
	"github.com/fm2knet/fm2knet/test"
)

type sessionStats struct {
	st rollback.Stats
}

func (s *sessionStats) Stats() rollback.Stats {
	return s.st
}

type engineStats struct {
	st snapshot.Stats
}

func (e *engineStats) Stats() snapshot.Stats {
	return e.st
}

func TestReport(t *testing.T) {
	sess := &sessionStats{}
	eng := &engineStats{}
	tel := telemetry.NewTelemetry(sess, eng, nil)

	start := time.Unix(0, 0)
	sess.st.Rollbacks = 4
	tel.Tick(start)

	// 60 display frames and 6 rollbacks in one second
	now := start
	for i := 1; i <= 60; i++ {
		sess.st.Rollbacks = 4 + i/10
		now = now.Add(time.Second / 60)
		if i == 60 {
			now = start.Add(time.Second)
		}
		tel.Tick(now)
	}

	sess.st.Frames = 600
	sess.st.ConfirmedFrame = 597
	sess.st.RollbackFrames = 25
	sess.st.MaxRollback = 4
	sess.st.Ping = 30 * time.Millisecond
	eng.st.Saves = 650
	eng.st.Loads = 10

	r := tel.Snapshot()
	test.ExpectEquality(t, r.RollbacksThisSecond, 6)
	test.ExpectEquality(t, r.FPS, 61)
	test.ExpectEquality(t, r.Rollbacks, 10)
	test.ExpectApproximate(t, r.AvgRollbackDepth, 2.5, 0.001)
	test.ExpectEquality(t, r.Saves, 650)
	test.ExpectEquality(t, r.Loads, 10)
	test.ExpectEquality(t, r.ConfirmedFrame, 597)

	s := r.String()
	test.ExpectSuccess(t, strings.HasPrefix(s, "frame 600 (confirmed 597)"))
	test.ExpectFailure(t, strings.Contains(s, "DESYNCS"))

	sess.st.Desyncs = 1
	test.ExpectSuccess(t, strings.Contains(tel.Snapshot().String(), "DESYNCS 1"))
}

func TestEmpty(t *testing.T) {
	tel := telemetry.NewTelemetry(nil, nil, nil)
	tel.Tick(time.Now())
	r := tel.Snapshot()
	test.ExpectEquality(t, r.Frames, 0)
	test.ExpectEquality(t, r.AvgRollbackDepth, 0.0)
}
