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

package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/fm2knet/fm2knet/rollback"
	"github.com/fm2knet/fm2knet/snapshot"
	"github.com/fm2knet/fm2knet/transport"
)

// SessionStats is implemented by rollback.Session.
type SessionStats interface {
	Stats() rollback.Stats
}

// EngineStats is implemented by snapshot.Engine.
type EngineStats interface {
	Stats() snapshot.Stats
}

// TransportCounters is implemented by every transport.
type TransportCounters interface {
	Counters() transport.Counters
}

// Report is a summary of the session at a point in time.
type Report struct {
	Frames         uint32
	ConfirmedFrame uint32

	Rollbacks           int
	RollbacksThisSecond int
	RollbackFrames      int
	AvgRollbackDepth    float64
	MaxRollback         int
	RollbackFailures    int
	Predictions         int
	Mispredictions      int
	Stalls              int
	Desyncs             int
	RingOverwrites      int
	Malformed           int

	Ping        time.Duration
	AvgPing     time.Duration
	Jitter      time.Duration
	FramesAhead float64

	Saves         int
	Loads         int
	AvgSaveMicros float64
	AvgLoadMicros float64
	LargestState  int

	Transport transport.Counters

	// display frames presented in the most recent whole second
	FPS int
}

func (r Report) String() string {
	s := strings.Builder{}
	s.WriteString(fmt.Sprintf("frame %d (confirmed %d)", r.Frames, r.ConfirmedFrame))
	s.WriteString(fmt.Sprintf(" rollbacks %d (%d/s, avg %.1f, max %d)", r.Rollbacks, r.RollbacksThisSecond, r.AvgRollbackDepth, r.MaxRollback))
	s.WriteString(fmt.Sprintf(" ping %v (avg %v, jitter %v)", r.Ping.Round(time.Millisecond/10), r.AvgPing.Round(time.Millisecond/10), r.Jitter.Round(time.Millisecond/10)))
	s.WriteString(fmt.Sprintf(" ahead %.2f", r.FramesAhead))
	s.WriteString(fmt.Sprintf(" saves %d loads %d", r.Saves, r.Loads))
	if r.Desyncs > 0 {
		s.WriteString(fmt.Sprintf(" DESYNCS %d", r.Desyncs))
	}
	return s.String()
}

// Telemetry aggregates statistics from the parts of a session.
type Telemetry struct {
	sess SessionStats
	eng  EngineStats
	tr   TransportCounters

	// start of the current second and the counts at that time
	second         time.Time
	rollbacksStart int
	framesInSecond int

	rollbacksThisSecond int
	fps                 int
}

// NewTelemetry is the preferred method of initialisation for the Telemetry
// type. Any of the arguments can be nil.
func NewTelemetry(sess SessionStats, eng EngineStats, tr TransportCounters) *Telemetry {
	return &Telemetry{
		sess: sess,
		eng:  eng,
		tr:   tr,
	}
}

// Tick should be called once per presented display frame.
func (tel *Telemetry) Tick(now time.Time) {
	tel.framesInSecond++

	if tel.second.IsZero() {
		tel.second = now
		if tel.sess != nil {
			tel.rollbacksStart = tel.sess.Stats().Rollbacks
		}
		return
	}

	if now.Sub(tel.second) < time.Second {
		return
	}

	var rollbacks int
	if tel.sess != nil {
		rollbacks = tel.sess.Stats().Rollbacks
	}
	tel.rollbacksThisSecond = rollbacks - tel.rollbacksStart
	tel.rollbacksStart = rollbacks
	tel.fps = tel.framesInSecond
	tel.framesInSecond = 0
	tel.second = now
}

// Snapshot returns a report of the current state.
func (tel *Telemetry) Snapshot() Report {
	var r Report

	if tel.sess != nil {
		st := tel.sess.Stats()
		r.Frames = st.Frames
		r.ConfirmedFrame = st.ConfirmedFrame
		r.Rollbacks = st.Rollbacks
		r.RollbackFrames = st.RollbackFrames
		r.MaxRollback = st.MaxRollback
		r.RollbackFailures = st.RollbackFailures
		r.Predictions = st.Predictions
		r.Mispredictions = st.Mispredictions
		r.Stalls = st.Stalls
		r.Desyncs = st.Desyncs
		r.RingOverwrites = st.RingOverwrites
		r.Malformed = st.Malformed
		r.Ping = st.Ping
		r.AvgPing = st.AvgPing
		r.Jitter = st.Jitter
		r.FramesAhead = st.FramesAhead
		if st.Rollbacks > 0 {
			r.AvgRollbackDepth = float64(st.RollbackFrames) / float64(st.Rollbacks)
		}
	}

	if tel.eng != nil {
		st := tel.eng.Stats()
		r.Saves = st.Saves
		r.Loads = st.Loads
		r.AvgSaveMicros = st.AvgSaveMicros
		r.AvgLoadMicros = st.AvgLoadMicros
		r.LargestState = st.LargestState
	}

	if tel.tr != nil {
		r.Transport = tel.tr.Counters()
	}

	r.RollbacksThisSecond = tel.rollbacksThisSecond
	r.FPS = tel.fps

	return r
}
