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
	"time"
)

// frame durations used to pace the local simulation.
const (
	frameSlow   = time.Second / 59
	frameNormal = time.Second / 60
	frameFast   = time.Second / 61
)

// the frames ahead value at which the frame duration changes
const paceThreshold = 0.75

const (
	advantageSamples = 26
	pingSamples      = 16
)

type pacing struct {
	// rolling samples of the frame advantage
	advantage [advantageSamples]float64
	advIdx    int
	advLen    int

	// the most recent frame advantage reported by the peer
	remoteAdvantage float64

	pings   [pingSamples]time.Duration
	pingIdx int
	pingLen int

	ping    time.Duration
	avgPing time.Duration
	jitter  time.Duration

	lastQuality time.Time
}

func (p *pacing) reset() {
	*p = pacing{}
}

func (p *pacing) addAdvantage(v float64) {
	p.advantage[p.advIdx] = v
	p.advIdx = (p.advIdx + 1) % advantageSamples
	if p.advLen < advantageSamples {
		p.advLen++
	}
}

// the rolling mean of the advantage samples
func (p *pacing) framesAhead() float64 {
	if p.advLen == 0 {
		return 0
	}
	var s float64
	for i := 0; i < p.advLen; i++ {
		s += p.advantage[i]
	}
	return s / float64(p.advLen)
}

// jitter is the mean absolute deviation of the ping samples
func (p *pacing) addPing(d time.Duration) {
	p.ping = d
	p.pings[p.pingIdx] = d
	p.pingIdx = (p.pingIdx + 1) % pingSamples
	if p.pingLen < pingSamples {
		p.pingLen++
	}

	var sum time.Duration
	for i := 0; i < p.pingLen; i++ {
		sum += p.pings[i]
	}
	p.avgPing = sum / time.Duration(p.pingLen)

	var dev time.Duration
	for i := 0; i < p.pingLen; i++ {
		d := p.pings[i] - p.avgPing
		if d < 0 {
			d = -d
		}
		dev += d
	}
	p.jitter = dev / time.Duration(p.pingLen)
}

// one way latency in frames
func (p *pacing) latencyFrames() float64 {
	return float64(p.avgPing/2) / float64(frameNormal)
}

func frameDuration(ahead float64) time.Duration {
	switch {
	case ahead >= paceThreshold:
		return frameSlow
	case ahead <= -paceThreshold:
		return frameFast
	}
	return frameNormal
}
