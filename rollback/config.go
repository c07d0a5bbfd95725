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

	"github.com/fm2knet/fm2knet/curated"
)

// limits of the prediction window.
const (
	MinPredictionWindow = 1
	MaxPredictionWindow = 15
)

// MaxInputDelay is the largest input delay allowed.
const MaxInputDelay = 15

// MinDisconnectTimeout is the shortest disconnect timeout allowed.
const MinDisconnectTimeout = 300 * time.Millisecond

// DefaultSeed is the seed used by the host if no other seed is configured.
const DefaultSeed = 0x2e7a0f31

// Config for a Session.
type Config struct {
	// the number of frames the simulation may run ahead of the confirmed
	// frame
	PredictionWindow int

	// local input is applied this many frames after it is sampled
	InputDelay int

	// the largest snapshot the session expects. informational only, the
	// snapshot engine is responsible for its own buffers
	MaxStateSize int

	// checksums of confirmed frames are exchanged every DesyncInterval frames
	DesyncDetection bool
	DesyncInterval  int

	// a peer that has been silent for DisconnectTimeout is disconnected.
	// silence is measured in whole poll windows
	DisconnectTimeout time.Duration
	PollWindow        time.Duration

	// a peer that hasn't been heard from at all within ConnectTimeout is
	// disconnected
	ConnectTimeout time.Duration

	// seed advertised by the host
	Seed uint32

	// how often quality reports are sent
	QualityInterval time.Duration

	// the session clock. time.Now if nil
	Clock func() time.Time
}

// DefaultConfig returns a Config with reasonable values.
func DefaultConfig() Config {
	return Config{
		PredictionWindow:  8,
		InputDelay:        0,
		DesyncDetection:   true,
		DesyncInterval:    1,
		DisconnectTimeout: MinDisconnectTimeout,
		PollWindow:        100 * time.Millisecond,
		ConnectTimeout:    5 * time.Second,
		Seed:              DefaultSeed,
		QualityInterval:   200 * time.Millisecond,
	}
}

// Validate returns an error if a value is out of range.
func (cfg Config) Validate() error {
	if cfg.PredictionWindow < MinPredictionWindow || cfg.PredictionWindow > MaxPredictionWindow {
		return curated.Errorf(IllegalConfig, "prediction window must be between 1 and 15")
	}
	if cfg.InputDelay < 0 || cfg.InputDelay > MaxInputDelay {
		return curated.Errorf(IllegalConfig, "input delay out of range")
	}
	if cfg.DesyncInterval < 1 {
		return curated.Errorf(IllegalConfig, "desync interval must be at least 1")
	}
	if cfg.DisconnectTimeout < MinDisconnectTimeout {
		return curated.Errorf(IllegalConfig, "disconnect timeout must be at least 300ms")
	}
	if cfg.PollWindow <= 0 || cfg.ConnectTimeout <= 0 || cfg.QualityInterval <= 0 {
		return curated.Errorf(IllegalConfig, "timing values must be positive")
	}
	return nil
}

// the number of consecutive silent poll windows before a peer is
// disconnected
func (cfg Config) silentWindows() int {
	k := int(cfg.DisconnectTimeout / cfg.PollWindow)
	if cfg.DisconnectTimeout%cfg.PollWindow != 0 {
		k++
	}
	return k
}

// capacity of the snapshot ring
func (cfg Config) ringCapacity() int {
	return cfg.PredictionWindow + 2
}
