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

package random

import (
	"math/rand"
	"time"
)

// the base seed for all random numbers that are not explicitely seeded
var baseSeed int64

func init() {
	baseSeed = time.Now().UnixNano()
}

// Random is a seedable random number generator. It is not safe for use from
// more than one goroutine.
type Random struct {
	seed int64
	rnd  *rand.Rand

	// use zero seed rather than the random base seed. this is only really
	// useful when the sequence of random numbers must be predictable
	ZeroSeed bool
}

// NewRandom is the preferred method of initialisation for the Random type. The
// seed is added to the base seed unless ZeroSeed is set.
func NewRandom(seed int64) *Random {
	return &Random{
		seed: seed,
	}
}

func (rnd *Random) source() *rand.Rand {
	if rnd.rnd == nil {
		if rnd.ZeroSeed {
			rnd.rnd = rand.New(rand.NewSource(rnd.seed))
		} else {
			rnd.rnd = rand.New(rand.NewSource(baseSeed + rnd.seed))
		}
	}
	return rnd.rnd
}

// Intn returns a random number in the range [0,n).
func (rnd *Random) Intn(n int) int {
	return rnd.source().Intn(n)
}

// Float64 returns a random number in the range [0.0,1.0).
func (rnd *Random) Float64() float64 {
	return rnd.source().Float64()
}

// Chance returns true with the given probability. A probability of zero
// or less is never true and a probability of one or more is always true.
func (rnd *Random) Chance(p float64) bool {
	if p <= 0.0 {
		return false
	}
	if p >= 1.0 {
		return true
	}
	return rnd.source().Float64() < p
}

// Duration returns a uniformly distributed duration in the range [0,max].
func (rnd *Random) Duration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rnd.source().Int63n(int64(max) + 1))
}
