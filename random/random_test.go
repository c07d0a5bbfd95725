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

package random_test

import (
	"testing"
	"time"

	"github.com/fm2knet/fm2knet/random"
	"github.com/fm2knet/fm2knet/test"
)

func TestRandom(t *testing.T) {
	a := random.NewRandom(100)
	b := random.NewRandom(100)
	a.ZeroSeed = true
	b.ZeroSeed = true

	for i := 1; i < 256; i++ {
		test.ExpectEquality(t, a.Intn(i), b.Intn(i))
	}
}

func TestChance(t *testing.T) {
	rnd := random.NewRandom(1)
	rnd.ZeroSeed = true

	for i := 0; i < 100; i++ {
		test.ExpectFailure(t, rnd.Chance(0.0))
		test.ExpectSuccess(t, rnd.Chance(1.0))
	}

	// roughly the requested proportion
	var n int
	for i := 0; i < 10000; i++ {
		if rnd.Chance(0.2) {
			n++
		}
	}
	test.ExpectApproximate(t, n, 2000, 0.1)
}

func TestDuration(t *testing.T) {
	rnd := random.NewRandom(2)
	rnd.ZeroSeed = true

	test.ExpectEquality(t, rnd.Duration(0), time.Duration(0))
	for i := 0; i < 1000; i++ {
		d := rnd.Duration(10 * time.Millisecond)
		test.ExpectSuccess(t, d >= 0 && d <= 10*time.Millisecond)
	}
}
