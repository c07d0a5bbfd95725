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

package host_test

import (
	"testing"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/test"
)

func TestRegions(t *testing.T) {
	l := host.DefaultLayout()
	r := l.Regions()
	for i := 1; i < len(r); i++ {
		test.ExpectSuccess(t, r[i-1].Addr <= r[i].Addr)
	}

	ext := l.Extent()
	for _, x := range r {
		test.ExpectSuccess(t, x.Addr >= ext.Addr)
		test.ExpectSuccess(t, x.End() <= ext.End())
	}
	test.ExpectEquality(t, ext.Addr, l.RNG.Addr)
	test.ExpectEquality(t, ext.End(), l.PlayerData.End())

	test.ExpectEquality(t, l.ObjectPool.Size, 1024*382)
	test.ExpectSuccess(t, l.PlayerData.Overlaps(l.AnimationControl))
	test.ExpectFailure(t, l.P1Input.Overlaps(l.P2Input))
}

type resolver map[host.Capability]uint32

func (r resolver) Resolve(c host.Capability) (uint32, error) {
	if a, ok := r[c]; ok {
		return a, nil
	}
	return 0, curated.Errorf("not found")
}

func TestWithResolver(t *testing.T) {
	l := host.DefaultLayout()

	// the layout resolves to itself
	m, err := l.WithResolver(l)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, m.RNG, l.RNG)
	test.ExpectEquality(t, m.P2History, l.P2History)

	r := resolver{
		host.Initialize:   0x1000,
		host.Reset:        0x2000,
		host.ReadRNG:      0x3000,
		host.ObjectPool:   0x4000,
		host.InputBuffers: 0x5000,
	}
	m, err = l.WithResolver(r)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, m.InitializeFunc, 0x1000)
	test.ExpectEquality(t, m.RNG.Addr, 0x3000)
	test.ExpectEquality(t, m.ObjectPool.Addr, 0x4000)
	test.ExpectEquality(t, m.P1History.Addr, 0x5000)
	test.ExpectEquality(t, m.P2History.Addr, 0x5000+0x1000)

	delete(r, host.ObjectPool)
	_, err = l.WithResolver(r)
	test.ExpectFailure(t, err)
}
