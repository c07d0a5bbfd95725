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

package shmem_test

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/fm2knet/fm2knet/shmem"
	"github.com/fm2knet/fm2knet/test"
)

func TestAnonymous(t *testing.T) {
	_, err := shmem.NewAnonymous(0)
	test.ExpectFailure(t, err)

	r, err := shmem.NewAnonymous(13)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, r.Size(), 13)
	test.ExpectEquality(t, len(r.Bytes()), 13)

	r.StoreUint32(4, 10)
	test.ExpectEquality(t, r.AddUint32(4, 5), 15)
	test.ExpectEquality(t, r.AddUint32(4, ^uint32(0)), 14)
	test.ExpectEquality(t, r.LoadUint32(4), 14)

	test.ExpectSuccess(t, r.Close())
	test.ExpectFailure(t, r.Close())
}

func TestAtomicCounter(t *testing.T) {
	r, err := shmem.NewAnonymous(8)
	test.DemandSuccess(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.AddUint32(0, 1)
			}
		}()
	}
	wg.Wait()
	test.ExpectEquality(t, r.LoadUint32(0), 4000)
}

func TestNamed(t *testing.T) {
	name := fmt.Sprintf("fm2knet_test_%d", os.Getpid())
	defer shmem.Remove(name)

	a, err := shmem.Open(name, 4096)
	test.DemandSuccess(t, err)
	defer a.Close()

	b, err := shmem.Open(name, 4096)
	test.DemandSuccess(t, err)
	defer b.Close()

	// both mappings see the same memory
	a.StoreUint32(64, 0xdeadbeef)
	test.ExpectEquality(t, b.LoadUint32(64), 0xdeadbeef)
	copy(b.Bytes()[100:], "fm2k")
	test.ExpectEquality(t, string(a.Bytes()[100:104]), "fm2k")
	test.ExpectEquality(t, a.Name(), name)
}
