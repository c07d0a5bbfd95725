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

//go:build assertions
// +build assertions

package assert

import "fmt"

// Enabled is true if the program has been built with the assertions tag.
const Enabled = true

// GameThread panics if the calling goroutine is not the one identified by id.
func GameThread(id uint64) {
	if g := GetGoRoutineID(); g != id {
		panic(fmt.Sprintf("assert: called from goroutine %d; game thread is %d", g, id))
	}
}
