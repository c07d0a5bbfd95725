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

//go:build !assertions
// +build !assertions

package assert

// Enabled is true if the program has been built with the assertions tag.
const Enabled = false

// GameThread does nothing without the assertions build tag.
func GameThread(_ uint64) {
}
