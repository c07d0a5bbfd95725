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

// Package assert contains checks that are useful during development but which
// are too expensive for normal use.
//
// GameThread() panics if it is called from a goroutine other than the one
// given. It only does this when the program has been built with the
// "assertions" build tag. Otherwise the function does nothing.
package assert
