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

// Package userinput handles input from the hardware that the player is using
// to control the game.
//
// It is a translation layer between the windowing library and the input
// bridge. The Controllers type accumulates the state of held keys and buttons
// from a stream of Events and presents the combined state as an input.Input.
//
// The windowing library in use during development was SDL and so there will
// be a bias towards that system. See the sdlinput package.
package userinput
