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

// Package recorder records the local input of a session to a text file and
// plays it back.
//
// The file begins with four header lines:
//
//	fm2knet-input
//	<version>
//	<player index>
//	<seed in hex>
//
// Every following line is one frame of input:
//
//	<frame>, <input in hex>
//
// Frames must be listed in order. A Playback implements the bridge.Source
// interface and so a recording can stand in for the keyboard.
package recorder
