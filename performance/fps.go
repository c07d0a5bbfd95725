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

package performance

import "time"

// CalcFPS takes the the number of frames and duration and returns the
// frames-per-second and the accuracy of that value as a percentage of the
// rate implied by the intended frame duration.
func CalcFPS(numFrames int, duration time.Duration, frame time.Duration) (fps float64, accuracy float64) {
	if duration <= 0 || frame <= 0 {
		return 0, 0
	}
	fps = float64(numFrames) / duration.Seconds()
	accuracy = 100 * fps * frame.Seconds()
	return fps, accuracy
}
