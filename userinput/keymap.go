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

package userinput

import "github.com/fm2knet/fm2knet/input"

// StickDeadzone is the axis value that a thumbstick must pass before it
// counts as a direction. Quite a large deadzone.
const StickDeadzone = 10000

// the default keyboard map
func keyboardInput(key string) (input.Input, bool) {
	switch key {
	// directions
	case "Left":
		return input.Left, true
	case "Right":
		return input.Right, true
	case "Up":
		return input.Up, true
	case "Down":
		return input.Down, true

	// attack buttons
	case "Z":
		return input.A, true
	case "X":
		return input.B, true
	case "C":
		return input.C, true
	case "A":
		return input.D, true
	case "S":
		return input.E, true
	case "D":
		return input.F, true

	case "Return":
		return input.Start, true
	}

	return input.Neutral, false
}

func gamepadButtonInput(b GamepadButton) (input.Input, bool) {
	switch b {
	case GamepadButtonA:
		return input.A, true
	case GamepadButtonB:
		return input.B, true
	case GamepadButtonX:
		return input.C, true
	case GamepadButtonY:
		return input.D, true
	case GamepadButtonLeftShoulder:
		return input.E, true
	case GamepadButtonRightShoulder:
		return input.F, true
	case GamepadButtonStart:
		return input.Start, true
	}
	return input.Neutral, false
}

func dpadInput(d DPadDirection) input.Input {
	switch d {
	case DPadUp:
		return input.Up
	case DPadDown:
		return input.Down
	case DPadLeft:
		return input.Left
	case DPadRight:
		return input.Right
	case DPadLeftUp:
		return input.Left | input.Up
	case DPadLeftDown:
		return input.Left | input.Down
	case DPadRightUp:
		return input.Right | input.Up
	case DPadRightDown:
		return input.Right | input.Down
	}
	return input.Neutral
}

func thumbstickInput(horiz, vert int16) input.Input {
	var in input.Input
	if horiz > StickDeadzone {
		in |= input.Right
	} else if horiz < -StickDeadzone {
		in |= input.Left
	}
	if vert > StickDeadzone {
		in |= input.Down
	} else if vert < -StickDeadzone {
		in |= input.Up
	}
	return in
}
