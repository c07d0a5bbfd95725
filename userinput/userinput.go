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

// Event describes an event that might occur on the hardware used by the player.
type Event interface{}

// EventQuit is sent when the window is closed or when the player otherwise
// signals that the game should stop.
type EventQuit struct{}

// KeyMod identifies the modifier keys held during a keyboard event.
type KeyMod int

// List of valid KeyMod values.
const (
	KeyModNone KeyMod = iota
	KeyModShift
	KeyModCtrl
	KeyModAlt
)

// EventKeyboard is a keypress or key release. Key is the name of the key as
// reported by the windowing library, for example "Left" or "Z".
type EventKeyboard struct {
	Key    string
	Mod    KeyMod
	Down   bool
	Repeat bool
}

// GamepadButton identifies a gamepad button.
type GamepadButton int

// List of valid GamepadButton values. The face buttons are named for their
// position on an Xbox style controller.
const (
	GamepadButtonNone GamepadButton = iota
	GamepadButtonA
	GamepadButtonB
	GamepadButtonX
	GamepadButtonY
	GamepadButtonLeftShoulder
	GamepadButtonRightShoulder
	GamepadButtonStart
	GamepadButtonBack
)

// EventGamepadButton is a gamepad button press or release.
type EventGamepadButton struct {
	Button GamepadButton
	Down   bool
}

// DPadDirection is the direction of the gamepad d-pad.
type DPadDirection int

// List of valid DPadDirection values.
const (
	DPadCentre DPadDirection = iota
	DPadUp
	DPadDown
	DPadLeft
	DPadRight
	DPadLeftUp
	DPadLeftDown
	DPadRightUp
	DPadRightDown
)

// EventGamepadDPad is sent whenever the d-pad changes direction.
type EventGamepadDPad struct {
	Direction DPadDirection
}

// GamepadThumbstick identifies a thumbstick.
type GamepadThumbstick int

// List of valid GamepadThumbstick values.
const (
	GamepadThumbstickLeft GamepadThumbstick = iota
	GamepadThumbstickRight
)

// EventGamepadThumbstick is sent whenever the thumbstick position changes.
// The axis values are as reported by SDL, between -32768 and 32767.
type EventGamepadThumbstick struct {
	Thumbstick GamepadThumbstick
	Horiz      int16
	Vert       int16
}
