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

// Controllers keeps track of the held state of every input device. It
// implements the bridge.Source interface.
type Controllers struct {
	keyboard input.Input
	buttons  input.Input
	dpad     input.Input
	stick    input.Input

	// whether or not the last call to HandleUserInput() was for an event that
	// changed the input
	LastKeyHandled bool

	// is true if last event was a quit event
	Quit bool
}

func (c *Controllers) keyboardEvent(ev EventKeyboard) {
	if ev.Repeat {
		c.LastKeyHandled = false
		return
	}

	in, ok := keyboardInput(ev.Key)
	if !ok {
		c.LastKeyHandled = false
		return
	}

	// modified keypresses are not game input. releases are always honoured
	// so that a key can't get stuck
	if ev.Down && ev.Mod != KeyModNone {
		c.LastKeyHandled = false
		return
	}

	c.LastKeyHandled = true
	if ev.Down {
		c.keyboard |= in
	} else {
		c.keyboard &^= in
	}
}

func (c *Controllers) gamepadButton(ev EventGamepadButton) {
	in, ok := gamepadButtonInput(ev.Button)
	if !ok {
		return
	}
	c.LastKeyHandled = true
	if ev.Down {
		c.buttons |= in
	} else {
		c.buttons &^= in
	}
}

// HandleUserInput updates the held state from the event.
func (c *Controllers) HandleUserInput(ev Event) {
	c.Quit = false
	c.LastKeyHandled = false

	switch ev := ev.(type) {
	case EventQuit:
		c.Quit = true
	case EventKeyboard:
		c.keyboardEvent(ev)
	case EventGamepadButton:
		c.gamepadButton(ev)
	case EventGamepadDPad:
		c.dpad = dpadInput(ev.Direction)
		c.LastKeyHandled = true
	case EventGamepadThumbstick:
		if ev.Thumbstick == GamepadThumbstickLeft {
			c.stick = thumbstickInput(ev.Horiz, ev.Vert)
			c.LastKeyHandled = true
		}
	default:
	}
}

// Sample returns the combined state of every device.
func (c *Controllers) Sample() input.Input {
	return (c.keyboard | c.buttons | c.dpad | c.stick).Masked()
}

// Release forgets every held key and button. Useful when the window loses
// focus and key releases will not be seen.
func (c *Controllers) Release() {
	c.keyboard = input.Neutral
	c.buttons = input.Neutral
	c.dpad = input.Neutral
	c.stick = input.Neutral
}
