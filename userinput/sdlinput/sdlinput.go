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

// Package sdlinput samples the keyboard and game controllers with SDL and
// feeds the events to a userinput.Controllers.
//
// SDL requires that events are pumped from the thread that initialised it.
// All functions in this package must be called from the same goroutine,
// which should be locked to its OS thread.
package sdlinput

import (
	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/logger"
	"github.com/fm2knet/fm2knet/userinput"
	"github.com/veandco/go-sdl2/sdl"
)

// InitFailed is the pattern for errors returned by NewSDLInput().
const InitFailed = "sdlinput: %v"

// SDLInput polls SDL for input events.
type SDLInput struct {
	controllers *userinput.Controllers
	pads        []*sdl.GameController

	// keyboard events are only delivered to a focused window
	window *sdl.Window

	// d-pad buttons are reported individually by SDL. they are combined
	// into a single direction
	dpad [4]bool
}

// NewSDLInput initialises the SDL event and game controller subsystems and
// opens every attached game controller. If keyboard is true a small window is
// opened to receive key events.
func NewSDLInput(controllers *userinput.Controllers, keyboard bool) (*SDLInput, error) {
	flags := uint32(sdl.INIT_EVENTS | sdl.INIT_GAMECONTROLLER)
	if keyboard {
		flags |= sdl.INIT_VIDEO
	}
	if err := sdl.Init(flags); err != nil {
		return nil, curated.Errorf(InitFailed, err)
	}

	inp := &SDLInput{controllers: controllers}

	if keyboard {
		w, err := sdl.CreateWindow("FM2KNet input", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
			320, 80, sdl.WINDOW_SHOWN)
		if err != nil {
			sdl.Quit()
			return nil, curated.Errorf(InitFailed, err)
		}
		inp.window = w
	}

	for i := 0; i < sdl.NumJoysticks(); i++ {
		if !sdl.IsGameController(i) {
			continue
		}
		pad := sdl.GameControllerOpen(i)
		if pad != nil && pad.Attached() {
			logger.Logf(logger.Allow, "sdlinput", "gamepad: %s", pad.Name())
			inp.pads = append(inp.pads, pad)
		}
	}

	return inp, nil
}

// Destroy closes the game controllers and shuts SDL down.
func (inp *SDLInput) Destroy() {
	for _, pad := range inp.pads {
		pad.Close()
	}
	inp.pads = inp.pads[:0]
	if inp.window != nil {
		if err := inp.window.Destroy(); err != nil {
			logger.Logf(logger.Allow, "sdlinput", "%v", err)
		}
		inp.window = nil
	}
	sdl.Quit()
}

func keyMod() userinput.KeyMod {
	m := sdl.GetModState()
	switch {
	case m&sdl.KMOD_LSHIFT != 0 || m&sdl.KMOD_RSHIFT != 0:
		return userinput.KeyModShift
	case m&sdl.KMOD_LCTRL != 0 || m&sdl.KMOD_RCTRL != 0:
		return userinput.KeyModCtrl
	case m&sdl.KMOD_LALT != 0 || m&sdl.KMOD_RALT != 0:
		return userinput.KeyModAlt
	}
	return userinput.KeyModNone
}

func (inp *SDLInput) direction() userinput.DPadDirection {
	up, down, left, right := inp.dpad[0], inp.dpad[1], inp.dpad[2], inp.dpad[3]
	switch {
	case left && up:
		return userinput.DPadLeftUp
	case left && down:
		return userinput.DPadLeftDown
	case right && up:
		return userinput.DPadRightUp
	case right && down:
		return userinput.DPadRightDown
	case up:
		return userinput.DPadUp
	case down:
		return userinput.DPadDown
	case left:
		return userinput.DPadLeft
	case right:
		return userinput.DPadRight
	}
	return userinput.DPadCentre
}

func (inp *SDLInput) button(ev *sdl.ControllerButtonEvent) {
	down := ev.State == sdl.PRESSED

	var b userinput.GamepadButton
	switch sdl.GameControllerButton(ev.Button) {
	case sdl.CONTROLLER_BUTTON_DPAD_UP:
		inp.dpad[0] = down
	case sdl.CONTROLLER_BUTTON_DPAD_DOWN:
		inp.dpad[1] = down
	case sdl.CONTROLLER_BUTTON_DPAD_LEFT:
		inp.dpad[2] = down
	case sdl.CONTROLLER_BUTTON_DPAD_RIGHT:
		inp.dpad[3] = down
	case sdl.CONTROLLER_BUTTON_A:
		b = userinput.GamepadButtonA
	case sdl.CONTROLLER_BUTTON_B:
		b = userinput.GamepadButtonB
	case sdl.CONTROLLER_BUTTON_X:
		b = userinput.GamepadButtonX
	case sdl.CONTROLLER_BUTTON_Y:
		b = userinput.GamepadButtonY
	case sdl.CONTROLLER_BUTTON_LEFTSHOULDER:
		b = userinput.GamepadButtonLeftShoulder
	case sdl.CONTROLLER_BUTTON_RIGHTSHOULDER:
		b = userinput.GamepadButtonRightShoulder
	case sdl.CONTROLLER_BUTTON_START:
		b = userinput.GamepadButtonStart
	case sdl.CONTROLLER_BUTTON_BACK:
		b = userinput.GamepadButtonBack
	}

	if b == userinput.GamepadButtonNone {
		inp.controllers.HandleUserInput(userinput.EventGamepadDPad{Direction: inp.direction()})
		return
	}
	inp.controllers.HandleUserInput(userinput.EventGamepadButton{Button: b, Down: down})
}

// Poll pumps the SDL event queue and forwards every input event to the
// controllers. Returns false if the player has asked to quit.
func (inp *SDLInput) Poll() bool {
	quit := false

	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch ev := ev.(type) {
		case *sdl.QuitEvent:
			inp.controllers.HandleUserInput(userinput.EventQuit{})
			quit = true

		case *sdl.KeyboardEvent:
			switch ev.Type {
			case sdl.KEYDOWN, sdl.KEYUP:
				inp.controllers.HandleUserInput(userinput.EventKeyboard{
					Key:    sdl.GetScancodeName(ev.Keysym.Scancode),
					Down:   ev.Type == sdl.KEYDOWN,
					Repeat: ev.Repeat != 0,
					Mod:    keyMod(),
				})
			}

		case *sdl.ControllerButtonEvent:
			inp.button(ev)

		case *sdl.ControllerAxisEvent:
			pad := sdl.GameControllerFromInstanceID(ev.Which)
			if pad == nil {
				continue
			}
			switch sdl.GameControllerAxis(ev.Axis) {
			case sdl.CONTROLLER_AXIS_LEFTX, sdl.CONTROLLER_AXIS_LEFTY:
				inp.controllers.HandleUserInput(userinput.EventGamepadThumbstick{
					Thumbstick: userinput.GamepadThumbstickLeft,
					Horiz:      pad.Axis(sdl.CONTROLLER_AXIS_LEFTX),
					Vert:       pad.Axis(sdl.CONTROLLER_AXIS_LEFTY),
				})
			}

		case *sdl.WindowEvent:
			if ev.Event == sdl.WINDOWEVENT_FOCUS_LOST {
				inp.controllers.Release()
			}

		case *sdl.ControllerDeviceEvent:
			if ev.Type == sdl.CONTROLLERDEVICEADDED {
				pad := sdl.GameControllerOpen(int(ev.Which))
				if pad != nil && pad.Attached() {
					logger.Logf(logger.Allow, "sdlinput", "gamepad added: %s", pad.Name())
					inp.pads = append(inp.pads, pad)
				}
			}
		}
	}

	return !quit
}
