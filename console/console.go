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

//go:build !windows
// +build !windows

package console

import (
	"os"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// ConsoleError is the pattern for errors returned by the console package.
const ConsoleError = "console: %v"

// Console is a terminal in cbreak mode.
type Console struct {
	input *os.File

	canAttr    unix.Termios
	cbreakAttr unix.Termios

	buf [1]byte
}

// NewConsole puts the terminal attached to the input file into cbreak mode.
// Restore() should be called before the program exits.
func NewConsole(input *os.File) (*Console, error) {
	con := &Console{input: input}

	if err := termios.Tcgetattr(input.Fd(), &con.canAttr); err != nil {
		return nil, curated.Errorf(ConsoleError, err)
	}

	con.cbreakAttr = con.canAttr
	termios.Cfmakecbreak(&con.cbreakAttr)

	if err := termios.Tcsetattr(input.Fd(), termios.TCSANOW, &con.cbreakAttr); err != nil {
		return nil, curated.Errorf(ConsoleError, err)
	}

	return con, nil
}

// Restore the terminal to canonical mode.
func (con *Console) Restore() error {
	if err := termios.Tcsetattr(con.input.Fd(), termios.TCSANOW, &con.canAttr); err != nil {
		return curated.Errorf(ConsoleError, err)
	}
	return nil
}

// Poll returns the next key pressed, if there is one. It never blocks.
func (con *Console) Poll() (byte, bool) {
	fds := []unix.PollFd{{Fd: int32(con.input.Fd()), Events: unix.POLLIN}}

	n, err := unix.Poll(fds, 0)
	if err != nil || n == 0 || fds[0].Revents&unix.POLLIN == 0 {
		return 0, false
	}

	if n, err := con.input.Read(con.buf[:]); err != nil || n == 0 {
		return 0, false
	}

	return con.buf[0], true
}
