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

//go:build windows
// +build windows

package console

import (
	"os"

	"github.com/fm2knet/fm2knet/curated"
)

// ConsoleError is the pattern for errors returned by the console package.
const ConsoleError = "console: %v"

// Console is not supported on windows.
type Console struct{}

// NewConsole always returns an error on windows.
func NewConsole(_ *os.File) (*Console, error) {
	return nil, curated.Errorf(ConsoleError, "not supported on windows")
}

// Restore does nothing on windows.
func (con *Console) Restore() error {
	return nil
}

// Poll never returns a key on windows.
func (con *Console) Poll() (byte, bool) {
	return 0, false
}
