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

package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/fm2knet/fm2knet/modalflag"
	"github.com/fm2knet/fm2knet/version"
)

// exit values
const (
	exitOK       = 0
	exitArgs     = 10
	exitFailed   = 20
	exitDiverged = 30
)

func main() {
	// ctrl-c asks the running mode to stop at the end of the current frame.
	// a second ctrl-c quits immediately
	intChan := make(chan os.Signal, 1)
	signal.Notify(intChan, os.Interrupt)

	interrupt := make(chan bool, 1)
	done := make(chan int)

	go func() {
		done <- launch(os.Args[1:], interrupt)
	}()

	exitVal := exitOK
	for quit := false; !quit; {
		select {
		case <-intChan:
			select {
			case interrupt <- true:
				fmt.Println("\r")
			default:
				os.Exit(exitFailed)
			}
		case exitVal = <-done:
			quit = true
		}
	}

	fmt.Print("\r")
	os.Exit(exitVal)
}

// launch parses the command line and runs the selected mode. Returns the
// value to use with os.Exit().
func launch(args []string, interrupt chan bool) int {
	md := &modalflag.Modes{Output: os.Stdout}
	md.NewArgs(args)
	md.NewMode()
	md.AddSubModes("SOAK", "VERSION")

	p, err := md.Parse()
	switch p {
	case modalflag.ParseHelp:
		return exitOK
	case modalflag.ParseError:
		fmt.Printf("* error: %v\n", err)
		return exitArgs
	}

	switch md.Mode() {
	case "SOAK":
		err = soak(md, interrupt)
	case "VERSION":
		err = showVersion(md)
	}

	if err != nil {
		fmt.Printf("* error in %s mode: %s\n", md.String(), err)
		if diverged(err) {
			return exitDiverged
		}
		return exitFailed
	}

	return exitOK
}

func showVersion(md *modalflag.Modes) error {
	md.NewMode()

	revision := md.AddBool("revision", false, "display revision information from version control")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	v, r, _ := version.Version()
	fmt.Println(v)
	if *revision {
		fmt.Println(r)
	}

	return nil
}
