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

// Package prefs holds the typed preference values used to configure FM2KNet.
// Every type is safe to read from any goroutine because the underlying value
// is stored atomically.
//
// Values are collected into a Disk instance, which persists them in a YAML
// file. Keys are dotted paths and become nested maps in the file:
//
//	dsk, _ := prefs.NewDisk(paths.ResourcePath("preferences"))
//	var window prefs.Int
//	dsk.Add("session.predictionWindow", &window)
//	dsk.Load(true)
//
// Values can also be specified on the command line with the stack functions.
// A command line value overrides the value loaded from disk. See
// PushCommandLineStack() for the format.
//
// Hooks can be attached to any value with SetHookPre() and SetHookPost(). A
// pre hook that returns an error prevents the value from being changed, which
// makes it a good place for validation.
package prefs
