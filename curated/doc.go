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

// Package curated is a helper package for the plain Go language error type.
// Curated errors implement the error interface and are created with the
// Errorf() function. The pattern given to Errorf() is the identity of the
// error and can be tested with Is() and Has():
//
//	e := curated.Errorf("snapshot: slot %d is empty", 3)
//	if curated.Is(e, "snapshot: slot %d is empty") {
//		...
//	}
//
// Packages in this module export their patterns as constants so that callers
// never need to repeat the pattern text.
//
// Is() tests only the outermost error. Has() tests the entire chain of curated
// errors that have been passed as values to Errorf(). IsAny() answers whether
// an error was created by this package at all. Put another way, whether the
// error is 'expected' or 'unexpected'.
//
// The Error() implementation normalises the message chain by removing
// duplicate adjacent parts. This means that a function can wrap an error with
// its own package prefix without worrying about whether the callee already
// did so:
//
//	curated.Errorf("css: %v", curated.Errorf("css: timeout"))
//
// prints as "css: timeout".
//
// The first error value passed to Errorf() is available through Unwrap() so
// that the errors package from the standard library can be used to test for
// sentinel values like os.ErrDeadlineExceeded.
package curated
