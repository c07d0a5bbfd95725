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

// Package logger is the central log for FM2KNet. Log entries are tagged with
// the name of the package making the entry. Adjacent duplicate entries are
// collapsed into a single entry with a repeat count.
//
// The package level functions operate on the single central log. Additional
// Logger instances can be created with NewLogger() but this is only really
// useful for testing.
//
// Every logging call takes a Permission argument. Allow should be used when an
// entry should always be made. The rollback session uses its own Permission to
// suppress logging while frames are being replayed.
package logger
