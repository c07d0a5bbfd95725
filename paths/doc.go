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

// Package paths contains functions to prepare paths to FM2KNet resources.
//
// The ResourcePath() function prepends the supplied resource with the
// appropriate base directory. For example, the following will return the path
// to the telemetry database.
//
//	d := paths.ResourcePath("telemetry.db")
//
// The policy of ResourcePath() is simple: if the base resource path, currently
// defined to be ".fm2knet", is present in the program's current directory then
// that is the base path that will used. If it is not present then the user's
// config directory is used, as returned by os.UserConfigDir().
//
// On a modern Linux system, the path returned in that case will be:
//
//	/home/user/.config/fm2knet/telemetry.db
package paths
