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

// Package core ties the parts of the rollback system together and attaches
// them to the host. A Core is the single object held by whoever installs the
// intercept. It owns the snapshot engine, the object tracker, the session,
// the input bridge, the telemetry and the optional launcher region.
//
// The expected order of use is:
//
//	c, _ := core.New(prefs, host, notify)
//	_ = c.BeginSession(core.SessionConfig{Role: ipc.Host, RemoteHost: "10.0.0.2"})
//	_ = c.Install()
//
//	// once per presented display frame
//	c.OnFramePresented()
//
//	// on exit
//	_ = c.Teardown()
//
// The intercept returns host.Repeat while a replay is being served. The host
// must run every repeated tick before presenting the display frame.
//
// Everything except OnFramePresented() happens inside the intercept, on the
// host's game thread. With the "assertions" build tag the core panics if the
// intercept is called on any other goroutine.
//
// Debug commands written by the launcher are taken at the start of every
// intercept. Load and rollback requests are refused in online sessions
// because they would change the state of one peer only.
package core
