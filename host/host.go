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

package host

// Memory gives access to the host's address space. Addresses are absolute
// addresses in the 32-bit host process.
//
// Read and Write must not be called while the host is executing a frame. In
// practice this means they are only called from inside the intercept.
type Memory interface {
	// Readable probes whether the range [addr, addr+size) can be read.
	Readable(addr uint32, size int) bool

	// Read fills p with the bytes at addr.
	Read(addr uint32, p []byte) error

	// Write copies p to addr.
	Write(addr uint32, p []byte) error
}

// Verdict is returned by an Intercept to tell the host whether to continue
// with the frame it was about to run.
type Verdict int

// List of valid Verdict values.
const (
	// Proceed with the frame. The input words have been deposited.
	Proceed Verdict = iota

	// Hold the frame. The host does not run a tick and calls the intercept
	// again on the next iteration of its loop.
	Hold

	// Repeat is Proceed for a frame that must not be presented. The host runs
	// the tick and calls the intercept again before presenting anything. A
	// replay after a rollback is served this way so that the whole replay
	// fits in one display frame.
	Repeat
)

func (v Verdict) String() string {
	switch v {
	case Proceed:
		return "proceed"
	case Hold:
		return "hold"
	case Repeat:
		return "repeat"
	}
	return "unknown verdict"
}

// Intercept is the callback registered at the host's input-processing entry
// point. It runs to completion before the host resumes.
type Intercept func() Verdict

// Handle identifies an installed intercept.
type Handle int

// Installer is the binary instrumentation primitive. Replacing the function at
// an address with a callback is the only thing the core needs from it.
type Installer interface {
	InstallIntercept(addr uint32, cb Intercept) (Handle, error)
	RemoveIntercept(h Handle) error
}

// Capability names something the host can do or something the host owns.
type Capability int

// List of valid Capability values.
const (
	Initialize Capability = iota
	Reset
	ReadRNG
	ObjectPool
	InputBuffers
)

func (c Capability) String() string {
	switch c {
	case Initialize:
		return "initialize"
	case Reset:
		return "reset"
	case ReadRNG:
		return "read-rng"
	case ObjectPool:
		return "object-pool"
	case InputBuffers:
		return "input-buffers"
	}
	return "unknown capability"
}

// Capabilities lists every Capability in order.
var Capabilities = []Capability{Initialize, Reset, ReadRNG, ObjectPool, InputBuffers}

// Resolver returns the address of a capability.
type Resolver interface {
	Resolve(c Capability) (uint32, error)
}

// Host is the union of the three ports. Implementations are free to implement
// only the interfaces they need but the core requires all three.
type Host interface {
	Memory
	Installer
	Resolver
}
