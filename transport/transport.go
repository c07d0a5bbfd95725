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

package transport

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/random"
)

// Transport is implemented by UDP and Loopback.
type Transport interface {
	// Send payload to the address. Errors are not returned. A datagram that
	// cannot be sent is dropped.
	Send(to netip.AddrPort, payload []byte)

	// Receive calls fn for every datagram that has arrived. It never blocks.
	// The datagram is only valid for the duration of the call to fn.
	Receive(fn func(from netip.AddrPort, dg Datagram))

	// Close the transport.
	Close() error

	// LocalAddress returns the address of this end of the transport.
	LocalAddress() netip.AddrPort

	// Counters returns a copy of the transport counters.
	Counters() Counters
}

// Counters for a transport.
type Counters struct {
	Sent        int
	Received    int
	DroppedLoss int
	DroppedFull int
	Duplicates  int
	Malformed   int
	SendErrors  int
}

func (c Counters) String() string {
	return fmt.Sprintf("sent %d, received %d, lost %d, full %d, dup %d, malformed %d",
		c.Sent, c.Received, c.DroppedLoss, c.DroppedFull, c.Duplicates, c.Malformed)
}

// Impairment describes how a connection is artificially degraded. The zero
// value is an unimpaired connection.
type Impairment struct {
	// the fixed delay added to every datagram
	Latency time.Duration

	// a uniformly distributed extra delay in the range [0, Jitter]
	Jitter time.Duration

	// the probability of a datagram being lost. in the range [0, 1]
	Loss float64
}

// Validate returns an error if the impairment values are out of range.
func (imp Impairment) Validate() error {
	if imp.Latency < 0 || imp.Jitter < 0 {
		return curated.Errorf("transport: impairment: negative delay")
	}
	if imp.Loss < 0 || imp.Loss > 1 {
		return curated.Errorf("transport: impairment: loss must be between 0 and 1")
	}
	return nil
}

// IsZero returns true if there is no impairment.
func (imp Impairment) IsZero() bool {
	return imp.Latency == 0 && imp.Jitter == 0 && imp.Loss == 0
}

func (imp Impairment) String() string {
	if imp.IsZero() {
		return "unimpaired"
	}
	return fmt.Sprintf("latency %v, jitter %v, loss %.0f%%", imp.Latency, imp.Jitter, imp.Loss*100)
}

// delay returns the delay for the next datagram
func (imp Impairment) delay(rnd *random.Random) time.Duration {
	return imp.Latency + rnd.Duration(imp.Jitter)
}

// Clock returns the current time. Both transports take a clock so that tests
// can control the passing of time.
type Clock func() time.Time

// timestamps are microseconds since the unix epoch so that both ends of a
// loopback agree on the meaning of a delivery time, even in different
// processes
func (c Clock) micros() uint64 {
	return uint64(c().UnixMicro())
}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
