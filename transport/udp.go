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
	"errors"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/logger"
	"github.com/fm2knet/fm2knet/random"
)

// number of received datagrams that can be waiting for a call to Receive().
// datagrams that arrive when the queue is full are dropped
const receiveDepth = 256

// number of datagrams that can be held back by the impairment delay
const delayDepth = 256

// UDPConfig is used to create a UDP transport.
type UDPConfig struct {
	// local port to listen on. zero chooses any free port
	Port int

	Impairment Impairment
	Clock      Clock

	// seed for the impairment random numbers
	Seed     int64
	ZeroSeed bool
}

type received struct {
	buf  *[MaxDatagram]byte
	n    int
	from netip.AddrPort
}

type delayed struct {
	used bool
	due  uint64
	to   netip.AddrPort
	n    int
	buf  [MaxDatagram]byte
}

// UDP is a Transport over a UDP socket. A goroutine reads from the socket
// and passes datagrams to Receive() over a channel. Everything else happens
// on the caller's goroutine.
type UDP struct {
	conn  *net.UDPConn
	local netip.AddrPort

	recv chan received
	free chan *[MaxDatagram]byte
	done chan struct{}
	wg   sync.WaitGroup

	imp   Impairment
	rnd   *random.Random
	clock Clock

	seq  Sequencer
	wins windows

	// encoding buffer for datagrams sent without delay
	out [MaxDatagram]byte

	// datagrams held back by the impairment
	delay [delayDepth]delayed

	counters Counters

	// dropped by the receive goroutine
	droppedFull atomic.Int64

	closed bool
}

// NewUDP creates a UDP transport listening on the port.
func NewUDP(cfg UDPConfig) (*UDP, error) {
	if err := cfg.Impairment.Validate(); err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.Port})
	if err != nil {
		return nil, curated.Errorf(Listen, err)
	}

	la := conn.LocalAddr().(*net.UDPAddr).AddrPort()

	udp := &UDP{
		conn:  conn,
		local: netip.AddrPortFrom(la.Addr().Unmap(), la.Port()),
		recv:  make(chan received, receiveDepth),
		free:  make(chan *[MaxDatagram]byte, receiveDepth+1),
		done:  make(chan struct{}),
		imp:   cfg.Impairment,
		rnd:   random.NewRandom(cfg.Seed),
		clock: clockOrDefault(cfg.Clock),
		wins:  make(windows),
	}
	udp.rnd.ZeroSeed = cfg.ZeroSeed

	for i := 0; i < cap(udp.free); i++ {
		udp.free <- &[MaxDatagram]byte{}
	}

	udp.wg.Add(1)
	go udp.read()

	logger.Logf(logger.Allow, "transport", "udp: listening on %v", udp.local)

	return udp, nil
}

// ResolveAddress returns the address of the host and port. The host can be a
// hostname or an IPv4 literal.
func ResolveAddress(host string, port int) (netip.AddrPort, error) {
	a, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return netip.AddrPort{}, curated.Errorf(Resolve, err)
	}
	ap := a.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

// read runs in its own goroutine until the transport is closed
func (udp *UDP) read() {
	defer udp.wg.Done()

	for {
		var buf *[MaxDatagram]byte
		select {
		case buf = <-udp.free:
		case <-udp.done:
			return
		}

		n, from, err := udp.conn.ReadFromUDPAddrPort(buf[:])
		if err != nil {
			udp.free <- buf
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		select {
		case udp.recv <- received{buf: buf, n: n, from: netip.AddrPortFrom(from.Addr().Unmap(), from.Port())}:
		default:
			udp.free <- buf
			udp.droppedFull.Add(1)
		}
	}
}

// SetImpairment changes the impairment of datagrams sent from this end.
func (udp *UDP) SetImpairment(imp Impairment) error {
	if err := imp.Validate(); err != nil {
		return err
	}
	udp.imp = imp
	return nil
}

// Send implements the Transport interface.
func (udp *UDP) Send(to netip.AddrPort, payload []byte) {
	if udp.closed {
		return
	}

	seq := udp.seq.Next(to)

	if udp.rnd.Chance(udp.imp.Loss) {
		udp.counters.DroppedLoss++
		udp.flush()
		return
	}

	now := udp.clock.micros()

	d := udp.imp.delay(udp.rnd)
	if d > 0 {
		for i := range udp.delay {
			e := &udp.delay[i]
			if e.used {
				continue
			}
			n, err := Encode(e.buf[:], seq, now, payload)
			if err != nil {
				udp.counters.SendErrors++
				break
			}
			e.used = true
			e.n = n
			e.to = to
			e.due = now + uint64(d.Microseconds())
			udp.flush()
			return
		}
		udp.counters.DroppedFull++
		udp.flush()
		return
	}

	n, err := Encode(udp.out[:], seq, now, payload)
	if err != nil {
		udp.counters.SendErrors++
		return
	}
	udp.write(to, udp.out[:n])
	udp.flush()
}

func (udp *UDP) write(to netip.AddrPort, b []byte) {
	if _, err := udp.conn.WriteToUDPAddrPort(b, to); err != nil {
		udp.counters.SendErrors++
		return
	}
	udp.counters.Sent++
}

// flush sends every delayed datagram that is due
func (udp *UDP) flush() {
	now := udp.clock.micros()
	for i := range udp.delay {
		e := &udp.delay[i]
		if e.used && e.due <= now {
			udp.write(e.to, e.buf[:e.n])
			e.used = false
		}
	}
}

// Receive implements the Transport interface.
func (udp *UDP) Receive(fn func(from netip.AddrPort, dg Datagram)) {
	if udp.closed {
		return
	}

	udp.flush()

	for {
		select {
		case r := <-udp.recv:
			udp.deliver(r, fn)
			udp.free <- r.buf
		default:
			return
		}
	}
}

func (udp *UDP) deliver(r received, fn func(from netip.AddrPort, dg Datagram)) {
	dg, err := Decode(r.buf[:r.n])
	if err != nil {
		udp.counters.Malformed++
		return
	}
	if !udp.wins.accept(r.from, dg.Seq) {
		udp.counters.Duplicates++
		return
	}
	udp.counters.Received++
	fn(r.from, dg)
}

// Close implements the Transport interface. Waits for the receiving goroutine
// to end.
func (udp *UDP) Close() error {
	if udp.closed {
		return curated.Errorf(Closed)
	}
	udp.closed = true
	close(udp.done)
	err := udp.conn.Close()
	udp.wg.Wait()
	if err != nil {
		return curated.Errorf("transport: udp: %v", err)
	}
	return nil
}

// LocalAddress implements the Transport interface.
func (udp *UDP) LocalAddress() netip.AddrPort {
	return udp.local
}

// Counters implements the Transport interface.
func (udp *UDP) Counters() Counters {
	c := udp.counters
	c.DroppedFull += int(udp.droppedFull.Load())
	return c
}

// waiting for datagrams is only useful in tests and in the harness. the
// session itself never waits
func (udp *UDP) pending() int {
	return len(udp.recv)
}

// WaitPending blocks until at least one datagram is waiting or the timeout
// expires.
func (udp *UDP) WaitPending(timeout time.Duration) bool {
	end := time.Now().Add(timeout)
	for time.Now().Before(end) {
		if udp.pending() > 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return udp.pending() > 0
}
