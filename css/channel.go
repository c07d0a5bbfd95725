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

package css

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/logger"
)

// Patterns for errors returned by the css package.
const (
	Timeout   = "css: timeout: %v"
	Malformed = "css: malformed message: %v"
	Handshake = "css: handshake failed: %v"
	Network   = "css: %v"
	Closed    = "css: channel closed"
)

// HandshakeWord is sent by the client and echoed by the host.
const HandshakeWord = 0xC5511A5D

// PortOffset is added to the session base port to give the CSS port.
const PortOffset = 200

// DefaultAcceptTimeout is how long the host waits for a client.
const DefaultAcceptTimeout = 10 * time.Second

// the deadlines for the client
const (
	resolveTimeout   = 5 * time.Second
	connectTimeout   = 5 * time.Second
	handshakeTimeout = 5 * time.Second
)

// how long Poll() waits for data
const pollTimeout = time.Millisecond

// how long Send() waits for the write to complete
const writeTimeout = 100 * time.Millisecond

// more than this many consecutive bad magic words closes the channel
const maxBadMagic = 3

// Listener is the host side of the channel before a client has connected.
type Listener struct {
	ln *net.TCPListener
}

// NewListener starts listening on the address. Use Listen() to listen on the
// CSS port.
func NewListener(ctx context.Context, address string) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, curated.Errorf(Network, err)
	}
	return &Listener{ln: ln.(*net.TCPListener)}, nil
}

// Addr returns the address the listener is listening on.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close the listener without accepting a client.
func (l *Listener) Close() error {
	if err := l.ln.Close(); err != nil {
		return curated.Errorf(Network, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Accept exactly one client and perform the handshake. The listener is
// closed whatever the outcome.
func (l *Listener) Accept(ctx context.Context, timeout time.Duration) (*Channel, error) {
	defer l.ln.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := l.ln.SetDeadline(deadline); err != nil {
		return nil, curated.Errorf(Network, err)
	}

	conn, err := l.ln.AcceptTCP()
	if err != nil {
		if isTimeout(err) {
			return nil, curated.Errorf(Timeout, "no client connected")
		}
		return nil, curated.Errorf(Network, err)
	}

	var b [4]byte
	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if _, err := io.ReadFull(conn, b[:]); err != nil {
		conn.Close()
		return nil, curated.Errorf(Handshake, err)
	}
	if w := binary.LittleEndian.Uint32(b[:]); w != HandshakeWord {
		conn.Close()
		return nil, curated.Errorf(Handshake, fmt.Sprintf("unexpected word %#08x", w))
	}
	if _, err := conn.Write(b[:]); err != nil {
		conn.Close()
		return nil, curated.Errorf(Handshake, err)
	}
	_ = conn.SetDeadline(time.Time{})
	_ = conn.SetNoDelay(true)

	logger.Logf(logger.Allow, "css", "client connected from %s", conn.RemoteAddr())

	return newChannel(conn, true), nil
}

// Listen on the CSS port and accept exactly one client. The timeout is the
// accept timeout. DefaultAcceptTimeout is a good value.
func Listen(ctx context.Context, basePort int, timeout time.Duration) (*Channel, error) {
	l, err := NewListener(ctx, ":"+strconv.Itoa(basePort+PortOffset))
	if err != nil {
		return nil, err
	}
	return l.Accept(ctx, timeout)
}

// Dial the host's CSS port. The address is a hostname or a literal address.
func Dial(ctx context.Context, address string, basePort int, timeout time.Duration) (*Channel, error) {
	rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupHost(rctx, address)
	if err != nil {
		if isTimeout(err) || errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return nil, curated.Errorf(Timeout, err)
		}
		return nil, curated.Errorf(Network, err)
	}

	return DialAddress(ctx, net.JoinHostPort(addrs[0], strconv.Itoa(basePort+PortOffset)), timeout)
}

// DialAddress connects to the host:port address and performs the handshake.
// The timeout is the connection timeout. If it is zero a default of 5 seconds
// is used.
func DialAddress(ctx context.Context, address string, timeout time.Duration) (*Channel, error) {
	if timeout <= 0 {
		timeout = connectTimeout
	}

	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if isTimeout(err) {
			return nil, curated.Errorf(Timeout, err)
		}
		return nil, curated.Errorf(Network, err)
	}
	conn := c.(*net.TCPConn)

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], HandshakeWord)
	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if _, err := conn.Write(b[:]); err != nil {
		conn.Close()
		return nil, curated.Errorf(Handshake, err)
	}
	var echo [4]byte
	if _, err := io.ReadFull(conn, echo[:]); err != nil {
		conn.Close()
		if isTimeout(err) {
			return nil, curated.Errorf(Timeout, err)
		}
		return nil, curated.Errorf(Handshake, err)
	}
	if echo != b {
		conn.Close()
		return nil, curated.Errorf(Handshake, "echo does not match")
	}
	_ = conn.SetDeadline(time.Time{})
	_ = conn.SetNoDelay(true)

	logger.Logf(logger.Allow, "css", "connected to %s", conn.RemoteAddr())

	return newChannel(conn, false), nil
}

// Channel is a connected CSS side channel.
type Channel struct {
	conn net.Conn
	host bool

	local  Cursor
	remote Cursor

	// the local cursor in the last message written. Send() only writes
	// when the local cursor has changed
	sent     Cursor
	sentOnce bool

	// received bytes not yet consumed
	buf [4 * MessageSize]byte
	n   int

	// consecutive bad magic words
	badMagic int

	// count of messages received and malformed messages skipped
	Received int
	Skipped  int

	err error
}

func newChannel(conn net.Conn, host bool) *Channel {
	return &Channel{conn: conn, host: host}
}

// IsHost returns true for the host side of the channel.
func (ch *Channel) IsHost() bool {
	return ch.host
}

// SetLocal sets the local cursor. The message is not sent until the next call
// to Send(). A color that is not one of the ColorButtons is sent as neutral.
func (ch *Channel) SetLocal(c Cursor) {
	if !ValidColor(c.Color) {
		c.Color = input.Neutral
	}
	ch.local = c
}

// Local returns the local cursor.
func (ch *Channel) Local() Cursor {
	return ch.local
}

// Remote returns the most recent cursor received from the peer.
func (ch *Channel) Remote() Cursor {
	return ch.remote
}

// BothReady returns true if both players have confirmed their selection.
func (ch *Channel) BothReady() bool {
	return ch.local.Confirmed && ch.remote.Confirmed
}

func (ch *Channel) message() Message {
	if ch.host {
		return Message{P1: ch.local, P2: ch.remote}
	}
	return Message{P1: ch.remote, P2: ch.local}
}

func (ch *Channel) fail(err error) error {
	if ch.err == nil {
		ch.err = err
		ch.conn.Close()
		logger.Logf(logger.Allow, "css", "%v", err)
	}
	return ch.err
}

// Send the local cursor to the peer if it has changed since the last send.
func (ch *Channel) Send() error {
	if ch.err != nil {
		return ch.err
	}

	if ch.sentOnce && ch.local == ch.sent {
		return nil
	}

	b := Marshal(ch.message())

	_ = ch.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := ch.conn.Write(b[:]); err != nil {
		if isTimeout(err) {
			return ch.fail(curated.Errorf(Timeout, err))
		}
		return ch.fail(curated.Errorf(Network, err))
	}

	ch.sent = ch.local
	ch.sentOnce = true
	return nil
}

var magicBytes = func() []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], Magic)
	return b[:]
}()

// consume one message from the buffer if there is one. bytes before a magic
// word are discarded, as is a message that is cut short by the magic word of
// the next message
func (ch *Channel) consume() (bool, error) {
	for ch.n >= 4 {
		i := bytes.Index(ch.buf[:ch.n], magicBytes)
		if i != 0 {
			// keep the tail in case it is the start of a magic word
			drop := i
			if i < 0 {
				drop = ch.n - 3
			}
			if err := ch.drop(drop); err != nil {
				return false, err
			}
			continue
		}

		if ch.n < MessageSize {
			return false, nil
		}

		// a magic word that starts inside the message means the message is
		// a partial one
		end := ch.n
		if end > MessageSize+3 {
			end = MessageSize + 3
		}
		if j := bytes.Index(ch.buf[4:end], magicBytes); j >= 0 {
			if err := ch.drop(4 + j); err != nil {
				return false, err
			}
			continue
		}

		msg, err := Unmarshal(ch.buf[:MessageSize])
		if err != nil {
			logger.Logf(logger.Allow, "css", "%v", err)
			if err := ch.drop(MessageSize); err != nil {
				return false, err
			}
			continue
		}
		copy(ch.buf[:], ch.buf[MessageSize:ch.n])
		ch.n -= MessageSize
		ch.badMagic = 0
		ch.Received++

		if ch.host {
			ch.remote = msg.P2
		} else {
			ch.remote = msg.P1
		}
		return true, nil
	}
	return false, nil
}

// drop bytes from the front of the buffer. every started message worth of
// dropped bytes is one bad message
func (ch *Channel) drop(n int) error {
	bad := (n + MessageSize - 1) / MessageSize
	ch.badMagic += bad
	ch.Skipped += bad
	if ch.badMagic > maxBadMagic {
		return ch.fail(curated.Errorf(Malformed, "too many bad messages"))
	}

	logger.Logf(logger.Allow, "css", "dropped %d bytes", n)
	copy(ch.buf[:], ch.buf[n:ch.n])
	ch.n -= n
	return nil
}

// Poll reads from the peer without blocking for more than a millisecond.
// Returns true if a message was received. At most one message is consumed per
// call.
func (ch *Channel) Poll() (bool, error) {
	if ch.err != nil {
		return false, ch.err
	}

	if ok, err := ch.consume(); ok || err != nil {
		return ok, err
	}

	_ = ch.conn.SetReadDeadline(time.Now().Add(pollTimeout))
	n, err := ch.conn.Read(ch.buf[ch.n:])
	ch.n += n
	if err != nil && !isTimeout(err) {
		if errors.Is(err, io.EOF) {
			return false, ch.fail(curated.Errorf(Closed))
		}
		return false, ch.fail(curated.Errorf(Network, err))
	}

	return ch.consume()
}

// Close the channel.
func (ch *Channel) Close() error {
	if ch.err != nil {
		if curated.Is(ch.err, Closed) {
			return nil
		}
	}
	if ch.err == nil {
		ch.err = curated.Errorf(Closed)
	}
	if err := ch.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return curated.Errorf(Network, err)
	}
	return nil
}
