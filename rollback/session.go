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

package rollback

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/logger"
	"github.com/fm2knet/fm2knet/transport"
)

// Patterns for errors returned by the session.
const (
	IllegalConfig    = "rollback: illegal configuration: %v"
	TooManyPlayers   = "rollback: session already has two players"
	UnknownPlayer    = "rollback: unknown player (%d)"
	NotLocalPlayer   = "rollback: player %d is not a local player"
	NoTransport      = "rollback: a remote player requires a transport"
	NotReady         = "rollback: session requires two players"
	Closed           = "rollback: session is closed"
	Halted           = "rollback: session halted: %v"
	OutsideWindow    = "rollback: frame %d is outside the rollback window"
	MalformedMessage = "rollback: malformed %v message: %v"
)

// no rollback is pending
const noRollback = -1

// Stats for a session.
type Stats struct {
	Frames         uint32
	ConfirmedFrame uint32

	Rollbacks        int
	RollbackFrames   int
	MaxRollback      int
	RollbackFailures int

	Stalls         int
	Predictions    int
	Mispredictions int

	Desyncs        int
	RingOverwrites int

	Malformed int

	Ping        time.Duration
	AvgPing     time.Duration
	Jitter      time.Duration
	FramesAhead float64
}

// Session coordinates a rollback session between two players. The players can
// both be local (an offline session) or one local and one remote.
//
// Session is not safe for use from more than one goroutine. Every method must
// be called from the game thread.
type Session struct {
	cfg   Config
	clock func() time.Time
	tr    transport.Transport

	players    [2]player
	numPlayers int

	// the local and remote players of an online session. remote is nil for
	// an offline session
	local  *player
	remote *player

	ring snapshotRing

	// the next frame to be advanced
	fSim uint32

	// most recent Save and Advance issued. reset to the frame before the
	// loaded frame by a Load
	lastSave    int64
	lastAdvance int64

	// the earliest frame advanced with an input that turned out to be wrong
	firstIncorrect int64

	started bool
	closed  bool
	halted  error

	seed uint32

	// event queues. game events are reused between calls to
	// DrainGameEvents(). session events are double buffered
	game     []GameEvent
	events   []SessionEvent
	drained  []SessionEvent
	desync   desync
	pacing   pacing
	stats    Stats
	now      time.Time
	msg      message
	out      [transport.MaxPayload]byte
	outbound [maxInputsPerMessage]input.Input

	// receive function passed to the transport. kept here so that a method
	// value isn't created on every poll
	receiveFn func(from netip.AddrPort, dg transport.Datagram)
}

// NewSession is the preferred method of initialisation for the Session type.
// The transport can be nil for an offline session.
func NewSession(cfg Config, tr transport.Transport) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:            cfg,
		clock:          cfg.Clock,
		tr:             tr,
		ring:           newSnapshotRing(cfg.ringCapacity()),
		lastSave:       -1,
		lastAdvance:    -1,
		firstIncorrect: noRollback,
		seed:           cfg.Seed,
		game:           make([]GameEvent, 0, 2*cfg.ringCapacity()+4),
		events:         make([]SessionEvent, 0, 16),
		drained:        make([]SessionEvent, 0, 16),
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	s.receiveFn = s.receive
	s.now = s.clock()

	return s, nil
}

// AddPlayer adds a player to the session. The address is ignored for local
// players. Exactly two players must be added. Handles are assigned in the
// order the players are added.
func (s *Session) AddPlayer(kind PlayerKind, addr netip.AddrPort) (Handle, error) {
	if s.halted != nil {
		return 0, s.halted
	}
	if s.numPlayers >= len(s.players) {
		return 0, curated.Errorf(TooManyPlayers)
	}

	h := Handle(s.numPlayers)
	p := &s.players[h]
	*p = player{kind: kind, handle: h}

	switch kind {
	case Local:
		// frames before the input delay have neutral input
		p.count = uint32(s.cfg.InputDelay)
		if s.local == nil {
			s.local = p
		}
	case Remote:
		if s.tr == nil {
			return 0, curated.Errorf(NoTransport)
		}
		if s.remote != nil {
			return 0, curated.Errorf(TooManyPlayers)
		}
		p.addr = addr
		p.state = Resolving
		p.started = s.clock()
		p.lastRecv = p.started
		p.nonce = uint32(p.started.UnixNano()) ^ uint32(h+1)*0x9e3779b9
		s.remote = p
	default:
		return 0, curated.Errorf(UnknownPlayer, h)
	}

	s.numPlayers++
	logger.Logf(logger.Allow, "rollback", "added %s player %d", kind, h)

	return h, nil
}

func (s *Session) player(h Handle) (*player, error) {
	if h < 0 || int(h) >= s.numPlayers {
		return nil, curated.Errorf(UnknownPlayer, h)
	}
	return &s.players[h], nil
}

// halt the session. every subsequent call returns the same error
func (s *Session) halt(reason string, args ...interface{}) error {
	s.halted = curated.Errorf(Halted, fmt.Sprintf(reason, args...))
	logger.Log(logger.Allow, "rollback", s.halted.Error())
	return s.halted
}

// Err returns the error that halted the session, or nil if the session has not
// been halted.
func (s *Session) Err() error {
	return s.halted
}

// IsClosed returns true if the session has been closed, either by a call to
// Close() or by the disconnection of the peer.
func (s *Session) IsClosed() bool {
	return s.closed
}

// IsOnline returns true if the session has a remote player.
func (s *Session) IsOnline() bool {
	return s.remote != nil
}

// IsHost returns true if the player with handle zero is local.
func (s *Session) IsHost() bool {
	return s.numPlayers > 0 && s.players[0].kind == Local
}

// Seed returns the seed for the session. For the host this is the seed in the
// configuration. A guest adopts the seed advertised by the host.
func (s *Session) Seed() uint32 {
	return s.seed
}

// Started returns true once every player is in session.
func (s *Session) Started() bool {
	return s.started
}

// AddLocalInput sets the input for the local player. The input is applied to
// the frame advanced by the next call to DrainGameEvents(). Calling more than
// once before the next call to DrainGameEvents() replaces the input.
func (s *Session) AddLocalInput(h Handle, in input.Input) error {
	if s.halted != nil {
		return s.halted
	}
	if s.closed {
		return curated.Errorf(Closed)
	}
	p, err := s.player(h)
	if err != nil {
		return err
	}
	if p.kind != Local {
		return curated.Errorf(NotLocalPlayer, h)
	}
	p.pending = in.Masked()
	return nil
}

// CurrentFrame returns the next frame to be advanced.
func (s *Session) CurrentFrame() uint32 {
	return s.fSim
}

// ConfirmedFrame returns the number of frames for which the input of every
// player is known. It is never more than the current frame.
func (s *Session) ConfirmedFrame() uint32 {
	c := s.fSim
	for i := 0; i < s.numPlayers; i++ {
		if s.players[i].count < c {
			c = s.players[i].count
		}
	}
	return c
}

// PeerState returns the state of the connection with the player. Local
// players are in session once the session has started.
func (s *Session) PeerState(h Handle) (PeerState, error) {
	p, err := s.player(h)
	if err != nil {
		return Disconnected, err
	}
	if p.kind == Remote {
		return p.state, nil
	}
	if s.closed {
		return Disconnected, nil
	}
	if s.started {
		return InSession, nil
	}
	return Syncing, nil
}

// RingOccupancy returns the number of frames in the snapshot ring.
func (s *Session) RingOccupancy() int {
	return s.ring.occupancy()
}

// RingCapacity returns the number of slots in the snapshot ring.
func (s *Session) RingCapacity() int {
	return s.ring.capacity()
}

// FramesAhead is the rolling average of how many frames the local simulation
// is ahead of the peer. Negative values mean the local simulation is behind.
func (s *Session) FramesAhead() float64 {
	return s.pacing.framesAhead()
}

// FrameDuration returns the duration of the next display frame. Frames are
// stretched when the local simulation is ahead and compressed when it is
// behind.
func (s *Session) FrameDuration() time.Duration {
	return frameDuration(s.pacing.framesAhead())
}

// FrameDurationFor returns the frame duration for a frames ahead value.
func FrameDurationFor(framesAhead float64) time.Duration {
	return frameDuration(framesAhead)
}

// Stats returns a copy of the session statistics.
func (s *Session) Stats() Stats {
	st := s.stats
	st.Frames = s.fSim
	st.ConfirmedFrame = s.ConfirmedFrame()
	st.Ping = s.pacing.ping
	st.AvgPing = s.pacing.avgPing
	st.Jitter = s.pacing.jitter
	st.FramesAhead = s.pacing.framesAhead()
	return st
}

func (s *Session) event(ev SessionEvent) {
	s.events = append(s.events, ev)
	logger.Logf(logger.Allow, "rollback", "%v", ev)
}

// DrainSessionEvents returns every session event since the previous call. The
// returned slice is only valid until the next call.
func (s *Session) DrainSessionEvents() []SessionEvent {
	s.drained, s.events = s.events, s.drained[:0]
	return s.drained
}

// checkStarted emits SessionStarted once every player is in session
func (s *Session) checkStarted() {
	if s.started || s.numPlayers < len(s.players) {
		return
	}
	if s.remote != nil && s.remote.state != InSession {
		return
	}
	s.started = true
	s.event(SessionEvent{Kind: SessionStarted})
}

// DrainGameEvents returns the game events the caller must execute before
// the host is allowed to continue. The returned slice is reused by the next
// call.
//
// Every Advance is preceded by a Save of the same frame. If a misprediction
// has been detected the events begin with a Load and a replay of every frame
// from the loaded frame. If the simulation is too far ahead of the confirmed
// frame then no Advance is returned and the caller should wait.
func (s *Session) DrainGameEvents() ([]GameEvent, error) {
	s.game = s.game[:0]

	if s.halted != nil {
		return s.game, s.halted
	}
	if s.closed {
		return s.game, curated.Errorf(Closed)
	}
	if s.numPlayers < len(s.players) {
		return s.game, curated.Errorf(NotReady)
	}

	s.checkStarted()
	if !s.started {
		return s.game, nil
	}

	if s.firstIncorrect != noRollback {
		if err := s.rollback(uint32(s.firstIncorrect)); err != nil {
			return s.game, err
		}
	}

	if s.remote != nil && s.fSim >= s.remote.count+uint32(s.cfg.PredictionWindow) {
		s.stats.Stalls++
		return s.game, nil
	}

	// commit local input to the frame
	f := s.fSim + uint32(s.cfg.InputDelay)
	for i := range s.players {
		p := &s.players[i]
		if p.kind == Local {
			p.setInput(f, p.pending)
			p.count = f + 1
		}
	}

	if err := s.save(s.fSim); err != nil {
		return s.game, err
	}
	if err := s.advance(s.fSim, false); err != nil {
		return s.game, err
	}
	s.fSim++

	if s.remote != nil && s.remote.state == InSession {
		s.sendInputs()
	}

	return s.game, nil
}

// rollback to the frame and replay every frame up to the current frame
func (s *Session) rollback(target uint32) error {
	s.firstIncorrect = noRollback

	from, ok := s.ring.latest(target)
	if !ok {
		s.stats.RollbackFailures++
		logger.Logf(logger.Allow, "rollback", "no snapshot at or before frame %d", target)
		return nil
	}

	s.game = append(s.game, GameEvent{Kind: Load, Frame: from, Slot: s.ring.slot(from)})
	s.ring.truncate(from)
	s.lastSave = int64(from) - 1
	s.lastAdvance = int64(from) - 1

	for g := from; g < s.fSim; g++ {
		if err := s.save(g); err != nil {
			return err
		}
		if err := s.advance(g, true); err != nil {
			return err
		}
	}

	depth := int(s.fSim - from)
	s.stats.Rollbacks++
	s.stats.RollbackFrames += depth
	if depth > s.stats.MaxRollback {
		s.stats.MaxRollback = depth
	}

	return nil
}

func (s *Session) save(frame uint32) error {
	if int64(frame) <= s.lastSave {
		return s.halt("save of frame %d follows save of frame %d", frame, s.lastSave)
	}

	needFrom := s.fSim
	if s.remote != nil && s.remote.count < needFrom {
		needFrom = s.remote.count
	}

	slot, overwrite := s.ring.save(frame, needFrom)
	if overwrite {
		s.stats.RingOverwrites++
		logger.Logf(logger.Allow, "rollback", "snapshot ring overwrite at frame %d", frame)
	}

	s.lastSave = int64(frame)
	s.desync.acked.forget(frame)
	s.game = append(s.game, GameEvent{Kind: Save, Frame: frame, Slot: slot})

	return nil
}

func (s *Session) advance(frame uint32, replay bool) error {
	if s.lastSave != int64(frame) {
		return s.halt("advance of frame %d without a save", frame)
	}
	if s.lastAdvance+1 != int64(frame) {
		return s.halt("advance of frame %d follows advance of frame %d", frame, s.lastAdvance)
	}

	ev := GameEvent{Kind: Advance, Frame: frame, Replay: replay}

	var predicted bool
	for i := range s.players {
		p := &s.players[i]
		in, pred := p.inputFor(frame)
		if pred {
			if p.kind == Local {
				return s.halt("no local input for frame %d", frame)
			}
			predicted = true
		}
		p.used[frame%inputHistory] = in
		ev.Inputs[i] = in
	}

	if predicted && !replay {
		s.stats.Predictions++
	}

	s.lastAdvance = int64(frame)
	s.game = append(s.game, ev)

	return nil
}

// AckSave is called by the caller after executing a Save event. The checksum
// is the checksum of the saved state and ok is false if the save failed. A
// failed save is skipped and the frame cannot be loaded.
func (s *Session) AckSave(frame uint32, checksum uint32, ok bool) error {
	if s.halted != nil {
		return s.halted
	}
	if !s.ring.ack(frame, ok) {
		return s.halt("acknowledgement of frame %d with no outstanding save", frame)
	}
	if ok {
		s.desync.acked.set(frame, checksum)
	} else {
		s.desync.acked.forget(frame)
		logger.Logf(logger.Allow, "rollback", "save of frame %d failed", frame)
	}
	return nil
}

// RollbackTo schedules a Load of the frame and a replay to the current frame.
// The events are returned by the next call to DrainGameEvents(). The frame
// must be in the snapshot ring and no more than the prediction window behind
// the current frame.
func (s *Session) RollbackTo(frame uint32) error {
	if s.halted != nil {
		return s.halted
	}
	if s.closed {
		return curated.Errorf(Closed)
	}
	if frame > s.fSim || frame+uint32(s.cfg.PredictionWindow) < s.fSim || !s.ring.present(frame) {
		return curated.Errorf(OutsideWindow, frame)
	}
	if s.firstIncorrect == noRollback || int64(frame) < s.firstIncorrect {
		s.firstIncorrect = int64(frame)
	}
	return nil
}

// Close the session. The peer is told of the disconnection. Game events that
// have not been drained are discarded but outstanding saves can still be
// acknowledged. The transport is not closed.
func (s *Session) Close() error {
	if s.remote != nil && s.remote.state != Disconnected {
		s.sendTo(s.remote, encodeDisconnect(s.out[:]))
		s.remote.state = Disconnected
		s.remote.reported = true
	}
	s.closed = true
	s.game = s.game[:0]
	return nil
}
