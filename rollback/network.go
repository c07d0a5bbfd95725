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
	"net/netip"
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/logger"
	"github.com/fm2knet/fm2knet/transport"
)

// PollNetwork receives and sends network messages. It must be called at least
// once per frame. It never blocks.
func (s *Session) PollNetwork() error {
	if s.halted != nil {
		return s.halted
	}
	if s.closed {
		return curated.Errorf(Closed)
	}

	s.now = s.clock()

	if s.remote == nil {
		s.checkStarted()
		return nil
	}

	s.tr.Receive(s.receiveFn)
	if s.halted != nil {
		return s.halted
	}

	s.updatePeer(s.remote)
	if s.closed {
		return nil
	}

	s.checkStarted()
	s.checkFinal()

	return nil
}

// the shortest time between handshake messages, keepalives and resent inputs
// to a peer. it is less than a frame so that a peer hears from us every frame
const sendInterval = 16 * time.Millisecond

func (s *Session) sendTo(p *player, payload []byte) {
	p.lastSend = s.now
	s.tr.Send(p.addr, payload)
}

// due returns true if the interval has passed since t
func (s *Session) due(t time.Time) bool {
	return s.now.Sub(t) >= sendInterval
}

// updatePeer sends whatever the connection state requires and checks for
// timeouts
func (s *Session) updatePeer(p *player) {
	if p.state == Disconnected {
		return
	}

	if p.state == Resolving {
		if s.now.Sub(p.started) >= s.cfg.ConnectTimeout {
			logger.Logf(logger.Allow, "rollback", "no response from %s", p.addr)
			s.disconnect(p)
			return
		}
	} else {
		silence := time.Duration(s.cfg.silentWindows()) * s.cfg.PollWindow
		if s.now.Sub(p.lastRecv) >= silence {
			logger.Logf(logger.Allow, "rollback", "%s silent for %v", p.addr, s.now.Sub(p.lastRecv))
			s.disconnect(p)
			return
		}
	}

	switch p.state {
	case Resolving, Connected:
		if s.due(p.lastSend) {
			s.sendTo(p, encodeHello(s.out[:], p.nonce, s.seed))
		}
	case Syncing:
		if s.due(p.lastSend) {
			s.sendTo(p, encodeSync(s.out[:], s.fSim))
		}
	case InSession:
		if !s.sendInputs() && s.due(p.lastSend) {
			s.sendTo(p, nil)
		}
		if s.now.Sub(s.pacing.lastQuality) >= s.cfg.QualityInterval {
			s.pacing.lastQuality = s.now
			adv := int32(s.localAdvantage() * 100)
			s.sendTo(p, encodeQuality(s.out[:], adv, uint64(s.now.UnixMicro())))
		}
	}
}

// sendInputs sends every local input that the peer hasn't acknowledged. inputs
// are sent at once if there is a new input or a new ack value. inputs that have
// been sent but not acknowledged are sent again once per interval. it returns
// false if nothing was sent
func (s *Session) sendInputs() bool {
	p := s.remote
	if p == nil || p.state != InSession {
		return false
	}

	from := p.ack
	to := s.local.count
	fresh := to > p.sentCount || p.sentAck != p.count
	if !fresh && (from >= to || !s.due(p.lastInputs)) {
		return false
	}
	if to-from > maxInputsPerMessage {
		to = from + maxInputsPerMessage
	}

	n := 0
	for f := from; f < to; f++ {
		s.outbound[n] = s.local.input(f)
		n++
	}

	p.sentAck = p.count
	p.sentCount = to
	p.lastInputs = s.now
	s.sendTo(p, encodeInput(s.out[:], from, s.outbound[:n], p.count))
	return true
}

// localAdvantage is how many frames the local simulation is ahead of the
// remote simulation, allowing for latency
func (s *Session) localAdvantage() float64 {
	return float64(s.fSim) - (float64(s.remote.count) + s.pacing.latencyFrames())
}

func (s *Session) disconnect(p *player) {
	p.state = Disconnected
	s.closed = true
	if !p.reported {
		p.reported = true
		s.event(SessionEvent{Kind: PeerDisconnected, Handle: p.handle})
	}
}

func (s *Session) receive(from netip.AddrPort, dg transport.Datagram) {
	p := s.remote
	if p == nil || p.state == Disconnected || s.halted != nil {
		return
	}
	if from.Addr().Unmap() != p.addr.Addr().Unmap() || from.Port() != p.addr.Port() {
		logger.Logf(logger.Allow, "rollback", "datagram from unknown address %s", from)
		return
	}

	p.lastRecv = s.now
	if p.state == Resolving {
		p.state = Connected
		s.event(SessionEvent{Kind: PeerConnected, Handle: p.handle})
	}

	// keepalive
	if len(dg.Payload) == 0 {
		return
	}

	if err := decode(dg.Payload, &s.msg); err != nil {
		s.stats.Malformed++
		logger.Logf(logger.Allow, "rollback", "%v", err)
		return
	}

	switch s.msg.kind {
	case msgHello:
		if !s.IsHost() && s.seed != s.msg.seed {
			s.seed = s.msg.seed
			logger.Logf(logger.Allow, "rollback", "using seed %#08x from host", s.seed)
		}
		s.sendTo(p, encodeHelloReply(s.out[:], s.msg.nonce))

	case msgHelloReply:
		if s.msg.nonce != p.nonce || p.state != Connected {
			return
		}
		p.state = Syncing
		s.event(SessionEvent{Kind: PeerSynchronizing, Handle: p.handle})
		if p.gotSync {
			s.synchronized(p)
		}

	case msgSync:
		s.receiveSync(p)

	case msgInput:
		if p.state == Syncing || p.state == Connected {
			s.receiveSync(p)
		}
		if p.state != InSession {
			return
		}
		p.gotInput = true
		s.receiveInputs(p)

	case msgChecksum:
		s.desync.remote.set(s.msg.frame, s.msg.checksum)
		s.compare(p, s.msg.frame)

	case msgQuality:
		s.pacing.remoteAdvantage = float64(s.msg.advantage) / 100
		s.pacing.addAdvantage((s.localAdvantage() - s.pacing.remoteAdvantage) / 2)
		s.sendTo(p, encodeQualityReply(s.out[:], s.msg.pingTime))

	case msgQualityReply:
		ping := time.Duration(uint64(s.now.UnixMicro())-s.msg.pingTime) * time.Microsecond
		if ping >= 0 {
			s.pacing.addPing(ping)
		}

	case msgDisconnect:
		logger.Logf(logger.Allow, "rollback", "%s has disconnected", p.addr)
		s.disconnect(p)
	}
}

func (s *Session) receiveSync(p *player) {
	p.gotSync = true
	switch p.state {
	case Syncing:
		s.synchronized(p)
	case InSession:
		// the peer is still waiting for our sync
		if !p.gotInput {
			s.sendTo(p, encodeSync(s.out[:], s.fSim))
		}
	}
}

func (s *Session) synchronized(p *player) {
	p.state = InSession
	s.event(SessionEvent{Kind: PeerSynchronized, Handle: p.handle})
}

// receiveInputs adds the inputs in the message to the remote player's input
// history. inputs that have already been received are ignored
func (s *Session) receiveInputs(p *player) {
	if s.msg.ack > s.local.count {
		s.stats.Malformed++
		logger.Logf(logger.Allow, "rollback", "peer acknowledges frame %d which hasn't been sent", s.msg.ack)
		return
	}
	if s.msg.ack > p.ack {
		p.ack = s.msg.ack
	}

	for i := 0; i < s.msg.count; i++ {
		f := s.msg.start + uint32(i)
		if f < p.count {
			continue
		}
		if f > p.count {
			// gap. the missing inputs will be resent
			break
		}

		in := s.msg.inputs[i].Masked()
		p.setInput(f, in)
		p.count++

		if f < s.fSim && p.used[f%inputHistory] != in {
			s.stats.Mispredictions++
			if s.firstIncorrect == noRollback || int64(f) < s.firstIncorrect {
				s.firstIncorrect = int64(f)
			}
		}
	}
}

// checkFinal moves acknowledged checksums of frames that can no longer be
// rolled back to the final list and reports them to the peer
func (s *Session) checkFinal() {
	if !s.cfg.DesyncDetection || s.remote.state != InSession {
		return
	}

	limit := s.ConfirmedFrame()
	if s.firstIncorrect != noRollback && uint32(s.firstIncorrect) < limit {
		limit = uint32(s.firstIncorrect)
	}

	for f := s.desync.nextFinal; f <= limit && f < s.fSim; f++ {
		s.desync.nextFinal = f + 1
		if f%uint32(s.cfg.DesyncInterval) != 0 {
			continue
		}
		cs, ok := s.desync.acked.get(f)
		if !ok {
			continue
		}
		s.desync.final.set(f, cs)
		s.sendTo(s.remote, encodeChecksum(s.out[:], f, cs))
		s.compare(s.remote, f)
	}
}

func (s *Session) compare(p *player, frame uint32) {
	report, l, r := s.desync.compare(frame)
	if !report {
		return
	}
	s.stats.Desyncs++
	s.event(SessionEvent{Kind: DesyncDetected, Handle: p.handle, Frame: frame, Local: l, Remote: r})
}
