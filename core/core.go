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

package core

import (
	"io"
	"net/netip"
	"time"

	"github.com/bradleyjkemp/memviz"
	"github.com/fm2knet/fm2knet/assert"
	"github.com/fm2knet/fm2knet/bridge"
	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/ipc"
	"github.com/fm2knet/fm2knet/logger"
	"github.com/fm2knet/fm2knet/notifications"
	"github.com/fm2knet/fm2knet/objects"
	"github.com/fm2knet/fm2knet/recorder"
	"github.com/fm2knet/fm2knet/rollback"
	"github.com/fm2knet/fm2knet/shmem"
	"github.com/fm2knet/fm2knet/snapshot"
	"github.com/fm2knet/fm2knet/telemetry"
	"github.com/fm2knet/fm2knet/telemetry/store"
	"github.com/fm2knet/fm2knet/transport"
)

// Patterns for errors returned by the core.
const (
	NoSession        = "core: no session"
	SessionActive    = "core: session already active"
	AlreadyInstalled = "core: intercept already installed"
	SessionSetup     = "core: session setup: %v"
	Failed           = "core: %v"
)

// SessionConfig describes the session started by BeginSession().
type SessionConfig struct {
	Role ipc.Role

	// an existing transport and the address of the peer on it. if Transport
	// is nil a UDP transport is created for online sessions
	Transport transport.Transport
	Remote    netip.AddrPort

	// the peer for the UDP transport. zero ports mean the base port from
	// the preferences
	RemoteHost string
	RemotePort int
	LocalPort  int

	// input sources for the primary local player and, in offline sessions,
	// for the second local player
	Sources   []bridge.Source
	P2Sources []bridge.Source

	// records the input of the primary local player. can be nil
	Recorder *recorder.Recorder

	// the clock for the whole session. time.Now if nil
	Clock func() time.Time
}

// Core is the context of the rollback system.
type Core struct {
	prefs  *Preferences
	host   host.Host
	layout host.Layout
	notify notifications.Notify

	tracker *objects.Tracker
	eng     *snapshot.Engine

	tr      transport.Transport
	sess    *rollback.Session
	br      *bridge.Bridge
	tel     *telemetry.Telemetry
	store   *store.Store
	storeID int64

	region   *shmem.Region
	launcher *ipc.Bridge

	role   ipc.Role
	locals []rollback.Handle
	clock  func() time.Time

	// the first debug slot in the engine. slots below are used by the
	// session
	debugSlot int

	intercept  host.Handle
	installed  bool
	gameThread uint64

	// auto-save settings from the launcher override the preferences
	launcherAutosave bool
	launcherInterval uint32

	rollbackLimit bool
	disconnected  bool
	desyncs       int
	err           error
}

// New is the preferred method of initialisation for the Core type. The notify
// argument can be nil.
func New(p *Preferences, h host.Host, notify notifications.Notify) (*Core, error) {
	layout, err := host.DefaultLayout().WithResolver(h)
	if err != nil {
		return nil, curated.Errorf(Failed, err)
	}

	c := &Core{
		prefs:   p,
		host:    h,
		layout:  layout,
		notify:  notify,
		tracker: objects.NewTracker(h, layout.ObjectPool.Addr),
		clock:   time.Now,
	}

	return c, nil
}

// AttachLauncher publishes the state of the core to the launcher region and
// takes commands from it. The region is closed by Teardown().
func (c *Core) AttachLauncher(region *shmem.Region) error {
	l, err := ipc.NewBridge(region)
	if err != nil {
		return err
	}
	c.region = region
	c.launcher = l
	return nil
}

// LauncherSession returns the session configuration written by the launcher,
// if it has been updated since the last call. The input delay in the
// launcher configuration is applied to the preferences.
func (c *Core) LauncherSession() (SessionConfig, bool) {
	if c.launcher == nil {
		return SessionConfig{}, false
	}

	nc, ok := c.launcher.NetworkConfig()
	if !ok {
		return SessionConfig{}, false
	}

	if err := c.prefs.InputDelay.Set(int(nc.InputDelay)); err != nil {
		logger.Logf(logger.Allow, "core", "launcher input delay: %v", err)
	}

	cfg := SessionConfig{Role: ipc.Offline}
	if nc.Online {
		cfg.Role = ipc.Guest
		if nc.Host {
			cfg.Role = ipc.Host
		}
		cfg.RemoteHost = nc.RemoteAddress
		cfg.RemotePort = int(nc.Port)
		cfg.LocalPort = int(nc.Port)
	}

	return cfg, true
}

// BeginSession creates the session and everything it needs.
func (c *Core) BeginSession(cfg SessionConfig) (rerr error) {
	if c.sess != nil {
		return curated.Errorf(SessionActive)
	}

	if cfg.Clock != nil {
		c.clock = cfg.Clock
	}

	// undo partial setup on error
	defer func() {
		if rerr != nil {
			c.endSession()
			rerr = curated.Errorf(SessionSetup, rerr)
		}
	}()

	if cfg.Role > ipc.Guest {
		return curated.Errorf("unknown role (%d)", cfg.Role)
	}
	c.role = cfg.Role
	c.tracker.Reset()

	var remote netip.AddrPort
	if c.role != ipc.Offline {
		if cfg.Transport != nil {
			c.tr = cfg.Transport
			remote = cfg.Remote
		} else {
			var err error
			if remote, err = c.dialUDP(cfg); err != nil {
				return err
			}
		}
	}

	rcfg := c.prefs.SessionConfig()
	rcfg.Clock = c.clock

	var err error
	c.sess, err = rollback.NewSession(rcfg, c.tr)
	if err != nil {
		return err
	}

	var kinds [2]rollback.PlayerKind
	switch c.role {
	case ipc.Offline:
		kinds = [2]rollback.PlayerKind{rollback.Local, rollback.Local}
	case ipc.Host:
		kinds = [2]rollback.PlayerKind{rollback.Local, rollback.Remote}
	case ipc.Guest:
		kinds = [2]rollback.PlayerKind{rollback.Remote, rollback.Local}
	}

	c.locals = c.locals[:0]
	for _, k := range kinds {
		var addr netip.AddrPort
		if k == rollback.Remote {
			addr = remote
		}
		h, err := c.sess.AddPlayer(k, addr)
		if err != nil {
			return err
		}
		if k == rollback.Local {
			c.locals = append(c.locals, h)
		}
	}

	c.debugSlot = c.sess.RingCapacity()
	c.eng, err = snapshot.NewEngine(c.host, c.layout, c.tracker, c.prefs.SnapshotProfile(), c.debugSlot+ipc.NumSlots)
	if err != nil {
		return err
	}
	c.eng.Lock()

	c.br = bridge.NewBridge(c.sess, c.eng, bridge.Config{
		Locals:         c.locals,
		OnSessionEvent: c.onSessionEvent,
		Clock:          c.clock,
	})
	for _, src := range cfg.Sources {
		if err := c.br.AddSource(c.locals[0], src); err != nil {
			return err
		}
	}
	if len(c.locals) > 1 {
		for _, src := range cfg.P2Sources {
			if err := c.br.AddSource(c.locals[1], src); err != nil {
				return err
			}
		}
	}
	if cfg.Recorder != nil {
		c.br.SetRecorder(cfg.Recorder)
	}

	c.tel = telemetry.NewTelemetry(c.sess, c.eng, c.tr)

	if path := c.prefs.Database.Get().(string); path != "" {
		st, err := store.Open(path)
		if err != nil {
			logger.Logf(logger.Allow, "core", "telemetry database not available: %v", err)
		} else if id, err := st.BeginSession(c.role.String()); err != nil {
			logger.Logf(logger.Allow, "core", "telemetry database: %v", err)
			st.Close()
		} else {
			c.store = st
			c.storeID = id
		}
	}

	c.rollbackLimit = false
	c.disconnected = false
	c.desyncs = 0
	c.err = nil

	logger.Logf(logger.Allow, "core", "%s session with prediction window %d and input delay %d (%s profile)",
		c.role, rcfg.PredictionWindow, rcfg.InputDelay, c.eng.Profile())

	return nil
}

func (c *Core) dialUDP(cfg SessionConfig) (netip.AddrPort, error) {
	base := c.prefs.BasePort.Get().(int)

	local := cfg.LocalPort
	if local == 0 {
		local = base
	}
	port := cfg.RemotePort
	if port == 0 {
		port = base
	}

	remote, err := transport.ResolveAddress(cfg.RemoteHost, port)
	if err != nil {
		return netip.AddrPort{}, err
	}

	udp, err := transport.NewUDP(transport.UDPConfig{
		Port:       local,
		Impairment: c.prefs.Impairment(),
		Clock:      transport.Clock(c.clock),
		Seed:       int64(c.prefs.Seed.Get().(int)),
	})
	if err != nil {
		return netip.AddrPort{}, err
	}

	c.tr = udp

	return remote, nil
}

// Install registers the intercept at the host's input processing entry
// point. The calling goroutine is taken to be the game thread.
func (c *Core) Install() error {
	if c.installed {
		return curated.Errorf(AlreadyInstalled)
	}

	h, err := c.host.InstallIntercept(c.layout.ProcessInputs, c.OnIntercept)
	if err != nil {
		return curated.Errorf(Failed, err)
	}

	c.intercept = h
	c.installed = true
	c.gameThread = assert.GetGoRoutineID()

	return nil
}

// Err returns the error that stopped the core, if any.
func (c *Core) Err() error {
	return c.err
}

// Session returns the current session. Nil if there is no session.
func (c *Core) Session() *rollback.Session {
	return c.sess
}

// Engine returns the snapshot engine of the current session.
func (c *Core) Engine() *snapshot.Engine {
	return c.eng
}

// Tracker returns the object tracker.
func (c *Core) Tracker() *objects.Tracker {
	return c.tracker
}

// Bridge returns the input bridge of the current session.
func (c *Core) Bridge() *bridge.Bridge {
	return c.br
}

// Role of the core in the current session.
func (c *Core) Role() ipc.Role {
	return c.role
}

// Disconnected returns true if the peer has disconnected.
func (c *Core) Disconnected() bool {
	return c.disconnected
}

// Desyncs returns the number of desyncs detected in the session.
func (c *Core) Desyncs() int {
	return c.desyncs
}

// Report returns the current telemetry report.
func (c *Core) Report() telemetry.Report {
	if c.tel == nil {
		return telemetry.Report{}
	}
	return c.tel.Snapshot()
}

// FrameDuration returns the intended duration of the next display frame.
func (c *Core) FrameDuration() time.Duration {
	if c.sess == nil {
		return rollback.FrameDurationFor(0)
	}
	return c.sess.FrameDuration()
}

func (c *Core) fail(err error) {
	if c.err == nil {
		c.err = curated.Errorf(Failed, err)
		logger.Logf(logger.Allow, "core", "%v", err)
	}
}

// OnIntercept is called by the host every time it is about to process input
// for a frame.
func (c *Core) OnIntercept() host.Verdict {
	assert.GameThread(c.gameThread)

	if c.sess == nil {
		return host.Proceed
	}
	if c.err != nil {
		return host.Hold
	}

	c.commands()

	p1, p2, v, err := c.br.OnHostInputEntry()
	if err != nil {
		c.fail(err)
		return host.Hold
	}

	if v == host.Proceed {
		if err := host.WriteU32(c.host, c.layout.P1Input.Addr, uint32(p1)); err != nil {
			c.fail(err)
			return host.Hold
		}
		if err := host.WriteU32(c.host, c.layout.P2Input.Addr, uint32(p2)); err != nil {
			c.fail(err)
			return host.Hold
		}

		frame := c.br.Frame()
		c.tracker.Update(frame)

		if !c.br.Replaying() {
			c.autosave(frame)
		}
	}

	c.checkRollbackLimit()
	c.publish(p1, p2, v == host.Proceed)

	// the rest of a replay is run before the frame is presented
	if v == host.Proceed && c.br.HasAdvance() {
		return host.Repeat
	}

	return v
}

// OnFramePresented should be called once per presented display frame.
func (c *Core) OnFramePresented() {
	if c.tel != nil {
		c.tel.Tick(c.clock())
	}
}

func (c *Core) onSessionEvent(ev rollback.SessionEvent) {
	switch ev.Kind {
	case rollback.PeerConnected:
		c.notifyf(notifications.NotifyPeerConnected, ev.Handle)
	case rollback.PeerSynchronizing:
		c.notifyf(notifications.NotifyPeerSynchronizing, ev.Handle)
	case rollback.SessionStarted:
		// both peers begin with the seed of the host
		if err := host.WriteU32(c.host, c.layout.RNG.Addr, c.sess.Seed()); err != nil {
			c.fail(err)
		}
		c.notifyf(notifications.NotifySessionStarted)
	case rollback.PeerDisconnected:
		c.disconnected = true
		c.notifyf(notifications.NotifyPeerDisconnected, ev.Handle)
	case rollback.DesyncDetected:
		c.desyncs++
		if c.store != nil {
			if err := c.store.RecordDesync(c.storeID, ev); err != nil {
				logger.Logf(logger.Allow, "core", "%v", err)
			}
		}
		c.notifyf(notifications.NotifyDesync, ev.Frame)
	}
}

func (c *Core) notifyf(notice notifications.Notice, args ...interface{}) {
	if c.notify == nil {
		return
	}
	if err := c.notify.Notify(notice, args...); err != nil {
		logger.Logf(logger.Allow, "core", "notify %s: %v", notice, err)
	}
}

// notify once per session when a rollback of the full window has happened
func (c *Core) checkRollbackLimit() {
	if c.rollbackLimit {
		return
	}
	if c.sess.Stats().MaxRollback >= c.prefs.PredictionWindow.Get().(int) {
		c.rollbackLimit = true
		c.notifyf(notifications.NotifyRollbackLimit)
	}
}

func (c *Core) autosave(frame uint32) {
	interval := uint32(c.prefs.AutosaveInterval.Get().(int))
	if c.launcherAutosave {
		interval = c.launcherInterval
	}
	if interval == 0 || frame == 0 || frame%interval != 0 {
		return
	}

	if _, err := c.eng.Save(c.debugSlot+ipc.NumSlots-1, frame); err != nil {
		logger.Logf(logger.Allow, "core", "auto-save of frame %d: %v", frame, err)
	}
}

// commands from the launcher
func (c *Core) commands() {
	if c.launcher == nil {
		return
	}

	cmd := c.launcher.TakeCommands()
	c.launcherAutosave = cmd.AutoSave
	c.launcherInterval = cmd.AutoSaveInterval

	if !cmd.Any() {
		return
	}

	if cmd.ProfileRequested {
		if err := c.eng.SetProfile(cmd.Profile); err != nil {
			// takes effect with the next session
			logger.Logf(logger.Allow, "core", "profile %s deferred: %v", cmd.Profile, err)
			if err := c.prefs.Profile.Set(cmd.Profile.String()); err != nil {
				logger.Logf(logger.Allow, "core", "%v", err)
			}
		}
	}

	if cmd.SaveState {
		c.saveSlot(0)
	}
	if cmd.SaveToSlot {
		c.saveSlot(int(cmd.TargetSlot))
	}

	if !(cmd.LoadState || cmd.LoadFromSlot || cmd.Rollback) {
		return
	}

	if c.role != ipc.Offline {
		logger.Log(logger.Allow, "core", "load and rollback requests are only possible offline")
		return
	}

	if cmd.LoadState {
		c.loadSlot(0)
	}
	if cmd.LoadFromSlot {
		c.loadSlot(int(cmd.TargetSlot))
	}
	if cmd.Rollback {
		cur := c.sess.CurrentFrame()
		n := cmd.RollbackFrames
		if n > cur {
			n = cur
		}
		if err := c.sess.RollbackTo(cur - n); err != nil {
			logger.Logf(logger.Allow, "core", "rollback of %d frames: %v", cmd.RollbackFrames, err)
		}
	}
}

func (c *Core) saveSlot(slot int) {
	if slot < 0 || slot >= ipc.NumSlots {
		logger.Logf(logger.Allow, "core", "illegal debug slot (%d)", slot)
		return
	}
	frame := c.sess.CurrentFrame()
	if _, err := c.eng.Save(c.debugSlot+slot, frame); err != nil {
		logger.Logf(logger.Allow, "core", "save to slot %d: %v", slot, err)
		return
	}
	c.notifyf(notifications.NotifySlotSaved, slot)
}

func (c *Core) loadSlot(slot int) {
	if slot < 0 || slot >= ipc.NumSlots {
		logger.Logf(logger.Allow, "core", "illegal debug slot (%d)", slot)
		return
	}
	if _, err := c.eng.Restore(c.debugSlot + slot); err != nil {
		logger.Logf(logger.Allow, "core", "load from slot %d: %v", slot, err)
		return
	}
	c.notifyf(notifications.NotifySlotLoaded, slot)
}

func (c *Core) publish(p1, p2 input.Input, valid bool) {
	if c.launcher == nil {
		return
	}

	r := c.tel.Snapshot()

	var index uint8
	if c.role == ipc.Guest {
		index = 1
	}

	c.launcher.Publish(ipc.Status{
		Frame:               c.br.Frame(),
		P1:                  p1,
		P2:                  p2,
		Valid:               valid,
		Saves:               r.Saves,
		Loads:               r.Loads,
		AvgSaveMicros:       r.AvgSaveMicros,
		AvgLoadMicros:       r.AvgLoadMicros,
		Rollbacks:           r.Rollbacks,
		MaxRollback:         r.MaxRollback,
		RollbackFrames:      r.RollbackFrames,
		RollbacksThisSecond: r.RollbacksThisSecond,
		Desyncs:             r.Desyncs,
		PlayerIndex:         index,
		Role:                c.role,
	})

	for i := 0; i < ipc.NumSlots; i++ {
		if err := c.launcher.SetSlot(i, c.eng.SlotStatus(c.debugSlot+i)); err != nil {
			logger.Logf(logger.Allow, "core", "slot %d status: %v", i, err)
			break
		}
	}
}

// close everything belonging to the session
func (c *Core) endSession() error {
	var rerr error
	keep := func(err error) {
		if err != nil && rerr == nil {
			rerr = err
		}
	}

	report := c.Report()

	if c.sess != nil {
		if err := c.sess.Close(); err != nil && !curated.Is(err, rollback.Closed) {
			keep(err)
		}
	}
	if c.tr != nil {
		keep(c.tr.Close())
	}
	if c.store != nil {
		keep(c.store.EndSession(c.storeID, report))
		keep(c.store.Close())
	}
	if c.eng != nil {
		c.eng.Unlock()
	}

	c.sess = nil
	c.tr = nil
	c.br = nil
	c.tel = nil
	c.store = nil
	c.eng = nil

	return rerr
}

// EndSession closes the session, leaving the intercept installed. Without a
// session the intercept lets the host run freely.
func (c *Core) EndSession() error {
	if c.sess == nil {
		return curated.Errorf(NoSession)
	}
	logger.Logf(logger.Allow, "core", "session ended: %v", c.Report())
	return c.endSession()
}

// Teardown removes the intercept and closes the session, the transport, the
// telemetry database and the launcher region.
func (c *Core) Teardown() error {
	var rerr error

	if c.installed {
		if err := c.host.RemoveIntercept(c.intercept); err != nil {
			rerr = curated.Errorf(Failed, err)
		}
		c.installed = false
	}

	if c.sess != nil {
		if err := c.endSession(); err != nil && rerr == nil {
			rerr = curated.Errorf(Failed, err)
		}
	}

	if c.region != nil {
		if err := c.region.Close(); err != nil && rerr == nil {
			rerr = curated.Errorf(Failed, err)
		}
		c.region = nil
		c.launcher = nil
	}

	return rerr
}

// the parts of the core shown by DumpState()
type dump struct {
	Role      string
	Installed bool
	Err       string

	Frame     uint32
	Confirmed uint32
	Occupancy int

	Report  telemetry.Report
	Bridge  bridge.Stats
	Objects objects.Statistics
	Slots   []snapshot.SlotStatus
}

// DumpState writes a graphviz description of the core to w.
func (c *Core) DumpState(w io.Writer) {
	d := &dump{
		Role:      c.role.String(),
		Installed: c.installed,
		Objects:   c.tracker.Statistics(),
		Report:    c.Report(),
	}
	if c.err != nil {
		d.Err = c.err.Error()
	}
	if c.sess != nil {
		d.Frame = c.sess.CurrentFrame()
		d.Confirmed = c.sess.ConfirmedFrame()
		d.Occupancy = c.sess.RingOccupancy()
		d.Bridge = c.br.Stats()
		for i := 0; i < c.eng.NumSlots(); i++ {
			d.Slots = append(d.Slots, c.eng.SlotStatus(i))
		}
	}
	memviz.Map(w, d)
}
