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

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fm2knet/fm2knet/bridge"
	"github.com/fm2knet/fm2knet/console"
	"github.com/fm2knet/fm2knet/core"
	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/host/simhost"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/ipc"
	"github.com/fm2knet/fm2knet/logger"
	"github.com/fm2knet/fm2knet/modalflag"
	"github.com/fm2knet/fm2knet/performance"
	"github.com/fm2knet/fm2knet/performance/limiter"
	"github.com/fm2knet/fm2knet/random"
	"github.com/fm2knet/fm2knet/recorder"
	"github.com/fm2knet/fm2knet/statsview"
	"github.com/fm2knet/fm2knet/transport"
	"github.com/fm2knet/fm2knet/userinput"
	"github.com/fm2knet/fm2knet/userinput/sdlinput"
)

// sentinel error patterns for the soak harness
const (
	soakDiverged     = "soak: %d desyncs detected"
	soakDisconnected = "soak: peer disconnected at frame %d"
)

func diverged(err error) bool {
	return curated.Has(err, soakDiverged) || curated.Has(err, soakDisconnected)
}

// walk is an input source that holds a random combination of inputs for a
// random number of samples.
type walk struct {
	rnd  *random.Random
	in   input.Input
	hold int
}

var walkInputs = []input.Input{
	0, input.Left, input.Right, input.Up, input.Down,
	input.Left | input.A, input.Right | input.B, input.Down | input.C,
	input.A, input.B, input.C, input.D, input.E,
}

func newWalk(seed int64) *walk {
	w := &walk{rnd: random.NewRandom(seed)}
	w.rnd.ZeroSeed = true
	return w
}

func (w *walk) Sample() input.Input {
	if w.hold <= 0 {
		w.in = walkInputs[w.rnd.Intn(len(walkInputs))]
		w.hold = 1 + w.rnd.Intn(20)
	}
	w.hold--
	return w.in
}

// peer is one side of the soak
type peer struct {
	name string
	host *simhost.Host
	core *core.Core
}

func newPeer(name string, p *core.Preferences) (*peer, error) {
	h := simhost.NewHost(host.DefaultLayout())
	h.Boot(p.SessionConfig().Seed)

	c, err := core.New(p, h, nil)
	if err != nil {
		return nil, err
	}

	return &peer{name: name, host: h, core: c}, nil
}

func soak(md *modalflag.Modes, interrupt chan bool) error {
	md.NewMode()

	frames := md.AddInt("frames", 3600, "number of display frames to run")
	window := md.AddInt("P", 0, "prediction window (0 to use preferences)")
	latency := md.AddDuration("latency", 0, "one way latency between peers")
	jitter := md.AddDuration("jitter", 0, "maximum latency jitter")
	loss := md.AddFloat64("loss", 0.0, "probability of a datagram being dropped")
	snapshotProfile := md.AddString("snapshot", "", "snapshot profile: minimal, standard, complete")
	seed := md.AddInt("seed", 1, "seed for the simulated player input")
	desyncAt := md.AddInt("desyncat", -1, "corrupt the guest's game state at this frame")
	useUDP := md.AddBool("udp", false, "connect peers with UDP on localhost")
	port := md.AddInt("port", 0, "base UDP port (0 to use preferences)")
	fast := md.AddBool("fast", false, "do not limit the frame rate")
	log := md.AddBool("log", false, "echo log to stdout")
	db := md.AddString("db", "", "record sessions in telemetry database")
	dumpState := md.AddString("dumpstate", "", "write graphviz description of the host core to file")
	record := md.AddString("record", "", "record the host player's input to file")
	interactive := md.AddBool("interactive", false, "'q' to quit and 's' to print telemetry while running")
	profile := md.AddString("profile", "none", "run through profiler: cpu, mem, trace, all (comma sep)")
	stats := md.AddBool("statsview", false, fmt.Sprintf("run stats server (%s)", statsview.Address))
	play := md.AddBool("sdl", false, "control the host player with the keyboard and game controllers")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	if *log {
		logger.SetEcho(os.Stdout, false)
	}

	if *stats {
		if !statsview.Available() {
			return curated.Errorf("soak: statsview not available in this build")
		}
		statsview.Launch(os.Stdout)
	}

	prf, err := performance.ParseProfile(*profile)
	if err != nil {
		return err
	}

	// the preferences are never saved so command line values do not change
	// the preferences file
	prefs, err := core.NewPreferences("")
	if err != nil {
		return err
	}
	for _, f := range []func() error{
		func() error {
			if *window == 0 {
				return nil
			}
			return prefs.PredictionWindow.Set(*window)
		},
		func() error { return prefs.Latency.Set(*latency) },
		func() error { return prefs.Jitter.Set(*jitter) },
		func() error { return prefs.Loss.Set(*loss) },
		func() error {
			if *snapshotProfile == "" {
				return nil
			}
			return prefs.Profile.Set(*snapshotProfile)
		},
		func() error {
			if *port == 0 {
				return nil
			}
			return prefs.BasePort.Set(*port)
		},
		func() error { return prefs.Database.Set(*db) },
	} {
		if err := f(); err != nil {
			return err
		}
	}

	hst, err := newPeer("host", prefs)
	if err != nil {
		return err
	}
	gst, err := newPeer("guest", prefs)
	if err != nil {
		return err
	}

	hcfg := core.SessionConfig{
		Role:    ipc.Host,
		Sources: []bridge.Source{newWalk(int64(*seed))},
	}
	gcfg := core.SessionConfig{
		Role:    ipc.Guest,
		Sources: []bridge.Source{newWalk(int64(*seed) + 1)},
	}

	// the host player is controlled by the user instead of the random walk.
	// SDL events are pumped from this goroutine for the whole run
	var pollInput func() bool
	if *play {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		ctrl := &userinput.Controllers{}
		inp, err := sdlinput.NewSDLInput(ctrl, true)
		if err != nil {
			return err
		}
		defer inp.Destroy()

		hcfg.Sources = []bridge.Source{ctrl}
		pollInput = inp.Poll
	}

	if *useUDP {
		base := prefs.BasePort.Get().(int)
		hcfg.RemoteHost = "127.0.0.1"
		hcfg.RemotePort = base + 1
		hcfg.LocalPort = base
		gcfg.RemoteHost = "127.0.0.1"
		gcfg.RemotePort = base
		gcfg.LocalPort = base + 1
	} else {
		a, b, err := transport.NewLoopbackPair(prefs.Impairment(), nil, int64(*seed), false)
		if err != nil {
			return err
		}
		hcfg.Transport = a
		hcfg.Remote = a.RemoteAddress()
		gcfg.Transport = b
		gcfg.Remote = b.RemoteAddress()
	}

	if *record != "" {
		f, err := os.Create(*record)
		if err != nil {
			return curated.Errorf("soak: %v", err)
		}
		rec, err := recorder.NewRecorder(f, recorder.Header{Player: 0, Seed: prefs.SessionConfig().Seed})
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.End(); err != nil {
				logger.Logf(logger.Allow, "soak", "%v", err)
			}
		}()
		hcfg.Recorder = rec
	}

	if err := hst.core.BeginSession(hcfg); err != nil {
		return err
	}
	defer hst.core.Teardown()

	if err := gst.core.BeginSession(gcfg); err != nil {
		return err
	}
	defer gst.core.Teardown()

	run := func() error {
		return runSoak(hst, gst, soakOptions{
			frames:      *frames,
			desyncAt:    *desyncAt,
			fast:        *fast,
			interactive: *interactive,
			interrupt:   interrupt,
			pollInput:   pollInput,
		})
	}

	err = performance.RunProfiler(prf, "soak", run)

	if *dumpState != "" {
		if derr := writeDump(hst.core, *dumpState); derr != nil {
			logger.Logf(logger.Allow, "soak", "%v", derr)
		}
	}

	return err
}

type soakOptions struct {
	frames      int
	desyncAt    int
	fast        bool
	interactive bool
	interrupt   chan bool

	// called once per display frame before the hosts run. returns false if
	// the user has asked to quit
	pollInput func() bool
}

func runSoak(hst *peer, gst *peer, opts soakOptions) error {
	// both intercepts are called from this goroutine
	if err := hst.core.Install(); err != nil {
		return err
	}
	if err := gst.core.Install(); err != nil {
		return err
	}

	var con *console.Console
	if opts.interactive {
		var err error
		con, err = console.NewConsole(os.Stdin)
		if err != nil {
			return err
		}
		defer con.Restore()
	}

	lim := limiter.NewLimiter(hst.core.FrameDuration())
	defer lim.Stop()

	start := time.Now()
	var frame int

	for frame = 0; frame < opts.frames; frame++ {
		select {
		case <-opts.interrupt:
			return finish(hst, gst, frame, start)
		default:
		}

		if opts.pollInput != nil && !opts.pollInput() {
			return finish(hst, gst, frame, start)
		}

		hst.host.RunDisplayFrame()
		gst.host.RunDisplayFrame()

		if frame == opts.desyncAt {
			if err := gst.host.Corrupt(gst.host.Layout().RNG.Addr, 3); err != nil {
				return err
			}
			logger.Logf(logger.Allow, "soak", "guest state corrupted at frame %d", frame)
		}

		hst.core.OnFramePresented()
		gst.core.OnFramePresented()

		for _, p := range []*peer{hst, gst} {
			if err := p.core.Err(); err != nil {
				return curated.Errorf("soak: %s: %v", p.name, err)
			}
			if p.core.Disconnected() {
				printReports(hst, gst)
				return curated.Errorf(soakDisconnected, frame)
			}
		}

		if con != nil {
			if k, ok := con.Poll(); ok {
				switch k {
				case 'q', 'Q':
					return finish(hst, gst, frame, start)
				case 's', 'S':
					printReports(hst, gst)
				}
			}
		}

		if !opts.fast {
			lim.SetDuration(hst.core.FrameDuration())
			lim.Wait()
		}
	}

	return finish(hst, gst, frame, start)
}

func finish(hst *peer, gst *peer, frames int, start time.Time) error {
	printReports(hst, gst)

	fps, _ := performance.CalcFPS(frames, time.Since(start), hst.core.FrameDuration())
	fmt.Printf("%d frames at %.2f fps\n", frames, fps)

	if n := hst.core.Desyncs() + gst.core.Desyncs(); n > 0 {
		return curated.Errorf(soakDiverged, n)
	}
	return nil
}

func printReports(hst *peer, gst *peer) {
	fmt.Printf("%-5s: %s\n", hst.name, hst.core.Report())
	fmt.Printf("%-5s: %s\n", gst.name, gst.core.Report())
}

func writeDump(c *core.Core, path string) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return curated.Errorf("soak: %v", err)
	}
	defer f.Close()
	c.DumpState(f)
	return nil
}
