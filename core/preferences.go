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
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/paths"
	"github.com/fm2knet/fm2knet/prefs"
	"github.com/fm2knet/fm2knet/rollback"
	"github.com/fm2knet/fm2knet/snapshot"
	"github.com/fm2knet/fm2knet/transport"
)

// PrefsFile is the name of the preferences file in the resource directory.
const PrefsFile = "preferences"

// IllegalPreference is the pattern for errors from the preference hooks.
const IllegalPreference = "core: %s: %v"

// the largest input delay that can be set through the preferences
const maxPrefsInputDelay = 4

// Preferences defines and collates all the preference values used by the
// core.
type Preferences struct {
	dsk *prefs.Disk

	PredictionWindow  prefs.Int
	InputDelay        prefs.Int
	DesyncDetection   prefs.Bool
	DesyncInterval    prefs.Int
	DisconnectTimeout prefs.Duration
	Seed              prefs.Int

	Profile          prefs.String
	AutosaveInterval prefs.Int

	BasePort prefs.Int
	Latency  prefs.Duration
	Jitter   prefs.Duration
	Loss     prefs.Float

	// path to the telemetry database. the empty string means no database
	Database prefs.String
}

func (p *Preferences) String() string {
	return p.dsk.String()
}

// NewPreferences is the preferred method of initialisation for the
// Preferences type. If path is empty the preferences file in the resource
// directory is used. Values are loaded from the file if it exists.
func NewPreferences(path string) (*Preferences, error) {
	p := &Preferences{}

	p.PredictionWindow.SetHookPre(func(v prefs.Value) error {
		if w := v.(int); w < rollback.MinPredictionWindow || w > rollback.MaxPredictionWindow {
			return curated.Errorf(IllegalPreference, "session.predictionWindow", "must be between 1 and 15")
		}
		return nil
	})
	p.InputDelay.SetHookPre(func(v prefs.Value) error {
		if d := v.(int); d < 0 || d > maxPrefsInputDelay {
			return curated.Errorf(IllegalPreference, "session.inputDelay", "must be between 0 and 4")
		}
		return nil
	})
	p.DesyncInterval.SetHookPre(func(v prefs.Value) error {
		if v.(int) < 1 {
			return curated.Errorf(IllegalPreference, "session.desyncInterval", "must be at least 1")
		}
		return nil
	})
	p.DisconnectTimeout.SetHookPre(func(v prefs.Value) error {
		if v.(time.Duration) < rollback.MinDisconnectTimeout {
			return curated.Errorf(IllegalPreference, "session.disconnectTimeout", "must be at least 300ms")
		}
		return nil
	})
	p.Seed.SetHookPre(func(v prefs.Value) error {
		if s := int64(v.(int)); s < 0 || s > 0xffffffff {
			return curated.Errorf(IllegalPreference, "session.seed", "must be a 32 bit value")
		}
		return nil
	})
	p.Profile.SetHookPre(func(v prefs.Value) error {
		if _, err := snapshot.ParseProfile(v.(string)); err != nil {
			return curated.Errorf(IllegalPreference, "snapshot.profile", err)
		}
		return nil
	})
	p.AutosaveInterval.SetHookPre(func(v prefs.Value) error {
		if v.(int) < 0 {
			return curated.Errorf(IllegalPreference, "snapshot.autosaveInterval", "must not be negative")
		}
		return nil
	})
	p.BasePort.SetHookPre(func(v prefs.Value) error {
		if b := v.(int); b < 1 || b > 0xffff-1-200 {
			return curated.Errorf(IllegalPreference, "transport.basePort", "out of range")
		}
		return nil
	})
	p.Latency.SetHookPre(func(v prefs.Value) error {
		return transport.Impairment{Latency: v.(time.Duration)}.Validate()
	})
	p.Jitter.SetHookPre(func(v prefs.Value) error {
		return transport.Impairment{Jitter: v.(time.Duration)}.Validate()
	})
	p.Loss.SetHookPre(func(v prefs.Value) error {
		return transport.Impairment{Loss: v.(float64)}.Validate()
	})

	if err := p.SetDefaults(); err != nil {
		return nil, err
	}

	if path == "" {
		path = paths.ResourcePath(PrefsFile)
	}

	var err error
	p.dsk, err = prefs.NewDisk(path)
	if err != nil {
		return nil, err
	}

	for k, v := range map[string]interface {
		Set(prefs.Value) error
		Get() prefs.Value
		Reset() error
		String() string
	}{
		"session.predictionWindow":  &p.PredictionWindow,
		"session.inputDelay":        &p.InputDelay,
		"session.desyncDetection":   &p.DesyncDetection,
		"session.desyncInterval":    &p.DesyncInterval,
		"session.disconnectTimeout": &p.DisconnectTimeout,
		"session.seed":              &p.Seed,
		"snapshot.profile":          &p.Profile,
		"snapshot.autosaveInterval": &p.AutosaveInterval,
		"transport.basePort":        &p.BasePort,
		"transport.latency":         &p.Latency,
		"transport.jitter":          &p.Jitter,
		"transport.loss":            &p.Loss,
		"telemetry.database":        &p.Database,
	} {
		if err := p.dsk.Add(k, v); err != nil {
			return nil, err
		}
	}

	if err := p.dsk.Load(false); err != nil {
		return nil, err
	}

	return p, nil
}

// SetDefaults reverts all preferences to their default values.
func (p *Preferences) SetDefaults() error {
	def := rollback.DefaultConfig()

	for _, f := range []func() error{
		func() error { return p.PredictionWindow.Set(def.PredictionWindow) },
		func() error { return p.InputDelay.Set(def.InputDelay) },
		func() error { return p.DesyncDetection.Set(def.DesyncDetection) },
		func() error { return p.DesyncInterval.Set(def.DesyncInterval) },
		func() error { return p.DisconnectTimeout.Set(def.DisconnectTimeout) },
		func() error { return p.Seed.Set(int(def.Seed)) },
		func() error { return p.Profile.Set(snapshot.Standard.String()) },
		func() error { return p.AutosaveInterval.Set(0) },
		func() error { return p.BasePort.Set(7000) },
		func() error { return p.Latency.Set(time.Duration(0)) },
		func() error { return p.Jitter.Set(time.Duration(0)) },
		func() error { return p.Loss.Set(0.0) },
		func() error { return p.Database.Set(paths.ResourcePath("telemetry.db")) },
	} {
		if err := f(); err != nil {
			return err
		}
	}

	return nil
}

// Load preferences from disk. Values on the command line stack take
// precedence.
func (p *Preferences) Load() error {
	return p.dsk.Load(false)
}

// Save preferences to disk.
func (p *Preferences) Save() error {
	return p.dsk.Save()
}

// SessionConfig returns the rollback configuration described by the
// preferences.
func (p *Preferences) SessionConfig() rollback.Config {
	cfg := rollback.DefaultConfig()
	cfg.PredictionWindow = p.PredictionWindow.Get().(int)
	cfg.InputDelay = p.InputDelay.Get().(int)
	cfg.DesyncDetection = p.DesyncDetection.Get().(bool)
	cfg.DesyncInterval = p.DesyncInterval.Get().(int)
	cfg.DisconnectTimeout = p.DisconnectTimeout.Get().(time.Duration)
	cfg.Seed = uint32(p.Seed.Get().(int))
	return cfg
}

// SnapshotProfile returns the snapshot profile named by the preferences.
func (p *Preferences) SnapshotProfile() snapshot.Profile {
	prf, err := snapshot.ParseProfile(p.Profile.Get().(string))
	if err != nil {
		return snapshot.Standard
	}
	return prf
}

// Impairment returns the simulated network conditions described by the
// preferences.
func (p *Preferences) Impairment() transport.Impairment {
	return transport.Impairment{
		Latency: p.Latency.Get().(time.Duration),
		Jitter:  p.Jitter.Get().(time.Duration),
		Loss:    p.Loss.Get().(float64),
	}
}
