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

package prefs

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"gopkg.in/yaml.v2"
)

// WarningBoilerPlate is written to the head of every preferences file.
const WarningBoilerPlate = "# *** do not edit this file while FM2KNet is running ***"

// key separator in the pref name. each part becomes a level of nesting in the
// YAML file.
const keySep = "."

// Disk represents preference values as stored on disk.
type Disk struct {
	path    string
	entries map[string]pref

	// values found in the file that have no matching entry. these are kept so
	// that saving a partial set of preferences does not destroy the rest
	unknown map[string]interface{}
}

// NewDisk is the preferred method of initialisation for the Disk type.
func NewDisk(path string) (*Disk, error) {
	dsk := &Disk{
		path:    path,
		entries: make(map[string]pref),
		unknown: make(map[string]interface{}),
	}
	return dsk, nil
}

func (dsk *Disk) String() string {
	s := strings.Builder{}
	for _, k := range dsk.keys() {
		s.WriteString(fmt.Sprintf("%s :: %s\n", k, dsk.entries[k]))
	}
	return s.String()
}

// Add preference value to list of values to store/load from Disk. The key value
// is used to identify the value in the file and must be unique.
func (dsk *Disk) Add(key string, p pref) error {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, " ") {
		return curated.Errorf("prefs: illegal key (%s)", key)
	}
	if _, ok := dsk.entries[key]; ok {
		return curated.Errorf("prefs: key already added (%s)", key)
	}
	dsk.entries[key] = p
	return nil
}

func (dsk *Disk) keys() []string {
	keys := make([]string, 0, len(dsk.entries))
	for k := range dsk.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reset all preference values to their zero value.
func (dsk *Disk) Reset() error {
	for _, k := range dsk.keys() {
		if err := dsk.entries[k].Reset(); err != nil {
			return curated.Errorf("prefs: %v", err)
		}
	}
	return nil
}

// Save current preference values to disk. Values that were in the file when it
// was loaded, but which are not managed by this Disk, are written back
// unchanged.
func (dsk *Disk) Save() error {
	flat := make(map[string]interface{}, len(dsk.entries)+len(dsk.unknown))
	for k, v := range dsk.unknown {
		flat[k] = v
	}
	for k, p := range dsk.entries {
		v := p.Get()
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		flat[k] = v
	}

	data, err := yaml.Marshal(nest(flat))
	if err != nil {
		return curated.Errorf("prefs: %v", err)
	}

	var b bytes.Buffer
	b.WriteString(WarningBoilerPlate)
	b.WriteString("\n")
	b.Write(data)

	if err := os.WriteFile(dsk.path, b.Bytes(), 0o600); err != nil {
		return curated.Errorf("prefs: %v", err)
	}

	return nil
}

// Load preference values from disk. A missing file is not an error unless
// mustExist is true. After the file is loaded, any values on the top of the
// command line stack are applied.
func (dsk *Disk) Load(mustExist bool) error {
	data, err := os.ReadFile(dsk.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !mustExist {
			return dsk.applyCommandLine()
		}
		return curated.Errorf("prefs: %v", err)
	}

	var tree yaml.MapSlice
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return curated.Errorf("prefs: %v", err)
	}

	flat := make(map[string]interface{})
	flatten("", tree, flat)

	for k, v := range flat {
		if p, ok := dsk.entries[k]; ok {
			if err := p.Set(v); err != nil {
				return curated.Errorf("prefs: %s: %v", k, err)
			}
		} else {
			dsk.unknown[k] = v
		}
	}

	return dsk.applyCommandLine()
}

func (dsk *Disk) applyCommandLine() error {
	for _, k := range dsk.keys() {
		if ok, v := GetCommandLinePref(k); ok {
			if err := dsk.entries[k].Set(v); err != nil {
				return curated.Errorf("prefs: %s: %v", k, err)
			}
		}
	}
	return nil
}

// flatten the nested YAML tree into dotted keys.
func flatten(prefix string, tree yaml.MapSlice, flat map[string]interface{}) {
	for _, item := range tree {
		k := fmt.Sprintf("%v", item.Key)
		if prefix != "" {
			k = prefix + keySep + k
		}
		if sub, ok := item.Value.(yaml.MapSlice); ok {
			flatten(k, sub, flat)
			continue
		}
		flat[k] = item.Value
	}
}

// nest the dotted keys into an ordered YAML tree. keys are sorted so that the
// output is stable.
func nest(flat map[string]interface{}) yaml.MapSlice {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tree yaml.MapSlice
	for _, k := range keys {
		tree = insert(tree, strings.Split(k, keySep), flat[k])
	}
	return tree
}

func insert(tree yaml.MapSlice, path []string, v interface{}) yaml.MapSlice {
	if len(path) == 1 {
		return append(tree, yaml.MapItem{Key: path[0], Value: v})
	}
	for i := range tree {
		if tree[i].Key == path[0] {
			if sub, ok := tree[i].Value.(yaml.MapSlice); ok {
				tree[i].Value = insert(sub, path[1:], v)
				return tree
			}
		}
	}
	return append(tree, yaml.MapItem{Key: path[0], Value: insert(nil, path[1:], v)})
}
