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

package snapshot

import (
	"strings"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/objects"
)

// Profile decides how much of the host state is saved.
type Profile int

// List of valid Profile values.
const (
	Minimal Profile = iota
	Standard
	Complete
)

// Profiles lists every profile in order.
var Profiles = []Profile{Minimal, Standard, Complete}

func (p Profile) String() string {
	switch p {
	case Minimal:
		return "minimal"
	case Standard:
		return "standard"
	case Complete:
		return "complete"
	}
	return "unknown profile"
}

// ParseProfile returns the profile with the name. Case insensitive.
func ParseProfile(s string) (Profile, error) {
	for _, p := range Profiles {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return Minimal, curated.Errorf(UnknownProfile, s)
}

// section identifiers.
const (
	secObjects byte = iota + 1
	secPool
	secHitJudge
	secRenderState
	secAnimation
	secPlayerData
	secScalars
	secFrameCounter
	secP1History
	secP2History
	secInputChanges
	secRNG
)

// section describes one part of the serialised state. the object section is
// the only section that isn't a copy of one or more regions
type section struct {
	id      byte
	regions []host.Region
	size    int
}

// objects section is saved by the object tracker
func (s section) isObjects() bool {
	return s.id == secObjects
}

func newSection(id byte, regions ...host.Region) section {
	s := section{id: id, regions: regions}
	for _, r := range regions {
		s.size += r.Size
	}
	return s
}

// sections returns the sections for the profile, in the order they are
// saved and restored
func sections(p Profile, l host.Layout) []section {
	var secs []section

	switch p {
	case Minimal:
		secs = append(secs, section{id: secObjects, size: objects.MaxSize})
	case Standard:
		secs = append(secs,
			section{id: secObjects, size: objects.MaxSize},
			newSection(secHitJudge, l.HitJudge),
			newSection(secRenderState, l.RenderState),
			newSection(secAnimation, l.AnimationControl),
		)
	case Complete:
		secs = append(secs,
			newSection(secPool, l.ObjectPool),
			newSection(secPlayerData, l.PlayerData),
		)
	}

	secs = append(secs,
		newSection(secScalars, l.Scalars...),
		newSection(secFrameCounter, l.FrameCounter),
		newSection(secP1History, l.P1History),
		newSection(secP2History, l.P2History),
		newSection(secInputChanges, l.InputChanges),
		newSection(secRNG, l.RNG),
	)

	return secs
}

// size of the header and of each section header
const (
	headerSize        = 12
	sectionHeaderSize = 5
)

// maxSize returns the largest serialised state possible for the sections
func maxSize(secs []section) int {
	n := headerSize
	for _, s := range secs {
		n += sectionHeaderSize + s.size
	}
	return n
}

// MaxSize returns the largest serialised state possible for the profile.
func MaxSize(p Profile, l host.Layout) int {
	return maxSize(sections(p, l))
}
