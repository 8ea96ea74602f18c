package animation

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Path is the node property a track drives.
type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
)

func (p Path) String() string {
	switch p {
	case PathTranslation:
		return "translation"
	case PathRotation:
		return "rotation"
	case PathScale:
		return "scale"
	}
	return fmt.Sprintf("Path(%d)", int(p))
}

// Components is the value width of the path: 4 for quaternions, 3 otherwise.
func (p Path) Components() int {
	if p == PathRotation {
		return 4
	}
	return 3
}

type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
)

// Track is a keyframed property of one named node. Values is flat, Components
// floats per key. Rotations are stored x, y, z, w.
type Track struct {
	Target        string
	Path          Path
	Times         []float32
	Values        []float32
	Interpolation Interpolation
}

// Validate checks that every key has a value and keys are ascending.
func (t *Track) Validate() error {
	if len(t.Times) == 0 {
		return fmt.Errorf("track %s.%s has no keys", t.Target, t.Path)
	}
	if len(t.Values) != len(t.Times)*t.Path.Components() {
		return fmt.Errorf("track %s.%s has %d values for %d keys", t.Target, t.Path, len(t.Values), len(t.Times))
	}
	for i := 1; i < len(t.Times); i++ {
		if t.Times[i] < t.Times[i-1] {
			return fmt.Errorf("track %s.%s keys are not ascending at %d", t.Target, t.Path, i)
		}
	}
	return nil
}

// Sample evaluates the track at time. Times before the first key return the
// first value and times after the last key return the last value.
func (t *Track) Sample(time float32) [4]float32 {
	n := len(t.Times)
	if n == 0 {
		return [4]float32{}
	}
	if n == 1 || time <= t.Times[0] {
		return t.value(0)
	}
	if time >= t.Times[n-1] {
		return t.value(n - 1)
	}

	// First key strictly after time; i-1 is the key at or before it.
	i := sort.Search(n, func(k int) bool { return t.Times[k] > time })
	prev, next := i-1, i

	if t.Interpolation == InterpolationStep {
		return t.value(prev)
	}

	span := t.Times[next] - t.Times[prev]
	if span <= 0 {
		return t.value(next)
	}
	alpha := (time - t.Times[prev]) / span

	a, b := t.value(prev), t.value(next)
	if t.Path == PathRotation {
		qa := mgl32.Quat{W: a[3], V: mgl32.Vec3{a[0], a[1], a[2]}}
		qb := mgl32.Quat{W: b[3], V: mgl32.Vec3{b[0], b[1], b[2]}}
		q := slerp(qa, qb, alpha)
		return [4]float32{q.V[0], q.V[1], q.V[2], q.W}
	}
	return [4]float32{
		a[0] + (b[0]-a[0])*alpha,
		a[1] + (b[1]-a[1])*alpha,
		a[2] + (b[2]-a[2])*alpha,
		0,
	}
}

func (t *Track) value(key int) [4]float32 {
	var out [4]float32
	c := t.Path.Components()
	copy(out[:c], t.Values[key*c:key*c+c])
	return out
}

// slerp takes the short arc and falls back to nlerp for nearly equal rotations.
func slerp(a, b mgl32.Quat, alpha float32) mgl32.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	if a.Dot(b) > 0.9995 {
		return mgl32.Quat{
			W: a.W + (b.W-a.W)*alpha,
			V: a.V.Add(b.V.Sub(a.V).Mul(alpha)),
		}.Normalize()
	}
	return mgl32.QuatSlerp(a, b, alpha).Normalize()
}

// Clip is a named set of tracks played together.
type Clip struct {
	Name     string
	Duration float32
	Tracks   []Track
}

// NewClip builds a clip whose duration is the last key time over all tracks.
func NewClip(name string, tracks []Track) *Clip {
	c := &Clip{Name: name, Tracks: tracks}
	c.ResetDuration()
	return c
}

func (c *Clip) ResetDuration() {
	var d float32
	for i := range c.Tracks {
		if n := len(c.Tracks[i].Times); n > 0 && c.Tracks[i].Times[n-1] > d {
			d = c.Tracks[i].Times[n-1]
		}
	}
	c.Duration = d
}
