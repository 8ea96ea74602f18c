package animation

import (
	"math"

	"ScrollStage/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
)

type LoopMode int

const (
	LoopRepeat LoopMode = iota
	LoopOnce
)

type binding struct {
	node  *scene.Node
	track *Track
}

// Action is the playback state of one clip on one player.
type Action struct {
	clip     *Clip
	bindings []binding
	time     float32
	playing  bool

	Loop      LoopMode
	TimeScale float32
}

func (a *Action) Clip() *Clip {
	return a.clip
}

// Time is the local clip time in seconds.
func (a *Action) Time() float32 {
	return a.time
}

func (a *Action) IsPlaying() bool {
	return a.playing
}

// Bound reports how many tracks found a target node.
func (a *Action) Bound() int {
	return len(a.bindings)
}

func (a *Action) Play() *Action {
	a.playing = true
	return a
}

func (a *Action) Stop() *Action {
	a.playing = false
	a.time = 0
	return a
}

func (a *Action) advance(dt float32) {
	if !a.playing {
		return
	}
	a.time += dt * a.TimeScale

	d := a.clip.Duration
	if d <= 0 {
		a.time = 0
		return
	}
	switch a.Loop {
	case LoopRepeat:
		a.time = float32(math.Mod(float64(a.time), float64(d)))
		if a.time < 0 {
			a.time += d
		}
	case LoopOnce:
		if a.time >= d {
			a.time = d
			a.playing = false
		} else if a.time < 0 {
			a.time = 0
			a.playing = false
		}
	}
}

func (a *Action) apply() {
	for _, b := range a.bindings {
		v := b.track.Sample(a.time)
		switch b.track.Path {
		case PathTranslation:
			b.node.Position = mgl32.Vec3{v[0], v[1], v[2]}
		case PathRotation:
			b.node.Rotation = mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
		case PathScale:
			b.node.Scale = mgl32.Vec3{v[0], v[1], v[2]}
		}
	}
}

// Player drives clip actions on one model subtree.
type Player struct {
	root    *scene.Node
	actions []*Action
	time    float64
}

func NewPlayer(root *scene.Node) *Player {
	return &Player{root: root}
}

func (p *Player) Root() *scene.Node {
	return p.root
}

// Time is the total time the player has been advanced by, in seconds.
func (p *Player) Time() float64 {
	return p.time
}

func (p *Player) Actions() []*Action {
	return p.actions
}

// ClipAction returns the action for clip, binding its tracks to nodes in the
// player's subtree by name on first use. Tracks with no matching node are
// dropped.
func (p *Player) ClipAction(clip *Clip) *Action {
	for _, a := range p.actions {
		if a.clip == clip {
			return a
		}
	}

	nodes := make(map[string]*scene.Node)
	p.root.Traverse(func(n *scene.Node) {
		if _, seen := nodes[n.Name]; !seen && n.Name != "" {
			nodes[n.Name] = n
		}
	})

	a := &Action{clip: clip, Loop: LoopRepeat, TimeScale: 1}
	for i := range clip.Tracks {
		track := &clip.Tracks[i]
		if node, ok := nodes[track.Target]; ok {
			a.bindings = append(a.bindings, binding{node: node, track: track})
		}
	}
	p.actions = append(p.actions, a)
	return a
}

// Update advances every playing action by dt seconds and writes the sampled
// values to the bound nodes.
func (p *Player) Update(dt float64) {
	p.time += dt
	for _, a := range p.actions {
		if !a.playing {
			continue
		}
		a.advance(float32(dt))
		a.apply()
	}
}
