package animation

import (
	"testing"

	"ScrollStage/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translationTrack(target string) Track {
	return Track{
		Target: target,
		Path:   PathTranslation,
		Times:  []float32{0, 1, 2},
		Values: []float32{
			0, 0, 0,
			10, 0, 0,
			10, 20, 0,
		},
	}
}

func TestTrackSampleLinear(t *testing.T) {
	track := translationTrack("Hips")

	v := track.Sample(0.5)
	assert.InDelta(t, 5, v[0], 1e-5)

	v = track.Sample(1.5)
	assert.InDelta(t, 10, v[0], 1e-5)
	assert.InDelta(t, 10, v[1], 1e-5)
}

func TestTrackSampleClampsOutsideRange(t *testing.T) {
	track := translationTrack("Hips")

	assert.Equal(t, [4]float32{0, 0, 0, 0}, track.Sample(-1))
	assert.Equal(t, [4]float32{10, 20, 0, 0}, track.Sample(5))
}

func TestTrackSampleStep(t *testing.T) {
	track := translationTrack("Hips")
	track.Interpolation = InterpolationStep

	v := track.Sample(0.99)
	assert.Equal(t, float32(0), v[0])

	v = track.Sample(1)
	assert.Equal(t, float32(10), v[0])
}

func TestTrackSampleRotationSlerp(t *testing.T) {
	q0 := mgl32.QuatIdent()
	q1 := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	track := Track{
		Target: "Hips",
		Path:   PathRotation,
		Times:  []float32{0, 1},
		Values: []float32{
			q0.V[0], q0.V[1], q0.V[2], q0.W,
			q1.V[0], q1.V[1], q1.V[2], q1.W,
		},
	}

	v := track.Sample(0.5)
	got := mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
	want := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0})

	assert.InDelta(t, 1, got.Len(), 1e-4)
	assert.InDelta(t, want.W, got.W, 1e-4)
	assert.InDeltaSlice(t, want.V[:], got.V[:], 1e-4, "got %v want %v", got, want)
}

func TestTrackValidate(t *testing.T) {
	good := translationTrack("Hips")
	assert.NoError(t, good.Validate())

	short := good
	short.Values = short.Values[:3]
	assert.Error(t, short.Validate())

	unordered := translationTrack("Hips")
	unordered.Times = []float32{0, 2, 1}
	assert.Error(t, unordered.Validate())
}

func TestClipDuration(t *testing.T) {
	clip := NewClip("dance", []Track{translationTrack("Hips")})
	assert.Equal(t, float32(2), clip.Duration)
}

func newRig() (*scene.Node, *scene.Node) {
	root := scene.NewNode("character")
	hips := scene.NewNode("Hips")
	root.Add(hips)
	return root, hips
}

func TestPlayerBindsByName(t *testing.T) {
	root, _ := newRig()
	clip := NewClip("dance", []Track{translationTrack("Hips"), translationTrack("Tail")})

	player := NewPlayer(root)
	action := player.ClipAction(clip)

	assert.Equal(t, 1, action.Bound(), "tracks without a node are dropped")
	assert.Same(t, action, player.ClipAction(clip), "actions are cached per clip")
}

func TestPlayerUpdateAppliesTrack(t *testing.T) {
	root, hips := newRig()
	clip := NewClip("dance", []Track{translationTrack("Hips")})

	player := NewPlayer(root)
	player.ClipAction(clip).Play()
	player.Update(0.5)

	assert.InDelta(t, 5, hips.Position.X(), 1e-5)
	assert.InDelta(t, 0.5, player.Time(), 1e-9)
}

func TestPlayerLoops(t *testing.T) {
	root, hips := newRig()
	clip := NewClip("dance", []Track{translationTrack("Hips")})

	player := NewPlayer(root)
	action := player.ClipAction(clip).Play()

	player.Update(2.5)

	assert.InDelta(t, 0.5, action.Time(), 1e-5)
	assert.InDelta(t, 5, hips.Position.X(), 1e-4)
	assert.True(t, action.IsPlaying())
	assert.InDelta(t, 2.5, player.Time(), 1e-9)
}

func TestPlayerLoopOnceStops(t *testing.T) {
	root, hips := newRig()
	clip := NewClip("dance", []Track{translationTrack("Hips")})

	player := NewPlayer(root)
	action := player.ClipAction(clip)
	action.Loop = LoopOnce
	action.Play()

	player.Update(3)

	assert.False(t, action.IsPlaying())
	assert.Equal(t, float32(2), action.Time())
	assert.InDelta(t, 20, hips.Position.Y(), 1e-5)
}

func TestPlayerIgnoresStoppedActions(t *testing.T) {
	root, hips := newRig()
	clip := NewClip("dance", []Track{translationTrack("Hips")})

	player := NewPlayer(root)
	player.ClipAction(clip)
	player.Update(1)

	require.Len(t, player.Actions(), 1)
	assert.Equal(t, mgl32.Vec3{}, hips.Position)
	assert.InDelta(t, 1, player.Time(), 1e-9, "mixer time advances regardless of actions")
}
