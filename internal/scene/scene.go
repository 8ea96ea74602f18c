package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ShadowCamera is the orthographic frustum the directional light renders its
// shadow map with.
type ShadowCamera struct {
	Near, Far                float32
	Left, Right, Top, Bottom float32
}

type Shadow struct {
	MapWidth  int32
	MapHeight int32
	Bias      float32
	Camera    ShadowCamera
}

type DirectionalLight struct {
	Position   mgl32.Vec3
	Target     mgl32.Vec3
	Color      mgl32.Vec3
	Intensity  float32
	CastShadow bool
	Shadow     Shadow
}

func NewDirectionalLight(color mgl32.Vec3, intensity float32) *DirectionalLight {
	return &DirectionalLight{
		Position:  mgl32.Vec3{0, 1, 0},
		Color:     color,
		Intensity: intensity,
		Shadow: Shadow{
			MapWidth:  512,
			MapHeight: 512,
			Camera: ShadowCamera{
				Near: 0.5, Far: 500,
				Left: -5, Right: 5, Top: 5, Bottom: -5,
			},
		},
	}
}

// Direction points from the light towards its target.
func (l *DirectionalLight) Direction() mgl32.Vec3 {
	d := l.Target.Sub(l.Position)
	if d.Len() == 0 {
		return mgl32.Vec3{0, -1, 0}
	}
	return d.Normalize()
}

// ViewProjection is the light space transform used for the shadow pass.
func (l *DirectionalLight) ViewProjection() mgl32.Mat4 {
	up := mgl32.Vec3{0, 1, 0}
	if abs(l.Direction().Dot(up)) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(l.Position, l.Target, up)
	c := l.Shadow.Camera
	proj := mgl32.Ortho(c.Left, c.Right, c.Bottom, c.Top, c.Near, c.Far)
	return proj.Mul4(view)
}

type AmbientLight struct {
	Color     mgl32.Vec3
	Intensity float32
}

// Scene is the root of everything the renderer draws.
type Scene struct {
	Root        *Node
	Directional []*DirectionalLight
	Ambient     []*AmbientLight
}

func New() *Scene {
	return &Scene{Root: NewNode("scene")}
}

func (s *Scene) Add(n *Node) {
	s.Root.Add(n)
}

func (s *Scene) AddDirectionalLight(l *DirectionalLight) {
	s.Directional = append(s.Directional, l)
}

func (s *Scene) AddAmbientLight(l *AmbientLight) {
	s.Ambient = append(s.Ambient, l)
}

// UpdateWorldMatrices refreshes every world matrix in the graph.
func (s *Scene) UpdateWorldMatrices() {
	s.Root.UpdateWorldMatrix(mgl32.Ident4())
}

// AmbientColor sums all ambient lights.
func (s *Scene) AmbientColor() mgl32.Vec3 {
	var c mgl32.Vec3
	for _, a := range s.Ambient {
		c = c.Add(a.Color.Mul(a.Intensity))
	}
	return c
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
