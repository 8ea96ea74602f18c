// Package controls turns pointer input into camera motion around a target.
package controls

import (
	"math"

	"ScrollStage/internal/renderer"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitControls orbits, pans and dollies a camera around Target. Input
// methods only queue deltas; Update applies them and aims the camera.
type OrbitControls struct {
	Target mgl32.Vec3

	// Orbit constraints
	MinDistance  float32
	MaxDistance  float32
	MinElevation float32 // radians from the horizontal plane
	MaxElevation float32

	// Speed settings
	RotateSpeed float32 // radians per pixel dragged
	PanSpeed    float32 // fraction of the target distance per pixel dragged
	ZoomScale   float32 // distance factor per wheel step

	Enabled bool

	camera *renderer.Camera

	azimuthDelta   float32
	elevationDelta float32
	scale          float32
	panOffset      mgl32.Vec3
	pending        bool
}

func NewOrbitControls(camera *renderer.Camera) *OrbitControls {
	return &OrbitControls{
		MinDistance:  0,
		MaxDistance:  float32(math.Inf(1)),
		MinElevation: -(math.Pi/2 - 0.01),
		MaxElevation: math.Pi/2 - 0.01,
		RotateSpeed:  0.005,
		PanSpeed:     0.002,
		ZoomScale:    0.95,
		Enabled:      true,
		camera:       camera,
		scale:        1,
	}
}

func (oc *OrbitControls) Camera() *renderer.Camera {
	return oc.camera
}

// RotateLeft swings the camera around the vertical axis through Target.
func (oc *OrbitControls) RotateLeft(angle float32) {
	if !oc.Enabled {
		return
	}
	oc.azimuthDelta -= angle
	oc.pending = true
}

// RotateUp raises the camera towards the top of the orbit sphere.
func (oc *OrbitControls) RotateUp(angle float32) {
	if !oc.Enabled {
		return
	}
	oc.elevationDelta += angle
	oc.pending = true
}

// Rotate converts a drag of dx, dy pixels into an orbit.
func (oc *OrbitControls) Rotate(dx, dy float32) {
	oc.RotateLeft(dx * oc.RotateSpeed)
	oc.RotateUp(dy * oc.RotateSpeed)
}

// Pan moves camera and target together along the view plane. dx, dy are
// in pixels, positive dy drags the scene down.
func (oc *OrbitControls) Pan(dx, dy float32) {
	if !oc.Enabled {
		return
	}
	distance := oc.camera.Position.Sub(oc.Target).Len()
	k := distance * oc.PanSpeed
	move := oc.camera.Right.Mul(-dx * k).Add(oc.camera.Up.Mul(dy * k))
	oc.panOffset = oc.panOffset.Add(move)
	oc.pending = true
}

// Dolly moves the camera towards the target for positive steps and away for
// negative ones.
func (oc *OrbitControls) Dolly(steps float32) {
	if !oc.Enabled || steps == 0 {
		return
	}
	oc.scale *= float32(math.Pow(float64(oc.ZoomScale), float64(steps)))
	oc.pending = true
}

// Update applies queued input and points the camera at Target. Without
// queued input the camera position is left exactly as it is.
func (oc *OrbitControls) Update() {
	cam := oc.camera
	if oc.pending {
		offset := cam.Position.Sub(oc.Target)
		radius := offset.Len()
		azimuth := float32(math.Atan2(float64(offset.X()), float64(offset.Z())))
		var elevation float32
		if radius > 0 {
			elevation = float32(math.Asin(float64(mgl32.Clamp(offset.Y()/radius, -1, 1))))
		}

		azimuth += oc.azimuthDelta
		elevation = mgl32.Clamp(elevation+oc.elevationDelta, oc.MinElevation, oc.MaxElevation)
		radius = mgl32.Clamp(radius*oc.scale, oc.MinDistance, oc.MaxDistance)

		oc.Target = oc.Target.Add(oc.panOffset)
		cam.Position = oc.Target.Add(spherical(radius, azimuth, elevation))

		oc.azimuthDelta, oc.elevationDelta = 0, 0
		oc.scale = 1
		oc.panOffset = mgl32.Vec3{}
		oc.pending = false
	}
	cam.LookAt(oc.Target)
}

// spherical is y-up: azimuth 0 points down +Z.
func spherical(radius, azimuth, elevation float32) mgl32.Vec3 {
	cosElev := float32(math.Cos(float64(elevation)))
	return mgl32.Vec3{
		radius * cosElev * float32(math.Sin(float64(azimuth))),
		radius * float32(math.Sin(float64(elevation))),
		radius * cosElev * float32(math.Cos(float64(azimuth))),
	}
}
