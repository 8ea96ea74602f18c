package renderer

import (
	"ScrollStage/internal/scene"
)

// Set from the render config before Init.
var FrustumCullingEnabled bool = false
var FaceCullingEnabled bool = true
var Debug bool = false // Draw wireframes

// Render draws a scene graph through a camera. Every method must be called
// on the thread that owns the GL context.
type Render interface {
	Init(width, height int32) error
	Render(s *scene.Scene, camera *Camera)
	SetSize(width, height int32)
	Cleanup()
}
