package renderer

import (
	"image"
	"math"
	"testing"

	"ScrollStage/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
)

func TestBoundingSphere(t *testing.T) {
	center, radius := boundingSphere([][3]float32{
		{-1, 0, 0},
		{1, 0, 0},
		{0, 4, 0},
	})

	if !center.ApproxEqual(mgl32.Vec3{0, 2, 0}) {
		t.Errorf("expected box centre (0,2,0), got %v", center)
	}
	if math.Abs(float64(radius)-math.Sqrt(5)) > 1e-5 {
		t.Errorf("expected radius sqrt(5), got %v", radius)
	}
}

func TestBoundingSphereEmpty(t *testing.T) {
	center, radius := boundingSphere(nil)

	if center != (mgl32.Vec3{}) || radius != 0 {
		t.Errorf("empty mesh should have a zero sphere, got %v %v", center, radius)
	}
}

func TestNewOpenGLRendererDefaults(t *testing.T) {
	rend := NewOpenGLRenderer(mgl32.Vec4{0, 0, 0, 0}, 1)

	if rend.textures == nil || rend.meshes == nil {
		t.Fatal("caches should be created with the renderer")
	}
	if rend.ClearColor.W() != 0 {
		t.Error("clear colour should keep the transparent alpha")
	}
}

func cullingItem(at mgl32.Vec3, skinned bool) *drawItem {
	node := scene.NewNode("item")
	node.WorldMatrix = mgl32.Translate3D(at.X(), at.Y(), at.Z())
	item := &drawItem{node: node, gpu: &gpuMesh{boundsRadius: 1}}
	if skinned {
		item.joints = []mgl32.Mat4{mgl32.Ident4()}
	}
	return item
}

func TestCulledRejectsMeshesOutsideFrustum(t *testing.T) {
	defer func(enabled bool) { FrustumCullingEnabled = enabled }(FrustumCullingEnabled)

	rend := NewOpenGLRenderer(mgl32.Vec4{}, 1)
	cam := NewPerspectiveCamera(60, 1, 1, 100)
	rend.frustum = cam.CalculateFrustum()

	ahead := cullingItem(mgl32.Vec3{0, 0, -10}, false)
	behind := cullingItem(mgl32.Vec3{0, 0, 10}, false)
	skinnedBehind := cullingItem(mgl32.Vec3{0, 0, 10}, true)

	FrustumCullingEnabled = false
	if rend.culled(behind) {
		t.Error("nothing should be culled while culling is disabled")
	}

	FrustumCullingEnabled = true
	if rend.culled(ahead) {
		t.Error("mesh in front of the camera was culled")
	}
	if !rend.culled(behind) {
		t.Error("mesh behind the camera was drawn")
	}
	if rend.culled(skinnedBehind) {
		t.Error("skinned meshes must never be culled")
	}
}

func TestReleaseTexturesFreesEveryReference(t *testing.T) {
	tm, freed := fakeTextureManager()
	rend := NewOpenGLRenderer(mgl32.Vec4{}, 1)
	rend.textures = tm

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	rend.white = tm.Acquire(whiteTexture, img)
	skin := tm.Acquire("zombie#image0", img)
	tm.Acquire("zombie#image0", img)

	rend.meshes[&scene.Mesh{}] = &gpuMesh{texture: skin}
	rend.meshes[&scene.Mesh{}] = &gpuMesh{texture: skin}
	rend.meshes[&scene.Mesh{}] = &gpuMesh{texture: rend.white}

	rend.releaseTextures()

	if len(*freed) != 2 {
		t.Errorf("expected the skin and white textures to be freed, got %v", *freed)
	}
	if tm.GetStats().ActiveTextures != 0 {
		t.Error("no textures should remain active")
	}
}
