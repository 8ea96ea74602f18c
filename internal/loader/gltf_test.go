package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"ScrollStage/internal/animation"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, parts ...any) string {
	t.Helper()
	var buf bytes.Buffer
	for _, p := range parts {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, p))
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// skinnedTriangle is one triangle weighted to a single "Hips" joint that sits
// one unit above an "Armature" root.
func skinnedTriangle(t *testing.T) string {
	data := encode(t,
		[]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, // positions, 36 bytes
		[]uint16{0, 1, 2, 0},                 // indices + padding, 8 bytes
		[]uint8{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, // joints, 12 bytes
		[]float32{1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}, // weights, 48 bytes
		[]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, -1, 0, 1}, // inverse bind, 64 bytes
	)
	return fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [
    {"name": "Armature", "children": [1, 2]},
    {"name": "Hips", "translation": [0, 1, 0]},
    {"name": "Body", "mesh": 0, "skin": 0}
  ],
  "meshes": [{"name": "Body", "primitives": [{
    "attributes": {"POSITION": 0, "JOINTS_0": 2, "WEIGHTS_0": 3},
    "indices": 1,
    "material": 0
  }]}],
  "materials": [{"name": "Skin", "pbrMetallicRoughness": {"baseColorFactor": [0.5, 0.25, 1, 1]}}],
  "skins": [{"joints": [1], "inverseBindMatrices": 4}],
  "buffers": [{"byteLength": 168, "uri": "data:application/octet-stream;base64,%s"}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36},
    {"buffer": 0, "byteOffset": 36, "byteLength": 6},
    {"buffer": 0, "byteOffset": 44, "byteLength": 12},
    {"buffer": 0, "byteOffset": 56, "byteLength": 48},
    {"buffer": 0, "byteOffset": 104, "byteLength": 64}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"},
    {"bufferView": 2, "componentType": 5121, "count": 3, "type": "VEC4"},
    {"bufferView": 3, "componentType": 5126, "count": 3, "type": "VEC4"},
    {"bufferView": 4, "componentType": 5126, "count": 1, "type": "MAT4"}
  ]
}`, data)
}

func danceClip(t *testing.T) string {
	q := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	data := encode(t,
		[]float32{0, 1},                   // times, 8 bytes
		[]float32{0, 0, 0, 0, 2, 0},       // translations, 24 bytes
		[]float32{0, 0, 0, 1, q.V[0], q.V[1], q.V[2], q.W}, // rotations, 32 bytes
	)
	return fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "nodes": [{"name": "Hips"}],
  "animations": [{
    "name": "Silly Dancing",
    "channels": [
      {"sampler": 0, "target": {"node": 0, "path": "translation"}},
      {"sampler": 1, "target": {"node": 0, "path": "rotation"}}
    ],
    "samplers": [
      {"input": 0, "output": 1, "interpolation": "LINEAR"},
      {"input": 0, "output": 2, "interpolation": "STEP"}
    ]
  }],
  "buffers": [{"byteLength": 64, "uri": "data:application/octet-stream;base64,%s"}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 8},
    {"buffer": 0, "byteOffset": 8, "byteLength": 24},
    {"buffer": 0, "byteOffset": 32, "byteLength": 32}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 2, "type": "SCALAR", "min": [0], "max": [1]},
    {"bufferView": 1, "componentType": 5126, "count": 2, "type": "VEC3"},
    {"bufferView": 2, "componentType": 5126, "count": 2, "type": "VEC4"}
  ]
}`, data)
}

// quantizedClip stores its rotation keys as normalized shorts, the way
// gltfpack and KHR_mesh_quantization exports do.
func quantizedClip(t *testing.T) string {
	data := encode(t,
		[]float32{0, 1},                             // times, 8 bytes
		[]int16{0, 0, 0, 32767, 0, 23170, 0, 23170}, // rotations, 16 bytes
	)
	return fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "nodes": [{"name": "Hips"}],
  "animations": [{
    "name": "Turn",
    "channels": [{"sampler": 0, "target": {"node": 0, "path": "rotation"}}],
    "samplers": [{"input": 0, "output": 1, "interpolation": "LINEAR"}]
  }],
  "buffers": [{"byteLength": 24, "uri": "data:application/octet-stream;base64,%s"}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 8},
    {"buffer": 0, "byteOffset": 8, "byteLength": 16}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 2, "type": "SCALAR", "min": [0], "max": [1]},
    {"bufferView": 1, "componentType": 5122, "normalized": true, "count": 2, "type": "VEC4"}
  ]
}`, data)
}

func TestLoadModelInvalidPath(t *testing.T) {
	_, err := LoadModel("/nonexistent/path.glb")
	assert.Error(t, err)
}

func TestLoadModelSkinnedTriangle(t *testing.T) {
	path := writeFile(t, "character.gltf", skinnedTriangle(t))

	root, err := LoadModel(path)
	require.NoError(t, err)

	assert.Equal(t, "character.gltf", root.Name)
	require.Len(t, root.Children, 1)
	armature := root.Children[0]
	assert.Equal(t, "Armature", armature.Name)

	hips := root.FindByName("Hips")
	require.NotNil(t, hips)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, hips.Position)

	body := root.FindByName("Body")
	require.NotNil(t, body)
	require.Len(t, body.Meshes, 1)

	mesh := body.Meshes[0]
	assert.Equal(t, 3, mesh.VertexCount())
	assert.Equal(t, []uint32{0, 1, 2}, mesh.Indices)
	assert.True(t, mesh.IsSkinned())
	assert.Equal(t, "Skin", mesh.Material.Name)
	assert.InDelta(t, 0.25, mesh.Material.BaseColor.Y(), 1e-6)

	require.NotNil(t, body.Skin)
	require.Len(t, body.Skin.Joints, 1)
	assert.Same(t, hips, body.Skin.Joints[0])

	root.UpdateWorldMatrix(mgl32.Ident4())
	mats := body.Skin.JointMatrices(nil)
	assert.True(t, mats[0].ApproxEqual(mgl32.Ident4()), "bind pose should cancel out, got %v", mats[0])
}

func TestLoadModelInverseBindMatrixKeepsTranslationColumn(t *testing.T) {
	path := writeFile(t, "character.gltf", skinnedTriangle(t))

	root, err := LoadModel(path)
	require.NoError(t, err)

	body := root.FindByName("Body")
	require.NotNil(t, body)
	require.NotNil(t, body.Skin)
	require.Len(t, body.Skin.InverseBindMatrices, 1)

	ibm := body.Skin.InverseBindMatrices[0]
	assert.Equal(t, mgl32.Vec4{0, -1, 0, 1}, ibm.Col(3), "translation belongs in the last column")
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, ibm.Row(3))
	assert.Equal(t, mgl32.Translate3D(0, -1, 0), ibm)
}

func TestLoadModelReturnsIndependentCopies(t *testing.T) {
	path := writeFile(t, "character.gltf", skinnedTriangle(t))

	a, err := LoadModel(path)
	require.NoError(t, err)
	b, err := LoadModel(path)
	require.NoError(t, err)

	a.FindByName("Hips").SetPosition(5, 5, 5)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, b.FindByName("Hips").Position)
}

func TestLoadClips(t *testing.T) {
	path := writeFile(t, "dance.gltf", danceClip(t))

	clips, err := LoadClips(path)
	require.NoError(t, err)
	require.Len(t, clips, 1)

	clip := clips[0]
	assert.Equal(t, "Silly Dancing", clip.Name)
	assert.Equal(t, float32(1), clip.Duration)
	require.Len(t, clip.Tracks, 2)

	translation := clip.Tracks[0]
	assert.Equal(t, "Hips", translation.Target)
	assert.Equal(t, animation.PathTranslation, translation.Path)
	assert.InDelta(t, 1, translation.Sample(0.5)[1], 1e-5)

	rotation := clip.Tracks[1]
	assert.Equal(t, animation.PathRotation, rotation.Path)
	assert.Equal(t, animation.InterpolationStep, rotation.Interpolation)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, rotation.Sample(0.5))
}

func TestLoadClipsWithoutAnimations(t *testing.T) {
	path := writeFile(t, "character.gltf", skinnedTriangle(t))

	_, err := LoadClips(path)
	assert.True(t, errors.Is(err, ErrNoAnimations), "got %v", err)
}

func TestClipAppliesToModelFromAnotherFile(t *testing.T) {
	model, err := LoadModel(writeFile(t, "character.gltf", skinnedTriangle(t)))
	require.NoError(t, err)
	clips, err := LoadClips(writeFile(t, "dance.gltf", danceClip(t)))
	require.NoError(t, err)

	player := animation.NewPlayer(model)
	action := player.ClipAction(clips[0]).Play()
	player.Update(0.5)

	assert.Equal(t, 2, action.Bound())
	assert.InDelta(t, 1, model.FindByName("Hips").Position.Y(), 1e-5)
}

func TestLoadClipsNormalizesQuantizedRotations(t *testing.T) {
	clips, err := LoadClips(writeFile(t, "turn.gltf", quantizedClip(t)))
	require.NoError(t, err)
	require.Len(t, clips, 1)
	require.Len(t, clips[0].Tracks, 1)

	rotation := clips[0].Tracks[0]
	assert.Equal(t, animation.PathRotation, rotation.Path)
	require.Len(t, rotation.Values, 8)
	assert.InDeltaSlice(t, []float32{0, 0, 0, 1}, rotation.Values[:4], 1e-4)
	assert.InDeltaSlice(t, []float32{0, 0.7071, 0, 0.7071}, rotation.Values[4:], 1e-4)

	want := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	end := rotation.Sample(1)
	assert.InDelta(t, want.V.Y(), end[1], 1e-4)
	assert.InDelta(t, want.W, end[3], 1e-4)
}

func TestDequantize(t *testing.T) {
	assert.Equal(t, float32(1), dequantize(int8(127), true))
	assert.Equal(t, float32(-1), dequantize(int8(-128), true), "the lowest value clamps to -1")
	assert.Equal(t, float32(1), dequantize(uint8(255), true))
	assert.Equal(t, float32(-1), dequantize(int16(-32768), true))
	assert.Equal(t, float32(1), dequantize(uint16(65535), true))
	assert.Equal(t, float32(300), dequantize(int16(300), false))
	assert.Equal(t, float32(0.5), dequantize(float32(0.5), true))
}

func TestCubicSplineValues(t *testing.T) {
	// in-tangent, value, out-tangent for two vec3 keys
	values := []float32{
		9, 9, 9, 1, 2, 3, 9, 9, 9,
		8, 8, 8, 4, 5, 6, 8, 8, 8,
	}
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, cubicSplineValues(values, 3))
}

func TestAsyncLoaderResolvesFutures(t *testing.T) {
	modelPath := writeFile(t, "character.gltf", skinnedTriangle(t))
	clipPath := writeFile(t, "dance.gltf", danceClip(t))

	l := NewLoader(2)
	defer l.Close()

	model, err := l.LoadModel(modelPath).Wait()
	require.NoError(t, err)
	assert.NotNil(t, model.FindByName("Hips"))

	clips, err := l.LoadClips(clipPath).Wait()
	require.NoError(t, err)
	assert.Len(t, clips, 1)

	_, err = l.LoadModel(filepath.Join(t.TempDir(), "missing.glb")).Wait()
	assert.Error(t, err)
}
