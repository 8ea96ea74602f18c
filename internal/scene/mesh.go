package scene

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxJoints is the largest skin the skinning shader accepts.
const MaxJoints = 128

// Material holds the base colour inputs of a metallic-roughness material.
type Material struct {
	Name      string
	BaseColor mgl32.Vec4
	Metallic  float32
	Roughness float32
	// Texture is the decoded base colour image, nil for untextured materials.
	Texture image.Image
	// TextureKey identifies Texture in the renderer's texture cache.
	TextureKey  string
	DoubleSided bool
}

func DefaultMaterial() *Material {
	return &Material{
		Name:      "default",
		BaseColor: mgl32.Vec4{1, 1, 1, 1},
		Metallic:  0,
		Roughness: 1,
	}
}

// Mesh is one drawable primitive. Vertex attributes are stored per vertex,
// Joints and Weights are empty for rigid meshes.
type Mesh struct {
	Name      string
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Joints    [][4]uint16
	Weights   [][4]float32
	Indices   []uint32
	Material  *Material
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

func (m *Mesh) IsSkinned() bool {
	return len(m.Joints) == len(m.Positions) && len(m.Weights) == len(m.Positions) && len(m.Positions) > 0
}

// Interleave packs the vertex data as position(3) normal(3) uv(2) joints(4)
// weights(4), 16 floats per vertex. Missing attributes are filled with
// neutral values: up-facing normals, zero uvs, a single full weight on joint 0.
func (m *Mesh) Interleave() []float32 {
	const stride = 16
	out := make([]float32, 0, len(m.Positions)*stride)
	skinned := m.IsSkinned()

	for i, p := range m.Positions {
		out = append(out, p[0], p[1], p[2])

		if i < len(m.Normals) {
			n := m.Normals[i]
			out = append(out, n[0], n[1], n[2])
		} else {
			out = append(out, 0, 1, 0)
		}

		if i < len(m.UVs) {
			out = append(out, m.UVs[i][0], m.UVs[i][1])
		} else {
			out = append(out, 0, 0)
		}

		if skinned {
			j := m.Joints[i]
			w := m.Weights[i]
			out = append(out, float32(j[0]), float32(j[1]), float32(j[2]), float32(j[3]))
			out = append(out, w[0], w[1], w[2], w[3])
		} else {
			out = append(out, 0, 0, 0, 0, 1, 0, 0, 0)
		}
	}
	return out
}

// RecalculateNormals replaces Normals with area-weighted vertex normals
// accumulated from the indexed triangles. Out of range indices are skipped.
func (m *Mesh) RecalculateNormals() {
	if len(m.Positions) == 0 || len(m.Indices) < 3 {
		return
	}
	acc := make([]mgl32.Vec3, len(m.Positions))
	n := uint32(len(m.Positions))

	for i := 0; i+2 < len(m.Indices); i += 3 {
		i0, i1, i2 := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		if i0 >= n || i1 >= n || i2 >= n {
			continue
		}
		v0 := mgl32.Vec3(m.Positions[i0])
		v1 := mgl32.Vec3(m.Positions[i1])
		v2 := mgl32.Vec3(m.Positions[i2])
		face := v1.Sub(v0).Cross(v2.Sub(v0))
		acc[i0] = acc[i0].Add(face)
		acc[i1] = acc[i1].Add(face)
		acc[i2] = acc[i2].Add(face)
	}

	m.Normals = make([][3]float32, len(acc))
	for i, v := range acc {
		if v.Len() == 0 {
			m.Normals[i] = [3]float32{0, 1, 0}
			continue
		}
		m.Normals[i] = v.Normalize()
	}
}

// Skin binds a mesh to a joint hierarchy.
type Skin struct {
	Joints              []*Node
	InverseBindMatrices []mgl32.Mat4
}

// JointMatrices returns jointWorld * inverseBind for every joint, i.e. the
// matrices that take bind-pose vertices straight into world space.
// World matrices must be up to date.
func (s *Skin) JointMatrices(out []mgl32.Mat4) []mgl32.Mat4 {
	out = out[:0]
	for i, joint := range s.Joints {
		ibm := mgl32.Ident4()
		if i < len(s.InverseBindMatrices) {
			ibm = s.InverseBindMatrices[i]
		}
		out = append(out, joint.WorldMatrix.Mul4(ibm))
	}
	return out
}
