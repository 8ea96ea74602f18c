package loader

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"ScrollStage/internal/animation"
	"ScrollStage/internal/logger"
	"ScrollStage/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"
)

var (
	ErrNoAnimations        = errors.New("file contains no animations")
	ErrUnsupportedAccessor = errors.New("unsupported accessor layout")
)

// LoadModel reads a glTF/GLB file into a scene subtree. The returned node is
// a fresh root holding the file's default scene, so every call yields an
// independent copy that can be animated on its own.
func LoadModel(path string) (*scene.Node, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}

	b := &modelBuilder{
		doc:       doc,
		dir:       filepath.Dir(path),
		materials: make(map[int]*scene.Material),
	}
	root, err := b.build(filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build model %s: %w", path, err)
	}

	meshCount := 0
	root.Traverse(func(n *scene.Node) { meshCount += len(n.Meshes) })
	logger.Log.Info("Model loaded",
		zap.String("path", path),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("primitives", meshCount),
		zap.Int("skins", len(doc.Skins)))

	return root, nil
}

type modelBuilder struct {
	doc       *gltf.Document
	dir       string
	nodes     []*scene.Node
	materials map[int]*scene.Material
}

func (b *modelBuilder) build(name string) (*scene.Node, error) {
	doc := b.doc
	b.nodes = make([]*scene.Node, len(doc.Nodes))

	for i, n := range doc.Nodes {
		node := scene.NewNode(n.Name)
		if node.Name == "" {
			node.Name = fmt.Sprintf("node_%d", i)
		}
		applyNodeTransform(node, n)
		b.nodes[i] = node
	}

	hasParent := make([]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			if c < 0 || c >= len(b.nodes) {
				return nil, fmt.Errorf("node %d: child index %d out of range", i, c)
			}
			b.nodes[i].Add(b.nodes[c])
			hasParent[c] = true
		}
	}

	for i, n := range doc.Nodes {
		if n.Mesh != nil {
			meshes, err := b.buildMesh(*n.Mesh)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			b.nodes[i].Meshes = meshes
		}
		if n.Skin != nil {
			skin, err := b.buildSkin(*n.Skin)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			b.nodes[i].Skin = skin
		}
	}

	root := scene.NewNode(name)
	var roots []int
	if len(doc.Scenes) > 0 {
		sceneIndex := 0
		if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
			sceneIndex = *doc.Scene
		}
		roots = doc.Scenes[sceneIndex].Nodes
	} else {
		for i := range doc.Nodes {
			if !hasParent[i] {
				roots = append(roots, i)
			}
		}
	}
	for _, r := range roots {
		if r < 0 || r >= len(b.nodes) {
			return nil, fmt.Errorf("scene root %d out of range", r)
		}
		root.Add(b.nodes[r])
	}
	return root, nil
}

func applyNodeTransform(node *scene.Node, n *gltf.Node) {
	m := n.MatrixOrDefault()
	if m != gltf.DefaultMatrix && m != ([16]float64{}) {
		var mat mgl32.Mat4
		for i := range m {
			mat[i] = float32(m[i])
		}
		decompose(node, mat)
		return
	}

	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	node.Position = mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])}
	node.Rotation = mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	node.Scale = mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])}
}

// decompose splits a column-major TRS matrix. Shear is not representable and
// is lost.
func decompose(node *scene.Node, m mgl32.Mat4) {
	node.Position = m.Col(3).Vec3()
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	if m.Mat3().Det() < 0 {
		sx = -sx
	}
	node.Scale = mgl32.Vec3{sx, sy, sz}

	rot := mgl32.Ident3()
	if sx != 0 && sy != 0 && sz != 0 {
		rot = mgl32.Mat3FromCols(
			m.Col(0).Vec3().Mul(1/sx),
			m.Col(1).Vec3().Mul(1/sy),
			m.Col(2).Vec3().Mul(1/sz),
		)
	}
	node.Rotation = mgl32.Mat4ToQuat(rot.Mat4()).Normalize()
}

func (b *modelBuilder) buildMesh(index int) ([]*scene.Mesh, error) {
	doc := b.doc
	if index < 0 || index >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", index)
	}
	gm := doc.Meshes[index]

	meshes := make([]*scene.Mesh, 0, len(gm.Primitives))
	for pi, prim := range gm.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			logger.Log.Debug("Skipping non-triangle primitive",
				zap.String("mesh", gm.Name), zap.Int("primitive", pi))
			continue
		}
		mesh, err := b.buildPrimitive(prim)
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", gm.Name, pi, err)
		}
		mesh.Name = fmt.Sprintf("%s_%d", gm.Name, pi)
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

func (b *modelBuilder) accessor(index int) (*gltf.Accessor, error) {
	if index < 0 || index >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", index)
	}
	return b.doc.Accessors[index], nil
}

func (b *modelBuilder) buildPrimitive(prim *gltf.Primitive) (*scene.Mesh, error) {
	doc := b.doc
	mesh := &scene.Mesh{}

	posIndex, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, errors.New("primitive has no POSITION attribute")
	}
	acc, err := b.accessor(posIndex)
	if err != nil {
		return nil, err
	}
	if mesh.Positions, err = modeler.ReadPosition(doc, acc, nil); err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if acc, err = b.accessor(idx); err != nil {
			return nil, err
		}
		if mesh.Normals, err = modeler.ReadNormal(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if acc, err = b.accessor(idx); err != nil {
			return nil, err
		}
		if mesh.UVs, err = modeler.ReadTextureCoord(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("read uvs: %w", err)
		}
	}

	jointsIndex, hasJoints := prim.Attributes[gltf.JOINTS_0]
	weightsIndex, hasWeights := prim.Attributes[gltf.WEIGHTS_0]
	if hasJoints && hasWeights {
		if acc, err = b.accessor(jointsIndex); err != nil {
			return nil, err
		}
		if mesh.Joints, err = modeler.ReadJoints(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("read joints: %w", err)
		}
		if acc, err = b.accessor(weightsIndex); err != nil {
			return nil, err
		}
		if mesh.Weights, err = modeler.ReadWeights(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("read weights: %w", err)
		}
	}

	if prim.Indices != nil {
		if acc, err = b.accessor(*prim.Indices); err != nil {
			return nil, err
		}
		if mesh.Indices, err = modeler.ReadIndices(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	} else {
		mesh.Indices = make([]uint32, len(mesh.Positions))
		for i := range mesh.Indices {
			mesh.Indices[i] = uint32(i)
		}
	}

	if len(mesh.Normals) != len(mesh.Positions) {
		mesh.RecalculateNormals()
	}

	mesh.Material = scene.DefaultMaterial()
	if prim.Material != nil {
		mesh.Material = b.material(*prim.Material)
	}
	return mesh, nil
}

// material converts a glTF material once and shares it between primitives.
func (b *modelBuilder) material(index int) *scene.Material {
	if m, ok := b.materials[index]; ok {
		return m
	}
	m := scene.DefaultMaterial()
	b.materials[index] = m
	if index < 0 || index >= len(b.doc.Materials) {
		return m
	}

	gm := b.doc.Materials[index]
	m.Name = gm.Name
	m.DoubleSided = gm.DoubleSided
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		c := pbr.BaseColorFactorOrDefault()
		m.BaseColor = mgl32.Vec4{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}
		m.Metallic = float32(pbr.MetallicFactorOrDefault())
		m.Roughness = float32(pbr.RoughnessFactorOrDefault())

		if pbr.BaseColorTexture != nil {
			img, key, err := b.textureImage(pbr.BaseColorTexture.Index)
			if err != nil {
				logger.Log.Warn("Could not decode base color texture",
					zap.String("material", gm.Name), zap.Error(err))
			} else {
				m.Texture = img
				m.TextureKey = key
			}
		}
	}
	return m
}

func (b *modelBuilder) textureImage(textureIndex int) (image.Image, string, error) {
	doc := b.doc
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return nil, "", fmt.Errorf("texture index %d out of range", textureIndex)
	}
	tex := doc.Textures[textureIndex]
	if tex.Source == nil || *tex.Source < 0 || *tex.Source >= len(doc.Images) {
		return nil, "", errors.New("texture has no image source")
	}
	src := doc.Images[*tex.Source]

	var data []byte
	var key string
	var err error
	switch {
	case src.BufferView != nil:
		if *src.BufferView < 0 || *src.BufferView >= len(doc.BufferViews) {
			return nil, "", fmt.Errorf("image buffer view %d out of range", *src.BufferView)
		}
		data, err = modeler.ReadBufferView(doc, doc.BufferViews[*src.BufferView])
		key = fmt.Sprintf("%s#image%d", b.dir, *tex.Source)
	case src.IsEmbeddedResource():
		data, err = src.MarshalData()
		key = fmt.Sprintf("%s#image%d", b.dir, *tex.Source)
	case src.URI != "":
		path := filepath.Join(b.dir, src.URI)
		data, err = os.ReadFile(path)
		key = path
	default:
		return nil, "", errors.New("image has neither buffer view nor uri")
	}
	if err != nil {
		return nil, "", err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, key, nil
}

func (b *modelBuilder) buildSkin(index int) (*scene.Skin, error) {
	doc := b.doc
	if index < 0 || index >= len(doc.Skins) {
		return nil, fmt.Errorf("skin index %d out of range", index)
	}
	gs := doc.Skins[index]
	if len(gs.Joints) > scene.MaxJoints {
		return nil, fmt.Errorf("skin %q has %d joints, at most %d are supported", gs.Name, len(gs.Joints), scene.MaxJoints)
	}

	skin := &scene.Skin{Joints: make([]*scene.Node, len(gs.Joints))}
	for i, j := range gs.Joints {
		if j < 0 || j >= len(b.nodes) {
			return nil, fmt.Errorf("skin %q joint %d out of range", gs.Name, j)
		}
		skin.Joints[i] = b.nodes[j]
	}

	if gs.InverseBindMatrices != nil {
		acc, err := b.accessor(*gs.InverseBindMatrices)
		if err != nil {
			return nil, err
		}
		raw, err := modeler.ReadAccessor(doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("read inverse bind matrices: %w", err)
		}
		mats, ok := raw.([][4][4]float32)
		if !ok {
			return nil, fmt.Errorf("inverse bind matrices %T: %w", raw, ErrUnsupportedAccessor)
		}
		skin.InverseBindMatrices = make([]mgl32.Mat4, len(mats))
		for i, m := range mats {
			// The accessor reader returns [row][col], mgl32 is column major
			for c := 0; c < 4; c++ {
				for r := 0; r < 4; r++ {
					skin.InverseBindMatrices[i][c*4+r] = m[r][c]
				}
			}
		}
	}
	return skin, nil
}

// LoadClips reads every animation in a glTF/GLB file. Channels are keyed by
// the name of the node they target so clips can be applied to a model loaded
// from a different file.
func LoadClips(path string) ([]*animation.Clip, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open animation %s: %w", path, err)
	}
	if len(doc.Animations) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoAnimations)
	}

	clips := make([]*animation.Clip, 0, len(doc.Animations))
	for i, anim := range doc.Animations {
		clip, err := buildClip(doc, i, anim)
		if err != nil {
			return nil, fmt.Errorf("animation %s[%d]: %w", path, i, err)
		}
		clips = append(clips, clip)
	}

	logger.Log.Info("Animations loaded",
		zap.String("path", path),
		zap.Int("clips", len(clips)),
		zap.String("first", clips[0].Name),
		zap.Float32("duration", clips[0].Duration))
	return clips, nil
}

func buildClip(doc *gltf.Document, index int, anim *gltf.Animation) (*animation.Clip, error) {
	tracks := make([]animation.Track, 0, len(anim.Channels))

	for ci, ch := range anim.Channels {
		if ch.Target.Node == nil {
			continue
		}
		node := *ch.Target.Node
		if node < 0 || node >= len(doc.Nodes) {
			return nil, fmt.Errorf("channel %d targets node %d out of range", ci, node)
		}

		var path animation.Path
		switch ch.Target.Path {
		case gltf.TRSTranslation:
			path = animation.PathTranslation
		case gltf.TRSRotation:
			path = animation.PathRotation
		case gltf.TRSScale:
			path = animation.PathScale
		default:
			// Morph target weights are not supported
			continue
		}

		if ch.Sampler < 0 || ch.Sampler >= len(anim.Samplers) {
			return nil, fmt.Errorf("channel %d: sampler %d out of range", ci, ch.Sampler)
		}
		sampler := anim.Samplers[ch.Sampler]

		times, err := readScalars(doc, sampler.Input)
		if err != nil {
			return nil, fmt.Errorf("channel %d input: %w", ci, err)
		}
		values, err := readVectors(doc, sampler.Output, path.Components())
		if err != nil {
			return nil, fmt.Errorf("channel %d output: %w", ci, err)
		}

		interp := animation.InterpolationLinear
		switch sampler.Interpolation {
		case gltf.InterpolationStep:
			interp = animation.InterpolationStep
		case gltf.InterpolationCubicSpline:
			values = cubicSplineValues(values, path.Components())
		}

		name := doc.Nodes[node].Name
		if name == "" {
			name = fmt.Sprintf("node_%d", node)
		}
		track := animation.Track{
			Target:        name,
			Path:          path,
			Times:         times,
			Values:        values,
			Interpolation: interp,
		}
		if err := track.Validate(); err != nil {
			return nil, fmt.Errorf("channel %d: %w", ci, err)
		}
		tracks = append(tracks, track)
	}

	name := anim.Name
	if name == "" {
		name = fmt.Sprintf("animation_%d", index)
	}
	return animation.NewClip(name, tracks), nil
}

func readScalars(doc *gltf.Document, index int) ([]float32, error) {
	if index < 0 || index >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", index)
	}
	raw, err := modeler.ReadAccessor(doc, doc.Accessors[index], nil)
	if err != nil {
		return nil, err
	}
	v, ok := raw.([]float32)
	if !ok {
		return nil, fmt.Errorf("key times %T: %w", raw, ErrUnsupportedAccessor)
	}
	return v, nil
}

// readVectors flattens a VEC3 or VEC4 accessor. Integer outputs, as written
// by KHR_mesh_quantization exporters, are converted to float and normalized
// when the accessor says so.
func readVectors(doc *gltf.Document, index, components int) ([]float32, error) {
	if index < 0 || index >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", index)
	}
	acc := doc.Accessors[index]
	raw, err := modeler.ReadAccessor(doc, acc, nil)
	if err != nil {
		return nil, err
	}

	var out []float32
	switch v := raw.(type) {
	case [][3]float32:
		out = flatten3(v, false)
	case [][3]int8:
		out = flatten3(v, acc.Normalized)
	case [][3]uint8:
		out = flatten3(v, acc.Normalized)
	case [][3]int16:
		out = flatten3(v, acc.Normalized)
	case [][3]uint16:
		out = flatten3(v, acc.Normalized)
	case [][4]float32:
		out = flatten4(v, false)
	case [][4]int8:
		out = flatten4(v, acc.Normalized)
	case [][4]uint8:
		out = flatten4(v, acc.Normalized)
	case [][4]int16:
		out = flatten4(v, acc.Normalized)
	case [][4]uint16:
		out = flatten4(v, acc.Normalized)
	}
	if out == nil || len(out) != acc.Count*components {
		return nil, fmt.Errorf("key values %T for %d components: %w", raw, components, ErrUnsupportedAccessor)
	}
	return out, nil
}

type keyComponent interface {
	float32 | int8 | uint8 | int16 | uint16
}

func flatten3[T keyComponent](rows [][3]T, normalized bool) []float32 {
	out := make([]float32, 0, len(rows)*3)
	for _, e := range rows {
		out = append(out, dequantize(e[0], normalized), dequantize(e[1], normalized), dequantize(e[2], normalized))
	}
	return out
}

func flatten4[T keyComponent](rows [][4]T, normalized bool) []float32 {
	out := make([]float32, 0, len(rows)*4)
	for _, e := range rows {
		out = append(out,
			dequantize(e[0], normalized), dequantize(e[1], normalized),
			dequantize(e[2], normalized), dequantize(e[3], normalized))
	}
	return out
}

// dequantize maps a normalized integer to [0,1] or [-1,1] following the glTF
// rules. Floats and non-normalized integers are converted as is.
func dequantize[T keyComponent](v T, normalized bool) float32 {
	f := float32(v)
	if !normalized {
		return f
	}
	switch any(v).(type) {
	case int8:
		return max(f/127, -1)
	case uint8:
		return f / 255
	case int16:
		return max(f/32767, -1)
	case uint16:
		return f / 65535
	}
	return f
}

// cubicSplineValues keeps only the value of each in-tangent, value,
// out-tangent triple so the track can be sampled linearly.
func cubicSplineValues(values []float32, components int) []float32 {
	keys := len(values) / (3 * components)
	out := make([]float32, 0, keys*components)
	for k := 0; k < keys; k++ {
		start := (3*k + 1) * components
		out = append(out, values[start:start+components]...)
	}
	return out
}
