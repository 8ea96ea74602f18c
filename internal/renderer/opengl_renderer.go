package renderer

import (
	"fmt"
	"image"
	"image/color"

	"ScrollStage/internal/logger"
	"ScrollStage/internal/scene"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

const (
	vertexStride  = 16 * 4
	whiteTexture  = "__white"
	shadowMapUnit = 1
)

type gpuMesh struct {
	VAO     uint32
	VBO     uint32
	EBO     uint32
	count   int32
	texture uint32

	// Bind-pose bounds in mesh space, for frustum culling
	boundsCenter mgl32.Vec3
	boundsRadius float32
}

type shadowTarget struct {
	fbo    uint32
	depth  uint32
	width  int32
	height int32
}

type drawItem struct {
	node   *scene.Node
	mesh   *scene.Mesh
	gpu    *gpuMesh
	joints []mgl32.Mat4
}

type OpenGLRenderer struct {
	ClearColor mgl32.Vec4
	Exposure   float32

	defaultShader Shader
	depthShader   Shader
	textures      *TextureManager
	white         uint32
	meshes        map[*scene.Mesh]*gpuMesh
	shadow        shadowTarget
	width, height int32

	items   []drawItem
	frustum Frustum
}

func NewOpenGLRenderer(clearColor mgl32.Vec4, exposure float32) *OpenGLRenderer {
	return &OpenGLRenderer{
		ClearColor: clearColor,
		Exposure:   exposure,
		textures:   NewTextureManager(),
		meshes:     make(map[*scene.Mesh]*gpuMesh),
	}
}

func (rend *OpenGLRenderer) Init(width, height int32) error {
	if err := gl.Init(); err != nil {
		return fmt.Errorf("OpenGL initialization failed: %w", err)
	}

	rend.defaultShader = InitShader()
	if err := rend.defaultShader.Compile(); err != nil {
		return err
	}
	rend.depthShader = InitDepthShader()
	if err := rend.depthShader.Compile(); err != nil {
		return err
	}

	white := image.NewRGBA(image.Rect(0, 0, 1, 1))
	white.Set(0, 0, color.White)
	rend.white = rend.textures.Acquire(whiteTexture, white)

	if Debug {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	}
	rend.SetSize(width, height)

	logger.Log.Info("OpenGL render initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.Int32("width", width),
		zap.Int32("height", height))
	return nil
}

func (rend *OpenGLRenderer) SetSize(width, height int32) {
	rend.width, rend.height = width, height
	gl.Viewport(0, 0, width, height)
}

func (rend *OpenGLRenderer) Render(s *scene.Scene, camera *Camera) {
	s.UpdateWorldMatrices()
	rend.collect(s.Root)

	var light *scene.DirectionalLight
	if len(s.Directional) > 0 {
		light = s.Directional[0]
	}
	castShadows := light != nil && light.CastShadow
	lightViewProjection := mgl32.Ident4()
	if castShadows {
		lightViewProjection = light.ViewProjection()
		rend.shadowPass(light, lightViewProjection)
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, rend.width, rend.height)
	gl.ClearColor(rend.ClearColor[0], rend.ClearColor[1], rend.ClearColor[2], rend.ClearColor[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthMask(true)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	if FrustumCullingEnabled {
		rend.frustum = camera.CalculateFrustum()
	}

	shader := &rend.defaultShader
	shader.Use()
	u := shader.Uniforms()
	u.SetMat4("viewProjection", camera.GetViewProjection())
	u.SetMat4("lightViewProjection", lightViewProjection)
	u.SetVec3("ambientColor", s.AmbientColor())
	u.SetFloat("exposure", rend.Exposure)
	u.SetBool("castShadows", castShadows)
	u.SetInt("textureSampler", 0)
	u.SetInt("shadowMap", shadowMapUnit)
	if light != nil {
		u.SetVec3("light.direction", light.Direction())
		u.SetVec3("light.color", light.Color)
		u.SetFloat("light.intensity", light.Intensity)
		u.SetFloat("shadowBias", light.Shadow.Bias)
	} else {
		u.SetFloat("light.intensity", 0)
	}

	gl.ActiveTexture(gl.TEXTURE0 + shadowMapUnit)
	gl.BindTexture(gl.TEXTURE_2D, rend.shadow.depth)

	for i := range rend.items {
		item := &rend.items[i]
		if rend.culled(item) {
			continue
		}

		rend.setFaceCulling(item.mesh.Material.DoubleSided)
		rend.setMeshUniforms(u, item)
		u.SetVec4("baseColor", item.mesh.Material.BaseColor)
		u.SetBool("hasTexture", item.gpu.texture != rend.white)
		u.SetBool("receiveShadow", item.node.ReceiveShadow)

		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, item.gpu.texture)

		gl.BindVertexArray(item.gpu.VAO)
		gl.DrawElements(gl.TRIANGLES, item.gpu.count, gl.UNSIGNED_INT, nil)
	}
	gl.BindVertexArray(0)
	gl.Disable(gl.CULL_FACE)
	gl.Disable(gl.DEPTH_TEST)
}

// collect gathers visible meshes, uploading any mesh seen for the first time.
func (rend *OpenGLRenderer) collect(root *scene.Node) {
	rend.items = rend.items[:0]
	var walk func(n *scene.Node)
	walk = func(n *scene.Node) {
		if !n.Visible {
			return
		}
		for _, mesh := range n.Meshes {
			gpu := rend.upload(mesh)
			item := drawItem{node: n, mesh: mesh, gpu: gpu}
			if n.Skin != nil && mesh.IsSkinned() {
				item.joints = n.Skin.JointMatrices(nil)
			}
			rend.items = append(rend.items, item)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
}

// culled reports whether item lies outside the view frustum. Skinned meshes
// are never culled, their bind-pose bounds do not follow the animation.
func (rend *OpenGLRenderer) culled(item *drawItem) bool {
	return FrustumCullingEnabled && item.joints == nil && !rend.visible(item)
}

func (rend *OpenGLRenderer) visible(item *drawItem) bool {
	world := item.node.WorldMatrix
	center := world.Mul4x1(item.gpu.boundsCenter.Vec4(1)).Vec3()
	scale := max(world.Col(0).Vec3().Len(), world.Col(1).Vec3().Len(), world.Col(2).Vec3().Len())
	return rend.frustum.IntersectsSphere(center, item.gpu.boundsRadius*scale)
}

func (rend *OpenGLRenderer) setMeshUniforms(u *UniformCache, item *drawItem) {
	u.SetMat4("model", item.node.WorldMatrix)
	u.SetBool("skinned", item.joints != nil)
	if item.joints != nil {
		u.SetMat4Array("jointMatrices", item.joints)
	}
}

func (rend *OpenGLRenderer) setFaceCulling(doubleSided bool) {
	if FaceCullingEnabled && !doubleSided {
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
		gl.FrontFace(gl.CCW)
	} else {
		gl.Disable(gl.CULL_FACE)
	}
}

func (rend *OpenGLRenderer) shadowPass(light *scene.DirectionalLight, lightViewProjection mgl32.Mat4) {
	rend.ensureShadowTarget(light.Shadow.MapWidth, light.Shadow.MapHeight)

	gl.BindFramebuffer(gl.FRAMEBUFFER, rend.shadow.fbo)
	gl.Viewport(0, 0, rend.shadow.width, rend.shadow.height)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthMask(true)
	gl.Clear(gl.DEPTH_BUFFER_BIT)
	gl.Disable(gl.CULL_FACE)

	shader := &rend.depthShader
	shader.Use()
	u := shader.Uniforms()
	u.SetMat4("lightViewProjection", lightViewProjection)

	for i := range rend.items {
		item := &rend.items[i]
		if !item.node.CastShadow {
			continue
		}
		rend.setMeshUniforms(u, item)
		gl.BindVertexArray(item.gpu.VAO)
		gl.DrawElements(gl.TRIANGLES, item.gpu.count, gl.UNSIGNED_INT, nil)
	}
	gl.BindVertexArray(0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (rend *OpenGLRenderer) ensureShadowTarget(width, height int32) {
	if width <= 0 || height <= 0 {
		width, height = 512, 512
	}
	if rend.shadow.fbo != 0 && rend.shadow.width == width && rend.shadow.height == height {
		return
	}
	rend.deleteShadowTarget()

	gl.GenTextures(1, &rend.shadow.depth)
	gl.BindTexture(gl.TEXTURE_2D, rend.shadow.depth)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.DEPTH_COMPONENT24, width, height, 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
	border := [4]float32{1, 1, 1, 1}
	gl.TexParameterfv(gl.TEXTURE_2D, gl.TEXTURE_BORDER_COLOR, &border[0])

	gl.GenFramebuffers(1, &rend.shadow.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, rend.shadow.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, rend.shadow.depth, 0)
	gl.DrawBuffer(gl.NONE)
	gl.ReadBuffer(gl.NONE)
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		logger.Log.Error("Shadow framebuffer incomplete", zap.Uint32("status", status))
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	rend.shadow.width, rend.shadow.height = width, height
	logger.Log.Debug("Shadow map allocated", zap.Int32("width", width), zap.Int32("height", height))
}

func (rend *OpenGLRenderer) deleteShadowTarget() {
	if rend.shadow.fbo != 0 {
		gl.DeleteFramebuffers(1, &rend.shadow.fbo)
	}
	if rend.shadow.depth != 0 {
		gl.DeleteTextures(1, &rend.shadow.depth)
	}
	rend.shadow = shadowTarget{}
}

// upload creates the GPU buffers for mesh on first use and returns them.
func (rend *OpenGLRenderer) upload(mesh *scene.Mesh) *gpuMesh {
	if gpu, ok := rend.meshes[mesh]; ok {
		return gpu
	}

	data := mesh.Interleave()
	gpu := &gpuMesh{count: int32(len(mesh.Indices))}
	gpu.boundsCenter, gpu.boundsRadius = boundingSphere(mesh.Positions)

	gl.GenVertexArrays(1, &gpu.VAO)
	gl.BindVertexArray(gpu.VAO)

	gl.GenBuffers(1, &gpu.VBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, gpu.VBO)
	if len(data) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.STATIC_DRAW)
	}

	gl.GenBuffers(1, &gpu.EBO)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, gpu.EBO)
	if len(mesh.Indices) > 0 {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*4, gl.Ptr(mesh.Indices), gl.STATIC_DRAW)
	}

	// position(3) normal(3) uv(2) joints(4) weights(4)
	attribs := []struct {
		size   int32
		offset int
	}{{3, 0}, {3, 3}, {2, 6}, {4, 8}, {4, 12}}
	for i, a := range attribs {
		gl.VertexAttribPointer(uint32(i), a.size, gl.FLOAT, false, vertexStride, gl.PtrOffset(a.offset*4))
		gl.EnableVertexAttribArray(uint32(i))
	}
	gl.BindVertexArray(0)

	gpu.texture = rend.white
	if mat := mesh.Material; mat != nil && mat.Texture != nil {
		key := mat.TextureKey
		if key == "" {
			key = fmt.Sprintf("material:%p", mat)
		}
		gpu.texture = rend.textures.Acquire(key, mat.Texture)
	}
	if mesh.Material == nil {
		mesh.Material = scene.DefaultMaterial()
	}

	rend.meshes[mesh] = gpu
	logger.Log.Debug("Mesh uploaded",
		zap.String("mesh", mesh.Name),
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int32("indices", gpu.count),
		zap.Bool("skinned", mesh.IsSkinned()))
	return gpu
}

// boundingSphere returns the centre of the bounding box and the distance to
// its farthest vertex.
func boundingSphere(positions [][3]float32) (mgl32.Vec3, float32) {
	if len(positions) == 0 {
		return mgl32.Vec3{}, 0
	}
	lo := mgl32.Vec3(positions[0])
	hi := lo
	for _, p := range positions[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	center := lo.Add(hi).Mul(0.5)
	var radius float32
	for _, p := range positions {
		radius = max(radius, mgl32.Vec3(p).Sub(center).Len())
	}
	return center, radius
}

// releaseTextures drops the references meshes and the white fallback hold.
func (rend *OpenGLRenderer) releaseTextures() {
	for _, gpu := range rend.meshes {
		if gpu.texture != rend.white {
			rend.textures.ReleaseTexture(gpu.texture)
		}
	}
	rend.textures.ReleaseTexture(rend.white)
	rend.white = 0
}

func (rend *OpenGLRenderer) Cleanup() {
	rend.releaseTextures()
	rend.textures.LogStats()
	for mesh, gpu := range rend.meshes {
		gl.DeleteVertexArrays(1, &gpu.VAO)
		gl.DeleteBuffers(1, &gpu.VBO)
		gl.DeleteBuffers(1, &gpu.EBO)
		delete(rend.meshes, mesh)
	}
	rend.textures.Clear()
	rend.deleteShadowTarget()
	rend.defaultShader.Delete()
	rend.depthShader.Delete()
}
