// Package app wires the scene, camera, lights, controls and animation players
// together and drives them from frame, scroll and resize events.
package app

import (
	"fmt"
	"path/filepath"

	"ScrollStage/internal/animation"
	"ScrollStage/internal/config"
	"ScrollStage/internal/controls"
	"ScrollStage/internal/logger"
	"ScrollStage/internal/renderer"
	"ScrollStage/internal/scene"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Scheduler runs frame callbacks and posted tasks on the thread that owns the
// scene. Post may be called from any goroutine.
type Scheduler interface {
	RequestFrame(cb func(ts float64))
	Post(fn func())
}

// Surface reports the drawable size in pixels.
type Surface interface {
	Size() (width, height int)
}

// AssetSource starts asset loads and hands back futures for them.
type AssetSource interface {
	LoadModel(path string) pond.Result[*scene.Node]
	LoadClips(path string) pond.Result[[]*animation.Clip]
}

// Controller owns everything on screen. All methods except the load join run
// on the scheduler's thread.
type Controller struct {
	cfg       config.Config
	renderer  renderer.Render
	scheduler Scheduler
	assets    AssetSource

	camera   *renderer.Camera
	controls *controls.OrbitControls
	scene    *scene.Scene
	players  []*animation.Player

	previous    float64
	hasPrevious bool
}

// New initialises the renderer for the surface, builds the camera, lights and
// controls, starts loading every placement and requests the first frame.
func New(cfg config.Config, surface Surface, rend renderer.Render, scheduler Scheduler, assets AssetSource) (*Controller, error) {
	width, height := surface.Size()
	if width <= 0 || height <= 0 {
		width, height = int(cfg.Window.Width), int(cfg.Window.Height)
	}
	if err := rend.Init(int32(width), int32(height)); err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	c := &Controller{
		cfg:       cfg,
		renderer:  rend,
		scheduler: scheduler,
		assets:    assets,
		scene:     scene.New(),
	}

	cam := cfg.Camera
	c.camera = renderer.NewPerspectiveCamera(cam.Fov, float32(width)/float32(height), cam.Near, cam.Far)
	c.camera.SetPosition(cam.Position[0], cam.Position[1], cam.Position[2])

	c.addLights()

	c.controls = controls.NewOrbitControls(c.camera)
	c.controls.Target = mgl32.Vec3(cam.Target)
	c.controls.Update()

	a := cfg.Assets
	for _, offset := range a.Placements {
		c.LoadAnimatedModelAndPlay(a.BasePath, a.ModelFile, a.AnimFile, mgl32.Vec3(offset))
	}

	logger.Log.Info("Scene initialized",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("placements", len(a.Placements)))

	c.raf()
	return c, nil
}

func (c *Controller) addLights() {
	l := c.cfg.Light
	light := scene.NewDirectionalLight(mgl32.Vec3(l.Color), l.Intensity)
	light.Position = mgl32.Vec3(l.Position)
	light.Target = mgl32.Vec3(l.Target)
	light.CastShadow = l.CastShadow
	light.Shadow.MapWidth = l.Shadow.MapSize
	light.Shadow.MapHeight = l.Shadow.MapSize
	light.Shadow.Bias = l.Shadow.Bias
	light.Shadow.Camera = scene.ShadowCamera{
		Near:   l.Shadow.Near,
		Far:    l.Shadow.Far,
		Left:   l.Shadow.Left,
		Right:  l.Shadow.Right,
		Top:    l.Shadow.Top,
		Bottom: l.Shadow.Bottom,
	}
	c.scene.AddDirectionalLight(light)

	c.scene.AddAmbientLight(&scene.AmbientLight{
		Color:     mgl32.Vec3(l.AmbientColor),
		Intensity: l.AmbientIntensity,
	})
}

// LoadAnimatedModelAndPlay starts loading a model and an animation file and
// returns at once. The model joins the scene at offset when it arrives; the
// first clip of the animation file starts looping on it once both are in.
// Failed loads are dropped.
func (c *Controller) LoadAnimatedModelAndPlay(basePath, modelFile, animFile string, offset mgl32.Vec3) {
	modelPath := filepath.Join(basePath, modelFile)
	animPath := filepath.Join(basePath, animFile)

	model := c.assets.LoadModel(modelPath)
	clips := c.assets.LoadClips(animPath)

	go func() {
		root, err := model.Wait()
		if err != nil {
			logger.Log.Debug("Model load failed", zap.String("path", modelPath), zap.Error(err))
			return
		}
		c.scheduler.Post(func() { c.placeModel(root, offset) })

		list, err := clips.Wait()
		if err != nil {
			logger.Log.Debug("Animation load failed", zap.String("path", animPath), zap.Error(err))
			return
		}
		if len(list) == 0 {
			logger.Log.Debug("Animation file has no clips", zap.String("path", animPath))
			return
		}
		c.scheduler.Post(func() { c.attachPlayer(root, list[0]) })
	}()
}

func (c *Controller) placeModel(root *scene.Node, offset mgl32.Vec3) {
	root.SetScalar(c.cfg.Assets.ModelScale)
	root.Traverse(func(n *scene.Node) {
		n.CastShadow = true
	})
	root.Position = offset
	c.scene.Add(root)

	logger.Log.Debug("Model placed",
		zap.String("model", root.Name),
		zap.Float32("x", offset.X()),
		zap.Float32("y", offset.Y()),
		zap.Float32("z", offset.Z()))
}

func (c *Controller) attachPlayer(root *scene.Node, clip *animation.Clip) {
	player := animation.NewPlayer(root)
	action := player.ClipAction(clip)
	action.Play()
	c.players = append(c.players, player)

	logger.Log.Debug("Animation started",
		zap.String("clip", clip.Name),
		zap.Int("boundTracks", action.Bound()),
		zap.Int("players", len(c.players)))
}

// OnScroll slides the camera along x with the scroll offset pos, reaching the
// end of the path after the configured scroll distance.
func (c *Controller) OnScroll(pos float64) {
	s := c.cfg.Scroll
	amount := float32(min(pos/s.Distance, 1.0))
	p := c.cfg.Camera.Position
	c.camera.SetPosition(s.StartX+amount*(s.EndX-s.StartX), p[1], p[2])
	c.controls.Update()
}

// OnResize matches the camera and the renderer to a new surface size.
func (c *Controller) OnResize(width, height int) {
	c.camera.SetAspectRatio(float32(width) / float32(height))
	c.renderer.SetSize(int32(width), int32(height))
}

func (c *Controller) raf() {
	c.scheduler.RequestFrame(c.frame)
}

func (c *Controller) frame(ts float64) {
	if !c.hasPrevious {
		c.previous = ts
		c.hasPrevious = true
	}

	c.raf()

	c.controls.Update()
	c.renderer.Render(c.scene, c.camera)
	c.step(ts - c.previous)
	c.previous = ts
}

// step advances every player by elapsed milliseconds.
func (c *Controller) step(elapsed float64) {
	dt := elapsed * 0.001
	for _, p := range c.players {
		p.Update(dt)
	}
}

func (c *Controller) Players() []*animation.Player {
	return c.players
}

func (c *Controller) Scene() *scene.Scene {
	return c.scene
}

func (c *Controller) Camera() *renderer.Camera {
	return c.camera
}

func (c *Controller) Controls() *controls.OrbitControls {
	return c.controls
}
