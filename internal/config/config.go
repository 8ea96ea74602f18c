package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Vec3 is a plain three component vector so the YAML stays a flat list.
type Vec3 [3]float32

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int32  `yaml:"width"`
	Height int32  `yaml:"height"`
	// PageHeight is the largest scroll offset the wheel can reach.
	PageHeight float64 `yaml:"page_height"`
	// ScrollStep is how many scroll units one wheel notch moves.
	ScrollStep float64 `yaml:"scroll_step"`
	Samples    int     `yaml:"samples"`
	VSync      bool    `yaml:"vsync"`
}

type CameraConfig struct {
	Fov      float32 `yaml:"fov"`
	Near     float32 `yaml:"near"`
	Far      float32 `yaml:"far"`
	Position Vec3    `yaml:"position"`
	Target   Vec3    `yaml:"target"`
}

// ScrollConfig describes the camera path driven by the scroll offset.
type ScrollConfig struct {
	StartX   float32 `yaml:"start_x"`
	EndX     float32 `yaml:"end_x"`
	Distance float64 `yaml:"distance"`
}

type ShadowConfig struct {
	MapSize int32   `yaml:"map_size"`
	Near    float32 `yaml:"near"`
	Far     float32 `yaml:"far"`
	Left    float32 `yaml:"left"`
	Right   float32 `yaml:"right"`
	Top     float32 `yaml:"top"`
	Bottom  float32 `yaml:"bottom"`
	Bias    float32 `yaml:"bias"`
}

type LightConfig struct {
	Position         Vec3         `yaml:"position"`
	Target           Vec3         `yaml:"target"`
	Color            Vec3         `yaml:"color"`
	Intensity        float32      `yaml:"intensity"`
	CastShadow       bool         `yaml:"cast_shadow"`
	Shadow           ShadowConfig `yaml:"shadow"`
	AmbientColor     Vec3         `yaml:"ambient_color"`
	AmbientIntensity float32      `yaml:"ambient_intensity"`
}

type AssetConfig struct {
	BasePath   string  `yaml:"base_path"`
	ModelFile  string  `yaml:"model_file"`
	AnimFile   string  `yaml:"anim_file"`
	ModelScale float32 `yaml:"model_scale"`
	Placements []Vec3  `yaml:"placements"`
	Workers    int     `yaml:"workers"`
}

type RenderConfig struct {
	ClearColor [4]float32 `yaml:"clear_color"`
	Exposure   float32    `yaml:"exposure"`
	// FrustumCulling skips rigid meshes outside the camera frustum.
	FrustumCulling bool `yaml:"frustum_culling"`
	Wireframe      bool `yaml:"wireframe"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Config struct {
	Window WindowConfig `yaml:"window"`
	Camera CameraConfig `yaml:"camera"`
	Scroll ScrollConfig `yaml:"scroll"`
	Light  LightConfig  `yaml:"light"`
	Assets AssetConfig  `yaml:"assets"`
	Render RenderConfig `yaml:"render"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the built-in scene: three dancing characters, the camera
// sliding from x=15 to x=-15 over the first 500 scroll units.
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:      "ScrollStage",
			Width:      1280,
			Height:     720,
			PageHeight: 2000,
			ScrollStep: 40,
			Samples:    4,
			VSync:      true,
		},
		Camera: CameraConfig{
			Fov:      60,
			Near:     1.0,
			Far:      1000.0,
			Position: Vec3{15, 15, 20},
			Target:   Vec3{0, 10, 0},
		},
		Scroll: ScrollConfig{
			StartX:   15,
			EndX:     -15,
			Distance: 500,
		},
		Light: LightConfig{
			Position:   Vec3{20, 100, 10},
			Target:     Vec3{0, 0, 0},
			Color:      Vec3{1, 1, 1},
			Intensity:  1,
			CastShadow: true,
			Shadow: ShadowConfig{
				MapSize: 2048,
				Near:    0.5,
				Far:     500.0,
				Left:    100,
				Right:   -100,
				Top:     100,
				Bottom:  -100,
				Bias:    -0.001,
			},
			AmbientColor:     Vec3{1, 1, 1},
			AmbientIntensity: 1,
		},
		Assets: AssetConfig{
			BasePath:   "./resources/zombie/",
			ModelFile:  "character.glb",
			AnimFile:   "dance.glb",
			ModelScale: 0.1,
			Placements: []Vec3{
				{0, 0, 0},
				{-20, 0, -20},
				{20, 0, -20},
			},
			Workers: 4,
		},
		Render: RenderConfig{
			ClearColor:     [4]float32{0, 0, 0, 0},
			Exposure:       1,
			FrustumCulling: false,
			Wireframe:      false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvePaths makes a relative asset directory relative to dir, normally
// the directory holding the config file.
func (c *Config) ResolvePaths(dir string) {
	if c.Assets.BasePath == "" || filepath.IsAbs(c.Assets.BasePath) {
		return
	}
	c.Assets.BasePath = filepath.Join(dir, c.Assets.BasePath)
}

// Find returns the first existing file among names, checked next to the
// executable first and then in the working directory. Empty if none exist.
func Find(names ...string) string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	dirs = append(dirs, ".")

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}

func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, fmt.Errorf("camera planes must satisfy 0 < near < far, got %v/%v", c.Camera.Near, c.Camera.Far))
	}
	if c.Camera.Fov <= 0 || c.Camera.Fov >= 180 {
		errs = append(errs, fmt.Errorf("camera fov out of range: %v", c.Camera.Fov))
	}
	if c.Scroll.Distance <= 0 {
		errs = append(errs, errors.New("scroll distance must be positive"))
	}
	if c.Light.Shadow.MapSize <= 0 {
		errs = append(errs, errors.New("shadow map size must be positive"))
	}
	if c.Assets.Workers <= 0 {
		errs = append(errs, errors.New("asset workers must be positive"))
	}
	return errors.Join(errs...)
}
