package main

import (
	"os"
	"path/filepath"

	"ScrollStage/internal/app"
	"ScrollStage/internal/config"
	"ScrollStage/internal/engine"
	"ScrollStage/internal/loader"
	"ScrollStage/internal/logger"
	"ScrollStage/internal/renderer"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

const configName = "scene.yaml"

func main() {
	cfg, cfgPath, cfgErr := loadConfig()

	logger.InitWithLevel(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	switch {
	case cfgErr != nil:
		logger.Log.Warn("Could not load config, using defaults", zap.String("path", cfgPath), zap.Error(cfgErr))
	case cfgPath != "":
		logger.Log.Info("Config loaded", zap.String("path", cfgPath))
	default:
		logger.Log.Info("No config file found, using defaults")
	}

	if code := run(cfg); code != 0 {
		logger.Sync()
		os.Exit(code)
	}
}

// loadConfig finds scene.yaml and resolves a relative asset directory against
// the file's location.
func loadConfig() (config.Config, string, error) {
	path := config.Find(configName)
	if path == "" {
		return config.Default(), "", nil
	}
	// Defaults come back on failure and get resolved the same way
	cfg, err := config.Load(path)
	cfg.ResolvePaths(filepath.Dir(path))
	return cfg, path, err
}

func run(cfg config.Config) int {
	w := cfg.Window
	eng, err := engine.New(engine.Options{
		Title:       w.Title,
		Width:       int(w.Width),
		Height:      int(w.Height),
		PageHeight:  w.PageHeight,
		ScrollStep:  w.ScrollStep,
		Samples:     w.Samples,
		VSync:       w.VSync,
		Transparent: cfg.Render.ClearColor[3] < 1,
	})
	if err != nil {
		logger.Log.Error("Could not open window", zap.Error(err))
		return 1
	}
	defer eng.Close()

	renderer.FrustumCullingEnabled = cfg.Render.FrustumCulling
	renderer.Debug = cfg.Render.Wireframe
	rend := renderer.NewOpenGLRenderer(mgl32.Vec4(cfg.Render.ClearColor), cfg.Render.Exposure)
	defer rend.Cleanup()

	assets := loader.NewLoader(cfg.Assets.Workers)
	defer assets.Close()

	controller, err := app.New(cfg, eng, rend, eng, assets)
	if err != nil {
		logger.Log.Error("Could not initialize scene", zap.Error(err))
		return 1
	}

	eng.SetResizeHandler(controller.OnResize)
	eng.SetScrollHandler(controller.OnScroll)
	eng.SetPointer(controller.Controls())

	eng.Run()
	return 0
}
