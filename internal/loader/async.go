package loader

import (
	"ScrollStage/internal/animation"
	"ScrollStage/internal/logger"
	"ScrollStage/internal/scene"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// Loader parses assets on a bounded worker pool. Every call returns a future
// that resolves once the file is parsed. Nothing is retried and nothing times
// out; a file that never finishes leaves its future pending.
type Loader struct {
	models pond.ResultPool[*scene.Node]
	clips  pond.ResultPool[[]*animation.Clip]

	loadModel func(string) (*scene.Node, error)
	loadClips func(string) ([]*animation.Clip, error)
}

func NewLoader(workers int) *Loader {
	if workers < 1 {
		workers = 1
	}
	return &Loader{
		models:    pond.NewResultPool[*scene.Node](workers),
		clips:     pond.NewResultPool[[]*animation.Clip](workers),
		loadModel: LoadModel,
		loadClips: LoadClips,
	}
}

func (l *Loader) LoadModel(path string) pond.Result[*scene.Node] {
	logger.Log.Debug("Model load queued", zap.String("path", path))
	return l.models.SubmitErr(func() (*scene.Node, error) {
		return l.loadModel(path)
	})
}

func (l *Loader) LoadClips(path string) pond.Result[[]*animation.Clip] {
	logger.Log.Debug("Animation load queued", zap.String("path", path))
	return l.clips.SubmitErr(func() ([]*animation.Clip, error) {
		return l.loadClips(path)
	})
}

// Close stops accepting loads. Loads still running are abandoned rather than
// awaited, a hung file must not block shutdown.
func (l *Loader) Close() {
	l.models.Stop()
	l.clips.Stop()
}
