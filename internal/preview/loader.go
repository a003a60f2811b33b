package preview

import (
	"context"
	"image"
	"os"

	"github.com/tannerhall/assetview/internal/debug"
	"github.com/tannerhall/assetview/internal/scene"
	"github.com/tannerhall/assetview/internal/texture"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// Loader turns a model path into a renderable scene. The context is
// checked at every suspension point; a cancelled load returns
// ctx.Err() and its partial work is discarded by the queue.
type Loader interface {
	Load(ctx context.Context, modelPath string) (*scene.Scene, error)
}

// sceneLoader is the production loader: parse the model, then attach
// its resolved colormap if one exists. A missing texture is not an
// error; the model renders untextured.
type sceneLoader struct{}

func (sceneLoader) Load(ctx context.Context, modelPath string) (*scene.Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := scene.Build(modelPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		s.Dispose()
		return nil, err
	}

	if texPath, ok := texture.Resolve(modelPath); ok {
		if img, err := decodeTexture(texPath); err == nil {
			s.Texture = img
		} else {
			debug.Log(debug.PREVIEW, "loader: texture %q undecodable: %v", texPath, err)
		}
	}

	if err := ctx.Err(); err != nil {
		s.Dispose()
		return nil, err
	}
	return s, nil
}

func decodeTexture(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
