package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/andresmejia3/facewatch/internal/types"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrEmptyDirectory is returned when the reference directory holds no image files.
var ErrEmptyDirectory = errors.New("no reference images found")

// Gallery is an immutable set of known faces. names[i] labels embeddings[i].
type Gallery struct {
	names      []string
	embeddings []types.Embedding
}

// NewGallery builds a gallery from entries, keeping their order.
func NewGallery(entries []types.Entry) *Gallery {
	g := &Gallery{
		names:      make([]string, 0, len(entries)),
		embeddings: make([]types.Embedding, 0, len(entries)),
	}
	for _, e := range entries {
		g.add(e.Name, e.Embedding)
	}
	return g
}

func (g *Gallery) add(name string, e types.Embedding) {
	g.names = append(g.names, name)
	g.embeddings = append(g.embeddings, e)
}

// Len returns the number of reference faces.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.names)
}

// Names returns a copy of the known names in gallery order.
func (g *Gallery) Names() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Embeddings returns a copy of the reference embeddings in gallery order.
func (g *Gallery) Embeddings() []types.Embedding {
	if g == nil {
		return nil
	}
	out := make([]types.Embedding, len(g.embeddings))
	copy(out, g.embeddings)
	return out
}

// Entries returns the gallery as name/embedding pairs.
func (g *Gallery) Entries() []types.Entry {
	out := make([]types.Entry, g.Len())
	for i := range out {
		out[i] = types.Entry{Name: g.names[i], Embedding: g.embeddings[i]}
	}
	return out
}

type buildConfig struct {
	progress io.Writer
}

// BuildOption configures BuildGallery.
type BuildOption func(*buildConfig)

// WithProgress renders a progress bar to w while scanning.
func WithProgress(w io.Writer) BuildOption {
	return func(c *buildConfig) { c.progress = w }
}

// BuildGallery scans dir and adds one entry per face found in each image,
// labeled with the file name. Images without a face and faces that cannot be
// encoded are logged and skipped.
func BuildGallery(ctx context.Context, dir string, eng FaceEngine, opts ...BuildOption) (*Gallery, error) {
	var cfg buildConfig
	for _, o := range opts {
		o(&cfg)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference directory %s: %w", dir, err)
	}

	var files []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if !utils.IsImageFile(de.Name()) {
			log.WithField("file", de.Name()).Debug("Skipping non-image file")
			continue
		}
		files = append(files, de.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrEmptyDirectory, dir)
	}

	var bar *progressbar.ProgressBar
	if cfg.progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("🧑 Encoding reference faces"),
			progressbar.OptionSetWriter(cfg.progress),
			progressbar.OptionShowCount(),
		)
	}

	g := &Gallery{}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if bar != nil {
			bar.Add(1)
		}

		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			log.WithError(err).WithField("file", name).Error("Failed to load reference image")
			continue
		}

		boxes, err := eng.Detect(img)
		if err != nil {
			log.WithError(err).WithField("file", name).Error("Face detection failed")
			continue
		}
		if len(boxes) == 0 {
			log.WithField("file", name).Warnf("No face detected in %s. Skipping.", name)
			continue
		}

		for _, box := range boxes {
			emb, err := eng.Encode(img, box)
			if err != nil {
				log.WithError(err).WithField("file", name).Errorf("Error encoding face in %s", name)
				continue
			}
			g.add(name, emb)
		}
	}

	if bar != nil {
		bar.Finish()
	}

	log.WithField("count", g.Len()).Infof("Known faces: %v", g.names)
	return g, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
