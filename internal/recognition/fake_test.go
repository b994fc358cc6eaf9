package recognition

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/facewatch/internal/types"
)

// fakeEngine lets each test script detection and encoding.
type fakeEngine struct {
	detect func(img image.Image) ([]types.Box, error)
	encode func(img image.Image, box types.Box) (types.Embedding, error)
}

func (f *fakeEngine) Detect(img image.Image) ([]types.Box, error) {
	return f.detect(img)
}

func (f *fakeEngine) Encode(img image.Image, box types.Box) (types.Embedding, error) {
	return f.encode(img, box)
}

func (f *fakeEngine) Distance(a, b types.Embedding) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func embeddingAt(x float32) types.Embedding {
	var e types.Embedding
	e[0] = x
	return e
}

// writeFaceImage writes a tiny PNG whose first pixel encodes how many faces
// the pixelEngine should report (red) and a tag for the embedding (green).
func writeFaceImage(t *testing.T, dir, name string, faces, tag uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: faces, G: tag, A: 255})

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func pixel(img image.Image) (faces, tag int) {
	r, g, _, _ := img.At(0, 0).RGBA()
	return int(r >> 8), int(g >> 8)
}

// pixelEngine reads the face count and tag from the first pixel.
// A box with Left == -1 fails to encode.
func pixelEngine() *fakeEngine {
	return &fakeEngine{
		detect: func(img image.Image) ([]types.Box, error) {
			n, _ := pixel(img)
			boxes := make([]types.Box, n)
			for i := range boxes {
				boxes[i] = types.Box{Top: i, Right: i + 1, Bottom: i + 1, Left: i}
			}
			return boxes, nil
		},
		encode: func(img image.Image, box types.Box) (types.Embedding, error) {
			_, tag := pixel(img)
			e := embeddingAt(float32(tag))
			e[1] = float32(box.Left)
			return e, nil
		},
	}
}
