// Package engine provides the dlib-backed face model used by the pipeline.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"reflect"

	"github.com/Kagami/go-face"
	"github.com/andresmejia3/facewatch/internal/types"
	log "github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
)

// LandmarkModel is the shape predictor that must sit in the model directory.
const LandmarkModel = "shape_predictor_5_face_landmarks.dat"

const jpegQuality = 95

// upsampleFactor enlarges images once before detection, like dlib's
// upsample_num_times=1, so faces down to about 40px are found.
const upsampleFactor = 2

// ErrNoFace is returned when a region does not contain exactly one face.
var ErrNoFace = errors.New("no single face found in region")

// Dlib detects faces with dlib's HOG frontal detector and computes 128-d
// ResNet descriptors through go-face. It is not safe for concurrent use.
type Dlib struct {
	rec *face.Recognizer

	// Descriptors computed by the last Detect, keyed by box.
	lastImg   image.Image
	lastFaces map[types.Box]types.Embedding
}

// NewDlib loads the dlib models from modelDir.
func NewDlib(modelDir string) (*Dlib, error) {
	landmarks := filepath.Join(modelDir, LandmarkModel)
	if _, err := os.Stat(landmarks); err != nil {
		return nil, fmt.Errorf("failed to load landmark model %s: %w", landmarks, err)
	}

	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load face models from %s: %w", modelDir, err)
	}
	log.WithField("dir", modelDir).Debug("dlib face models loaded")

	return &Dlib{rec: rec}, nil
}

// Close releases the dlib recognizer.
func (d *Dlib) Close() {
	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
}

// Detect returns the box of every face in img. The image is upsampled once
// before detection and the boxes are mapped back to img's coordinates.
// Descriptors are computed in the same pass and kept for Encode.
func (d *Dlib) Detect(img image.Image) ([]types.Box, error) {
	data, err := encodeJPEG(upsample(img))
	if err != nil {
		return nil, err
	}

	faces, err := d.rec.Recognize(data)
	if err != nil {
		return nil, fmt.Errorf("dlib recognize: %w", err)
	}

	d.lastImg = img
	d.lastFaces = make(map[types.Box]types.Embedding, len(faces))

	boxes := make([]types.Box, 0, len(faces))
	for _, f := range faces {
		box := types.BoxFromRect(downsampleRect(f.Rectangle, img.Bounds().Min))
		boxes = append(boxes, box)
		d.lastFaces[box] = types.Embedding(f.Descriptor)
	}
	return boxes, nil
}

// Encode returns the descriptor of the face inside box. Boxes returned by
// the last Detect on the same image are served from memory; anything else
// is cropped and recognized on its own.
func (d *Dlib) Encode(img image.Image, box types.Box) (types.Embedding, error) {
	if e, ok := d.memoized(img, box); ok {
		return e, nil
	}

	crop := cropPadded(img, box.Rect())
	if crop == nil {
		return types.Embedding{}, fmt.Errorf("box %v outside image %v: %w", box, img.Bounds(), ErrNoFace)
	}
	data, err := encodeJPEG(upsample(crop))
	if err != nil {
		return types.Embedding{}, err
	}

	f, err := d.rec.RecognizeSingle(data)
	if err != nil {
		return types.Embedding{}, fmt.Errorf("dlib recognize region: %w", err)
	}
	if f == nil {
		return types.Embedding{}, ErrNoFace
	}
	return types.Embedding(f.Descriptor), nil
}

func (d *Dlib) memoized(img image.Image, box types.Box) (types.Embedding, bool) {
	if !sameImage(img, d.lastImg) {
		return types.Embedding{}, false
	}
	e, ok := d.lastFaces[box]
	return e, ok
}

// sameImage reports whether a and b are the same image value. Images of
// non-comparable types never match.
func sameImage(a, b image.Image) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Distance is the Euclidean distance between two descriptors.
func (d *Dlib) Distance(a, b types.Embedding) float64 {
	return math.Sqrt(face.SquaredEuclideanDistance(face.Descriptor(a), face.Descriptor(b)))
}

// cropPadded copies r, grown by a quarter of its size on each side, out of
// img so the detector has context around the face.
func cropPadded(img image.Image, r image.Rectangle) *image.RGBA {
	padX, padY := r.Dx()/4, r.Dy()/4
	padded := image.Rect(r.Min.X-padX, r.Min.Y-padY, r.Max.X+padX, r.Max.Y+padY).Intersect(img.Bounds())
	if padded.Empty() {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, padded.Dx(), padded.Dy()))
	draw.Draw(dst, dst.Bounds(), img, padded.Min, draw.Src)
	return dst
}

// upsample returns img enlarged by upsampleFactor with its origin at (0, 0).
func upsample(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*upsampleFactor, b.Dy()*upsampleFactor))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// downsampleRect maps a rectangle found on the upsampled image back onto the
// source image whose bounds start at origin. Min rounds down and Max up so
// the face stays inside the box.
func downsampleRect(r image.Rectangle, origin image.Point) image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(floorDiv(r.Min.X, upsampleFactor), floorDiv(r.Min.Y, upsampleFactor)).Add(origin),
		Max: image.Pt(-floorDiv(-r.Max.X, upsampleFactor), -floorDiv(-r.Max.Y, upsampleFactor)).Add(origin),
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
