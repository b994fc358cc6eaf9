package recognition

import (
	"fmt"
	"image"
	"math"

	"github.com/andresmejia3/facewatch/internal/types"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

const (
	// DefaultScale is the linear downscale applied to frames before detection.
	DefaultScale = 0.25
	unknown      = "Unknown"
)

// Result holds the faces found in one analyzed frame. Boxes are in
// downscaled-frame coordinates and Labels[i] describes Boxes[i].
type Result struct {
	Boxes  []types.Box
	Labels []string
}

// Len returns the number of labeled faces.
func (r Result) Len() int {
	return len(r.Boxes)
}

// Analyzer detects faces in a frame and matches them against a gallery.
type Analyzer struct {
	engine    FaceEngine
	gallery   *Gallery
	threshold float64
	scale     float64
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithThreshold sets the match threshold.
func WithThreshold(t float64) AnalyzerOption {
	return func(a *Analyzer) { a.threshold = t }
}

// WithScale sets the downscale factor applied before detection.
func WithScale(s float64) AnalyzerOption {
	return func(a *Analyzer) { a.scale = s }
}

// NewAnalyzer returns an Analyzer matching against g.
func NewAnalyzer(eng FaceEngine, g *Gallery, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		engine:    eng,
		gallery:   g,
		threshold: DefaultThreshold,
		scale:     DefaultScale,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze downscales frame, detects faces and labels each one with its best
// gallery match. A face whose descriptor cannot be computed is dropped.
func (a *Analyzer) Analyze(frame image.Image) (Result, error) {
	small := Downscale(frame, a.scale)

	boxes, err := a.engine.Detect(small)
	if err != nil {
		return Result{}, fmt.Errorf("face detection failed: %w", err)
	}

	res := Result{
		Boxes:  make([]types.Box, 0, len(boxes)),
		Labels: make([]string, 0, len(boxes)),
	}
	for _, box := range boxes {
		emb, err := a.engine.Encode(small, box)
		if err != nil {
			log.WithError(err).WithField("box", box).Warn("Skipping face that could not be encoded")
			continue
		}
		res.Boxes = append(res.Boxes, box)
		res.Labels = append(res.Labels, a.Label(emb))
	}
	return res, nil
}

// Label formats the display label for a live descriptor.
func (a *Analyzer) Label(e types.Embedding) string {
	name, dist, ok := a.Match(e)
	if !ok {
		return fmt.Sprintf("%s (%s)", unknown, unknown)
	}
	return fmt.Sprintf("%s (%s)", name, Confidence(dist, a.threshold))
}

// Match finds the closest gallery entry. Ties go to the earliest entry.
// ok is false when the gallery is empty or the best distance exceeds the threshold.
func (a *Analyzer) Match(e types.Embedding) (name string, distance float64, ok bool) {
	if a.gallery.Len() == 0 {
		return "", 0, false
	}

	best := -1
	for i, known := range a.gallery.embeddings {
		d := a.engine.Distance(known, e)
		if best == -1 || d < distance {
			best = i
			distance = d
		}
	}

	if distance > a.threshold {
		return "", distance, false
	}
	return a.gallery.names[best], distance, true
}

// Downscale resizes img by factor in both dimensions. A factor of 1 or more
// returns img unchanged.
func Downscale(img image.Image, factor float64) image.Image {
	if factor >= 1 || factor <= 0 {
		return img
	}
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
