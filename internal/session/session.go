// Package session holds the per-run capture state: which frames get analyzed
// and which detections are on screen.
package session

import (
	"image"

	"github.com/andresmejia3/facewatch/internal/recognition"
	"github.com/andresmejia3/facewatch/internal/types"
)

// DefaultUpscale maps boxes found on a quarter-size frame back to full resolution.
const DefaultUpscale = 4

// FrameAnalyzer produces a fresh result for one frame.
type FrameAnalyzer interface {
	Analyze(frame image.Image) (recognition.Result, error)
}

// Session alternates between analyzing a frame and reusing the previous
// frame's result. It is not safe for concurrent use.
type Session struct {
	analyzer    FrameAnalyzer
	upscale     int
	analyzeNext bool
	current     recognition.Result
	analyzed    int
	frames      int
}

// New returns a Session whose first Step analyzes.
func New(a FrameAnalyzer, upscale int) *Session {
	if upscale < 1 {
		upscale = 1
	}
	return &Session{analyzer: a, upscale: upscale, analyzeNext: true}
}

// Step advances the session by one frame. On analyze frames the stored
// result is replaced; otherwise the previous one is returned untouched.
// When analysis fails the previous result is kept and the error returned.
func (s *Session) Step(frame image.Image) (res recognition.Result, analyzed bool, err error) {
	s.frames++
	analyzed = s.analyzeNext
	s.analyzeNext = !s.analyzeNext

	if analyzed {
		s.analyzed++
		r, aerr := s.analyzer.Analyze(frame)
		if aerr != nil {
			return s.current, true, aerr
		}
		s.current = r
	}
	return s.current, analyzed, nil
}

// Skip advances the schedule by one frame that could not be analyzed, such
// as a frame that failed to convert. The current result stays on screen and
// the analyze/reuse flag still flips.
func (s *Session) Skip() {
	s.frames++
	s.analyzeNext = !s.analyzeNext
}

// Current returns the result that is currently on screen.
func (s *Session) Current() recognition.Result {
	return s.current
}

// Overlays returns the current labeled boxes in full-resolution coordinates.
func (s *Session) Overlays() []types.Overlay {
	return Overlays(s.current, s.upscale)
}

// Stats reports how many frames were seen and how many were analyzed.
func (s *Session) Stats() (frames, analyzed int) {
	return s.frames, s.analyzed
}

// Overlays pairs each box with its label and scales it by upscale.
func Overlays(r recognition.Result, upscale int) []types.Overlay {
	n := len(r.Boxes)
	if len(r.Labels) < n {
		n = len(r.Labels)
	}
	out := make([]types.Overlay, n)
	for i := 0; i < n; i++ {
		out[i] = types.Overlay{Box: r.Boxes[i].Scale(upscale), Label: r.Labels[i]}
	}
	return out
}
