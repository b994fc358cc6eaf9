package recognition

import (
	"errors"
	"image"
	"reflect"
	"testing"

	"github.com/andresmejia3/facewatch/internal/types"
)

// scriptedEngine reports fixed boxes and maps each box to a descriptor.
func scriptedEngine(boxes []types.Box, embs map[types.Box]types.Embedding) *fakeEngine {
	return &fakeEngine{
		detect: func(image.Image) ([]types.Box, error) { return boxes, nil },
		encode: func(_ image.Image, b types.Box) (types.Embedding, error) {
			e, ok := embs[b]
			if !ok {
				return types.Embedding{}, errors.New("no face in region")
			}
			return e, nil
		},
	}
}

func frame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

func aliceGallery() *Gallery {
	return NewGallery([]types.Entry{{Name: "alice.jpg", Embedding: embeddingAt(0)}})
}

func TestAnalyzeNoFaces(t *testing.T) {
	a := NewAnalyzer(scriptedEngine(nil, nil), aliceGallery())

	res, err := a.Analyze(frame())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Len() != 0 || len(res.Labels) != 0 {
		t.Errorf("Expected empty result, got %+v", res)
	}
}

func TestAnalyzeLabels(t *testing.T) {
	near := types.Box{Top: 1, Right: 2, Bottom: 3, Left: 4}
	exact := types.Box{Top: 10, Right: 20, Bottom: 30, Left: 5}
	far := types.Box{Top: 40, Right: 60, Bottom: 50, Left: 45}

	eng := scriptedEngine([]types.Box{near, exact, far}, map[types.Box]types.Embedding{
		near:  embeddingAt(0.3),
		exact: embeddingAt(0),
		far:   embeddingAt(0.9),
	})
	a := NewAnalyzer(eng, aliceGallery())

	res, err := a.Analyze(frame())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	wantLabels := []string{"alice.jpg (99.30%)", "alice.jpg (100.00%)", "Unknown (Unknown)"}
	if !reflect.DeepEqual(res.Labels, wantLabels) {
		t.Errorf("Labels = %v, want %v", res.Labels, wantLabels)
	}
	if !reflect.DeepEqual(res.Boxes, []types.Box{near, exact, far}) {
		t.Errorf("Boxes = %v", res.Boxes)
	}
}

func TestAnalyzeDropsUnencodableFaces(t *testing.T) {
	good := types.Box{Top: 1, Right: 2, Bottom: 3, Left: 4}
	bad := types.Box{Top: 5, Right: 6, Bottom: 7, Left: 8}
	eng := scriptedEngine([]types.Box{bad, good}, map[types.Box]types.Embedding{good: embeddingAt(0)})

	res, err := NewAnalyzer(eng, aliceGallery()).Analyze(frame())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(res.Boxes) != len(res.Labels) {
		t.Fatalf("Boxes and labels out of sync: %d vs %d", len(res.Boxes), len(res.Labels))
	}
	if res.Len() != 1 || res.Boxes[0] != good {
		t.Errorf("Expected only the encodable face, got %+v", res)
	}
}

func TestAnalyzeDetectionError(t *testing.T) {
	eng := &fakeEngine{detect: func(image.Image) ([]types.Box, error) { return nil, errors.New("boom") }}
	if _, err := NewAnalyzer(eng, aliceGallery()).Analyze(frame()); err == nil {
		t.Fatal("Expected detection error")
	}
}

func TestAnalyzeDownscalesBeforeDetection(t *testing.T) {
	var seen image.Rectangle
	eng := &fakeEngine{detect: func(img image.Image) ([]types.Box, error) {
		seen = img.Bounds()
		return nil, nil
	}}

	if _, err := NewAnalyzer(eng, aliceGallery()).Analyze(frame()); err != nil {
		t.Fatal(err)
	}
	if seen.Dx() != 160 || seen.Dy() != 120 {
		t.Errorf("Detector saw %v, want 160x120", seen)
	}

	if _, err := NewAnalyzer(eng, aliceGallery(), WithScale(1)).Analyze(frame()); err != nil {
		t.Fatal(err)
	}
	if seen.Dx() != 640 {
		t.Errorf("Scale 1 should not resize, detector saw %v", seen)
	}
}

func TestMatch(t *testing.T) {
	eng := scriptedEngine(nil, nil)

	t.Run("Empty gallery", func(t *testing.T) {
		a := NewAnalyzer(eng, NewGallery(nil))
		if _, _, ok := a.Match(embeddingAt(0)); ok {
			t.Error("Expected no match against an empty gallery")
		}
		if got := a.Label(embeddingAt(0)); got != "Unknown (Unknown)" {
			t.Errorf("Label = %q", got)
		}
	})

	t.Run("Ties go to first entry", func(t *testing.T) {
		g := NewGallery([]types.Entry{
			{Name: "first.jpg", Embedding: embeddingAt(0.2)},
			{Name: "second.jpg", Embedding: embeddingAt(0.2)},
		})
		name, _, ok := NewAnalyzer(eng, g).Match(embeddingAt(0))
		if !ok || name != "first.jpg" {
			t.Errorf("Match = %q, %v; want first.jpg", name, ok)
		}
	})

	t.Run("Closest wins", func(t *testing.T) {
		g := NewGallery([]types.Entry{
			{Name: "far.jpg", Embedding: embeddingAt(0.5)},
			{Name: "near.jpg", Embedding: embeddingAt(0.125)},
		})
		name, dist, ok := NewAnalyzer(eng, g).Match(embeddingAt(0))
		if !ok || name != "near.jpg" || dist != 0.125 {
			t.Errorf("Match = %q, %v, %v", name, dist, ok)
		}
	})

	t.Run("Threshold is inclusive", func(t *testing.T) {
		g := NewGallery([]types.Entry{{Name: "edge.jpg", Embedding: embeddingAt(0.5)}})
		a := NewAnalyzer(eng, g, WithThreshold(0.5))
		if got := a.Label(embeddingAt(0)); got != "edge.jpg (50.00%)" {
			t.Errorf("Label = %q, want edge.jpg (50.00%%)", got)
		}
	})
}

func TestDownscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 7, 3))
	got := Downscale(img, 0.25).Bounds()
	if got.Dx() != 2 || got.Dy() != 1 {
		t.Errorf("Downscale 7x3 by 0.25 = %v, want 2x1", got)
	}
}
