package session

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/andresmejia3/facewatch/internal/recognition"
	"github.com/andresmejia3/facewatch/internal/types"
)

// countingAnalyzer labels every result with the call number.
type countingAnalyzer struct {
	calls int
	fail  map[int]bool
}

func (c *countingAnalyzer) Analyze(image.Image) (recognition.Result, error) {
	c.calls++
	if c.fail[c.calls] {
		return recognition.Result{}, errors.New("encoder crashed")
	}
	return recognition.Result{
		Boxes:  []types.Box{{Top: c.calls, Right: c.calls, Bottom: c.calls, Left: c.calls}},
		Labels: []string{fmt.Sprintf("call %d", c.calls)},
	}, nil
}

func TestStepAlternates(t *testing.T) {
	a := &countingAnalyzer{}
	s := New(a, DefaultUpscale)
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	wantAnalyzed := []bool{true, false, true, false, true}
	wantLabel := []string{"call 1", "call 1", "call 2", "call 2", "call 3"}

	for i := range wantAnalyzed {
		res, analyzed, err := s.Step(img)
		if err != nil {
			t.Fatalf("Step %d failed: %v", i, err)
		}
		if analyzed != wantAnalyzed[i] {
			t.Errorf("Step %d analyzed = %v, want %v", i, analyzed, wantAnalyzed[i])
		}
		if res.Labels[0] != wantLabel[i] {
			t.Errorf("Step %d label = %q, want %q", i, res.Labels[0], wantLabel[i])
		}
	}

	if a.calls != 3 {
		t.Errorf("Expected 3 analyzer calls, got %d", a.calls)
	}
	frames, analyzed := s.Stats()
	if frames != 5 || analyzed != 3 {
		t.Errorf("Stats() = %d, %d; want 5, 3", frames, analyzed)
	}
}

func TestStepKeepsResultOnError(t *testing.T) {
	a := &countingAnalyzer{fail: map[int]bool{2: true}}
	s := New(a, DefaultUpscale)
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	s.Step(img) // analyze: call 1
	s.Step(img) // reuse
	res, analyzed, err := s.Step(img)
	if err == nil || !analyzed {
		t.Fatalf("Expected analysis error, got analyzed=%v err=%v", analyzed, err)
	}
	if res.Labels[0] != "call 1" {
		t.Errorf("Expected previous result to survive, got %q", res.Labels[0])
	}

	// The schedule keeps alternating after a failure.
	if _, analyzed, _ := s.Step(img); analyzed {
		t.Error("Expected a reuse frame after the failed analysis")
	}
}

func TestSkipKeepsSchedule(t *testing.T) {
	a := &countingAnalyzer{}
	s := New(a, DefaultUpscale)
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	s.Step(img) // analyze: call 1
	s.Skip()    // reuse slot
	s.Skip()    // analyze slot lost

	res, analyzed, err := s.Step(img)
	if err != nil {
		t.Fatal(err)
	}
	if analyzed {
		t.Error("Expected a reuse frame after a skipped analyze slot")
	}
	if res.Labels[0] != "call 1" {
		t.Errorf("Expected the previous result to stay, got %q", res.Labels[0])
	}

	frames, analyzedCount := s.Stats()
	if frames != 4 || analyzedCount != 1 || a.calls != 1 {
		t.Errorf("Stats() = %d, %d with %d calls; want 4, 1 with 1 call", frames, analyzedCount, a.calls)
	}
}

func TestOverlaysEmpty(t *testing.T) {
	s := New(&countingAnalyzer{}, DefaultUpscale)
	if got := s.Overlays(); len(got) != 0 {
		t.Errorf("Expected no overlays before the first frame, got %v", got)
	}
}

func TestOverlaysScale(t *testing.T) {
	r := recognition.Result{
		Boxes:  []types.Box{{Top: 1, Right: 2, Bottom: 3, Left: 4}},
		Labels: []string{"alice.jpg (99.30%)"},
	}
	got := Overlays(r, DefaultUpscale)
	want := types.Box{Top: 4, Right: 8, Bottom: 12, Left: 16}
	if len(got) != 1 || got[0].Box != want || got[0].Label != "alice.jpg (99.30%)" {
		t.Errorf("Overlays() = %+v, want box %+v", got, want)
	}
}
