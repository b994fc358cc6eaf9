package capture

import (
	"fmt"
	"image"

	"github.com/andresmejia3/facewatch/internal/types"
	"gocv.io/x/gocv"
)

// Still is a single image loaded from disk, kept in both the OpenCV and the
// Go representation so it can be analyzed and annotated.
type Still struct {
	mat gocv.Mat
	img image.Image
}

// ReadStill loads the image at path.
func ReadStill(path string) (*Still, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to read image %s", path)
	}
	img, err := mat.ToImage()
	if err != nil {
		mat.Close()
		return nil, fmt.Errorf("failed to convert image %s: %w", path, err)
	}
	return &Still{mat: mat, img: img}, nil
}

// Image returns the RGB view of the still.
func (s *Still) Image() image.Image {
	return s.img
}

// Annotate draws overlays onto the still and writes it to path.
func (s *Still) Annotate(path string, overlays []types.Overlay) error {
	Draw(&s.mat, overlays)
	if !gocv.IMWrite(path, s.mat) {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}

// Close releases the OpenCV buffer.
func (s *Still) Close() error {
	return s.mat.Close()
}
