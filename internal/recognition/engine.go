package recognition

import (
	"image"

	"github.com/andresmejia3/facewatch/internal/types"
)

// FaceEngine is the capability set the pipeline needs from a face model.
// Implementations must expect RGB images.
type FaceEngine interface {
	// Detect returns the bounding boxes of every face found in img.
	Detect(img image.Image) ([]types.Box, error)
	// Encode computes the descriptor of the single face inside box.
	Encode(img image.Image, box types.Box) (types.Embedding, error)
	// Distance compares two descriptors; lower is more similar.
	Distance(a, b types.Embedding) float64
}
