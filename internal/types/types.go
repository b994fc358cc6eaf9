package types

import "image"

// EmbeddingSize is the length of a dlib face descriptor.
const EmbeddingSize = 128

// Embedding is a face descriptor produced by the recognition model.
type Embedding [EmbeddingSize]float32

// Box is a face bounding box in pixel coordinates, [top, right, bottom, left].
type Box struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// BoxFromRect converts an image.Rectangle into a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

// Rect returns the box as an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Scale multiplies every coordinate by factor.
func (b Box) Scale(factor int) Box {
	return Box{
		Top:    b.Top * factor,
		Right:  b.Right * factor,
		Bottom: b.Bottom * factor,
		Left:   b.Left * factor,
	}
}

// Entry is one reference face of the gallery.
type Entry struct {
	Name      string
	Embedding Embedding
}

// Overlay is a labeled box in full-resolution frame coordinates, ready to draw.
type Overlay struct {
	Box   Box
	Label string
}
