// Package capture drives the camera, the preview window and overlay drawing.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/andresmejia3/facewatch/internal/session"
	"github.com/andresmejia3/facewatch/internal/types"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	// DefaultWindow is the title of the preview window.
	DefaultWindow = "Face Recognition"
	// DefaultQuitKey ends the loop when pressed in the preview window.
	DefaultQuitKey = 'q'

	labelStrip = 35
	labelInset = 6
)

var (
	boxColor   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// ErrSourceUnavailable is returned when the camera cannot be opened.
var ErrSourceUnavailable = errors.New("video source not available")

// FrameSource yields BGR frames. *gocv.VideoCapture satisfies it.
type FrameSource interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Display shows frames and polls the keyboard. *gocv.Window satisfies it.
type Display interface {
	IMShow(img gocv.Mat)
	WaitKey(delay int) int
	Close() error
}

// Options tunes the capture loop.
type Options struct {
	QuitKey   rune
	PollDelay int // milliseconds
}

// DefaultOptions polls every millisecond and quits on 'q'.
func DefaultOptions() Options {
	return Options{QuitKey: DefaultQuitKey, PollDelay: 1}
}

// Stats summarizes a finished capture loop.
type Stats struct {
	Frames   int
	Analyzed int
	Quit     bool
}

// Open opens the local camera at device.
func Open(device int) (*gocv.VideoCapture, error) {
	cam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("device %d: %w", device, err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, fmt.Errorf("device %d: %w", device, ErrSourceUnavailable)
	}
	return cam, nil
}

// NewWindow opens the preview window.
func NewWindow(title string) *gocv.Window {
	if title == "" {
		title = DefaultWindow
	}
	return gocv.NewWindow(title)
}

// Run reads frames from src until the stream ends, the quit key is pressed
// or ctx is cancelled. Every frame is drawn with the session's current
// overlays; the session decides which frames get analyzed. Run owns src and
// disp and closes both before returning.
func Run(ctx context.Context, src FrameSource, disp Display, sess *session.Session, opts Options) (stats Stats, err error) {
	defer src.Close()
	defer disp.Close()

	if opts.QuitKey == 0 {
		opts.QuitKey = DefaultQuitKey
	}
	if opts.PollDelay <= 0 {
		opts.PollDelay = 1
	}

	frame := gocv.NewMat()
	defer frame.Close()

	defer func() {
		stats.Frames, stats.Analyzed = sess.Stats()
	}()

	for {
		if ctx.Err() != nil {
			log.Info("Capture interrupted")
			return stats, nil
		}

		if ok := src.Read(&frame); !ok || frame.Empty() {
			log.Info("Video source ended")
			return stats, nil
		}

		img, cerr := frame.ToImage()
		if cerr != nil {
			log.WithError(cerr).Warn("Failed to convert frame")
			sess.Skip()
		} else if _, analyzed, serr := sess.Step(img); serr != nil {
			log.WithError(serr).WithField("analyzed", analyzed).Warn("Frame analysis failed, keeping previous labels")
		}

		Draw(&frame, sess.Overlays())
		disp.IMShow(frame)

		if disp.WaitKey(opts.PollDelay) == int(opts.QuitKey) {
			stats.Quit = true
			return stats, nil
		}
	}
}

// Draw renders each overlay onto mat: a red outline around the face, a
// filled red strip along its bottom edge and the label in white.
func Draw(mat *gocv.Mat, overlays []types.Overlay) {
	for _, o := range overlays {
		b := o.Box
		gocv.Rectangle(mat, b.Rect(), boxColor, 2)
		strip := image.Rect(b.Left, b.Bottom-labelStrip, b.Right, b.Bottom)
		gocv.Rectangle(mat, strip, boxColor, -1)
		gocv.PutText(mat, o.Label, image.Pt(b.Left+labelInset, b.Bottom-labelInset),
			gocv.FontHersheyDuplex, 0.8, labelColor, 1)
	}
}
