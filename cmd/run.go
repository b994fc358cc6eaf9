package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/facewatch/internal/capture"
	"github.com/andresmejia3/facewatch/internal/config"
	"github.com/andresmejia3/facewatch/internal/engine"
	"github.com/andresmejia3/facewatch/internal/recognition"
	"github.com/andresmejia3/facewatch/internal/session"
	"github.com/andresmejia3/facewatch/internal/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recognize faces from the camera in a live preview window",
	Long:  "Opens the camera, labels every detected face with the closest known name and its confidence, and shows the result until 'q' is pressed.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLive(cmd.Context())
	},
}

func init() {
	addRunFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}

// runLive wires the gallery, analyzer and capture loop together. Startup
// failures are fatal; once the camera is running every problem is logged.
func runLive(ctx context.Context) error {
	eng := loadEngine()
	defer eng.Close()

	gallery, err := loadGallery(ctx, eng)
	if err != nil {
		utils.Die("Failed to build the face gallery", err)
	}
	printKnownNames(os.Stdout, gallery.Names())

	analyzer := recognition.NewAnalyzer(eng, gallery,
		recognition.WithThreshold(cfg.Threshold),
		recognition.WithScale(cfg.Scale),
	)
	sess := session.New(analyzer, cfg.Upscale())

	cam, err := capture.Open(cfg.Device)
	if err != nil {
		utils.Die(fmt.Sprintf("Video source not found. Check that a camera is connected at device %d", cfg.Device), err)
	}

	fmt.Fprintf(os.Stderr, "🎥 Capturing from device %d. Press '%s' in the window to quit.\n", cfg.Device, cfg.QuitKey)
	stats, err := capture.Run(ctx, cam, capture.NewWindow(cfg.Window), sess, capture.Options{
		QuitKey:   cfg.QuitRune(),
		PollDelay: 1,
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"frames":   stats.Frames,
		"analyzed": stats.Analyzed,
		"quit":     stats.Quit,
	}).Info("Capture finished")
	return nil
}

// loadEngine loads the dlib models or exits.
func loadEngine() *engine.Dlib {
	fmt.Fprintln(os.Stderr, "🚀 Loading face models...")
	eng, err := engine.NewDlib(cfg.ModelsDir)
	if err != nil {
		utils.Die("Failed to load face models", err)
	}
	return eng
}

// loadGallery returns the known faces from the configured source. An empty
// reference directory is not fatal: every face is then reported as unknown.
func loadGallery(ctx context.Context, eng recognition.FaceEngine) (*recognition.Gallery, error) {
	if cfg.GallerySource == config.SourceDB {
		s, err := openStore(ctx)
		if err != nil {
			return nil, err
		}
		entries, err := s.LoadGallery(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load stored gallery: %w", err)
		}
		if len(entries) == 0 {
			log.Warn("Stored gallery is empty, run 'facewatch gallery sync' first")
		}
		return recognition.NewGallery(entries), nil
	}

	g, err := recognition.BuildGallery(ctx, cfg.FacesDir, eng, buildOptions()...)
	if errors.Is(err, recognition.ErrEmptyDirectory) {
		log.WithField("dir", cfg.FacesDir).Warn("No reference images found, all faces will be unknown")
		return recognition.NewGallery(nil), nil
	}
	return g, err
}

func buildOptions() []recognition.BuildOption {
	if cfg.NoProgress {
		return nil
	}
	return []recognition.BuildOption{recognition.WithProgress(os.Stderr)}
}

func printKnownNames(w io.Writer, names []string) {
	fmt.Fprintf(w, "Known faces (%d): [%s]\n", len(names), strings.Join(names, ", "))
}
