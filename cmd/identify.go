package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/facewatch/internal/capture"
	"github.com/andresmejia3/facewatch/internal/recognition"
	"github.com/andresmejia3/facewatch/internal/session"
	"github.com/andresmejia3/facewatch/internal/types"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/spf13/cobra"
)

var identifyOutput string

var identifyCmd = &cobra.Command{
	Use:   "identify <image_path>",
	Short: "Label the faces in a still image against the gallery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runIdentify(cmd.Context(), args[0], identifyOutput)
	},
}

func init() {
	addModelFlags(identifyCmd.Flags())
	addSourceFlag(identifyCmd.Flags())
	identifyCmd.Flags().StringVarP(&identifyOutput, "output", "o", "", "Write an annotated copy of the image to this path")
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(ctx context.Context, imagePath, output string) error {
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		utils.ShowError("Input file does not exist", err)
		return err
	}

	still, err := capture.ReadStill(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err)
		return err
	}
	defer still.Close()

	eng := loadEngine()
	defer eng.Close()

	gallery, err := loadGallery(ctx, eng)
	if err != nil {
		utils.ShowError("Failed to build the face gallery", err)
		return err
	}

	analyzer := recognition.NewAnalyzer(eng, gallery,
		recognition.WithThreshold(cfg.Threshold),
		recognition.WithScale(cfg.Scale),
	)

	fmt.Fprintln(os.Stderr, "🔍 Analyzing faces...")
	res, err := analyzer.Analyze(still.Image())
	if err != nil {
		utils.ShowError("Face analysis failed", err)
		return err
	}

	overlays := session.Overlays(res, cfg.Upscale())
	if len(overlays) == 0 {
		fmt.Println("❌ No faces detected in the provided image.")
		return nil
	}
	printOverlays(os.Stdout, overlays)

	if output != "" {
		if err := still.Annotate(output, overlays); err != nil {
			utils.ShowError("Failed to write annotated image", err)
			return err
		}
		fmt.Printf("🖼️  Annotated image written to %s\n", output)
	}
	return nil
}

func printOverlays(out io.Writer, overlays []types.Overlay) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tLABEL\tBOX (TOP, RIGHT, BOTTOM, LEFT)")
	fmt.Fprintln(w, "-\t-----\t------------------------------")
	for i, o := range overlays {
		b := o.Box
		fmt.Fprintf(w, "%d\t%s\t(%d, %d, %d, %d)\n", i+1, o.Label, b.Top, b.Right, b.Bottom, b.Left)
	}
	w.Flush()
}
