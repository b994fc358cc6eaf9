package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/facewatch/internal/recognition"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Build, store or inspect the gallery of known faces",
}

var galleryBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Encode the reference directory and report what was found",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		g := buildFromDir(cmd.Context())
		printKnownNames(os.Stdout, g.Names())
	},
}

var gallerySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Encode the reference directory and replace the stored gallery",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runSync(cmd.Context())
	},
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the faces in the stored gallery",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runGalleryList(cmd.Context())
	},
}

func init() {
	addModelFlags(galleryBuildCmd.Flags())
	addModelFlags(gallerySyncCmd.Flags())

	galleryCmd.AddCommand(galleryBuildCmd, gallerySyncCmd, galleryListCmd)
	rootCmd.AddCommand(galleryCmd)
}

func buildFromDir(ctx context.Context) *recognition.Gallery {
	eng := loadEngine()
	defer eng.Close()

	g, err := recognition.BuildGallery(ctx, cfg.FacesDir, eng, buildOptions()...)
	if err != nil {
		utils.Die("Failed to build the face gallery", err)
	}
	return g
}

func runSync(ctx context.Context) {
	g := buildFromDir(ctx)
	if g.Len() == 0 {
		utils.Die("Refusing to replace the stored gallery with an empty one", nil)
	}

	s, err := openStore(ctx)
	if err != nil {
		utils.Die("Failed to open gallery store", err)
	}
	if err := s.ReplaceGallery(ctx, g.Entries()); err != nil {
		utils.Die("Failed to store gallery", err)
	}
	fmt.Printf("✅ Stored %d faces from %s\n", g.Len(), cfg.FacesDir)
}

func runGalleryList(ctx context.Context) {
	s, err := openStore(ctx)
	if err != nil {
		utils.Die("Failed to open gallery store", err)
	}
	records, err := s.ListFaces(ctx)
	if err != nil {
		utils.Die("Failed to list gallery", err)
	}

	if len(records) == 0 {
		fmt.Println("No faces found in the stored gallery.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tADDED")
	fmt.Fprintln(w, "--\t----\t-----")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.ID, r.Name, r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}
