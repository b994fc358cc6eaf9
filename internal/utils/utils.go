package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// exit is swapped out in tests.
var exit = os.Exit

// errOut is where error boxes are written.
var errOut io.Writer = os.Stderr

// ImageExtensions lists the reference image types the gallery understands.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

// IsImageFile reports whether name has a supported image extension.
func IsImageFile(name string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ShowError prints a formatted error box without exiting.
func ShowError(context string, err error) {
	fmt.Fprintf(errOut, "\n---------------------------------------------------------\n")
	fmt.Fprintf(errOut, "🚨 FACEWATCH ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(errOut, "DETAILS: %v\n", err)
	}
	fmt.Fprintf(errOut, "---------------------------------------------------------\n")
}

// Die is the unified exit strategy for fatal startup failures.
// It prints a formatted error box and exits with status 1.
func Die(context string, err error) {
	ShowError(context, err)
	exit(1)
}
