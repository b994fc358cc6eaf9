package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop the stored gallery",
	Long:  "Drops the gallery table from PostgreSQL. The reference directory on disk is never touched.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if !resetYes && !confirm(bufio.NewReader(os.Stdin), os.Stdout, "⚠️  Are you sure you want to DROP the stored gallery?") {
			fmt.Println("Aborted.")
			return
		}

		s, err := openStore(cmd.Context())
		if err != nil {
			utils.Die("Failed to open gallery store", err)
		}
		fmt.Println("🗑️  Clearing stored gallery...")
		if err := s.Reset(cmd.Context()); err != nil {
			utils.Die("Failed to reset database", err)
		}
		fmt.Println("✨ Gallery Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}
