package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/facewatch/internal/config"
	"github.com/andresmejia3/facewatch/internal/logger"
	"github.com/andresmejia3/facewatch/internal/store"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// cfg is the resolved configuration shared by subcommands
	cfg *config.Config
	// DB is the gallery store, opened by the commands that need it
	DB *store.Store
	// cfgFile is the optional YAML config path
	cfgFile string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "facewatch",
	Short:   "Live webcam face recognition against a gallery of known faces",
	Long:    "Builds a gallery from reference images, then labels every face seen by the camera with the closest known name.\nRunning without a subcommand is the same as 'facewatch run'.",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		runID := logger.Init(cfg.Log)
		log.WithFields(log.Fields{"command": cmd.Name(), "run_id": runID}).Debug("Configuration loaded")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
			DB = nil
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLive(cmd.Context())
	},
}

// openStore connects to the gallery database on first use.
func openStore(ctx context.Context) (*store.Store, error) {
	if DB != nil {
		return DB, nil
	}
	s, err := store.New(ctx, cfg.DB.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = s
	return DB, nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-file", "", "Also write logs to this file, rotated by size")
	pf.String("db", "", "PostgreSQL connection string (default: built from POSTGRES_* or postgres://localhost:5432/facewatch)")

	addRunFlags(rootCmd.Flags())
}

// addRunFlags registers the capture flags. They live on both the root and
// the run command so 'facewatch' and 'facewatch run' behave the same.
func addRunFlags(f *pflag.FlagSet) {
	addModelFlags(f)
	f.Int("device", 0, "Camera device index")
	f.String("window", "Face Recognition", "Title of the preview window")
	addSourceFlag(f)
}

func addSourceFlag(f *pflag.FlagSet) {
	f.String("gallery-source", config.SourceDir, "Where known faces come from: dir or db")
}

// addModelFlags registers the flags every command that recognizes faces needs.
func addModelFlags(f *pflag.FlagSet) {
	f.StringP("faces", "f", "faces", "Directory of reference images, one known face per file")
	f.StringP("models", "m", ".", "Directory containing the dlib model files")
	f.Float64P("threshold", "t", 0.6, "Maximum face distance accepted as a match (lower is stricter)")
	f.Float64("scale", 0.25, "Downscale factor applied before detection")
	f.Bool("no-progress", false, "Disable the progress bar while building the gallery")
}
