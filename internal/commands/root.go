// Package commands implements the beatforge command line: the HTTP server
// and offline tools that share its generation pipeline.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// set by Execute
	version = "dev"

	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "beatforge",
	Short: "AI electronic music generation service",
	Long: `beatforge - generate short electronic music clips from text prompts.

Configuration comes from the environment (and a .env file when present):
  MODEL_SERVER_URL   model server hosting the music model
  MODEL_DEVICE       auto, cuda or cpu
  ASSET_STORE        local (AUDIO_DIR) or s3 (S3_BUCKET, S3_PREFIX)

Examples:
  # Run the HTTP API
  beatforge serve

  # Generate one clip without the server
  beatforge generate --style techno --bpm 128 "dark rolling bassline"

  # Show the style catalogue
  beatforge styles`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. releaseVersion is reported by the server
// and the version command.
func Execute(releaseVersion string) error {
	if releaseVersion != "" {
		version = releaseVersion
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
