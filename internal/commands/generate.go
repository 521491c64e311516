package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/liujianjie/BeatForgeAI/internal/config"
	"github.com/liujianjie/BeatForgeAI/internal/models"
	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

var generateFlags struct {
	style    string
	bpm      int
	duration int
	key      string
	energy   float64
	seed     int64
	output   string
}

var generateCmd = &cobra.Command{
	Use:   "generate [flags] PROMPT...",
	Short: "Generate one clip without starting the server",
	Long: `Generate one clip through the same pipeline the API uses and store it
in the configured asset store.

Examples:
  beatforge generate "warm pads and vinyl crackle" --style lo_fi --bpm 80
  beatforge generate --style techno --key Am --energy 0.9 -o yaml "acid line"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateFlags.style, "style", string(styles.DefaultStyle), "music style")
	f.IntVar(&generateFlags.bpm, "bpm", models.DefaultBPM, "tempo in beats per minute (60-200)")
	f.IntVar(&generateFlags.duration, "duration", 0, "clip length in seconds (default DEFAULT_DURATION)")
	f.StringVar(&generateFlags.key, "key", models.DefaultKey, "musical key, e.g. Am or F#")
	f.Float64Var(&generateFlags.energy, "energy", models.DefaultEnergy, "energy from 0 to 1")
	f.Int64Var(&generateFlags.seed, "seed", 0, "sampling seed for reproducible output")
	f.StringVarP(&generateFlags.output, "output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(generateCmd)
}

type generateOutput struct {
	Filename       string                    `json:"filename"`
	Location       string                    `json:"location"`
	GenerationTime float64                   `json:"generation_time"`
	Metadata       models.GenerationMetadata `json:"metadata"`
	Audio          models.AudioInfo          `json:"audio"`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	flush := initSentry(cfg)
	defer flush()

	req := models.NewGenerationRequest(cfg.DefaultDuration)
	req.Prompt = strings.Join(args, " ")
	req.Style = styles.Style(generateFlags.style)
	req.BPM = generateFlags.bpm
	req.Key = generateFlags.key
	req.Energy = generateFlags.energy
	if generateFlags.duration > 0 {
		req.Duration = generateFlags.duration
	}
	if cmd.Flags().Changed("seed") {
		seed := generateFlags.seed
		req.Seed = &seed
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Generating %ds of %s on %s...\n", req.Duration, req.Style, cfg.ModelServerURL)
	}
	result, err := a.pipeline.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	return writeOutput(cmd.OutOrStdout(), generateFlags.output, generateOutput{
		Filename:       result.Filename,
		Location:       a.store.Location(result.Filename),
		GenerationTime: math.Round(result.Elapsed.Seconds()*100) / 100,
		Metadata:       result.Metadata,
		Audio:          result.Audio,
	})
}

// writeOutput prints v as indented JSON or as YAML.
func writeOutput(w io.Writer, format string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch format {
	case "json", "":
	case "yaml", "yml":
		if data, err = yaml.JSONToYAML(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
	_, err = fmt.Fprintln(w, strings.TrimRight(string(data), "\n"))
	return err
}
