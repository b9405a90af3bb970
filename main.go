package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/ZacxDev/clip-stitcher/internal/logging"
	"github.com/ZacxDev/clip-stitcher/internal/reference"
	"github.com/ZacxDev/clip-stitcher/internal/report"
	"github.com/ZacxDev/clip-stitcher/pkg/clipstitcher"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "clip-stitcher",
		Short: "Compile timestamped video links into one video",
		Long: fmt.Sprintf(`clip-stitcher downloads every link in an input list, cuts a clip starting
at the link's timestamp, numbers it and joins all clips into one video.

Supported platforms:
%s
Example:
  # Stitch 30-second clips from input.txt with 1-second crossfades
  clip-stitcher -i input.txt -o final_output.mp4 --clip-duration 30s`,
			formatSupportedPlatforms()),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runStitch,
	}

	stitchCmd = &cobra.Command{
		Use:   "stitch",
		Short: "Fetch, cut and join every clip in the input list (default)",
		RunE:  runStitch,
	}

	parseCmd = &cobra.Command{
		Use:   "parse",
		Short: "Show how each input line parses without downloading anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			lines, err := reference.ReadFile(opts.InputFile)
			if err != nil {
				return err
			}
			return report.ParseListing(cmd.OutOrStdout(), lines)
		},
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Verify that ffmpeg, ffprobe and yt-dlp are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(opts)
			if err != nil {
				return err
			}
			if err := clipstitcher.Check(cmd.Context(), opts, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ffmpeg, ffprobe and yt-dlp are available")
			return nil
		},
	}
)

func runStitch(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(opts)
	if err != nil {
		return err
	}

	result, runErr := clipstitcher.CompileFile(cmd.Context(), opts, logger)
	if err := report.Summary(cmd.OutOrStdout(), result, runErr); err != nil {
		logger.Warn().Err(err).Msg("failed to write summary")
	}
	return runErr
}

func newLogger(opts config.Options) (zerolog.Logger, error) {
	return logging.New(logging.Options{
		Level:   opts.Log.Level,
		Format:  opts.Log.Format,
		Verbose: opts.Verbose,
		Out:     os.Stderr,
	})
}

func formatSupportedPlatforms() string {
	var sb strings.Builder
	for _, name := range clipstitcher.GetSupportedPlatforms() {
		sb.WriteString(fmt.Sprintf("- %s\n", name))
	}
	return sb.String()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ./config.yaml if present)")
	rootCmd.PersistentFlags().StringP("input", "i", config.DefaultInputFile, "Input list, one link per line")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json (default: console on a terminal)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level")
	rootCmd.PersistentFlags().String("ffmpeg", "ffmpeg", "ffmpeg binary")
	rootCmd.PersistentFlags().String("yt-dlp", "yt-dlp", "yt-dlp binary")

	addStitchFlags(rootCmd)
	addStitchFlags(stitchCmd)

	rootCmd.AddCommand(stitchCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
