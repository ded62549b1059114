// Package cmd implements the video-notes command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/HugeFrog24/video-notes/config"
	"github.com/HugeFrog24/video-notes/executor"
	"github.com/HugeFrog24/video-notes/logger"
	"github.com/HugeFrog24/video-notes/pipeline"
	"github.com/HugeFrog24/video-notes/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options holds the flag values shared by all commands.
type options struct {
	outputDir    string
	whisperModel string
	device       string
	notesModel   string
	configPath   string
	verbose      bool
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd creates the root command for the video-notes CLI
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{})
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "video-notes [flags] <input_path>",
		Short: "Turn lecture videos into study notes",
		Long: "video-notes extracts the audio of lecture videos, transcribes it with Whisper and " +
			"generates structured markdown study notes with a language model.\n\n" +
			"<input_path> is a single video file or a directory that is searched recursively.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, opts, args[0])
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.outputDir, "output-dir", "o", config.DefaultOutputDir, "output root")
	flags.StringVarP(&opts.whisperModel, "whisper-model", "w", config.DefaultWhisperModel, strings.Join(config.WhisperModels, "|"))
	flags.StringVarP(&opts.device, "device", "d", "", "accelerated|cpu (default auto-detect)")
	flags.StringVarP(&opts.notesModel, "notes-model", "m", "", "text-generation model identifier")
	flags.StringVarP(&opts.configPath, "config", "c", "", "optional YAML config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(NewWatchCmd(opts))

	return rootCmd
}

func runProcess(cmd *cobra.Command, opts *options, inputPath string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input path %s does not exist", inputPath)
		}
		return fmt.Errorf("input path %s: %w", inputPath, err)
	}

	finder := pipeline.NewExtensionVideoFinder(cfg.Discovery.Extensions...)
	if !info.IsDir() && !finder.Matches(info.Name()) {
		return fmt.Errorf("unsupported file %s: expected one of %v", inputPath, cfg.Discovery.Extensions)
	}

	log, err := newLogger(cfg, opts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	converter, err := newConverter(cfg, log)
	if err != nil {
		return err
	}

	start := time.Now()
	if info.IsDir() {
		notesPaths, err := converter.ProcessDirectory(cmd.Context(), inputPath, cfg.OutputDir)
		if err != nil {
			return err
		}
		for _, p := range notesPaths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		log.Info("Run completed", zap.Int("videos", len(notesPaths)), zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	notesPath, err := converter.ProcessSingleVideo(cmd.Context(), inputPath, cfg.OutputDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), notesPath)
	log.Info("Run completed", zap.Int("videos", 1), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// loadConfig loads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = opts.outputDir
	}
	if flags.Changed("whisper-model") {
		cfg.Transcription.Model = opts.whisperModel
	}
	if flags.Changed("device") {
		cfg.Transcription.Device = opts.device
	}
	if flags.Changed("notes-model") {
		cfg.Notes.Model = opts.notesModel
	}
	if opts.verbose {
		cfg.Logging.Level = string(logger.DebugLevel)
	}
}

func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	level := logger.LogLevel(cfg.Logging.Level)
	if verbose {
		level = logger.DebugLevel
	}

	log, err := logger.New(logger.Config{
		Level:      level,
		OutputPath: cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(zap.String("run_id", uuid.NewString())), nil
}

func newConverter(cfg *config.Config, log *zap.Logger) (*pipeline.Converter, error) {
	opts, err := buildStages(cfg, executor.New(), log)
	if err != nil {
		return nil, err
	}
	return pipeline.NewConverter(opts), nil
}

// buildStages selects the stage backends named by cfg.
func buildStages(cfg *config.Config, exec executor.Executor, log *zap.Logger) (pipeline.ConverterOptions, error) {
	opts := pipeline.ConverterOptions{
		Finder: pipeline.NewExtensionVideoFinder(cfg.Discovery.Extensions...),
		Extractor: pipeline.NewFFmpegAudioExtractor(exec, pipeline.FFmpegOptions{
			FFmpegPath:  cfg.FFmpeg.Path,
			FFprobePath: cfg.FFmpeg.ProbePath,
			Quality:     cfg.FFmpeg.Quality,
		}),
		Logger: log,
		NotesOptions: pipeline.NotesOptions{
			MaxTokens:   cfg.Notes.MaxTokens,
			Temperature: cfg.Notes.Temperature,
		},
	}

	switch cfg.Transcription.Backend {
	case config.BackendOpenAI:
		opts.Transcriber = pipeline.NewOpenAITranscriber(exec, pipeline.OpenAITranscriberOptions{
			APIKey:      cfg.Transcription.APIKey,
			BaseURL:     cfg.Transcription.BaseURL,
			Model:       cfg.Transcription.Model,
			FFmpegPath:  cfg.FFmpeg.Path,
			FFprobePath: cfg.FFmpeg.ProbePath,
		})
	case config.BackendWhisperCpp:
		opts.Transcriber = pipeline.NewWhisperCppTranscriber(exec, pipeline.WhisperCppOptions{
			BinaryPath: cfg.Transcription.BinaryPath,
			ModelsDir:  cfg.Transcription.ModelsDir,
			Model:      cfg.Transcription.Model,
			Device:     cfg.Transcription.Device,
			Threads:    cfg.Transcription.Threads,
		})
	default:
		return opts, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Transcription.Backend)
	}

	detector := pipeline.NewLinguaDetector()
	switch cfg.Notes.Provider {
	case config.ProviderGemini:
		opts.Generator = pipeline.NewGeminiNotesGenerator(pipeline.GeminiNotesOptions{
			APIKey:  cfg.Notes.APIKey,
			BaseURL: cfg.Notes.BaseURL,
			Model:   cfg.Notes.Model,
		}, detector)
	case config.ProviderOpenAI:
		opts.Generator = pipeline.NewOpenAINotesGenerator(pipeline.OpenAINotesOptions{
			APIKey:  cfg.Notes.APIKey,
			BaseURL: cfg.Notes.BaseURL,
			Model:   cfg.Notes.Model,
		}, detector)
	default:
		return opts, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Notes.Provider)
	}

	if cfg.StorageEnabled() {
		publisher, err := storage.New(storage.Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Prefix:    cfg.Storage.Prefix,
			UseSSL:    cfg.Storage.UseSSL,
		}, log)
		if err != nil {
			return opts, fmt.Errorf("create publisher: %w", err)
		}
		opts.Publisher = publisher
	}

	return opts, nil
}
