package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/HugeFrog24/video-notes/watcher"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the watch subcommand. It shares the root command's flags.
func NewWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [flags] <input_dir>",
		Short: "Process new videos as they appear in a directory",
		Long: "Watch <input_dir> and run every new video through the notes workflow once the file " +
			"has stopped growing. The first failure stops the watcher.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, args[0])
		},
	}
}

func runWatch(cmd *cobra.Command, opts *options, inputDir string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
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

	handler := func(ctx context.Context, path string) error {
		notesPath, err := converter.ProcessSingleVideo(ctx, path, cfg.OutputDir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), notesPath)
		return nil
	}

	w, err := watcher.New(watcher.Options{
		Dir:            inputDir,
		Extensions:     cfg.Discovery.Extensions,
		StableInterval: time.Duration(cfg.Watch.StableIntervalMs) * time.Millisecond,
		StableChecks:   cfg.Watch.StableChecks,
	}, handler, log)
	if err != nil {
		return err
	}

	return w.Run(cmd.Context())
}
