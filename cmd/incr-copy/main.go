package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/incr-copy/pkg/copier"
	"github.com/yuya-takeyama/incr-copy/pkg/discovery"
	"github.com/yuya-takeyama/incr-copy/pkg/logger"
	"github.com/yuya-takeyama/incr-copy/pkg/s3client"
	"github.com/yuya-takeyama/incr-copy/pkg/syncer"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

const defaultMarkerFileName = "cai_marker.json"

type runConfig struct {
	markerDir      string
	markerFileName string
	watchDir       string
	outputDir      string
	dryRun         bool
	includes       []string
	excludes       []string
	logFormat      string
	logLevel       string
	quiet          bool
	profile        string
	region         string
	resultJSONFile string
}

func (c *runConfig) markerPath() string {
	return filepath.Join(c.markerDir, c.markerFileName)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg runConfig

	rootCmd := &cobra.Command{
		Use:   "incr-copy",
		Short: "Copy files created since the last run into an output directory",
		Long: `incr-copy copies files from a watched directory tree into an output
directory (or s3:// location). Only files modified after the cutoff stored in
the marker file are copied; a successful run stores a new cutoff.`,
		Version:      fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyEnv(cmd.Flags(), envBindings); err != nil {
				return err
			}
			return validateConfig(&cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, &cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&cfg.markerDir, "marker-dir", "m", "", "Directory holding the marker file")
	flags.StringVar(&cfg.markerFileName, "marker-file-name", defaultMarkerFileName, "Marker file name")
	flags.StringVarP(&cfg.watchDir, "watch-dir", "w", "", "Directory to scan for new files")
	flags.StringVarP(&cfg.outputDir, "output-dir", "o", "", "Directory or s3://bucket/prefix to copy files into")
	flags.BoolVar(&cfg.dryRun, "dry-run", false, "Log what would be copied without copying or updating the marker")
	flags.StringSliceVar(&cfg.includes, "include", nil, "Only copy files matching these patterns (multiple allowed)")
	flags.StringSliceVar(&cfg.excludes, "exclude", nil, "Exclude patterns (multiple allowed)")
	flags.StringVar(&cfg.logFormat, "log-format", string(logger.FormatText), "Log format: text or json")
	flags.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flags.BoolVar(&cfg.quiet, "quiet", false, "Only log warnings and errors")
	flags.StringVar(&cfg.profile, "profile", "", "AWS profile to use for s3:// output")
	flags.StringVar(&cfg.region, "region", "", "AWS region for s3:// output (uses default if not specified)")
	flags.StringVar(&cfg.resultJSONFile, "result-json-file", "", "Path to output the run result as JSON file")

	return rootCmd
}

func validateConfig(cfg *runConfig) error {
	if cfg.markerDir == "" {
		return fmt.Errorf("marker directory is required (--marker-dir or CAI_MARKER_DIR)")
	}
	if cfg.markerFileName == "" {
		return fmt.Errorf("marker file name must not be empty")
	}
	if cfg.watchDir == "" {
		return fmt.Errorf("watch directory is required (--watch-dir or CAI_WATCH_DIR)")
	}
	if cfg.outputDir == "" {
		return fmt.Errorf("output directory is required (--output-dir or CAI_OUTPUT_DIR)")
	}

	info, err := os.Stat(cfg.watchDir)
	if err != nil {
		return fmt.Errorf("stat watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch dir is not a directory: %s", cfg.watchDir)
	}

	if s3client.IsS3URI(cfg.outputDir) {
		if _, _, err := s3client.ParseS3URI(cfg.outputDir); err != nil {
			return err
		}
	}

	return nil
}

func run(ctx context.Context, cmd *cobra.Command, cfg *runConfig) error {
	log, err := logger.New(cmd.ErrOrStderr(), logger.Options{
		Format: logger.Format(cfg.logFormat),
		Level:  cfg.logLevel,
		Quiet:  cfg.quiet,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	return runSync(ctx, cfg, log)
}

func runSync(ctx context.Context, cfg *runConfig, log *slog.Logger) error {
	filter, err := discovery.NewFilter(cfg.includes, cfg.excludes)
	if err != nil {
		return err
	}

	sink, err := copier.NewSink(ctx, cfg.outputDir, copier.AWSOptions{
		Profile: cfg.profile,
		Region:  cfg.region,
	})
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	s := syncer.New(osfs.New(cfg.watchDir), sink, syncer.Options{
		MarkerPath: cfg.markerPath(),
		DryRun:     cfg.dryRun,
		Filter:     filter,
		Logger:     log,
	})

	result, runErr := s.Run(ctx)

	if cfg.resultJSONFile != "" && result != nil {
		if err := syncer.WriteResult(cfg.resultJSONFile, result); err != nil {
			log.Error("failed to write result JSON", "path", cfg.resultJSONFile, "error", err)
			if runErr == nil {
				return err
			}
		}
	}

	return runErr
}
