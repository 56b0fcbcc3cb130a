// Package syncer drives a single incremental copy run: load the marker,
// discover newer files, copy them and record the new cutoff.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/yuya-takeyama/incr-copy/pkg/copier"
	"github.com/yuya-takeyama/incr-copy/pkg/discovery"
	"github.com/yuya-takeyama/incr-copy/pkg/logger"
	"github.com/yuya-takeyama/incr-copy/pkg/marker"
)

// ErrCopy matches failures of the copy step.
var ErrCopy = errors.New("copy")

type Options struct {
	MarkerPath string
	DryRun     bool
	Filter     *discovery.Filter
	Logger     logger.Logger
	// Now stamps the next marker. Defaults to time.Now.
	Now func() time.Time
}

type Syncer struct {
	source billy.Filesystem
	sink   copier.Sink
	opts   Options
}

func New(source billy.Filesystem, sink copier.Sink, opts Options) *Syncer {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{
		source: source,
		sink:   sink,
		opts:   opts,
	}
}

// Run performs one pass. The marker is rewritten only when at least one
// candidate was found, the run is not a dry run and every copy succeeded.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	log := s.opts.Logger
	result := &Result{DryRun: s.opts.DryRun, Files: []FileResult{}}

	m := marker.LoadOrDefault(s.opts.MarkerPath, log)
	result.Cutoff = m.CutoffTime

	discoverOpts := []discovery.Option{discovery.WithLogger(log)}
	if s.opts.Filter != nil {
		discoverOpts = append(discoverOpts, discovery.WithFilter(s.opts.Filter))
	}

	candidates, err := discovery.NewFS(s.source, m, discoverOpts...).Discover()
	if err != nil {
		return result, fmt.Errorf("discover files: %w", err)
	}
	result.Summary.Found = len(candidates)

	if len(candidates) == 0 {
		log.Info("no newer files to copy")
		return result, nil
	}

	log.Info("found files to copy", "num", len(candidates))

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		// names are claimed in path order; later files with the same name
		// would overwrite the first copy
		if _, dup := seen[candidate.Name]; dup {
			log.Warn("skipping what would be a duplicate file name", "name", candidate.Name, "path", candidate.Path)
			result.add(FileResult{Action: ActionDuplicate, Source: candidate.Path})
			continue
		}
		seen[candidate.Name] = struct{}{}

		target := s.sink.Target(candidate.Name)
		if s.opts.DryRun {
			log.Warn("dry run would copy", "name", candidate.Name, "target", target)
			result.add(FileResult{Action: ActionWouldCopy, Source: candidate.Path, Target: target})
			continue
		}

		if err := s.copy(ctx, candidate); err != nil {
			result.add(FileResult{Action: ActionFailed, Source: candidate.Path, Target: target, Error: err.Error()})
			return result, fmt.Errorf("%w %s: %w", ErrCopy, candidate.Path, err)
		}
		log.Info("copied", "name", candidate.Name, "target", target)
		result.add(FileResult{Action: ActionCopied, Source: candidate.Path, Target: target})
		result.Summary.BytesCopied += candidate.Size
	}

	log.Info("copy complete",
		"copied", result.Summary.Copied,
		"would_copy", result.Summary.WouldCopy,
		"duplicates", result.Summary.Duplicates,
		"size", formatBytes(result.Summary.BytesCopied),
	)

	if s.opts.DryRun {
		return result, nil
	}

	log.Info("writing new marker", "path", s.opts.MarkerPath)
	next := marker.New(s.opts.Now())
	if err := next.Save(s.opts.MarkerPath); err != nil {
		return result, fmt.Errorf("save marker: %w", err)
	}
	result.NextCutoff = next.CutoffTime
	result.MarkerWritten = true

	return result, nil
}

func (s *Syncer) copy(ctx context.Context, file discovery.FileInfo) error {
	src, err := s.source.Open(file.RelPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	return s.sink.Write(ctx, file.Name, src, file.Size, file.Mode)
}
