// Package copier writes discovered files to their destination.
package copier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/yuya-takeyama/incr-copy/pkg/s3client"
)

// Sink receives copied files by name.
type Sink interface {
	Write(ctx context.Context, name string, src io.ReadSeeker, size int64, mode os.FileMode) error
	// Target describes where name ends up, for logs and reports.
	Target(name string) string
}

type AWSOptions struct {
	Profile string
	Region  string
}

// NewSink returns an S3Sink for s3:// outputs and a LocalSink otherwise.
// A local output directory must already exist.
func NewSink(ctx context.Context, output string, opts AWSOptions) (Sink, error) {
	if !s3client.IsS3URI(output) {
		info, err := os.Stat(output)
		if err != nil {
			return nil, fmt.Errorf("stat output dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("output is not a directory: %s", output)
		}
		return NewLocalSink(osfs.New(output)), nil
	}

	bucket, prefix, err := s3client.ParseS3URI(output)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3Sink(s3client.NewAWSClient(cfg), bucket, prefix), nil
}

// LocalSink writes into a directory, replacing files of the same name.
type LocalSink struct {
	fs billy.Filesystem
}

func NewLocalSink(fs billy.Filesystem) *LocalSink {
	return &LocalSink{fs: fs}
}

func (s *LocalSink) Write(ctx context.Context, name string, src io.ReadSeeker, size int64, mode os.FileMode) error {
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}

	dst, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}

	// OpenFile keeps the mode of a file that already existed
	if ch, ok := s.fs.(billy.Change); ok {
		if err := ch.Chmod(name, perm); err != nil && !errors.Is(err, billy.ErrNotSupported) {
			return fmt.Errorf("chmod %s: %w", name, err)
		}
	}

	return nil
}

func (s *LocalSink) Target(name string) string {
	return filepath.Join(s.fs.Root(), name)
}
