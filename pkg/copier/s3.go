package copier

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/crc64"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/yuya-takeyama/incr-copy/pkg/s3client"
)

// CRC64NVME polynomial as per AWS S3 specification
var crc64NVMETable = crc64.MakeTable(0x9a6c9329ac4bc9b5)

// S3Sink uploads files under bucket/prefix.
type S3Sink struct {
	client s3client.Client
	bucket string
	prefix string
}

func NewS3Sink(client s3client.Client, bucket, prefix string) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *S3Sink) Write(ctx context.Context, name string, src io.ReadSeeker, size int64, mode os.FileMode) error {
	checksum, err := calculateChecksum(src)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum for %s: %w", name, err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", name, err)
	}

	err = s.client.PutObject(ctx, &s3client.PutObjectRequest{
		Bucket:      s.bucket,
		Key:         s.key(name),
		Body:        src,
		Size:        size,
		Checksum:    checksum,
		ContentType: guessContentType(name),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}

	return nil
}

func (s *S3Sink) Target(name string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(name))
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func calculateChecksum(r io.Reader) (string, error) {
	hash := crc64.New(crc64NVMETable)
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(hash.Sum(nil)), nil
}

func guessContentType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}
