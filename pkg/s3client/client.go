package s3client

import (
	"context"
	"fmt"
	"io"
	"strings"
)

type PutObjectRequest struct {
	Bucket      string
	Key         string
	Body        io.Reader
	Size        int64
	Checksum    string // base64 CRC64NVME, optional
	ContentType string
}

type Client interface {
	PutObject(ctx context.Context, req *PutObjectRequest) error
}

// ParseS3URI parses an S3 URI into bucket and prefix. The prefix carries no
// leading or trailing slash.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	if !IsS3URI(uri) {
		return "", "", fmt.Errorf("invalid S3 URI: must start with s3://")
	}

	path := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(path, "/", 2)

	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URI: missing bucket name")
	}

	bucket = parts[0]
	if len(parts) > 1 {
		prefix = strings.Trim(parts[1], "/")
	}

	return bucket, prefix, nil
}

// IsS3URI reports whether s names an S3 location rather than a directory.
func IsS3URI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}
