// Package storage fetches DRC images from S3.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/drc-tools/drcflash/pkg/errors"
)

// ErrNotFound is returned when the object does not exist
var ErrNotFound = errors.New("object not found")

const scheme = "s3://"

// Location is a bucket/key pair parsed from an s3:// URI
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return scheme + l.Bucket + "/" + l.Key
}

// IsURI reports whether source names an S3 object rather than a local file
func IsURI(source string) bool {
	return strings.HasPrefix(source, scheme)
}

// ParseURI parses s3://bucket/key. The key may be empty for listing.
func ParseURI(uri string) (Location, error) {
	if !IsURI(uri) {
		return Location{}, fmt.Errorf("storage: not an s3 uri: %q", uri)
	}
	bucket, key, _ := strings.Cut(strings.TrimPrefix(uri, scheme), "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("storage: missing bucket in %q", uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// Client provides S3 storage operations
type Client struct {
	s3Client *s3.Client
}

// NewClient creates a new S3 client for anonymous access
func NewClient(ctx context.Context, region string) (*Client, error) {
	slog.Info("s3_client_init", "region", region)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return &Client{s3Client: s3.NewFromConfig(cfg)}, nil
}

// DownloadResult contains download metadata
type DownloadResult struct {
	LocalPath string
	SHA256    string
	Size      int64
}

// Download writes the object to localPath, computing its SHA-256 on the way.
// Objects larger than maxSize are rejected without being fully read.
func (c *Client) Download(ctx context.Context, loc Location, localPath string, maxSize int64) (*DownloadResult, error) {
	slog.Info("s3_download_start", "bucket", loc.Bucket, "s3_key", loc.Key)

	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			slog.Error("s3_object_not_found", "s3_key", loc.Key)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		slog.Error("s3_get_object_failed", "s3_key", loc.Key, "error", err)
		return nil, errors.Wrap(err, "failed to get object from S3")
	}
	defer result.Body.Close()

	if result.ContentLength != nil && maxSize > 0 && *result.ContentLength > maxSize {
		return nil, fmt.Errorf("storage: object %s is %d bytes, max %d", loc, *result.ContentLength, maxSize)
	}

	f, err := os.Create(localPath)
	if err != nil {
		slog.Error("local_file_creation_failed", "path", localPath, "error", err)
		return nil, errors.Wrap(err, "failed to create local file")
	}
	defer f.Close()

	hash := sha256.New()
	writer := io.MultiWriter(f, hash)

	var body io.Reader = result.Body
	if maxSize > 0 {
		body = io.LimitReader(result.Body, maxSize+1)
	}
	size, err := io.Copy(writer, body)
	if err != nil {
		slog.Error("s3_download_failed", "s3_key", loc.Key, "error", err)
		return nil, errors.Wrap(err, "failed to download file")
	}
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("storage: object %s exceeds max size %d", loc, maxSize)
	}

	checksum := hex.EncodeToString(hash.Sum(nil))

	slog.Info("s3_download_complete",
		"s3_key", loc.Key,
		"size_kb", size/1024,
		"local_path", localPath,
		"sha256", checksum[:16]+"...",
	)

	return &DownloadResult{
		LocalPath: localPath,
		SHA256:    checksum,
		Size:      size,
	}, nil
}

// ListObjects lists all object keys under the location's key prefix
func (c *Client) ListObjects(ctx context.Context, loc Location) ([]string, error) {
	slog.Info("s3_list_start", "bucket", loc.Bucket, "prefix", loc.Key)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(loc.Key),
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			slog.Error("s3_list_failed", "prefix", loc.Key, "error", err)
			return nil, errors.Wrap(err, "failed to list objects")
		}

		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	slog.Info("s3_list_complete", "prefix", loc.Key, "object_count", len(keys))
	return keys, nil
}

// Exists checks if an object exists in S3
func (c *Client) Exists(ctx context.Context, loc Location) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			slog.Info("s3_object_not_found", "s3_key", loc.Key)
			return false, nil
		}
		slog.Error("s3_head_object_failed", "s3_key", loc.Key, "error", err)
		return false, errors.Wrap(err, "failed to check object existence")
	}

	slog.Info("s3_object_exists", "s3_key", loc.Key)
	return true, nil
}
