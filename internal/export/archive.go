package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"harbor-go/internal/config"
)

// Archiver pushes finished export files to off-machine storage.
type Archiver interface {
	Upload(ctx context.Context, path string) (string, error)
}

// S3Archiver implements Archiver against an S3 bucket. Credentials
// come from the standard AWS chain (env, shared config, instance
// role).
type S3Archiver struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ Archiver = (*S3Archiver)(nil)

func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket required for s3 archive")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3Archiver{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

// Upload streams one file to the bucket and returns its s3:// location.
func (a *S3Archiver) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	key := filepath.Base(path)
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	if _, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
		Body:   f,
	}); err != nil {
		return "", fmt.Errorf("uploading %s: %w", path, err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// NewArchiverFromConfig creates an Archiver based on the archive
// config type. A nil Archiver with a nil error means archiving is
// disabled.
func NewArchiverFromConfig(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "s3":
		return NewS3Archiver(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
