package poster

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hpungsan/tether/internal/errors"
	"github.com/hpungsan/tether/internal/genai"
)

// S3Options configures S3Sink.
type S3Options struct {
	Bucket string
	Prefix string
	Region string
	// PublicBaseURL, when set, replaces the upload location in returned references
	// (e.g. a CDN in front of the bucket).
	PublicBaseURL string
}

// uploader is the subset of manager.Uploader S3Sink calls.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink stores posters as objects and returns their URL.
type S3Sink struct {
	uploader uploader
	opts     S3Options
}

// NewS3Sink builds an uploader from the default AWS credential chain.
func NewS3Sink(ctx context.Context, opts S3Options) (*S3Sink, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("poster bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3Sink(manager.NewUploader(s3.NewFromConfig(awsCfg)), opts), nil
}

func newS3Sink(u uploader, opts S3Options) *S3Sink {
	return &S3Sink{uploader: u, opts: opts}
}

// Put uploads img under <prefix><connectionID>.<ext>. Re-running overwrites the same key.
func (s *S3Sink) Put(ctx context.Context, connectionID string, img *genai.Image) (string, error) {
	key := s.opts.Prefix + connectionID + extension(img.MimeType)

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.MimeType),
	})
	if err != nil {
		return "", errors.NewStorage(fmt.Errorf("upload poster %s: %w", key, err))
	}

	if s.opts.PublicBaseURL != "" {
		return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/" + key, nil
	}
	return out.Location, nil
}

func extension(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
