// Package export writes per-day analysis reports to a local directory
// or an S3 bucket.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"mt5-analysis-service/internal/analysis"
	"mt5-analysis-service/internal/config"
)

// Uploader stores one report artifact under a key.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Exporter serializes day reports and hands them to an uploader.
type Exporter struct {
	uploader Uploader
	log      *zap.Logger
}

// New picks the destination from config: S3 when a bucket is set, the
// local export directory otherwise. Returns nil when export is
// disabled entirely.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Exporter, error) {
	if cfg.ExportS3Bucket != "" {
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Exporter{uploader: &s3Uploader{client: client, bucket: cfg.ExportS3Bucket}, log: log}, nil
	}
	if cfg.ExportDir != "" {
		return &Exporter{uploader: &localUploader{baseDir: cfg.ExportDir}, log: log}, nil
	}
	return nil, nil
}

// ExportDays writes one JSON document per trading day, keyed by date.
func (e *Exporter) ExportDays(ctx context.Context, days []analysis.DayReport) error {
	for _, day := range days {
		body, err := json.MarshalIndent(day, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal day %s: %w", day.Date, err)
		}
		key := sanitizeKey(day.Date + ".json")
		location, err := e.uploader.Upload(ctx, key, body, "application/json")
		if err != nil {
			return fmt.Errorf("upload day %s: %w", day.Date, err)
		}
		e.log.Debug("exported day report", zap.String("date", day.Date), zap.String("location", location))
	}
	return nil
}

func newS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.ExportS3Region),
	}
	if cfg.ExportS3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.ExportS3Endpoint,
					HostnameImmutable: cfg.ExportS3PathStyle,
					SigningRegion:     cfg.ExportS3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ExportS3PathStyle
	}), nil
}

func sanitizeKey(key string) string {
	key = filepath.Clean(key)
	key = strings.TrimPrefix(key, string(filepath.Separator))
	key = strings.TrimPrefix(key, "./")
	return key
}

type localUploader struct {
	baseDir string
}

func (l *localUploader) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(l.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func (s *s3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
