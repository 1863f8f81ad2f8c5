package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/SebastienMelki/dropwatch/internal/window"
)

// NewS3Client creates an S3 client, honouring a custom endpoint for MinIO and
// static credentials when provided.
func NewS3Client(ctx context.Context, cfg S3Config, logger *slog.Logger) (*s3.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info("S3 client created",
		"endpoint", cfg.Endpoint,
		"region", cfg.Region,
		"path_style", cfg.UsePathStyle,
	)

	return client, nil
}

// S3Scanner lists objects under a bucket prefix and returns the keys whose
// LastModified falls inside the window.
//
// S3 offers no server-side time filter, so the whole prefix is listed and
// filtered client-side. Objects without a LastModified are skipped.
type S3Scanner struct {
	client s3.ListObjectsV2APIClient
	source S3Source
	logger *slog.Logger
}

// NewS3Scanner creates a scanner for source.
func NewS3Scanner(client s3.ListObjectsV2APIClient, source S3Source, logger *slog.Logger) *S3Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Scanner{
		client: client,
		source: source,
		logger: logger.With("component", "s3-scanner", "bucket", source.Bucket, "prefix", source.Prefix),
	}
}

// Scan implements Scanner.
func (s *S3Scanner) Scan(ctx context.Context, w window.Window) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.source.Bucket),
	}
	if s.source.Prefix != "" {
		input.Prefix = aws.String(s.source.Prefix)
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)

	var (
		keys   []string
		listed int
	)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, NewScanError("s3://"+s.source.Bucket+"/"+s.source.Prefix, w,
				fmt.Errorf("list objects: %w", err))
		}

		for _, obj := range page.Contents {
			listed++
			if obj.Key == nil || obj.LastModified == nil {
				continue
			}
			if s.source.Suffix != "" && !strings.HasSuffix(*obj.Key, s.source.Suffix) {
				continue
			}
			if !w.Contains(*obj.LastModified) {
				continue
			}
			keys = append(keys, *obj.Key)
		}
	}

	s.logger.Debug("s3 scan complete",
		"window", w.String(),
		"listed", listed,
		"matched", len(keys),
	)

	return keys, nil
}
