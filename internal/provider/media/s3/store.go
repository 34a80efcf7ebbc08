// Package s3 stores post media in an S3 bucket or an S3-compatible
// endpoint such as MinIO.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Payphone-Digital/portfolio-service/config"
	"github.com/Payphone-Digital/portfolio-service/internal/provider"
	"github.com/Payphone-Digital/portfolio-service/pkg/circuit"
	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const ProviderName = "s3"

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type deleter interface {
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Store struct {
	uploader uploader
	deleter  deleter
	bucket   string
	baseURL  string
	breaker  *circuit.Breaker
}

// NewStore loads AWS credentials from the default chain and builds a store
// for cfg.Bucket. A custom endpoint switches to path-style addressing.
func NewStore(ctx context.Context, cfg config.MediaConfig, client *http.Client, breaker *circuit.Breaker) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, provider.ErrNotConfigured
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithHTTPClient(client)}
	if cfg.Region != "" {
		opts = append(opts, awscfg.WithRegion(cfg.Region))
	}
	awsConfig, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newStore(manager.NewUploader(s3Client), s3Client, cfg.Bucket, publicBaseURL(cfg), breaker), nil
}

func newStore(up uploader, del deleter, bucket, baseURL string, breaker *circuit.Breaker) *Store {
	return &Store{
		uploader: up,
		deleter:  del,
		bucket:   bucket,
		baseURL:  strings.TrimRight(baseURL, "/"),
		breaker:  breaker,
	}
}

func publicBaseURL(cfg config.MediaConfig) string {
	switch {
	case cfg.PublicBaseURL != "":
		return cfg.PublicBaseURL
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
	}
}

// Store uploads body under key name. The returned handle is the object key.
func (s *Store) Store(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		_, err := s.uploader.Upload(ctx, input)
		return err
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return s.URL(name), name, nil
}

func (s *Store) Delete(ctx context.Context, handle string) error {
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		_, err := s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(handle),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", handle, err)
	}
	return nil
}

// URL is the public address of the object stored under key.
func (s *Store) URL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}
