package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/harentsoaR/hospital-api/internal/models"
)

// ImageHost stores avatar images outside the database.
type ImageHost interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (*models.Avatar, error)
	Delete(ctx context.Context, publicID string) error
}

var ErrImageHostDisabled = errors.New("image host is not configured")

// S3ImageHost uploads avatars to an S3 (or S3-compatible) bucket.
type S3ImageHost struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string
	// PublicURL is the base URL objects are served from. Defaults to the
	// virtual-hosted bucket URL.
	PublicURL string
}

func NewS3ImageHost(ctx context.Context, opts S3Options) (*S3ImageHost, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
	return &S3ImageHost{client: client, bucket: opts.Bucket, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (h *S3ImageHost) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (*models.Avatar, error) {
	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}
	return &models.Avatar{PublicID: key, URL: h.publicURL + "/" + key}, nil
}

func (h *S3ImageHost) Delete(ctx context.Context, publicID string) error {
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(publicID),
	})
	return err
}

// DisabledImageHost rejects uploads; used when no bucket is configured.
type DisabledImageHost struct{}

func (DisabledImageHost) Upload(context.Context, string, string, io.Reader, int64) (*models.Avatar, error) {
	return nil, ErrImageHostDisabled
}

func (DisabledImageHost) Delete(context.Context, string) error { return nil }
