package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"notes-go/internal/notes"
)

// S3Options configures an S3Store.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string // for S3-compatible services; empty uses AWS
	AccessKeyID     string // empty uses the default credential chain
	SecretAccessKey string
	UsePathStyle    bool
	BaseURL         string // public URL prefix; empty derives one from the bucket
}

// s3Uploader is the part of manager.Uploader the store uses.
type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store stores images in an S3 bucket. Objects are expected to be
// publicly readable through the bucket policy or a CDN at BaseURL.
type S3Store struct {
	uploader s3Uploader
	opts     S3Options
}

// NewS3Store loads AWS configuration and creates a store for opts.Bucket.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 blob store requires a bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	if opts.Region == "" {
		opts.Region = awsCfg.Region
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return newS3Store(manager.NewUploader(client), opts), nil
}

func newS3Store(u s3Uploader, opts S3Options) *S3Store {
	return &S3Store{uploader: u, opts: opts}
}

// Upload writes the object with the multipart upload manager.
func (s *S3Store) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	key, err := cleanKey(path)
	if err != nil {
		return err
	}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", s.opts.Bucket, key, err)
	}
	return nil
}

// URL builds the public URL of path. Uploads are confirmed by the
// uploader, so no request is made here.
func (s *S3Store) URL(_ context.Context, path string) (string, error) {
	key, err := cleanKey(path)
	if err != nil {
		return "", err
	}
	switch {
	case s.opts.BaseURL != "":
		return joinURL(s.opts.BaseURL, key), nil
	case s.opts.Endpoint != "":
		return joinURL(s.opts.Endpoint, s.opts.Bucket+"/"+key), nil
	case s.opts.Region == "":
		return joinURL("https://"+s.opts.Bucket+".s3.amazonaws.com", key), nil
	default:
		return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.opts.Bucket, s.opts.Region), key), nil
	}
}

var _ notes.BlobStore = (*S3Store)(nil)
