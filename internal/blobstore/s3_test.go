package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, input)
	f.bodies = append(f.bodies, string(body))
	return &manager.UploadOutput{}, nil
}

func TestS3Store_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("puts object", func(t *testing.T) {
		up := &fakeUploader{}
		s := newS3Store(up, S3Options{Bucket: "notes-images", Region: "eu-west-1"})

		if err := s.Upload(ctx, "project73_notes/u1/n1/1-a.png", strings.NewReader("png"), 3, "image/png"); err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if len(up.inputs) != 1 {
			t.Fatalf("uploads = %d, want 1", len(up.inputs))
		}
		in := up.inputs[0]
		if aws.ToString(in.Bucket) != "notes-images" || aws.ToString(in.Key) != "project73_notes/u1/n1/1-a.png" {
			t.Errorf("bucket = %q, key = %q", aws.ToString(in.Bucket), aws.ToString(in.Key))
		}
		if aws.ToString(in.ContentType) != "image/png" || aws.ToInt64(in.ContentLength) != 3 {
			t.Errorf("content type = %q, length = %d", aws.ToString(in.ContentType), aws.ToInt64(in.ContentLength))
		}
		if up.bodies[0] != "png" {
			t.Errorf("body = %q", up.bodies[0])
		}
	})

	t.Run("upload error", func(t *testing.T) {
		boom := errors.New("access denied")
		s := newS3Store(&fakeUploader{err: boom}, S3Options{Bucket: "b"})
		if err := s.Upload(ctx, "a.png", strings.NewReader("x"), 1, "image/png"); !errors.Is(err, boom) {
			t.Errorf("Upload() error = %v, want %v", err, boom)
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		up := &fakeUploader{}
		s := newS3Store(up, S3Options{Bucket: "b"})
		if err := s.Upload(ctx, "../a.png", strings.NewReader("x"), 1, "image/png"); err == nil {
			t.Error("Upload() expected error for invalid path")
		}
		if len(up.inputs) != 0 {
			t.Error("invalid path reached the uploader")
		}
	})
}

func TestS3Store_URL(t *testing.T) {
	tests := []struct {
		name string
		opts S3Options
		want string
	}{
		{
			name: "virtual hosted",
			opts: S3Options{Bucket: "notes-images", Region: "eu-west-1"},
			want: "https://notes-images.s3.eu-west-1.amazonaws.com/u1/a.png",
		},
		{
			name: "custom endpoint",
			opts: S3Options{Bucket: "notes", Endpoint: "http://localhost:9000", UsePathStyle: true},
			want: "http://localhost:9000/notes/u1/a.png",
		},
		{
			name: "base url wins",
			opts: S3Options{Bucket: "notes", Region: "us-east-1", BaseURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com/u1/a.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newS3Store(&fakeUploader{}, tt.opts)
			got, err := s.URL(context.Background(), "u1/a.png")
			if err != nil {
				t.Fatalf("URL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}
