// Package s3store implements store.Store against any S3-compatible
// object store (AWS S3 or MinIO pointed at a custom endpoint) using the
// AWS SDK for Go v2, the same SDK family ghjramos-aistore's go.mod
// lists for its own cloud backends (spec §4.D).
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/aiserve/modelserver/internal/store"
)

// Options configures the driver. Endpoint is empty for real AWS S3 and
// set to a MinIO base URL ("http://minio:9000") when Kind is minio.
type Options struct {
	Bucket       string
	Region       string
	Endpoint     string // non-empty selects MinIO-style path addressing
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// Driver lists and fetches objects from a single bucket.
type Driver struct {
	client *s3.Client
	bucket string
}

// New builds a Driver from Options, pulling ambient AWS_* credentials
// from the environment when AccessKey/SecretKey are unset (spec §6
// "credentials from ambient environment").
func New(ctx context.Context, opts Options) (*Driver, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 store: bucket name is required")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle || opts.Endpoint != ""
	})

	return &Driver{client: client, bucket: opts.Bucket}, nil
}

// List enumerates every object in the bucket as a store.Artifact, keyed
// by its object key (the artifact file name).
func (d *Driver) List(ctx context.Context) ([]store.Artifact, error) {
	var out []store.Artifact
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list bucket %q: %w", d.bucket, err)
		}
		for _, obj := range page.Contents {
			art := store.Artifact{Key: aws.ToString(obj.Key)}
			if obj.ETag != nil {
				art.ETagOrMTime = aws.ToString(obj.ETag)
			}
			if obj.Size != nil {
				art.Size = *obj.Size
			}
			out = append(out, art)
		}
	}
	return out, nil
}

// Fetch downloads the full object body for key.
func (d *Driver) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	defer out.Body.Close()

	buf := make([]byte, 0, sizeHint(out.ContentLength))
	chunk := make([]byte, 32*1024)
	for {
		n, rerr := out.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("read object %q: %w", key, rerr)
		}
	}
	return buf, nil
}

// Exists issues a HeadObject to check presence without downloading.
func (d *Driver) Exists(ctx context.Context, key string) (bool, error) {
	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return false, nil
	}
	return false, fmt.Errorf("head object %q: %w", key, err)
}

func sizeHint(contentLength *int64) int {
	if contentLength == nil || *contentLength <= 0 {
		return 0
	}
	return int(*contentLength)
}
