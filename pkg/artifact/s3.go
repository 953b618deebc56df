package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var errNotFound = errors.New("object not found")

// S3Config selects the S3 (or S3-compatible) endpoint.
type S3Config struct {
	Region    string // "us-east-1"
	Endpoint  string // "http://127.0.0.1:9000" for minio; empty for AWS
	AccessKey string // Empty for anonymous access
	SecretKey string
}

// ObjectGetter is the part of *s3.Client the fetcher needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client connects to the configured endpoint. A custom endpoint uses
// path-style addressing.
func NewS3Client(cfg S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return s3.NewFromConfig(aws.Config{Region: region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		} else {
			o.Credentials = aws.AnonymousCredentials{}
		}
	})
}

// ParseS3 splits s3://bucket/key.
func ParseS3(ref string) (bucket, key string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 uri: %s", ref)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 uri has no key: %s", ref)
	}
	return u.Host, key, nil
}

func (f *Fetcher) openS3(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNotFound, err)
	}
	f.s3Once.Do(func() {
		if f.s3 == nil {
			f.s3 = NewS3Client(f.config.S3)
		}
	})

	out, err := f.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, fmt.Errorf("%w: %s: %v", errNotFound, ref, err)
		}
		return nil, err
	}
	return out.Body, nil
}
