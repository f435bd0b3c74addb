package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kuitang/shop-e2e/internal/errs"
)

// S3Config holds the configuration for creating an S3 artifact store.
type S3Config struct {
	// Endpoint is the S3 endpoint URL. Leave empty to use default AWS S3.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	// Prefix is prepended to every object key, e.g. "screenshots".
	Prefix string
	// UsePathStyle enables path-style addressing (required for gofakes3 and MinIO).
	UsePathStyle bool
}

// S3Store uploads artifacts to an S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Store creates an S3 store with the given configuration.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreFromClient(client, cfg.BucketName, cfg.Prefix), nil
}

// NewS3StoreFromClient creates a store from an existing S3 client.
func NewS3StoreFromClient(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Save uploads data as <prefix>/<name>-<epochMillis>.png and returns its
// s3:// URL. The key is checked first and the stamp bumped on collision.
func (s *S3Store) Save(ctx context.Context, name string, data []byte) (string, error) {
	stamp := s.now().UnixMilli()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		key := s.key(FileName(name, stamp+int64(attempt)))
		exists, err := s.exists(ctx, key)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("image/png"),
		})
		if err != nil {
			return "", errs.Wrap(errs.IO, fmt.Sprintf("put artifact %q", key), err)
		}
		return s.URL(key), nil
	}
	return "", errs.New(errs.IO, "no free artifact key for "+SanitizeName(name))
}

// Get retrieves the object stored under key. A missing key yields errs.NotFound.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errs.Wrap(errs.NotFound, fmt.Sprintf("artifact %q", key), err)
		}
		return nil, errs.Wrap(errs.IO, fmt.Sprintf("get artifact %q", key), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errs.Wrap(errs.IO, fmt.Sprintf("read artifact body %q", key), err)
	}
	return data, nil
}

// Delete removes the object at key. Missing keys are not an error.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errs.Wrap(errs.IO, fmt.Sprintf("delete artifact %q", key), err)
	}
	return nil
}

// URL returns the s3:// URL for key.
func (s *S3Store) URL(key string) string {
	return "s3://" + s.bucket + "/" + strings.TrimPrefix(key, "/")
}

// KeyFromURL strips the s3://bucket/ prefix produced by Save.
func (s *S3Store) KeyFromURL(url string) string {
	return strings.TrimPrefix(url, "s3://"+s.bucket+"/")
}

// BucketName returns the configured bucket name.
func (s *S3Store) BucketName() string {
	return s.bucket
}

func (s *S3Store) key(file string) string {
	if s.prefix == "" {
		return file
	}
	return path.Join(s.prefix, file)
}

func (s *S3Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, errs.Wrap(errs.IO, fmt.Sprintf("head artifact %q", key), err)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
