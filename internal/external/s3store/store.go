package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wonny/aodgrid/pkg/logger"
)

// ErrNotFound is returned when the granule object does not exist
var ErrNotFound = errors.New("object not found")

// GetObjectAPI is the subset of the S3 SDK client used by the store
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewClient builds an S3 client that signs with the given credentials provider
// (normally the Earthdata temporary key provider)
func NewClient(ctx context.Context, region string, creds aws.CredentialsProvider) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.NewCredentialsCache(creds)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// Store fetches L2 granules from the DAAC bucket (s3://<bucket>/<product>/<file>)
// ⭐ SSOT: S3 객체 다운로드는 이 Store에서만
type Store struct {
	client GetObjectAPI
	bucket string
	logger *logger.Logger
}

// New creates a granule store
func New(client GetObjectAPI, bucket string, log *logger.Logger) *Store {
	return &Store{client: client, bucket: bucket, logger: log}
}

// Key returns the object key of a granule
func Key(product, file string) string {
	return product + "/" + file
}

// URI returns the s3:// location of a granule
func (s *Store) URI(product, file string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, Key(product, file))
}

// Download copies one granule into dir and returns the local path.
// An existing non-empty file is reused.
func (s *Store) Download(ctx context.Context, product, file, dir string) (string, error) {
	dst := filepath.Join(dir, file)
	if st, err := os.Stat(dst); err == nil && st.Size() > 0 {
		return dst, nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(product, file)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, s.URI(product, file))
		}
		return "", fmt.Errorf("get %s: %w", s.URI(product, file), err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, file+".part-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, out.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", file, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("rename %s: %w", file, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"uri":   s.URI(product, file),
		"bytes": n,
	}).Debug("Granule fetched from S3")

	return dst, nil
}
