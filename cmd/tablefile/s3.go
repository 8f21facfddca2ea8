package tablefile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// ErrInvalidS3Location is returned for s3:// locations without a bucket or key.
var ErrInvalidS3Location = errors.New("invalid S3 location")

// parseS3Location splits s3://bucket/key into its bucket and key.
func parseS3Location(location string) (string, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidS3Location, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidS3Location, location)
	}
	return u.Host, key, nil
}

func newS3Session(opts S3Options) (*session.Session, error) {
	cfg := &aws.Config{
		S3ForcePathStyle: aws.Bool(true),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	if opts.Region != "" {
		cfg.Region = aws.String(opts.Region)
	}
	// Without static keys the default credential chain applies.
	if opts.AccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}
	return sess, nil
}

// fetchS3 downloads the object behind location and returns it with the base
// name of its key.
func fetchS3(ctx context.Context, location string, opts S3Options) ([]byte, string, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, "", err
	}

	sess, err := newS3Session(opts)
	if err != nil {
		return nil, "", err
	}

	buf := aws.NewWriteAtBuffer(nil)
	downloader := s3manager.NewDownloader(sess)
	if _, err := downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, "", fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	return buf.Bytes(), path.Base(key), nil
}
