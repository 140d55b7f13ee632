package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

// Objects bigger than this are uploaded in parts
const minMultipartSize = 12 << 20

type Client struct {
	C         *s3.Client
	Bucket    *string
	publicURL string
}

// New connects to the R2 bucket configured under cloudflare.* and checks
// that it exists before the server starts accepting uploads.
func New() (*Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			viper.GetString("cloudflare.access_key_id"),
			viper.GetString("cloudflare.secret_access_key"),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(viper.GetString("cloudflare.bucket"))

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", viper.GetString("cloudflare.account_id")))
		o.Region = "auto"
	})

	_, err = client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", *bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &Client{
		C:         client,
		Bucket:    bucket,
		publicURL: strings.TrimSuffix(viper.GetString("cloudflare.public_url"), "/"),
	}, nil
}

func (c *Client) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket:        c.Bucket,
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	}

	if size > minMultipartSize {
		u := manager.NewUploader(c.C, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})

		_, err := u.Upload(ctx, input)
		return err
	}

	_, err := c.C.PutObject(ctx, input)
	return err
}

// PublicURL builds the CDN URL for a stored object. Keys are opaque random
// strings so handing the URL out leaks nothing about the session.
func (c *Client) PublicURL(key string) string {
	return c.publicURL + "/" + key
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	})
	return err
}
