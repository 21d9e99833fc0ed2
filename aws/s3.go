// Package aws defines functions used to interact with the AWS API
package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

// Bodies above this size are uploaded in parts
const minMultipartSize = 12 << 20

type S3Client struct {
	C       *s3.Client
	Presign *s3.PresignClient
	Bucket  *string

	urlTTL       time.Duration
	uploadURLTTL time.Duration
}

func NewS3() (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			viper.GetString("aws.access_key"),
			viper.GetString("aws.secret_access_key"),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.Region = viper.GetString("aws.region")
		if endpoint := viper.GetString("aws.endpoint"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return Wrap(context.TODO(), client, viper.GetString("aws.bucket"))
}

// Wrap checks that the bucket exists and builds an S3Client around client.
// URL expiries come from storage.url_ttl and storage.upload_url_ttl.
func Wrap(ctx context.Context, client *s3.Client, bucketName string) (*S3Client, error) {
	bucket := aws.String(bucketName)

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", bucketName)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3Client{
		C:            client,
		Presign:      s3.NewPresignClient(client),
		Bucket:       bucket,
		urlTTL:       viper.GetDuration("storage.url_ttl"),
		uploadURLTTL: viper.GetDuration("storage.upload_url_ttl"),
	}, nil
}

// PresignPut returns a URL the client can PUT the object body to directly
func (c *S3Client) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	req, err := c.Presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      c.Bucket,
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(c.uploadURLTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload url, %w", err)
	}

	return req.URL, nil
}

// PresignGet returns a time limited download URL for key
func (c *S3Client) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := c.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.urlTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign download url, %w", err)
	}

	return req.URL, nil
}

// URLTTL is how long URLs from PresignGet stay valid
func (c *S3Client) URLTTL() time.Duration {
	return c.urlTTL
}

// ListKeys returns every key starting with prefix
func (c *S3Client) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	p := s3.NewListObjectsV2Paginator(c.C, &s3.ListObjectsV2Input{
		Bucket: c.Bucket,
		Prefix: aws.String(prefix),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under '%s', %w", prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	return keys, nil
}

// Upload stores body under key, in parts when it's big enough
func (c *S3Client) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        c.Bucket,
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}

	var err error
	if size > minMultipartSize {
		uploader := manager.NewUploader(c.C, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})
		_, err = uploader.Upload(ctx, input)
	} else {
		_, err = c.C.PutObject(ctx, input)
	}
	if err != nil {
		return fmt.Errorf("failed to upload '%s' to s3, %w", key, err)
	}

	return nil
}
