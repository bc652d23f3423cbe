package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPrefix = "annotated"
	presignTTL    = 15 * time.Minute
)

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
}

// ConfigFromEnv reads the AWS_* variables.
func ConfigFromEnv() Config {
	return Config{
		Region:          os.Getenv("AWS_REGION"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Bucket:          os.Getenv("AWS_BUCKET_NAME"),
		Prefix:          DefaultPrefix,
	}
}

type ItfS3 interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
	PresignUrl(key string) (string, error)
}

type s3Client struct {
	client     *s3.S3
	uploader   *s3manager.Uploader
	bucketName string
	prefix     string
	log        *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) (ItfS3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("AWS_BUCKET_NAME is required for s3 storage")
	}

	sess, err := newSession(cfg)
	if err != nil {
		return nil, err
	}

	return &s3Client{
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		bucketName: cfg.Bucket,
		prefix:     cfg.Prefix,
		log:        logger,
	}, nil
}

// Save uploads the JPEG and answers with a presigned GET URL, since output
// buckets are expected to be private.
func (s *s3Client) Save(ctx context.Context, name string, data []byte) (string, error) {
	key := path.Join(s.prefix, name)

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	return s.PresignUrl(key)
}

func (s *s3Client) PresignUrl(key string) (string, error) {
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})

	urlStr, err := req.Presign(presignTTL)
	if err != nil {
		return "", err
	}

	return urlStr, nil
}

func (s *s3Client) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var deleteErr error

	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(s.prefix + "/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		var objects []*s3.ObjectIdentifier
		for _, obj := range page.Contents {
			if olderThan > 0 && obj.LastModified != nil && obj.LastModified.After(cutoff) {
				continue
			}
			objects = append(objects, &s3.ObjectIdentifier{Key: obj.Key})
		}
		if len(objects) == 0 {
			return true
		}

		out, err := s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucketName),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			deleteErr = err
			return false
		}

		removed += len(objects) - len(out.Errors)
		for _, e := range out.Errors {
			s.log.WithFields(logrus.Fields{
				"key":   aws.StringValue(e.Key),
				"error": aws.StringValue(e.Message),
			}).Warn("Failed to delete expired output")
		}
		return true
	})
	if err != nil {
		return removed, err
	}

	return removed, deleteErr
}

func newSession(cfg Config) (*session.Session, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}

	return sess, nil
}
