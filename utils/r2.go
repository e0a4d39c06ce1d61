// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Settings are the Cloudflare R2 credentials for the signed-document archive.
type R2Settings struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

// DocumentArchive keeps copies of signed PDFs so downloads survive link
// rotation or retention limits on the provider side.
type DocumentArchive struct {
	client *s3.Client
	bucket string
}

func NewDocumentArchive(ctx context.Context, s R2Settings) (*DocumentArchive, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.AccountID)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.AccessKeyID, s.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &DocumentArchive{client: client, bucket: s.Bucket}, nil
}

// ArchiveKey is the object key of a mandate's signed power of attorney.
func ArchiveKey(mandateID string) string {
	return "vollmachten/" + mandateID + ".pdf"
}

// Put stores body under key.
func (a *DocumentArchive) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, body); err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}

// Get opens the object under key. The caller closes the reader.
func (a *DocumentArchive) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s from R2: %w", key, err)
	}
	contentType := "application/pdf"
	if out.ContentType != nil && *out.ContentType != "" {
		contentType = *out.ContentType
	}
	return out.Body, contentType, nil
}
