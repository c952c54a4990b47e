// Package storage puts processed images into an S3-compatible bucket
// (Cloudflare R2 in production) and hands back their public addresses.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// PutObjectAPI is the slice of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	client    PutObjectAPI
	bucket    string
	publicURL string
	log       *zap.Logger
}

// NewUploader returns an Uploader writing to bucket. publicURL is either a
// format string with one %s for the key or a base URL the key is appended to.
func NewUploader(client PutObjectAPI, bucket, publicURL string, log *zap.Logger) *Uploader {
	return &Uploader{client: client, bucket: bucket, publicURL: publicURL, log: log}
}

// Upload stores data under key and returns its public address.
func (u *Uploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	obj, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	u.log.Debug("object stored",
		zap.String("key", key),
		zap.String("etag", aws.ToString(obj.ETag)),
		zap.Int("bytes", len(data)))

	return u.PublicURL(key), nil
}

// PublicURL resolves the address a stored key is served from.
func (u *Uploader) PublicURL(key string) string {
	if strings.Contains(u.publicURL, "%s") {
		return CleanURL(fmt.Sprintf(u.publicURL, key))
	}
	return CleanURL(strings.TrimRight(u.publicURL, "/") + "/" + key)
}

// ObjectKey builds {owner}/{token}-{seq}.{ext}. token is unique per submit
// and seq is the image's position in the selection.
func ObjectKey(owner, token string, seq int, ext string) string {
	return fmt.Sprintf("%s/%s-%d.%s", owner, token, seq, ext)
}

// SingleKey builds {timestamp}.{ext} for places that store one image at a time.
func SingleKey(t time.Time, ext string) string {
	return fmt.Sprintf("%d.%s", t.UnixMilli(), ext)
}

// Extension takes the extension from filename, falling back to the media
// type and finally to "bin".
func Extension(filename, contentType string) string {
	if ext := strings.TrimPrefix(path.Ext(filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	if strings.HasPrefix(contentType, "image/") {
		return strings.TrimPrefix(contentType, "image/")
	}
	return "bin"
}

func CleanURL(urlStr string) string {
	urlStr = strings.ReplaceAll(urlStr, " ", "%20")
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}

	return parsedURL.String()
}
