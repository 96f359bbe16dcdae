package assetcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3FileStore stores asset bytes in an S3-compatible bucket, keyed by
// content hash. Unlike LocalFileStore it needs no directory sharding —
// S3 has no per-prefix entry-count penalty worth avoiding at this
// scale.
type S3FileStore struct {
	client   *s3.Client
	bucket   string
	prefix   string
	cdnURL   string // optional; if set, ResolveURL returns an absolute CDN URL instead of a presigned one
}

// NewS3FileStore wraps client for bucket, storing objects under
// prefix (e.g. "assets/"). If cdnURL is non-empty, ResolveURL returns
// cdnURL+"/"+hash instead of calling out to S3 for a presigned URL —
// appropriate when the bucket sits behind a public CDN.
func NewS3FileStore(client *s3.Client, bucket, prefix, cdnURL string) *S3FileStore {
	return &S3FileStore{client: client, bucket: bucket, prefix: prefix, cdnURL: cdnURL}
}

func (s *S3FileStore) key(hash string) string {
	return s.prefix + hash
}

// Put uploads data under hash's key with the given content type.
func (s *S3FileStore) Put(ctx context.Context, hash string, data []byte, mime string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(hash)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mime),
	})
	if err != nil {
		return fmt.Errorf("assetcache: s3 put %s: %w", hash, err)
	}
	return nil
}

// Exists reports whether hash's object is present.
func (s *S3FileStore) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(hash)),
	})
	if err != nil {
		// aws-sdk-go-v2 reports a missing key as a generic API error;
		// there is no cheaper existence check than the HEAD itself.
		return false, nil
	}
	return true, nil
}

// Get downloads hash's object in full.
func (s *S3FileStore) Get(ctx context.Context, hash string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(hash)),
	})
	if err != nil {
		return nil, fmt.Errorf("assetcache: s3 get %s: %w", hash, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// ResolveURL returns a CDN URL if configured, otherwise a presigned
// GET URL valid for one hour.
func (s *S3FileStore) ResolveURL(ctx context.Context, hash string) (string, error) {
	if s.cdnURL != "" {
		return s.cdnURL + "/" + hash, nil
	}
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(hash)),
	})
	if err != nil {
		return "", fmt.Errorf("assetcache: presign %s: %w", hash, err)
	}
	return req.URL, nil
}

// StorageType identifies this backend in a PlaybackConfig frame.
func (s *S3FileStore) StorageType() string { return "s3" }

// ConfigJSON returns the playback-config payload a client needs;
// local players never see the bucket name, only whether a CDN fronts
// it.
func (s *S3FileStore) ConfigJSON() (string, error) {
	b, err := json.Marshal(map[string]string{"cdn_url": s.cdnURL})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
