package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bitrise-io/go-s3up/transfer"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioAPI is the subset of the MinIO core client used for multipart uploads.
type MinioAPI interface {
	NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error)
	PutObjectPart(ctx context.Context, bucket, object, uploadID string, partID int, data io.Reader, size int64, opts minio.PutObjectPartOptions) (minio.ObjectPart, error)
	ListObjectParts(ctx context.Context, bucket, object, uploadID string, partNumberMarker, maxParts int) (minio.ListObjectPartsResult, error)
	CompleteMultipartUpload(ctx context.Context, bucket, object, uploadID string, parts []minio.CompletePart, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
	PutObject(ctx context.Context, bucket, object string, data io.Reader, size int64, md5Base64, sha256Hex string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ MinioAPI = (*minio.Core)(nil)

// MinioParams ...
type MinioParams struct {
	// Endpoint is host[:port], optionally prefixed with http:// or https://.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Insecure        bool
}

// NewMinioCore creates a MinIO core client.
func NewMinioCore(params MinioParams) (*minio.Core, error) {
	if params.Endpoint == "" {
		return nil, fmt.Errorf("endpoint must not be empty")
	}

	endpoint := params.Endpoint
	secure := !params.Insecure
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	core, err := minio.NewCore(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(params.AccessKeyID, params.SecretAccessKey, ""),
		Secure: secure,
		Region: params.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return core, nil
}

// NewMinioStore creates a Store backed by a MinIO core client.
func NewMinioStore(client MinioAPI, logger log.Logger) *Store {
	return newStore(&minioBackend{client: client}, logger)
}

type minioBackend struct {
	client MinioAPI
}

func (b *minioBackend) name() string {
	return "minio"
}

// supports reports md5 only: MinIO confirms parts through their ETag.
func (b *minioBackend) supports(digest transfer.DigestAlgorithm) bool {
	return digest == transfer.DigestMD5
}

func (b *minioBackend) create(ctx context.Context, target transfer.Target) (string, error) {
	uploadID, err := b.client.NewMultipartUpload(ctx, target.Bucket, target.Key, minio.PutObjectOptions{ContentType: target.ContentType})
	if err != nil {
		return "", classifyMinioError(err)
	}
	if uploadID == "" {
		return "", fmt.Errorf("store returned no upload ID")
	}
	return uploadID, nil
}

func (b *minioBackend) uploadPart(ctx context.Context, target transfer.Target, uploadID string, number int32, data []byte) (partReceipt, error) {
	part, err := b.client.PutObjectPart(ctx, target.Bucket, target.Key, uploadID, int(number), bytes.NewReader(data), int64(len(data)), minio.PutObjectPartOptions{
		Md5Base64: contentMD5(data),
	})
	if err != nil {
		return partReceipt{}, classifyMinioError(err)
	}
	return partReceipt{ETag: part.ETag, Size: part.Size}, nil
}

func (b *minioBackend) listPart(ctx context.Context, target transfer.Target, uploadID string, number int32) (partReceipt, error) {
	result, err := b.client.ListObjectParts(ctx, target.Bucket, target.Key, uploadID, int(number)-1, 1)
	if err != nil {
		return partReceipt{}, classifyMinioError(err)
	}

	for _, part := range result.ObjectParts {
		if part.PartNumber != int(number) {
			continue
		}
		return partReceipt{ETag: part.ETag, ChecksumSHA256: part.ChecksumSHA256, Size: part.Size}, nil
	}
	return partReceipt{}, fmt.Errorf("part %d is not listed by the store", number)
}

func (b *minioBackend) complete(ctx context.Context, target transfer.Target, uploadID string, parts []completedPart) error {
	completed := make([]minio.CompletePart, 0, len(parts))
	for _, part := range parts {
		completed = append(completed, minio.CompletePart{PartNumber: int(part.Number), ETag: part.ETag})
	}

	_, err := b.client.CompleteMultipartUpload(ctx, target.Bucket, target.Key, uploadID, completed, minio.PutObjectOptions{ContentType: target.ContentType})
	return classifyMinioError(err)
}

func (b *minioBackend) abort(ctx context.Context, target transfer.Target, uploadID string) error {
	return classifyMinioError(b.client.AbortMultipartUpload(ctx, target.Bucket, target.Key, uploadID))
}

func (b *minioBackend) putEmpty(ctx context.Context, target transfer.Target) error {
	_, err := b.client.PutObject(ctx, target.Bucket, target.Key, bytes.NewReader(nil), 0, "", "", minio.PutObjectOptions{ContentType: target.ContentType})
	return classifyMinioError(err)
}
