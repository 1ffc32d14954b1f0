package network

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bitrise-io/go-s3up/transfer"
	"github.com/bitrise-io/go-utils/v2/log"
)

// S3API is the subset of the S3 client used for multipart uploads.
type S3API interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	ListParts(ctx context.Context, params *s3.ListPartsInput, optFns ...func(*s3.Options)) (*s3.ListPartsOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Params ...
type S3Params struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the AWS endpoint, for S3 compatible stores.
	Endpoint       string
	ForcePathStyle bool
}

// NewS3Client creates an S3 client. Static credentials are used when both keys are set,
// otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, params S3Params, logger log.Logger) (*s3.Client, error) {
	cfg, err := loadAWSCredentials(ctx, params.Region, params.AccessKeyID, params.SecretAccessKey, logger)
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}

	return s3.NewFromConfig(*cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
		}
		o.UsePathStyle = params.ForcePathStyle
		// Parts carry the checksum selected by the digest algorithm only.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	}), nil
}

func loadAWSCredentials(
	ctx context.Context,
	region string,
	accessKeyID string,
	secretKey string,
	logger log.Logger,
) (*aws.Config, error) {
	if region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretKey != "" {
		logger.Debugf("aws credentials provided, using them...")
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config, %v", err)
	}

	return &cfg, nil
}

// NewS3Store creates a Store backed by an S3 client.
func NewS3Store(client S3API, logger log.Logger) *Store {
	return newStore(&s3Backend{client: client}, logger)
}

type s3Backend struct {
	client S3API
}

func (b *s3Backend) name() string {
	return "s3"
}

func (b *s3Backend) supports(digest transfer.DigestAlgorithm) bool {
	return digest == transfer.DigestMD5 || digest == transfer.DigestSHA256
}

func (b *s3Backend) create(ctx context.Context, target transfer.Target) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(target.Bucket),
		Key:    aws.String(target.Key),
	}
	if target.ContentType != "" {
		input.ContentType = aws.String(target.ContentType)
	}
	if target.Digest == transfer.DigestSHA256 {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmSha256
	}

	output, err := b.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", classifyS3Error(err)
	}
	if output.UploadId == nil || *output.UploadId == "" {
		return "", fmt.Errorf("store returned no upload ID")
	}
	return *output.UploadId, nil
}

func (b *s3Backend) uploadPart(ctx context.Context, target transfer.Target, uploadID string, number int32, data []byte) (partReceipt, error) {
	input := &s3.UploadPartInput{
		Bucket:        aws.String(target.Bucket),
		Key:           aws.String(target.Key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(number),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	switch target.Digest {
	case transfer.DigestSHA256:
		input.ChecksumAlgorithm = types.ChecksumAlgorithmSha256
		input.ChecksumSHA256 = aws.String(checksumSHA256(data))
	default:
		input.ContentMD5 = aws.String(contentMD5(data))
	}

	output, err := b.client.UploadPart(ctx, input)
	if err != nil {
		return partReceipt{}, classifyS3Error(err)
	}
	return partReceipt{
		ETag:           aws.ToString(output.ETag),
		ChecksumSHA256: aws.ToString(output.ChecksumSHA256),
	}, nil
}

func (b *s3Backend) listPart(ctx context.Context, target transfer.Target, uploadID string, number int32) (partReceipt, error) {
	output, err := b.client.ListParts(ctx, &s3.ListPartsInput{
		Bucket:           aws.String(target.Bucket),
		Key:              aws.String(target.Key),
		UploadId:         aws.String(uploadID),
		PartNumberMarker: aws.String(strconv.Itoa(int(number) - 1)),
		MaxParts:         aws.Int32(1),
	})
	if err != nil {
		return partReceipt{}, classifyS3Error(err)
	}

	for _, part := range output.Parts {
		if aws.ToInt32(part.PartNumber) != number {
			continue
		}
		return partReceipt{
			ETag:           aws.ToString(part.ETag),
			ChecksumSHA256: aws.ToString(part.ChecksumSHA256),
			Size:           aws.ToInt64(part.Size),
		}, nil
	}
	return partReceipt{}, fmt.Errorf("part %d is not listed by the store", number)
}

func (b *s3Backend) complete(ctx context.Context, target transfer.Target, uploadID string, parts []completedPart) error {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, part := range parts {
		p := types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(part.Number),
		}
		if target.Digest == transfer.DigestSHA256 && part.ChecksumSHA256 != "" {
			p.ChecksumSHA256 = aws.String(part.ChecksumSHA256)
		}
		completed = append(completed, p)
	}

	_, err := b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(target.Bucket),
		Key:             aws.String(target.Key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	return classifyS3Error(err)
}

func (b *s3Backend) abort(ctx context.Context, target transfer.Target, uploadID string) error {
	_, err := b.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(target.Bucket),
		Key:      aws.String(target.Key),
		UploadId: aws.String(uploadID),
	})
	return classifyS3Error(err)
}

func (b *s3Backend) putEmpty(ctx context.Context, target transfer.Target) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(target.Bucket),
		Key:           aws.String(target.Key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	}
	if target.ContentType != "" {
		input.ContentType = aws.String(target.ContentType)
	}

	_, err := b.client.PutObject(ctx, input)
	return classifyS3Error(err)
}
