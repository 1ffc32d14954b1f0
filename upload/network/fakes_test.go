package network

import (
	"context"
	"crypto/md5" //nolint:gosec
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
)

type fakePart struct {
	data     []byte
	etag     string
	checksum string
}

type fakeUpload struct {
	bucket, key string
	parts       map[int32]fakePart
	sha256      bool
	contentType string
}

// fakeS3 is an in-memory multipart store.
type fakeS3 struct {
	mu       sync.Mutex
	nextID   int
	uploads  map[string]*fakeUpload
	objects  map[string][]byte
	aborted  []string
	calls    []string
	errs     map[string][]error
	listSize func(number int32, size int64) int64
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		uploads: map[string]*fakeUpload{},
		objects: map[string][]byte{},
		errs:    map[string][]error{},
	}
}

func (f *fakeS3) call(op string) error {
	f.calls = append(f.calls, op)
	if errs := f.errs[op]; len(errs) > 0 {
		f.errs[op] = errs[1:]
		return errs[0]
	}
	return nil
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateMultipartUpload"); err != nil {
		return nil, err
	}

	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = &fakeUpload{
		bucket:      aws.ToString(params.Bucket),
		key:         aws.ToString(params.Key),
		parts:       map[int32]fakePart{},
		sha256:      params.ChecksumAlgorithm == types.ChecksumAlgorithmSha256,
		contentType: aws.ToString(params.ContentType),
	}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("UploadPart"); err != nil {
		return nil, err
	}

	upload, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, fmt.Errorf("NoSuchUpload")
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	md5Sum := md5.Sum(data) //nolint:gosec
	if params.ContentMD5 != nil && *params.ContentMD5 != base64.StdEncoding.EncodeToString(md5Sum[:]) {
		return nil, fmt.Errorf("BadDigest")
	}
	part := fakePart{data: data, etag: `"` + hex.EncodeToString(md5Sum[:]) + `"`}
	output := &s3.UploadPartOutput{ETag: aws.String(part.etag)}
	if upload.sha256 {
		shaSum := sha256.Sum256(data)
		part.checksum = base64.StdEncoding.EncodeToString(shaSum[:])
		output.ChecksumSHA256 = aws.String(part.checksum)
	}
	upload.parts[aws.ToInt32(params.PartNumber)] = part
	return output, nil
}

func (f *fakeS3) ListParts(_ context.Context, params *s3.ListPartsInput, _ ...func(*s3.Options)) (*s3.ListPartsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListParts"); err != nil {
		return nil, err
	}

	upload, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, fmt.Errorf("NoSuchUpload")
	}
	marker, _ := strconv.Atoi(aws.ToString(params.PartNumberMarker))

	var numbers []int
	for number := range upload.parts {
		if int(number) > marker {
			numbers = append(numbers, int(number))
		}
	}
	sort.Ints(numbers)
	if limit := int(aws.ToInt32(params.MaxParts)); limit > 0 && len(numbers) > limit {
		numbers = numbers[:limit]
	}

	output := &s3.ListPartsOutput{}
	for _, n := range numbers {
		part := upload.parts[int32(n)]
		size := int64(len(part.data))
		if f.listSize != nil {
			size = f.listSize(int32(n), size)
		}
		p := types.Part{PartNumber: aws.Int32(int32(n)), ETag: aws.String(part.etag), Size: aws.Int64(size)}
		if part.checksum != "" {
			p.ChecksumSHA256 = aws.String(part.checksum)
		}
		output.Parts = append(output.Parts, p)
	}
	return output, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CompleteMultipartUpload"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.UploadId)
	upload, ok := f.uploads[id]
	if !ok {
		return nil, fmt.Errorf("NoSuchUpload")
	}
	var object []byte
	for i, completed := range params.MultipartUpload.Parts {
		number := aws.ToInt32(completed.PartNumber)
		if int(number) != i+1 {
			return nil, fmt.Errorf("InvalidPartOrder")
		}
		part, ok := upload.parts[number]
		if !ok || part.etag != aws.ToString(completed.ETag) {
			return nil, fmt.Errorf("InvalidPart")
		}
		object = append(object, part.data...)
	}
	f.objects[upload.bucket+"/"+upload.key] = object
	delete(f.uploads, id)
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(_ context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("AbortMultipartUpload"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.UploadId)
	delete(f.uploads, id)
	f.aborted = append(f.aborted, id)
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("PutObject"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

type mockMinio struct {
	mock.Mock
}

func (m *mockMinio) NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error) {
	args := m.Called(ctx, bucket, object, opts)
	return args.String(0), args.Error(1)
}

func (m *mockMinio) PutObjectPart(ctx context.Context, bucket, object, uploadID string, partID int, data io.Reader, size int64, opts minio.PutObjectPartOptions) (minio.ObjectPart, error) {
	args := m.Called(ctx, bucket, object, uploadID, partID, data, size, opts)
	return args.Get(0).(minio.ObjectPart), args.Error(1)
}

func (m *mockMinio) ListObjectParts(ctx context.Context, bucket, object, uploadID string, partNumberMarker, maxParts int) (minio.ListObjectPartsResult, error) {
	args := m.Called(ctx, bucket, object, uploadID, partNumberMarker, maxParts)
	return args.Get(0).(minio.ListObjectPartsResult), args.Error(1)
}

func (m *mockMinio) CompleteMultipartUpload(ctx context.Context, bucket, object, uploadID string, parts []minio.CompletePart, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucket, object, uploadID, parts, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *mockMinio) AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error {
	args := m.Called(ctx, bucket, object, uploadID)
	return args.Error(0)
}

func (m *mockMinio) PutObject(ctx context.Context, bucket, object string, data io.Reader, size int64, md5Base64, sha256Hex string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucket, object, data, size, md5Base64, sha256Hex, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

type mapEnv map[string]string

func (m mapEnv) Get(key string) string {
	return m[key]
}
