//go:build integration
// +build integration

package integration

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bitrise-io/go-s3up/upload/network"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

var logger = log.NewLogger()

const region = "us-east-1"

// startLocalStack starts a LocalStack container and returns an S3 client pointing at it.
func startLocalStack(t *testing.T) (*s3.Client, network.Config) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := localstack.Run(ctx,
		"localstack/localstack:latest",
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort("4566").
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate LocalStack container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4566")
	require.NoError(t, err)

	config := network.Config{
		Backend:         network.BackendS3,
		Region:          region,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        fmt.Sprintf("http://%s:%s", host, port.Port()),
		ForcePathStyle:  true,
	}
	client, err := network.NewS3Client(ctx, network.S3Params{
		Region:          config.Region,
		AccessKeyID:     string(config.AccessKeyID),
		SecretAccessKey: string(config.SecretAccessKey),
		Endpoint:        config.Endpoint,
		ForcePathStyle:  config.ForcePathStyle,
	}, logger)
	require.NoError(t, err)

	return client, config
}

func createBucket(t *testing.T, client *s3.Client, bucket string) {
	t.Helper()
	_, err := client.CreateBucket(context.Background(), &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)
}

func getObject(t *testing.T, client *s3.Client, bucket, key string) []byte {
	t.Helper()
	output, err := client.GetObject(context.Background(), &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	require.NoError(t, err)
	defer output.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(output.Body)
	require.NoError(t, err)
	return data
}

func randomBytes(t *testing.T, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}
