package network

import (
	"context"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     mapEnv
		want    Config
		wantErr bool
	}{
		{
			name: "defaults",
			env:  mapEnv{},
			want: Config{Backend: BackendS3, Region: "us-east-1"},
		},
		{
			name: "s3 compatible endpoint",
			env: mapEnv{
				"AWS_REGION":            "eu-central-1",
				"AWS_ACCESS_KEY_ID":     "AKIA",
				"AWS_SECRET_ACCESS_KEY": "secret",
				"S3UP_ENDPOINT":         "http://localhost:4566",
				"S3UP_FORCE_PATH_STYLE": "true",
			},
			want: Config{
				Backend:         BackendS3,
				Region:          "eu-central-1",
				AccessKeyID:     "AKIA",
				SecretAccessKey: "secret",
				Endpoint:        "http://localhost:4566",
				ForcePathStyle:  true,
			},
		},
		{
			name: "minio",
			env: mapEnv{
				"S3UP_BACKEND":          "minio",
				"AWS_ACCESS_KEY_ID":     "minioadmin",
				"AWS_SECRET_ACCESS_KEY": "minioadmin",
				"S3UP_ENDPOINT":         "localhost:9000",
				"S3UP_INSECURE":         "yes",
			},
			want: Config{
				Backend:         BackendMinio,
				Region:          "us-east-1",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
				Endpoint:        "localhost:9000",
				Insecure:        true,
			},
		},
		{
			name:    "minio without endpoint",
			env:     mapEnv{"S3UP_BACKEND": "minio", "AWS_ACCESS_KEY_ID": "a", "AWS_SECRET_ACCESS_KEY": "b"},
			wantErr: true,
		},
		{
			name:    "minio without credentials",
			env:     mapEnv{"S3UP_BACKEND": "minio", "S3UP_ENDPOINT": "localhost:9000"},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			env:     mapEnv{"S3UP_BACKEND": "gcs"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig(tt.env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(context.Background(), Config{Backend: BackendMinio, Endpoint: "localhost:9000", AccessKeyID: "a", SecretAccessKey: "b"}, log.NewLogger())
	require.NoError(t, err)
	assert.IsType(t, &minioBackend{}, store.(*Store).backend)

	store, err = NewStore(context.Background(), Config{Backend: BackendS3, Region: "us-east-1", AccessKeyID: "a", SecretAccessKey: "b"}, log.NewLogger())
	require.NoError(t, err)
	assert.IsType(t, &s3Backend{}, store.(*Store).backend)

	_, err = NewStore(context.Background(), Config{Backend: BackendS3}, log.NewLogger())
	assert.Error(t, err)
}
