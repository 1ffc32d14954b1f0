package network

import (
	"context"
	"fmt"

	"github.com/bitrise-io/go-s3up/stepconf"
	"github.com/bitrise-io/go-s3up/transfer"
	"github.com/bitrise-io/go-utils/v2/log"
)

const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Config is the object store connection, read from the environment.
type Config struct {
	Backend         string          `env:"S3UP_BACKEND,opt[s3,minio]"`
	Region          string          `env:"AWS_REGION"`
	AccessKeyID     stepconf.Secret `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey stepconf.Secret `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint        string          `env:"S3UP_ENDPOINT"`
	ForcePathStyle  bool            `env:"S3UP_FORCE_PATH_STYLE"`
	Insecure        bool            `env:"S3UP_INSECURE"`
}

var configDefaults = map[string]string{
	"S3UP_BACKEND": BackendS3,
	"AWS_REGION":   "us-east-1",
}

// ParseConfig reads the store connection from envGetter.
func ParseConfig(envGetter stepconf.EnvGetter) (Config, error) {
	var config Config
	if err := stepconf.NewInputParser(stepconf.WithDefaults(envGetter, configDefaults)).Parse(&config); err != nil {
		return Config{}, err
	}

	if config.Backend == BackendMinio {
		if config.Endpoint == "" {
			return Config{}, fmt.Errorf("S3UP_ENDPOINT must be set for the minio backend")
		}
		if config.AccessKeyID == "" || config.SecretAccessKey == "" {
			return Config{}, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set for the minio backend")
		}
	}
	return config, nil
}

// NewStore connects to the store described by config.
func NewStore(ctx context.Context, config Config, logger log.Logger) (transfer.Store, error) {
	switch config.Backend {
	case BackendMinio:
		core, err := NewMinioCore(MinioParams{
			Endpoint:        config.Endpoint,
			Region:          config.Region,
			AccessKeyID:     string(config.AccessKeyID),
			SecretAccessKey: string(config.SecretAccessKey),
			Insecure:        config.Insecure,
		})
		if err != nil {
			return nil, err
		}
		return NewMinioStore(core, logger), nil
	case BackendS3, "":
		client, err := NewS3Client(ctx, S3Params{
			Region:          config.Region,
			AccessKeyID:     string(config.AccessKeyID),
			SecretAccessKey: string(config.SecretAccessKey),
			Endpoint:        config.Endpoint,
			ForcePathStyle:  config.ForcePathStyle,
		}, logger)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", config.Backend)
	}
}
