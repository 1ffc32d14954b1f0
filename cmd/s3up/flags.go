package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

type args struct {
	Rate        string
	Bucket      string
	ChunkSize   string
	Key         string
	Include     string
	Digest      string
	Pacing      string
	Retries     uint
	PartTimeout time.Duration
	DryRun      bool
	Verbose     bool
}

func buildFlags(a *args) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "rate",
			Aliases:     []string{"u"},
			Usage:       "throughput cap per second, such as: 500KB, 5MB (1KB = 1024 bytes)",
			EnvVars:     []string{"S3UP_RATE"},
			Destination: &a.Rate,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Aliases:     []string{"b"},
			Usage:       "destination bucket",
			EnvVars:     []string{"S3UP_BUCKET"},
			Destination: &a.Bucket,
		},
		&cli.StringFlag{
			Name:        "chunk-size",
			Aliases:     []string{"c"},
			Usage:       "part size, between 5MB and 5GB",
			DefaultText: "rate, between 5MB and 5GB",
			Destination: &a.ChunkSize,
		},
		&cli.StringFlag{
			Name:        "key",
			Aliases:     []string{"k"},
			Usage:       "object key template, such as: backups/{{ .Date }}/{{ .Path }}",
			DefaultText: "{{ .Path }}",
			Destination: &a.Key,
		},
		&cli.StringFlag{
			Name:        "include",
			Usage:       "files to upload when SOURCE is a directory, as a doublestar pattern",
			DefaultText: "**/*",
			Destination: &a.Include,
		},
		&cli.StringFlag{
			Name:        "digest",
			Usage:       "part checksum verified against the store: md5 or sha256",
			Value:       "md5",
			Destination: &a.Digest,
		},
		&cli.StringFlag{
			Name:        "pacing",
			Usage:       "pacing strategy: average or token-bucket",
			Value:       "average",
			Destination: &a.Pacing,
		},
		&cli.UintFlag{
			Name:        "retries",
			Usage:       "extra attempts for a part that failed with a transient error, 0 disables retrying",
			Value:       3,
			Destination: &a.Retries,
		},
		&cli.DurationFlag{
			Name:        "part-timeout",
			Usage:       "timeout of a single part submission, 0 means no timeout",
			Destination: &a.PartTimeout,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "plan the upload and print the estimate without connecting to the store",
			Destination: &a.DryRun,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "enable debug logging",
			Destination: &a.Verbose,
		},
	}
}
