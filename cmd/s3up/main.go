package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitrise-io/go-s3up/upload"
	"github.com/bitrise-io/go-s3up/upload/network"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/docker/go-units"
	"github.com/urfave/cli/v2"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

type usageError struct {
	err error
}

func (e usageError) Error() string {
	return e.err.Error()
}

func (e usageError) Unwrap() error {
	return e.err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, nil)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
// A nil factory connects to the store configured in the environment.
func run(ctx context.Context, arguments []string, out io.Writer, storeFactory upload.StoreFactory) int {
	var a args
	logger := log.NewLogger()

	app := &cli.App{
		Name:      "s3up",
		Usage:     "Upload files to S3 under a throughput cap, verifying every part",
		ArgsUsage: "SOURCE",
		Writer:    out,
		Flags:     buildFlags(&a),
		OnUsageError: func(_ *cli.Context, err error, _ bool) error {
			return usageError{err: err}
		},
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(cCtx *cli.Context) error {
			logger.EnableDebugLog(a.Verbose)

			source := cCtx.Args().First()
			if err := validateArgs(a, source, cCtx.NArg()); err != nil {
				_ = cli.ShowAppHelp(cCtx)
				return usageError{err: err}
			}

			uploader := upload.NewUploader(
				env.NewRepository(),
				logger,
				pathutil.NewPathProvider(),
				pathutil.NewPathModifier(),
				network.NewHTTPDownloader(logger),
				storeFactory,
			)
			summary, err := uploader.Upload(cCtx.Context, upload.UploadInput{
				Source:      source,
				Bucket:      a.Bucket,
				Key:         a.Key,
				Include:     a.Include,
				Rate:        a.Rate,
				ChunkSize:   a.ChunkSize,
				Digest:      a.Digest,
				Pacing:      a.Pacing,
				Retries:     a.Retries,
				PartTimeout: a.PartTimeout,
				DryRun:      a.DryRun,
				Verbose:     a.Verbose,
			})
			if err != nil {
				return err
			}

			if !a.DryRun {
				logger.Println()
				logger.Donef("%d file(s), %s uploaded in %s (%s/s)", summary.Files, units.BytesSize(float64(summary.Bytes)), summary.Duration, units.BytesSize(summary.Throughput))
			}
			return nil
		},
	}

	err := app.RunContext(ctx, arguments)
	return exitCode(logger, err)
}

func validateArgs(a args, source string, nArg int) error {
	switch {
	case source == "":
		return fmt.Errorf("SOURCE is required")
	case nArg > 1:
		return fmt.Errorf("exactly one SOURCE is expected, got %d", nArg)
	case a.Rate == "":
		return fmt.Errorf("--rate is required")
	case a.Bucket == "":
		return fmt.Errorf("--bucket is required")
	}
	return nil
}

func exitCode(logger log.Logger, err error) int {
	if err == nil {
		return exitOK
	}

	var usageErr usageError
	if errors.As(err, &usageErr) {
		logger.Errorf("Incorrect usage: %s", usageErr.err)
		return exitUsage
	}

	logger.Println()
	logger.Errorf("Upload failed: %s", err)

	if errors.Is(err, context.Canceled) {
		logger.Warnf("Upload interrupted")
	}
	return exitFailed
}
