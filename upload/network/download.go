package network

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/melbahja/got"
)

// HTTPDownloader fetches remote upload sources over HTTP(S), retrying failed requests.
type HTTPDownloader struct {
	client *http.Client
	logger log.Logger
}

// NewHTTPDownloader ...
func NewHTTPDownloader(logger log.Logger) HTTPDownloader {
	retryableHTTPClient := retryhttp.NewClient(logger)
	retryableHTTPClient.CheckRetry = createCustomRetryFunction(logger)

	return HTTPDownloader{
		client: retryableHTTPClient.StandardClient(),
		logger: logger,
	}
}

// Download saves the resource at source into the destination file.
func (d HTTPDownloader) Download(ctx context.Context, destination, source string) error {
	d.logger.Debugf("Downloading %s to %s", source, destination)
	if err := downloadFile(ctx, d.client, source, destination); err != nil {
		return fmt.Errorf("download %s: %w", source, err)
	}
	return nil
}

func createCustomRetryFunction(logger log.Logger) func(context.Context, *http.Response, error) (bool, error) {
	return func(ctx context.Context, resp *http.Response, downloadErr error) (bool, error) {
		retry, err := retryablehttp.DefaultRetryPolicy(ctx, resp, downloadErr)
		logger.Debugf("CheckRetry: retry=%v ; err=%+v ; downloadErr=%+v", retry, err, downloadErr)
		return retry, err
	}
}

func downloadFile(ctx context.Context, client *http.Client, url string, dest string) error {
	downloader := got.New()
	downloader.Client = client

	return downloader.Do(got.NewDownload(ctx, url, dest))
}
