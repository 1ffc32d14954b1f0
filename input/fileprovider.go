package input

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/pathutil"
)

const (
	fileScheme = "file://"
)

// FileDownloader ...
type FileDownloader interface {
	Download(ctx context.Context, destination, source string) error
}

// FileProvider returns a local path for an upload source. The source can be a local path,
// a path using the `file://` scheme, or an http(s) URL which is downloaded to a temporary location first.
type FileProvider struct {
	fileDownloader FileDownloader
	pathProvider   pathutil.PathProvider
	pathModifier   pathutil.PathModifier
}

// NewFileProvider ...
func NewFileProvider(fileDownloader FileDownloader, pathProvider pathutil.PathProvider, pathModifier pathutil.PathModifier) FileProvider {
	return FileProvider{
		fileDownloader: fileDownloader,
		pathProvider:   pathProvider,
		pathModifier:   pathModifier,
	}
}

// LocalPath returns the local path of source and a func removing whatever was downloaded for it.
// The cleanup func is never nil.
func (p FileProvider) LocalPath(ctx context.Context, source string) (string, func() error, error) {
	switch {
	case strings.HasPrefix(source, fileScheme):
		return p.localPath(strings.TrimPrefix(source, fileScheme))
	case isRemote(source):
		return p.downloadFile(ctx, source)
	default:
		return p.localPath(source)
	}
}

func (p FileProvider) localPath(source string) (string, func() error, error) {
	pth, err := p.pathModifier.AbsPath(source)
	if err != nil {
		return "", nil, err
	}
	return pth, noCleanup, nil
}

func noCleanup() error { return nil }

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (p FileProvider) downloadFile(ctx context.Context, source string) (string, func() error, error) {
	if p.fileDownloader == nil {
		return "", nil, fmt.Errorf("no downloader configured for %s", source)
	}

	fileName, err := fileNameFromURL(source)
	if err != nil {
		return "", nil, err
	}

	tmpDir, err := p.pathProvider.CreateTempDir("s3up-source")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		return os.RemoveAll(tmpDir)
	}

	localPath := filepath.Join(tmpDir, fileName)
	if err := p.fileDownloader.Download(ctx, localPath, source); err != nil {
		if cleanupErr := cleanup(); cleanupErr != nil {
			return "", nil, fmt.Errorf("%w (removing %s: %s)", err, tmpDir, cleanupErr)
		}
		return "", nil, err
	}

	return localPath, cleanup, nil
}

// Returns the file's name from a URL that starts with
// `http://` or `https://`
func fileNameFromURL(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", err
	}

	name := filepath.Base(u.Path)
	if name == "." || name == "/" {
		return "", fmt.Errorf("no file name in url: %s", source)
	}
	return name, nil
}
