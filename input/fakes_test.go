package input

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockFileDownloader struct {
	mock.Mock
}

func (m *mockFileDownloader) Download(ctx context.Context, destination, source string) error {
	args := m.Called(ctx, destination, source)
	return args.Error(0)
}

func (m *mockFileDownloader) givenDownloadFails(reason error) *mockFileDownloader {
	m.On("Download", mock.Anything, mock.Anything, mock.Anything).Return(reason)
	return m
}

func (m *mockFileDownloader) givenDownloadSucceeds() *mockFileDownloader {
	m.On("Download", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return m
}

type fakePathProvider struct {
	dir string
	err error
}

func (p fakePathProvider) CreateTempDir(string) (string, error) {
	return p.dir, p.err
}
