package upload

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/bitrise-io/go-s3up/transfer"
)

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	return repo.envVars[key]
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	delete(repo.envVars, key)
	return nil
}

func (repo fakeEnvRepo) List() []string {
	envs := []string{}
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}

// fakeStore keeps committed objects in memory.
type fakeStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	opened       []string
	aborted      []string
	// corruptKey makes the store confirm a wrong digest for every part of that key.
	corruptKey string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:      map[string][]byte{},
		contentTypes: map[string]string{},
	}
}

func (s *fakeStore) factory() StoreFactory {
	return func(context.Context) (transfer.Store, error) {
		return s, nil
	}
}

func (s *fakeStore) Open(_ context.Context, target transfer.Target) (transfer.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, target.Key)
	return &fakeSession{store: s, target: target, parts: map[int][]byte{}}, nil
}

type fakeSession struct {
	store  *fakeStore
	target transfer.Target
	parts  map[int][]byte
	state  transfer.State
}

func (s *fakeSession) SubmitPart(_ context.Context, seq int, data []byte) (transfer.PartResult, error) {
	s.parts[seq] = append([]byte(nil), data...)

	digest := s.target.Digest.Sum(data)
	if s.target.Key == s.store.corruptKey {
		digest = "0000"
	}
	return transfer.PartResult{Seq: seq, Digest: digest, Length: int64(len(data))}, nil
}

func (s *fakeSession) Commit(context.Context) error {
	if len(s.parts) != s.target.Parts {
		return &transfer.PrematureCommitError{Confirmed: len(s.parts), Planned: s.target.Parts}
	}

	var object []byte
	for seq := 1; seq <= s.target.Parts; seq++ {
		object = append(object, s.parts[seq]...)
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.objects[s.target.Bucket+"/"+s.target.Key] = object
	s.store.contentTypes[s.target.Key] = s.target.ContentType
	s.state = transfer.StateCompleted
	return nil
}

func (s *fakeSession) Abort(context.Context) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.aborted = append(s.store.aborted, s.target.Key)
	s.state = transfer.StateAborted
	return nil
}

func (s *fakeSession) UploadID() string {
	return "upload-" + s.target.Key
}

func (s *fakeSession) State() transfer.State {
	return s.state
}

// fakeDownloader copies a fixed content to the destination.
type fakeDownloader struct {
	content      []byte
	sources      []string
	destinations []string
}

func (d *fakeDownloader) Download(_ context.Context, destination, source string) error {
	d.sources = append(d.sources, source)
	d.destinations = append(d.destinations, destination)
	return os.WriteFile(destination, d.content, 0o644)
}
