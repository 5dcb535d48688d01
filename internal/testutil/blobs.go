package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// RecordingBlobStore keeps uploads in memory and counts them. Set Fail to
// make every upload return that error, or FailNth to fail just one.
type RecordingBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	uploads int
	fail    error
	failNth int
	nthErr  error
	gate    chan struct{}
}

func NewRecordingBlobStore() *RecordingBlobStore {
	return &RecordingBlobStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Fail makes subsequent uploads return err. A nil err clears it.
func (s *RecordingBlobStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// FailNth makes the nth upload attempt from now return err. Earlier and
// later attempts succeed.
func (s *RecordingBlobStore) FailNth(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNth, s.nthErr = s.uploads+n, err
}

// Hold blocks uploads until the returned release func is called.
func (s *RecordingBlobStore) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Upload stores the object unless a failure is configured.
func (s *RecordingBlobStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.fail != nil {
		return s.fail
	}
	if s.uploads == s.failNth {
		return s.nthErr
	}
	if int64(len(data)) != size {
		return fmt.Errorf("upload %s: read %d bytes, want %d", path, len(data), size)
	}
	s.objects[path] = data
	s.types[path] = contentType
	return nil
}

// URL returns a fake https URL for a stored object.
func (s *RecordingBlobStore) URL(_ context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return "", fmt.Errorf("object %s not found", path)
	}
	return "https://blobs.test/" + path, nil
}

// Uploads returns the number of upload attempts.
func (s *RecordingBlobStore) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// Paths returns the stored object paths.
func (s *RecordingBlobStore) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for p := range s.objects {
		out = append(out, p)
	}
	return out
}

// ContentType returns the content type an object was stored with.
func (s *RecordingBlobStore) ContentType(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[path]
}
