package objstore

import (
	"context"
	"os"
	"sync"
)

// FakeOp is one recorded store operation, in call order.
type FakeOp struct {
	Kind string // "exists" or "upload"
	Key  string
	Opts UploadOptions
}

// FakeStore records operations for tests. It is safe for concurrent
// use; the publisher uploads artifacts in parallel.
type FakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	ops       []FakeOp
	UploadErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{objects: map[string][]byte{}}
}

// Seed places an object in the store without recording an operation,
// for tests that need pre-published state.
func (s *FakeStore) Seed(key string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = content
}

func (s *FakeStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, FakeOp{Kind: "exists", Key: key})
	_, ok := s.objects[key]
	return ok, nil
}

func (s *FakeStore) Upload(ctx context.Context, key, path string, opts UploadOptions) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UploadErr != nil {
		return s.UploadErr
	}
	s.ops = append(s.ops, FakeOp{Kind: "upload", Key: key, Opts: opts})
	s.objects[key] = content
	return nil
}

// Ops returns the recorded operations in call order.
func (s *FakeStore) Ops() []FakeOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FakeOp(nil), s.ops...)
}

// Uploads returns only the recorded upload operations, in call order.
func (s *FakeStore) Uploads() []FakeOp {
	var uploads []FakeOp
	for _, op := range s.Ops() {
		if op.Kind == "upload" {
			uploads = append(uploads, op)
		}
	}
	return uploads
}

// Object returns the stored content for key.
func (s *FakeStore) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.objects[key]
	return content, ok
}
