// Package memstore provides in-memory stand-ins for the object store, the
// metadata store and the job queue. Exported *Err fields inject failures.
package memstore

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/amrrdev/docflow/internal/storage"
)

type object struct {
	data        []byte
	contentType string
}

type ObjectStore struct {
	mu      sync.Mutex
	objects map[string]object

	PutErr     error
	GetErr     error
	RemoveErr  error
	PresignErr error
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]object)}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (s *ObjectStore) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	putErr := s.PutErr
	s.mu.Unlock()
	if putErr != nil {
		return putErr
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read object body: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch for %s/%s: got %d, want %d", bucket, key, len(data), size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey(bucket, key)] = object{data: data, contentType: contentType}
	return nil
}

func (s *ObjectStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}
	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrObjectNotFound, bucket, key)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *ObjectStore) RemoveObject(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RemoveErr != nil {
		return s.RemoveErr
	}
	delete(s.objects, objectKey(bucket, key))
	return nil
}

func (s *ObjectStore) PresignedGetURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.PresignErr != nil {
		return "", s.PresignErr
	}
	return fmt.Sprintf("http://memstore.local/%s/%s?expires=%d", bucket, key, int(expiry.Seconds())), nil
}

// Has reports whether an object exists.
func (s *ObjectStore) Has(bucket, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[objectKey(bucket, key)]
	return ok
}

// Content returns a stored object's body, or nil.
func (s *ObjectStore) Content(bucket, key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[objectKey(bucket, key)].data
}

// Delete removes an object behind the pipeline's back.
func (s *ObjectStore) Delete(bucket, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey(bucket, key))
}

func (s *ObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *ObjectStore) SetPutErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PutErr = err
}

func (s *ObjectStore) SetGetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetErr = err
}
