// Package objectstore keeps batch artifacts in a NATS JetStream object store
// bucket so workers and the gateway can exchange audio without a shared disk.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Store is a JetStream-backed object bucket.
type Store struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket, or binds to it when it already exists.
func New(js nats.JetStreamContext, bucket string) (*Store, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("voiceapi artifacts (%s)", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("create object store %q: %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("bind object store %q: %w", bucket, err)
		}
	}

	return &Store{bucket: bucket, store: store}, nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Upload writes data under key, replacing any previous object.
func (s *Store) Upload(_ context.Context, key string, data []byte) error {
	if _, err := s.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("put %q to %q: %w", key, s.bucket, err)
	}
	return nil
}

// Download reads the object stored under key.
func (s *Store) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := s.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("get %q from %q: %w", key, s.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read %q: %w", key, readErr)
	}
	if closeErr != nil {
		return data, fmt.Errorf("close %q: %w", key, closeErr)
	}
	return data, nil
}
