package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hugh/go-crm/pkg/crypto"
)

// EncryptedStore seals blobs with age before handing them to the wrapped store.
type EncryptedStore struct {
	inner BlobStore
	enc   *crypto.Encryptor
}

func NewEncryptedStore(inner BlobStore, enc *crypto.Encryptor) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc}
}

func (s *EncryptedStore) Put(ctx context.Context, key string, r io.Reader) error {
	var sealed bytes.Buffer
	if err := s.enc.Seal(&sealed, r); err != nil {
		return fmt.Errorf("encrypting blob: %w", err)
	}
	return s.inner.Put(ctx, key, &sealed)
}

func (s *EncryptedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := s.enc.Open(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("decrypting blob: %w", err)
	}
	return readCloser{Reader: plain, Closer: rc}, nil
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Close closes the wrapped store when it holds a client.
func (s *EncryptedStore) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
