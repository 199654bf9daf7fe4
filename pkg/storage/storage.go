package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hugh/go-crm/pkg/config"
	"github.com/hugh/go-crm/pkg/crypto"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// BlobStore keeps uploaded files until a worker has processed them.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the configured backend. When enc is non-nil, blobs are sealed
// with it before they leave the process.
func New(ctx context.Context, cfg config.StorageConfig, enc *crypto.Encryptor) (BlobStore, error) {
	var (
		store BlobStore
		err   error
	)

	switch cfg.Backend {
	case "", "local":
		store, err = NewLocalStore(cfg.Dir)
	case "s3":
		store, err = NewS3Store(ctx, cfg)
	case "gcs":
		store, err = NewGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s store: %w", cfg.Backend, err)
	}

	if enc != nil {
		store = NewEncryptedStore(store, enc)
	}
	return store, nil
}
