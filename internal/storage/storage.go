// Package storage abstracts where processed images are written: a local
// directory, an S3 bucket or an in-memory map.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ErrUnsupportedScheme is returned by Open for unknown URI schemes.
var ErrUnsupportedScheme = errors.New("unsupported storage scheme")

// ErrInvalidKey is returned for keys that would escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// Store persists encoded files under slash-separated keys.
type Store interface {
	// Put writes r under key and returns the location of the stored object.
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	// Location returns where key is (or would be) stored.
	Location(key string) string
}

// S3Options configures S3 stores created by Open.
type S3Options struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// Open returns the store described by uri:
//
//	""  or a plain path or file:///path  local directory
//	s3://bucket/prefix                   S3 bucket
//	mem://                               in-memory store
func Open(uri string, s3opts S3Options) (Store, error) {
	if uri == "" {
		return NewLocalStore(".")
	}
	if !strings.Contains(uri, "://") {
		return NewLocalStore(uri)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid storage uri %q: %w", uri, err)
	}
	switch u.Scheme {
	case "file":
		return NewLocalStore(filepath.FromSlash(u.Host + u.Path))
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("s3 uri %q has no bucket", uri)
		}
		return NewS3Store(u.Host, strings.TrimPrefix(u.Path, "/"), s3opts)
	case "mem":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// cleanKey validates key and returns it in slash form.
func cleanKey(key string) (string, error) {
	k := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || k == "." || strings.HasPrefix(k, "/") || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return k, nil
}
