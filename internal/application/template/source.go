package template

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
)

//go:embed messages/*.yaml
var builtin embed.FS

// ErrBundleNotFound is returned by a Source that has no bundle for a locale.
var ErrBundleNotFound = errors.New("template bundle not found")

// Source yields the raw YAML bundle for one locale.
type Source interface {
	Bundle(ctx context.Context, locale string) ([]byte, error)
}

// EmbeddedSource serves the bundles compiled into the binary, or any other fs.FS laid out as <dir>/<locale>.yaml.
type EmbeddedSource struct {
	fsys fs.FS
	dir  string
}

func NewEmbeddedSource() *EmbeddedSource {
	return &EmbeddedSource{fsys: builtin, dir: "messages"}
}

// NewFSSource reads bundles from dir inside fsys.
func NewFSSource(fsys fs.FS, dir string) *EmbeddedSource {
	return &EmbeddedSource{fsys: fsys, dir: dir}
}

func (s *EmbeddedSource) Bundle(_ context.Context, locale string) ([]byte, error) {
	b, err := fs.ReadFile(s.fsys, path.Join(s.dir, locale+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", locale, ErrBundleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", locale, err)
	}
	return b, nil
}

// ObjectReader reads a whole object from a bucket.
type ObjectReader interface {
	ReadObject(ctx context.Context, key string) ([]byte, error)
}

// S3Source reads <prefix>/<locale>.yaml objects, so texts can change without a deploy.
type S3Source struct {
	objects ObjectReader
	prefix  string
}

func NewS3Source(objects ObjectReader, prefix string) *S3Source {
	return &S3Source{objects: objects, prefix: prefix}
}

func (s *S3Source) Bundle(ctx context.Context, locale string) ([]byte, error) {
	key := path.Join(s.prefix, locale+".yaml")
	b, err := s.objects.ReadObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("bundle %s (%s): %w", locale, key, err)
	}
	return b, nil
}
