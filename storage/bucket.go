// Package storage keeps uploaded files in named buckets and serves them back
// over HTTP.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var ErrInvalidName = errors.New("invalid object name")

// Store is a set of buckets rooted in one filesystem.
type Store struct {
	fs      afero.Fs
	baseURL string
}

// New roots the store at fs. Public URLs are built as
// <baseURL>/storage/<bucket>/<name>.
func New(fs afero.Fs, baseURL string) *Store {
	return &Store{fs: fs, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewDisk stores buckets under dir on the local disk.
func NewDisk(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL), nil
}

func (s *Store) Bucket(name string) *Bucket {
	return &Bucket{store: s, name: name, fs: afero.NewBasePathFs(s.fs, "/"+name)}
}

// Handler serves every bucket read-only. Mount it under /storage/.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix("/storage", http.FileServer(afero.NewHttpFs(s.fs).Dir("/")))
}

type Bucket struct {
	store *Store
	name  string
	fs    afero.Fs
}

func (b *Bucket) Name() string { return b.name }

// Upload writes r to name, replacing any existing object.
func (b *Bucket) Upload(ctx context.Context, name string, r io.Reader) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.fs.MkdirAll("/", 0o755); err != nil {
		return fmt.Errorf("create bucket %s: %w", b.name, err)
	}
	f, err := b.fs.OpenFile("/"+name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s/%s: %w", b.name, name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s/%s: %w", b.name, name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s/%s: %w", b.name, name, err)
	}
	return nil
}

func (b *Bucket) Remove(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := b.fs.Remove("/" + name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s/%s: %w", b.name, name, err)
	}
	return nil
}

func (b *Bucket) Exists(name string) (bool, error) {
	return afero.Exists(b.fs, "/"+name)
}

func (b *Bucket) PublicURL(name string) string {
	return b.store.baseURL + "/storage/" + url.PathEscape(b.name) + "/" + url.PathEscape(name)
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || name != path.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
