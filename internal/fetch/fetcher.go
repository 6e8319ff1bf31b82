// ABOUTME: Asset fetcher for pattern recordings
// ABOUTME: Reads from a local directory or an HTTP base URL with a disk cache
package fetch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/etabla-go/internal/version"
)

// FetchError reports a failure to obtain asset bytes
type FetchError struct {
	Path   string
	Status int // HTTP status, 0 when the failure was not an HTTP response
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.Path, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher resolves catalog asset paths against a base location
type Fetcher struct {
	base     string
	remote   *url.URL
	cacheDir string
	client   *http.Client
}

// New creates a fetcher. base is a directory or an http(s) URL; cacheDir
// may be empty to disable caching of remote assets.
func New(base, cacheDir string) (*Fetcher, error) {
	f := &Fetcher{
		base:     base,
		cacheDir: cacheDir,
		client:   &http.Client{},
	}

	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid asset base: %w", err)
		}
		f.remote = u
	}

	if f.remote != nil && cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	return f, nil
}

// Fetch returns the bytes of the asset at the catalog path p
func (f *Fetcher) Fetch(ctx context.Context, p string) ([]byte, error) {
	if f.remote == nil {
		return f.readLocal(p)
	}
	return f.download(ctx, p)
}

// Source describes where the asset would be read from
func (f *Fetcher) Source(p string) string {
	if f.remote == nil {
		return filepath.Join(f.base, filepath.FromSlash(p))
	}
	u := *f.remote
	u.Path = path.Join(u.Path, p)
	return u.String()
}

func (f *Fetcher) readLocal(p string) ([]byte, error) {
	clean := path.Clean("/" + p)
	data, err := os.ReadFile(filepath.Join(f.base, filepath.FromSlash(clean)))
	if err != nil {
		return nil, &FetchError{Path: p, Err: err}
	}
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, p string) ([]byte, error) {
	src := f.Source(p)

	// Create a cache key from URL hash
	var cachePath string
	if f.cacheDir != "" {
		hash := sha256.Sum256([]byte(src))
		cachePath = filepath.Join(f.cacheDir, fmt.Sprintf("%x%s", hash[:8], path.Ext(p)))
		if data, err := os.ReadFile(cachePath); err == nil {
			log.Printf("Asset cache hit: %s", p)
			return data, nil
		}
	}

	log.Printf("Downloading asset: %s", src)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, &FetchError{Path: p, Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Path: p, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Path: p, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Path: p, Err: err}
	}

	if cachePath != "" {
		if err := writeAtomic(cachePath, data); err != nil {
			log.Printf("Failed to cache asset %s: %v", p, err)
		}
	}

	return data, nil
}

// writeAtomic writes through a temp file so readers never see a partial asset
func writeAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partial-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
