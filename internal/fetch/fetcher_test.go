// ABOUTME: Tests for the asset fetcher
// ABOUTME: Tests local reads, HTTP download, caching, and error handling
package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/Resonate-Protocol/etabla-go/internal/version"
)

func TestFetchLocal(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sounds", "taals"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sounds", "taals", "teentaal_80_G.mp3"), []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := New(dir, "")
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	data, err := f.Fetch(context.Background(), "sounds/taals/teentaal_80_G.mp3")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("expected 'audio', got %q", data)
	}
}

func TestFetchLocalMissing(t *testing.T) {
	f, _ := New(t.TempDir(), "")

	_, err := f.Fetch(context.Background(), "missing.mp3")

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped not-exist error, got %v", err)
	}
}

func TestFetchLocalStaysInBase(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "assets")
	os.MkdirAll(base, 0755)
	os.WriteFile(filepath.Join(root, "secret.mp3"), []byte("x"), 0644)

	f, _ := New(base, "")
	if _, err := f.Fetch(context.Background(), "../secret.mp3"); err == nil {
		t.Error("expected paths outside the base to be unreachable")
	}
}

func TestFetchRemoteAndCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/assets/sounds/taals/roopak_80_G.mp3" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("remote audio"))
	}))
	defer server.Close()

	f, err := New(server.URL+"/assets", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	for i := 0; i < 2; i++ {
		data, err := f.Fetch(context.Background(), "sounds/taals/roopak_80_G.mp3")
		if err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
		if string(data) != "remote audio" {
			t.Errorf("fetch %d: got %q", i, data)
		}
	}

	if hits.Load() != 1 {
		t.Errorf("expected one HTTP request with caching, got %d", hits.Load())
	}
}

func TestFetchRemoteWithoutCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("remote audio"))
	}))
	defer server.Close()

	f, _ := New(server.URL, "")
	f.Fetch(context.Background(), "a.mp3")
	f.Fetch(context.Background(), "a.mp3")

	if hits.Load() != 2 {
		t.Errorf("expected two HTTP requests, got %d", hits.Load())
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f, _ := New(server.URL, t.TempDir())

	_, err := f.Fetch(context.Background(), "missing.mp3")

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", fe.Status)
	}
	if fe.Error() != "fetch missing.mp3: HTTP 404" {
		t.Errorf("unexpected message: %s", fe.Error())
	}
}

func TestFetchCancelled(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	f, _ := New(server.URL, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "slow.mp3")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSource(t *testing.T) {
	local, _ := New("/srv/etabla", "")
	if got := local.Source("sounds/a.mp3"); got != filepath.Join("/srv/etabla", "sounds", "a.mp3") {
		t.Errorf("unexpected local source %s", got)
	}

	remote, _ := New("https://example.com/base", "")
	if got := remote.Source("sounds/a.mp3"); got != "https://example.com/base/sounds/a.mp3" {
		t.Errorf("unexpected remote source %s", got)
	}
}

func TestNewCreatesCacheDir(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	if _, err := New("https://example.com", cacheDir); err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Fatal("cache directory was not created")
	}
}

func TestFetchSendsUserAgent(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.UserAgent())
		w.Write([]byte("remote audio"))
	}))
	defer server.Close()

	f, err := New(server.URL, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := f.Fetch(context.Background(), "a.mp3"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if ua, _ := got.Load().(string); ua != version.UserAgent() {
		t.Errorf("expected User-Agent %q, got %q", version.UserAgent(), ua)
	}
}
