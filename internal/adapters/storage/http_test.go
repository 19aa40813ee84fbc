package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jobrunner/geotrans/internal/domain"
)

// fileServer serves files from memory and stores PUT bodies.
type fileServer struct {
	mu    sync.Mutex
	files map[string]string
	auth  bool
}

func (f *fileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.auth {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "geo" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.files[key] = string(data)
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet, http.MethodHead:
		content, ok := f.files[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, content)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestHTTPStorage(t *testing.T, auth bool) (*HTTPStorage, *fileServer) {
	t.Helper()
	fs := &fileServer{
		auth: auth,
		files: map[string]string{
			"index.txt":        "# batches\na.csv\n\nsub/b.txt\nmap.gpkg\na" + ResultSuffix + "\n",
			"a.csv":            "9,50\n",
			"sub/b.txt":        "10,51\n",
			"a" + ResultSuffix: "done",
		},
	}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	cfg := HTTPConfig{BaseURL: srv.URL + "/"}
	if auth {
		cfg.Username, cfg.Password = "geo", "secret"
	}
	return NewHTTPStorage(cfg), fs
}

func TestHTTPStorageList(t *testing.T) {
	s, _ := newTestHTTPStorage(t, true)

	objects, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var keys []string
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	if strings.Join(keys, " ") != "a.csv sub/b.txt" {
		t.Errorf("List() keys = %v, want [a.csv sub/b.txt]", keys)
	}
}

func TestHTTPStorageListUnauthorized(t *testing.T) {
	s, _ := newTestHTTPStorage(t, true)
	s.password = "wrong"

	_, err := s.List(context.Background())
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) || storageErr.Operation != "list" {
		t.Errorf("List() error = %v, want list StorageError", err)
	}
}

func TestHTTPStorageReadAndPut(t *testing.T) {
	s, fs := newTestHTTPStorage(t, false)
	ctx := context.Background()

	rc, err := s.GetReader(ctx, "sub/b.txt")
	if err != nil {
		t.Fatalf("GetReader() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "10,51\n" {
		t.Errorf("GetReader() content = %q", data)
	}

	_, err = s.GetReader(ctx, "missing.csv")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("GetReader(missing) error = %v, want os.ErrNotExist", err)
	}

	if err := s.Put(ctx, "sub/b.out.csv", strings.NewReader("index\n")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fs.files["sub/b.out.csv"] != "index\n" {
		t.Errorf("uploaded = %q, want %q", fs.files["sub/b.out.csv"], "index\n")
	}

	dest := filepath.Join(t.TempDir(), "nested", "a.csv")
	if err := s.Download(ctx, "a.csv", dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got, _ := os.ReadFile(dest); string(got) != "9,50\n" {
		t.Errorf("downloaded = %q", got)
	}
}

func TestHTTPStorageExists(t *testing.T) {
	s, _ := newTestHTTPStorage(t, false)

	tests := []struct {
		key  string
		want bool
	}{
		{"a.csv", true},
		{"/sub/b.txt", true},
		{"missing.csv", false},
	}

	for _, tt := range tests {
		got, err := s.Exists(context.Background(), tt.key)
		if err != nil {
			t.Errorf("Exists(%q) error = %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("Exists(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
