package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// HTTPStorage reads batch files from a web server. The files are listed in
// an index file, one key per line. Results are uploaded with PUT.
type HTTPStorage struct {
	client    *http.Client
	baseURL   string
	indexFile string
	username  string
	password  string
	filter    Filter
}

// HTTPConfig holds HTTP storage configuration.
type HTTPConfig struct {
	BaseURL    string
	IndexFile  string // default: index.txt
	Timeout    time.Duration
	Username   string
	Password   string
	Extensions []string
}

// NewHTTPStorage creates a new HTTP storage adapter.
func NewHTTPStorage(cfg HTTPConfig) *HTTPStorage {
	if cfg.IndexFile == "" {
		cfg.IndexFile = "index.txt"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	return &HTTPStorage{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		indexFile: cfg.IndexFile,
		username:  cfg.Username,
		password:  cfg.Password,
		filter:    NewFilter(cfg.Extensions...),
	}
}

// do sends a request for key and returns the response if its status is 2xx.
func (s *HTTPStorage) do(ctx context.Context, method, key string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/"+strings.TrimPrefix(key, "/"), body)
	if err != nil {
		return nil, err
	}
	if s.username != "" && s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType(key))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("HTTP %d for %s: %w", resp.StatusCode, key, os.ErrNotExist)
		}
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, key)
	}
	return resp, nil
}

// List returns the batch files named in the index file.
func (s *HTTPStorage) List(ctx context.Context) ([]output.StorageObject, error) {
	resp, err := s.do(ctx, http.MethodGet, s.indexFile, nil)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: s.indexFile, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var objects []output.StorageObject
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !s.filter.Match(line) {
			continue
		}
		objects = append(objects, output.StorageObject{Key: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: s.indexFile, Err: err}
	}

	return objects, nil
}

// Download downloads a file to the local filesystem.
func (s *HTTPStorage) Download(ctx context.Context, key string, dest string) error {
	rc, err := s.GetReader(ctx, key)
	if err != nil {
		return err
	}
	return saveTo(dest, rc)
}

// GetReader returns a reader for the given file.
func (s *HTTPStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Put uploads a file with an HTTP PUT request.
func (s *HTTPStorage) Put(ctx context.Context, key string, body io.Reader) error {
	resp, err := s.do(ctx, http.MethodPut, key, body)
	if err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	return resp.Body.Close()
}

// Exists checks if a file exists via HTTP HEAD request. Connection errors
// count as missing.
func (s *HTTPStorage) Exists(ctx context.Context, key string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, key, nil)
	if err != nil {
		return false, nil //nolint:nilerr // unreachable or missing files are reported as absent
	}
	_ = resp.Body.Close()
	return true, nil
}
