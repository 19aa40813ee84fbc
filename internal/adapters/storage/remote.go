package storage

import (
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// keyspace maps batch keys to object names below an optional prefix.
type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	return keyspace{prefix: strings.Trim(prefix, "/")}
}

// listPrefix is the prefix passed to list calls, "" for the whole bucket.
func (k keyspace) listPrefix() string {
	if k.prefix == "" {
		return ""
	}
	return k.prefix + "/"
}

// object returns the object name of key.
func (k keyspace) object(key string) string {
	key = strings.TrimPrefix(key, "/")
	if k.prefix == "" {
		return key
	}
	return k.prefix + "/" + key
}

// key returns the batch key of an object name, false if the name lies
// outside the prefix.
func (k keyspace) key(name string) (string, bool) {
	if k.prefix == "" {
		return strings.TrimPrefix(name, "/"), true
	}
	rel, ok := strings.CutPrefix(name, k.listPrefix())
	return rel, ok && rel != ""
}

// contentType guesses the media type of a result or batch file.
func contentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	switch ext {
	case ".csv":
		return "text/csv"
	case ".txt", ".xyz":
		return "text/plain"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// saveTo copies rc into the file dest, creating parent directories.
func saveTo(dest string, rc io.ReadCloser) error {
	defer func() { _ = rc.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	f, err := os.Create(dest) //#nosec G304 -- dest is a controlled local path
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
