// Package files reads and writes the content of files referenced by the
// file registry table.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrInvalidPath is returned for paths that escape the store root.
var ErrInvalidPath = errors.New("invalid file path")

// Store reads and writes file content by registry path.
type Store interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
}

// DefaultEditableExtensions are the text formats whose content is captured
// in file registry versions.
var DefaultEditableExtensions = []string{
	"htm", "html", "css", "scss", "less", "js", "json", "svg", "svgz",
	"txt", "xml", "xsl", "xlf", "csv", "md", "twig", "sql",
}

// Extension returns the lowercased extension of p without the leading dot.
func Extension(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// IsEditable reports whether the extension of p is in the editable list.
func IsEditable(p string, editable []string) bool {
	ext := Extension(p)
	return ext != "" && slices.Contains(editable, ext)
}

// IsCompressed reports whether p is stored gzip-compressed on disk.
func IsCompressed(p string) bool {
	return Extension(p) == "svgz"
}

// Decompress gunzips data.
func Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

// Compress gzips data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadContent reads a file and transparently decompresses .svgz content.
func ReadContent(ctx context.Context, s Store, p string) (string, error) {
	data, err := s.Read(ctx, p)
	if err != nil {
		return "", err //nolint:wrapcheck // store errors carry the path
	}
	if IsCompressed(p) {
		if data, err = Decompress(data); err != nil {
			return "", fmt.Errorf("reading %s: %w", p, err)
		}
	}
	return string(data), nil
}

// WriteContent writes a file and compresses .svgz content.
func WriteContent(ctx context.Context, s Store, p, content string) error {
	data := []byte(content)
	if IsCompressed(p) {
		var err error
		if data, err = Compress(data); err != nil {
			return fmt.Errorf("writing %s: %w", p, err)
		}
	}
	return s.Write(ctx, p, data) //nolint:wrapcheck // store errors carry the path
}
