package storage

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/reelforge/pkg/file"
)

// PublicPrefix is the URL path the HTTP server serves the output dir on.
const PublicPrefix = "/output/"

// Persister moves finished artifacts to durable storage and addresses them.
type Persister interface {
	Persist(localPath string) (string, error)
	PublicURL(durablePath string) string
}

// Local persists into a directory served over HTTP.
type Local struct {
	OutputDir string
	BaseURL   string
}

func NewLocal(outputDir, baseURL string) (*Local, error) {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	if err := file.EnsureDir(abs); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Local{OutputDir: abs, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Persist copies localPath into the output dir unless it is already there.
func (l *Local) Persist(localPath string) (string, error) {
	src, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	if l.contains(src) {
		if _, err := os.Stat(src); err != nil {
			return "", fmt.Errorf("persist %s: %w", localPath, err)
		}
		return src, nil
	}

	dst := filepath.Join(l.OutputDir, filepath.Base(src))
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("persist %s: %w", localPath, err)
	}
	return dst, nil
}

// PublicURL maps a durable path under the output dir to an http URL.
// Anything else, or a non-http base URL, yields a file:// URL.
func (l *Local) PublicURL(durablePath string) string {
	abs, err := filepath.Abs(durablePath)
	if err != nil {
		abs = durablePath
	}
	base := strings.ToLower(l.BaseURL)
	if l.contains(abs) && (strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")) {
		rel, err := filepath.Rel(l.OutputDir, abs)
		if err == nil {
			segments := strings.Split(filepath.ToSlash(rel), "/")
			for i, s := range segments {
				segments[i] = url.PathEscape(s)
			}
			return l.BaseURL + path.Join(PublicPrefix, strings.Join(segments, "/"))
		}
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

func (l *Local) contains(abs string) bool {
	rel, err := filepath.Rel(l.OutputDir, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// JobFileName builds a collision-resistant artifact name:
// <prefix>_<unixms>_<jobID>[_<index>].<ext>. index <= 0 is omitted.
func JobFileName(prefix, jobID string, index int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	name := fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), jobID)
	if index > 0 {
		name = fmt.Sprintf("%s_%d", name, index)
	}
	return name + "." + ext
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
