package images

import (
	"fmt"
	"io"
	"issue-map/internal/errs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is the path under which stored images are served.
const URLPrefix = "/uploads/"

var allowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"webp": {},
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Store persists uploaded issue photos on disk under a base directory.
type Store struct {
	baseDir  string
	maxBytes int64
}

func NewStore(baseDir string, maxBytes int64) (*Store, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{baseDir: baseDir, maxBytes: maxBytes}, nil
}

// Allowed reports whether the file name carries one of the accepted image extensions.
func Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	_, ok := allowedExtensions[ext]
	return ok
}

// SecureName strips directory components and anything outside [A-Za-z0-9_.-].
func SecureName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "image"
	}
	return name
}

// Save writes r under a unique name derived from filename and returns the stored name.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	if !Allowed(filename) {
		return "", errs.Invalid("Invalid image")
	}
	stored := uuid.NewString() + "_" + SecureName(filename)

	file, err := os.Create(s.resolve(stored))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(file, src)
	closeErr := file.Close()
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = errs.Invalid("image exceeds %d bytes", s.maxBytes)
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(s.resolve(stored))
		return "", err
	}
	return stored, nil
}

// Delete removes a stored image if present.
func (s *Store) Delete(stored string) error {
	if err := os.Remove(s.resolve(stored)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

func (s *Store) Dir() string {
	return s.baseDir
}

func URL(stored string) string {
	if stored == "" {
		return ""
	}
	return URLPrefix + stored
}

func (s *Store) resolve(stored string) string {
	return filepath.Join(s.baseDir, filepath.Base(stored))
}
