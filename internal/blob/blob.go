// Package blob хранит загруженные файлы.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBadKey — ключ выходит за корень хранилища.
var ErrBadKey = errors.New("invalid blob key")

// Object — результат записи файла.
type Object struct {
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

type Store interface {
	Put(dir, name string, r io.Reader) (Object, error)
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
	Path(key string) (string, error)
}

// Local кладёт файлы в Root/<dir>/<yyyy>/<mm>/<uuid>-<имя>.
type Local struct {
	Root string
	now  func() time.Time
}

func NewLocal(root string) *Local {
	return &Local{Root: root, now: time.Now}
}

// Put сохраняет поток и считает sha256 по дороге.
func (s *Local) Put(dir, name string, r io.Reader) (Object, error) {
	now := s.now().UTC()
	key := path.Join(
		strings.Trim(path.Clean("/"+filepath.ToSlash(dir)), "/"),
		fmt.Sprintf("%04d/%02d", now.Year(), int(now.Month())),
		uuid.NewString()+"-"+safeName(name),
	)
	full, err := s.Path(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, err
	}
	f, err := os.Create(full)
	if err != nil {
		return Object{}, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		_ = os.Remove(full)
		return Object{}, err
	}
	return Object{Key: key, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

func (s *Local) Open(key string) (io.ReadCloser, error) {
	full, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (s *Local) Delete(key string) error {
	full, err := s.Path(key)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

// Path — локальный путь файла; ключи с .. отвергаются.
func (s *Local) Path(key string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(key))
	if clean == "/" {
		return "", ErrBadKey
	}
	for _, seg := range strings.Split(filepath.ToSlash(key), "/") {
		if seg == ".." {
			return "", ErrBadKey
		}
	}
	return filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// safeName оставляет от имени файла только безопасные символы.
func safeName(name string) string {
	name = filepath.Base(filepath.ToSlash(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
