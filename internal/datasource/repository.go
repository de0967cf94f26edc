package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound  = errors.New("datasource not found")
	ErrExists    = errors.New("datasource already exists")
	ErrBadHandle = errors.New("invalid datasource handle")
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Repository хранит датасорсы файлами data.<handle>.go в одном каталоге.
type Repository struct {
	Dir string

	mu sync.Mutex
}

func NewRepository(dir string) *Repository {
	return &Repository{Dir: dir}
}

func (r *Repository) path(handle string) (string, error) {
	if !handlePattern.MatchString(handle) {
		return "", fmt.Errorf("%w: %q", ErrBadHandle, handle)
	}
	return filepath.Join(r.Dir, "data."+handle+".go"), nil
}

// Exists — есть ли файл датасорса.
func (r *Repository) Exists(handle string) bool {
	p, err := r.path(handle)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Save пишет датасорс. previous — прежний хэндл при редактировании ("" для нового);
// при переименовании старый файл удаляется после успешной записи нового.
func (r *Repository) Save(def *Definition, previous string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, err := r.path(def.Handle)
	if err != nil {
		return err
	}
	renamed := previous != "" && previous != def.Handle
	if (previous == "" || renamed) && r.Exists(def.Handle) {
		return fmt.Errorf("%w: %s", ErrExists, def.Handle)
	}

	var stale string
	if renamed {
		if stale, err = r.path(previous); err != nil {
			return err
		}
	}

	src, err := Generate(def)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.Dir, ".data-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if stale != "" {
		if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(stale), err)
		}
	}
	return nil
}

// Load читает датасорс по хэндлу.
func (r *Repository) Load(handle string) (*Definition, error) {
	p, err := r.path(handle)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, handle)
	}
	if err != nil {
		return nil, err
	}
	def, err := Parse(filepath.Base(p), src)
	if err != nil {
		return nil, err
	}
	if def.Handle == "" {
		def.Handle = handle
	}
	return def, nil
}

// List — все датасорсы каталога по хэндлу.
func (r *Repository) List() ([]*Definition, error) {
	matches, err := filepath.Glob(filepath.Join(r.Dir, "data.*.go"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	out := make([]*Definition, 0, len(matches))
	for _, m := range matches {
		handle := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "data."), ".go")
		def, err := r.Load(handle)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

func (r *Repository) Delete(handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.path(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, handle)
		}
		return err
	}
	return nil
}
