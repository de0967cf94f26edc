package section

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"symphony/internal/lang"
)

// LoadFile читает одну секцию из YAML-файла.
func LoadFile(path string) (*Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Section
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s.Source = path
	normalize(&s, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	return &s, nil
}

// LoadAll обходит dir и собирает секции из *.yaml / *.yml.
// Порядок — по имени файла, дубли хэндлов запрещены.
func LoadAll(dir string) ([]*Section, error) {
	var out []*Section
	seen := map[string]string{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		s, err := LoadFile(path)
		if err != nil {
			return err
		}
		if s.Handle == "" {
			return fmt.Errorf("section in %s has no name — add `name: ...`", path)
		}
		if prev, ok := seen[s.Handle]; ok {
			return fmt.Errorf("duplicate section %q (files: %s, %s)", s.Handle, prev, path)
		}
		seen[s.Handle] = path
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// normalize заполняет хэндлы, локации и порядок полей.
func normalize(s *Section, fallbackName string) {
	if strings.TrimSpace(s.Name) == "" {
		s.Name = fallbackName
	}
	if s.Handle == "" {
		s.Handle = lang.CreateHandle(s.Name, 0, "-")
	}
	s.Filter = FilterMode(strings.ToLower(strings.TrimSpace(string(s.Filter))))
	s.SortOrder = strings.ToLower(strings.TrimSpace(s.SortOrder))

	for i := range s.Fields {
		f := &s.Fields[i]
		f.Type = strings.ToLower(strings.TrimSpace(f.Type))
		if f.ElementName == "" {
			f.ElementName = lang.CreateHandle(f.Label, 0, "-")
		}
		if f.Location == "" {
			f.Location = LocationMain
		}
		f.SortOrder = i
		if f.Settings == nil {
			f.Settings = map[string]any{}
		}
	}
}
