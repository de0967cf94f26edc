package section

import (
	"sort"
	"strings"
	"sync"
)

// Catalog — загруженные секции с поиском по хэндлу и id.
// Reload подменяет содержимое целиком под write-lock.
type Catalog struct {
	mu       sync.RWMutex
	byHandle map[string]*Section
	byID     map[int64]*Section
}

func NewCatalog(sections []*Section) *Catalog {
	c := &Catalog{}
	c.Replace(sections)
	return c
}

// Replace атомарно меняет набор секций.
func (c *Catalog) Replace(sections []*Section) {
	byHandle := make(map[string]*Section, len(sections))
	byID := make(map[int64]*Section, len(sections))
	for _, s := range sections {
		byHandle[s.Handle] = s
		if s.ID != 0 {
			byID[s.ID] = s
		}
	}
	c.mu.Lock()
	c.byHandle = byHandle
	c.byID = byID
	c.mu.Unlock()
}

// Get ищет секцию по хэндлу: сначала точное совпадение, потом регистронезависимое.
func (c *Catalog) Get(handle string) (*Section, bool) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if s, ok := c.byHandle[handle]; ok {
		return s, true
	}
	for h, s := range c.byHandle {
		if strings.EqualFold(h, handle) {
			return s, true
		}
	}
	return nil, false
}

func (c *Catalog) ByID(id int64) (*Section, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[id]
	return s, ok
}

// All возвращает секции, отсортированные по хэндлу.
func (c *Catalog) All() []*Section {
	c.mu.RLock()
	out := make([]*Section, 0, len(c.byHandle))
	for _, s := range c.byHandle {
		out = append(out, s)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// FieldByID ищет поле по id во всех секциях.
func (c *Catalog) FieldByID(id int64) (*FieldDef, *Section, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.byHandle {
		if f, ok := s.FieldByID(id); ok {
			return f, s, true
		}
	}
	return nil, nil, false
}
