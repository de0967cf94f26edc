package field

import (
	"fmt"
	"sort"
	"sync"

	"symphony/internal/section"
)

// Constructor создаёт поле по описанию из секции.
type Constructor func(def section.FieldDef) Field

// Manager — реестр типов полей и кэш настроенных экземпляров по id поля.
type Manager struct {
	mu        sync.RWMutex
	ctors     map[string]Constructor
	instances map[int64]Field
}

func NewManager() *Manager {
	return &Manager{
		ctors:     make(map[string]Constructor),
		instances: make(map[int64]Field),
	}
}

// DefaultManager — менеджер со встроенными типами.
func DefaultManager() *Manager {
	m := NewManager()
	m.Register(TypeInput, NewInput)
	m.Register(TypeCheckbox, NewCheckbox)
	m.Register(TypeTagList, NewTagList)
	m.Register(TypeUpload, NewUpload)
	return m
}

// Register добавляет (или заменяет) тип поля.
func (m *Manager) Register(typ string, ctor Constructor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctors[typ] = ctor
}

// Types — зарегистрированные типы по алфавиту.
func (m *Manager) Types() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.ctors))
	for t := range m.ctors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Create строит поле, дописывая настройки по умолчанию. Поля с id кэшируются.
func (m *Manager) Create(def section.FieldDef) (Field, error) {
	m.mu.RLock()
	ctor, ok := m.ctors[def.Type]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown field type %q", def.Type)
	}

	settings := make(map[string]any, len(def.Settings))
	for k, v := range def.Settings {
		settings[k] = v
	}
	def.Settings = settings

	f := ctor(def)
	if d, ok := f.(Defaulter); ok {
		d.FindDefaults(f.Definition().Settings)
		// валидатор и прочее читаются из настроек при создании
		f = ctor(*f.Definition())
	}

	if def.ID != 0 {
		m.mu.Lock()
		m.instances[def.ID] = f
		m.mu.Unlock()
	}
	return f, nil
}

// Fetch возвращает закэшированное поле.
func (m *Manager) Fetch(id int64) (Field, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.instances[id]
	return f, ok
}

// Forget выкидывает поле из кэша (после удаления или перезагрузки секций).
func (m *Manager) Forget(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, id)
}

// ForSection создаёт все поля секции в порядке объявления.
func (m *Manager) ForSection(s *section.Section) ([]Field, error) {
	out := make([]Field, 0, len(s.Fields))
	for _, def := range s.Fields {
		f, err := m.Create(def)
		if err != nil {
			return nil, fmt.Errorf("section %s field %s: %w", s.Handle, def.ElementName, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// ByElement — поля секции по element name.
func (m *Manager) ByElement(s *section.Section) (map[string]Field, error) {
	list, err := m.ForSection(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Field, len(list))
	for _, f := range list {
		out[f.Definition().ElementName] = f
	}
	return out, nil
}
