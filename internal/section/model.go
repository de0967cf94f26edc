package section

import (
	"fmt"
	"strings"
	"time"
)

// Location — где поле рисуется на форме публикации.
type Location string

const (
	LocationMain    Location = "main"
	LocationSidebar Location = "sidebar"
)

// FilterMode — какой XSS-фильтр секция применяет к входящим данным.
type FilterMode string

const (
	FilterNone      FilterMode = ""
	FilterXSSFail   FilterMode = "xss-fail"
	FilterXSSRemove FilterMode = "xss-remove"
)

// Section описывает тип контента: набор полей и настройки публикации.
type Section struct {
	ID              int64      `yaml:"-" json:"id"`
	Handle          string     `yaml:"handle" json:"handle"`
	Name            string     `yaml:"name" json:"name"`
	NavigationGroup string     `yaml:"navigation_group" json:"navigation_group,omitempty"`
	Filter          FilterMode `yaml:"filter" json:"filter,omitempty"`
	SortField       string     `yaml:"sort" json:"sort,omitempty"`
	SortOrder       string     `yaml:"order" json:"order,omitempty"`
	Fields          []FieldDef `yaml:"fields" json:"fields"`

	// файл, из которого секция загружена (для сообщений об ошибках)
	Source string `yaml:"-" json:"-"`
}

// FieldDef — описание экземпляра поля внутри секции.
type FieldDef struct {
	ID          int64          `yaml:"-" json:"id"`
	SectionID   int64          `yaml:"-" json:"section_id"`
	Label       string         `yaml:"label" json:"label"`
	ElementName string         `yaml:"element_name" json:"element_name"`
	Type        string         `yaml:"type" json:"type"`
	Required    bool           `yaml:"required" json:"required"`
	Location    Location       `yaml:"location" json:"location"`
	SortOrder   int            `yaml:"-" json:"sortorder"`
	ShowColumn  bool           `yaml:"show_column" json:"show_column"`
	Settings    map[string]any `yaml:"settings" json:"settings,omitempty"`
}

// Setting возвращает строковую настройку поля ("" если нет).
func (f FieldDef) Setting(key string) string {
	v, ok := f.Settings[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "yes"
		}
		return "no"
	case []any:
		parts := make([]string, 0, len(t))
		for _, it := range t {
			parts = append(parts, fmt.Sprint(it))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(t)
	}
}

// SettingList возвращает настройку как список. Строка режется по запятым.
func (f FieldDef) SettingList(key string) []string {
	v, ok := f.Settings[key]
	if !ok || v == nil {
		return nil
	}
	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	case []any:
		for _, it := range t {
			raw = append(raw, fmt.Sprint(it))
		}
	default:
		raw = strings.Split(fmt.Sprint(t), ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Record — сохранённое значение одного поля одной записи.
// Многострочные поля (тэги) хранят срезы одинаковой длины по колонкам.
type Record map[string]any

// Entry — запись секции.
type Entry struct {
	ID         int64            `json:"id"`
	SectionID  int64            `json:"section_id"`
	CreatedAt  time.Time        `json:"created_at"`
	ModifiedAt time.Time        `json:"modified_at"`
	Data       map[int64]Record `json:"-"`
}

// Get возвращает запись поля (nil, если у записи нет данных поля).
func (e *Entry) Get(fieldID int64) Record {
	if e == nil || e.Data == nil {
		return nil
	}
	return e.Data[fieldID]
}

// Set кладёт запись поля.
func (e *Entry) Set(fieldID int64, r Record) {
	if e.Data == nil {
		e.Data = make(map[int64]Record)
	}
	e.Data[fieldID] = r
}

// FieldByElementName ищет поле секции по element name.
func (s *Section) FieldByElementName(name string) (*FieldDef, bool) {
	for i := range s.Fields {
		if s.Fields[i].ElementName == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// FieldByID ищет поле секции по id.
func (s *Section) FieldByID(id int64) (*FieldDef, bool) {
	for i := range s.Fields {
		if s.Fields[i].ID == id {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// FieldError — ошибка уровня поля: код, имя поля, сообщение для автора.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	ErrMissingRequired = "missing_required"
	ErrInvalid         = "invalid"
	ErrXSS             = "xss"
	ErrNotFound        = "not_found"
	ErrDuplicate       = "duplicate"
)
