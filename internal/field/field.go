// Package field описывает контракт подключаемых типов полей и их реализации.
//
// Базовый интерфейс Field минимален; всё остальное — отдельные возможности
// (Validator, Filterable, Sortable, ...), которые потребитель проверяет
// type assertion'ом.
package field

import (
	"errors"
	"fmt"
	"strings"

	"symphony/internal/section"
)

// Status — результат проверки входных данных поля.
type Status int

const (
	StatusOK Status = iota
	StatusMissingRequired
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMissingRequired:
		return section.ErrMissingRequired
	case StatusInvalid:
		return section.ErrInvalid
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrNoFieldID — поле без id нельзя использовать в SQL.
var ErrNoFieldID = errors.New("field has no id")

// Field — любой тип поля.
type Field interface {
	Type() string
	Definition() *section.FieldDef
}

// Validator проверяет сырые данные формы. Без побочных эффектов.
type Validator interface {
	CheckPostFieldData(raw any) (Status, string)
}

// Processor превращает сырые данные формы в сохраняемую запись.
// Одинаковый вход — одинаковый выход; хранилище не трогает.
type Processor interface {
	ProcessRawFieldData(raw any) (section.Record, error)
}

// TableValuer — короткое представление для таблицы записей.
type TableValuer interface {
	PrepareTableValue(r section.Record) string
}

// Exportable — проекция записи во внешнее представление.
// Неподдерживаемый режим даёт nil.
type Exportable interface {
	ExportModes() map[string]ExportMode
	PrepareExportValue(r section.Record, mode ExportMode) any
}

// Importable — обратная проекция внешнего значения в данные поля.
type Importable interface {
	ImportModes() map[string]ImportMode
	PrepareImportValue(raw any, mode ImportMode) any
}

// Filterable добавляет к запросу JOIN и WHERE для фильтра по значениям.
// and=true — каждое значение отдельным джойном (конъюнкция),
// иначе — один джойн и IN (...).
type Filterable interface {
	BuildDSRetrievalSQL(values []string, q *Query, and bool) error
}

// Sortable задаёт ORDER BY; order — asc|desc|random.
type Sortable interface {
	BuildSortingSQL(q *Query, order string) error
}

// Groupable группирует записи по значению поля.
type Groupable interface {
	GroupRecords(entries []*section.Entry) Groups
}

// Toggleable — поле, значение которого можно переключить из таблицы записей.
type Toggleable interface {
	ToggleStates() []ToggleState
	ToggleFieldData(r section.Record, state string) (section.Record, error)
}

// Storable — поле с собственной таблицей данных.
type Storable interface {
	// Schema возвращает DDL таблицы данных поля (идемпотентный).
	Schema(d Dialect, prefix string) []string
	// Columns — колонки значения (кроме id и entry_id), в порядке вставки.
	Columns() []string
	// Multiple — запись поля занимает несколько строк (по строке на элемент).
	Multiple() bool
}

// Defaulter заполняет недостающие настройки значениями по умолчанию.
type Defaulter interface {
	FindDefaults(settings map[string]any)
}

// ParamOutput — значение поля для пула параметров датасорса.
type ParamOutput interface {
	ParameterPoolValue(r section.Record) any
}

// Suggester — поле, у которого есть подсказки значений из других полей.
type Suggester interface {
	SuggestionSources() []int64
}

type ToggleState struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Base — общая часть всех типов.
type Base struct {
	def section.FieldDef
}

func (b *Base) Definition() *section.FieldDef { return &b.def }
func (b *Base) ID() int64                     { return b.def.ID }
func (b *Base) ElementName() string           { return b.def.ElementName }
func (b *Base) Label() string                 { return b.def.Label }
func (b *Base) Required() bool                { return b.def.Required }

func (b *Base) requiredMessage() string {
	return fmt.Sprintf("‘%s’ is a required field.", b.def.Label)
}

func (b *Base) invalidMessage() string {
	return fmt.Sprintf("‘%s’ contains invalid data. Please check the contents.", b.def.Label)
}

// rawString сводит сырое значение формы к строке.
func rawString(raw any) string {
	switch t := raw.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case section.Record:
		return rawString(t["value"])
	case map[string]any:
		return rawString(t["value"])
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, it := range t {
			parts = append(parts, rawString(it))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// stringList сводит значение записи к срезу строк (скаляр → срез из одного).
func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			out = append(out, rawString(it))
		}
		return out
	default:
		return []string{rawString(t)}
	}
}

// trimValues убирает пробелы по краям и пустые значения фильтра.
func trimValues(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, it := range list {
		if it == s {
			return true
		}
	}
	return false
}
