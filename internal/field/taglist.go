package field

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"symphony/internal/lang"
	"symphony/internal/section"
)

const TypeTagList = "taglist"

// TagList — список тегов через запятую; по строке в таблице на тег.
type TagList struct {
	Base
	validator *regexp.Regexp
}

func NewTagList(def section.FieldDef) Field {
	f := &TagList{Base: Base{def: def}}
	// битый валидатор ловит Lint, здесь просто не проверяем
	f.validator, _ = CompileValidator(def.Setting("validator"))
	return f
}

func (f *TagList) Type() string { return TypeTagList }

func (f *TagList) FindDefaults(settings map[string]any) {
	if _, ok := settings["pre_populate_source"]; !ok {
		settings["pre_populate_source"] = []any{"existing"}
	}
}

var tagSplit = regexp.MustCompile(`\s*,\s*`)

// splitTags режет ввод по запятым, выбрасывая пустые куски.
func splitTags(raw any) []string {
	var parts []string
	switch t := raw.(type) {
	case []string, []any:
		for _, it := range stringList(t) {
			parts = append(parts, tagSplit.Split(it, -1)...)
		}
	case section.Record:
		return stringList(t["value"])
	case map[string]any:
		return stringList(t["value"])
	default:
		parts = tagSplit.Split(rawString(raw), -1)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeTags: без учёта регистра оставляем первое вхождение, затем сортируем.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		k := strings.ToLower(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (f *TagList) CheckPostFieldData(raw any) (Status, string) {
	tags := splitTags(raw)
	if f.def.Required && len(tags) == 0 {
		return StatusMissingRequired, f.requiredMessage()
	}
	if f.validator != nil {
		for _, t := range tags {
			if !f.validator.MatchString(t) {
				return StatusInvalid, f.invalidMessage()
			}
		}
	}
	return StatusOK, ""
}

// ProcessRawFieldData: пустой ввод — nil (строк в таблице не будет).
func (f *TagList) ProcessRawFieldData(raw any) (section.Record, error) {
	tags := normalizeTags(splitTags(raw))
	if len(tags) == 0 {
		return nil, nil
	}
	handles := make([]string, 0, len(tags))
	for _, t := range tags {
		handles = append(handles, lang.CreateHandle(t, lang.HandleMaxLength, "-"))
	}
	return section.Record{"value": tags, "handle": handles}, nil
}

func (f *TagList) PrepareTableValue(r section.Record) string {
	vals := stringList(r["value"])
	if len(vals) == 0 {
		return ""
	}
	sorted := append([]string(nil), vals...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func (f *TagList) ParameterPoolValue(r section.Record) any {
	return f.PrepareExportValue(r, ExportListOf|ExportHandle)
}

func (f *TagList) ExportModes() map[string]ExportMode {
	return map[string]ExportMode{
		"listHandle":        ExportListOf | ExportHandle,
		"listValue":         ExportListOf | ExportValue,
		"listHandleToValue": ExportListOf | ExportHandle | ExportValue,
		"getPostdata":       ExportPostdata,
	}
}

func (f *TagList) PrepareExportValue(r section.Record, mode ExportMode) any {
	values := stringList(r["value"])
	handles := stringList(r["handle"])
	switch mode {
	case ExportListOf | ExportHandle | ExportValue:
		out := make(map[string]string, len(handles))
		if len(handles) == len(values) {
			for i, h := range handles {
				out[h] = values[i]
			}
		}
		return out
	case ExportListOf | ExportHandle:
		if handles == nil {
			return []string{}
		}
		return handles
	case ExportListOf | ExportValue:
		if values == nil {
			return []string{}
		}
		return values
	case ExportPostdata:
		if values == nil {
			return nil
		}
		return strings.Join(values, ", ")
	}
	return nil
}

func (f *TagList) ImportModes() map[string]ImportMode {
	return map[string]ImportMode{
		"getValue":    ImportStringValue,
		"getPostdata": ImportArrayValue,
	}
}

func (f *TagList) PrepareImportValue(raw any, mode ImportMode) any {
	switch mode {
	case ImportStringValue:
		return strings.Join(stringList(raw), ", ")
	case ImportArrayValue:
		r, _ := f.ProcessRawFieldData(raw)
		return r
	}
	return nil
}

// BuildDSRetrievalSQL сравнивает и с value, и с handle.
func (f *TagList) BuildDSRetrievalSQL(values []string, q *Query, and bool) error {
	if f.def.ID == 0 {
		return ErrNoFieldID
	}
	// по строке на тег: без группировки запись продублируется
	q.RequireDistinct()
	values = trimValues(values)
	if len(values) > 0 && IsFilterRegex(values[0]) {
		return buildRegexSQL(q, f.def.ID, values[0], []string{"value", "handle"})
	}
	return buildValueSQL(q, f.def.ID, values, and, []string{"value", "handle"})
}

func (f *TagList) BuildSortingSQL(q *Query, order string) error {
	if f.def.ID == 0 {
		return ErrNoFieldID
	}
	dir, err := normalizeOrder(order)
	if err != nil {
		return err
	}
	if dir == "random" {
		q.SetSort(q.Dialect.Random())
		return nil
	}
	// несколько строк на запись: сортируем по первому тегу
	q.SetSort(fmt.Sprintf(
		"(SELECT MIN(ed.%s) FROM %s AS ed WHERE ed.entry_id = %s.id) %s",
		q.Dialect.QuoteIdent("value"), q.DataTable(f.def.ID), EntriesAlias, dir,
	))
	return nil
}

// GroupRecords: запись попадает в корзину каждого своего тега.
func (f *TagList) GroupRecords(entries []*section.Entry) Groups {
	groups := Groups{}
	for _, e := range entries {
		r := e.Get(f.def.ID)
		values := stringList(r["value"])
		handles := stringList(r["handle"])
		for i, v := range values {
			h := lang.CreateHandle(v, lang.HandleMaxLength, "-")
			if i < len(handles) {
				h = handles[i]
			}
			groups.add(f.def.ElementName, h, map[string]string{"handle": h, "value": v}, e)
		}
	}
	return groups
}

// SuggestionSources — поля, чьи значения предлагаются как теги.
// "existing" означает само поле.
func (f *TagList) SuggestionSources() []int64 {
	var out []int64
	for _, s := range f.def.SettingList("pre_populate_source") {
		if s == "existing" {
			if f.def.ID != 0 {
				out = append(out, f.def.ID)
			}
			continue
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
			out = append(out, id)
		}
	}
	return out
}

func (f *TagList) Schema(d Dialect, prefix string) []string {
	table := DataTableName(prefix, f.def.ID)
	return []string{
		fmt.Sprintf(`create table if not exists %s (
  %s,
  "entry_id" bigint not null,
  "handle" varchar(255),
  "value" varchar(255)
)`, d.QuoteIdent(table), d.IdentityColumn()),
		fmt.Sprintf(`create index if not exists %s on %s ("entry_id")`, d.QuoteIdent(table+"_entry_id_idx"), d.QuoteIdent(table)),
		fmt.Sprintf(`create index if not exists %s on %s ("handle")`, d.QuoteIdent(table+"_handle_idx"), d.QuoteIdent(table)),
		fmt.Sprintf(`create index if not exists %s on %s ("value")`, d.QuoteIdent(table+"_value_idx"), d.QuoteIdent(table)),
	}
}

func (f *TagList) Columns() []string { return []string{"handle", "value"} }
func (f *TagList) Multiple() bool    { return true }
