package field

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"symphony/internal/lang"
	"symphony/internal/section"
)

const TypeInput = "input"

// Input — однострочный текст с необязательным валидатором.
type Input struct {
	Base
	validator *regexp.Regexp
}

func NewInput(def section.FieldDef) Field {
	f := &Input{Base: Base{def: def}}
	f.validator, _ = CompileValidator(def.Setting("validator"))
	return f
}

func (f *Input) Type() string { return TypeInput }

func (f *Input) FindDefaults(settings map[string]any) {
	if _, ok := settings["max_length"]; !ok {
		settings["max_length"] = 255
	}
}

func (f *Input) maxLength() int {
	n, err := strconv.Atoi(f.def.Setting("max_length"))
	if err != nil || n <= 0 {
		return 255
	}
	return n
}

func (f *Input) CheckPostFieldData(raw any) (Status, string) {
	v := strings.TrimSpace(rawString(raw))
	if v == "" {
		if f.def.Required {
			return StatusMissingRequired, f.requiredMessage()
		}
		return StatusOK, ""
	}
	if utf8.RuneCountInString(v) > f.maxLength() {
		return StatusInvalid, fmt.Sprintf("‘%s’ must be no longer than %d characters.", f.def.Label, f.maxLength())
	}
	if f.validator != nil && !f.validator.MatchString(v) {
		return StatusInvalid, f.invalidMessage()
	}
	return StatusOK, ""
}

// ProcessRawFieldData: пустая строка — nil, иначе value + handle.
func (f *Input) ProcessRawFieldData(raw any) (section.Record, error) {
	v := strings.TrimSpace(rawString(raw))
	if v == "" {
		return nil, nil
	}
	return section.Record{
		"value":  v,
		"handle": lang.CreateHandle(v, lang.HandleMaxLength, "-"),
	}, nil
}

func (f *Input) PrepareTableValue(r section.Record) string {
	return rawString(r["value"])
}

func (f *Input) ParameterPoolValue(r section.Record) any {
	return f.PrepareExportValue(r, ExportHandle)
}

func (f *Input) ExportModes() map[string]ExportMode {
	return map[string]ExportMode{
		"getHandle":      ExportHandle,
		"getUnformatted": ExportValue,
		"getPostdata":    ExportPostdata,
	}
}

func (f *Input) PrepareExportValue(r section.Record, mode ExportMode) any {
	switch mode {
	case ExportHandle:
		if h := rawString(r["handle"]); h != "" {
			return h
		}
		return nil
	case ExportValue, ExportPostdata:
		if v := rawString(r["value"]); v != "" {
			return v
		}
		return nil
	}
	return nil
}

func (f *Input) ImportModes() map[string]ImportMode {
	return map[string]ImportMode{
		"getValue":    ImportStringValue,
		"getPostdata": ImportArrayValue,
	}
}

func (f *Input) PrepareImportValue(raw any, mode ImportMode) any {
	switch mode {
	case ImportStringValue:
		return strings.TrimSpace(rawString(raw))
	case ImportArrayValue:
		r, _ := f.ProcessRawFieldData(raw)
		return r
	}
	return nil
}

func (f *Input) BuildDSRetrievalSQL(values []string, q *Query, and bool) error {
	if f.def.ID == 0 {
		return ErrNoFieldID
	}
	values = trimValues(values)
	if len(values) > 0 && IsFilterRegex(values[0]) {
		return buildRegexSQL(q, f.def.ID, values[0], []string{"value"})
	}
	return buildValueSQL(q, f.def.ID, values, and, []string{"value", "handle"})
}

func (f *Input) BuildSortingSQL(q *Query, order string) error {
	return sortBySubquery(q, f.def.ID, "value", order)
}

func (f *Input) GroupRecords(entries []*section.Entry) Groups {
	groups := Groups{}
	for _, e := range entries {
		r := e.Get(f.def.ID)
		h := rawString(r["handle"])
		if h == "" {
			continue
		}
		groups.add(f.def.ElementName, h, map[string]string{"handle": h, "value": rawString(r["value"])}, e)
	}
	return groups
}

func (f *Input) Schema(d Dialect, prefix string) []string {
	table := DataTableName(prefix, f.def.ID)
	return []string{
		fmt.Sprintf(`create table if not exists %s (
  %s,
  "entry_id" bigint not null,
  "handle" varchar(255),
  "value" text
)`, d.QuoteIdent(table), d.IdentityColumn()),
		fmt.Sprintf(`create unique index if not exists %s on %s ("entry_id")`, d.QuoteIdent(table+"_entry_id_uq"), d.QuoteIdent(table)),
		fmt.Sprintf(`create index if not exists %s on %s ("handle")`, d.QuoteIdent(table+"_handle_idx"), d.QuoteIdent(table)),
	}
}

func (f *Input) Columns() []string { return []string{"handle", "value"} }
func (f *Input) Multiple() bool    { return false }
