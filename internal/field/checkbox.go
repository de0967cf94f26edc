package field

import (
	"fmt"
	"strings"

	"symphony/internal/section"
)

const TypeCheckbox = "checkbox"

// Checkbox — поле да/нет.
type Checkbox struct {
	Base
}

func NewCheckbox(def section.FieldDef) Field {
	if def.Location == "" {
		def.Location = section.LocationSidebar
	}
	return &Checkbox{Base{def: def}}
}

func (f *Checkbox) Type() string { return TypeCheckbox }

func (f *Checkbox) FindDefaults(settings map[string]any) {
	if _, ok := settings["default_state"]; !ok {
		settings["default_state"] = "off"
	}
}

// defaultValue — значение, которым считаются строки без явного значения.
func (f *Checkbox) defaultValue() string {
	if f.def.Setting("default_state") == "on" {
		return "yes"
	}
	return "no"
}

func checked(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "on"
}

// CheckPostFieldData: для обязательного чекбокса «нет значения» — всё,
// что не on/yes.
func (f *Checkbox) CheckPostFieldData(raw any) (Status, string) {
	if f.def.Required && !checked(rawString(raw)) {
		return StatusMissingRequired, f.requiredMessage()
	}
	return StatusOK, ""
}

func (f *Checkbox) ProcessRawFieldData(raw any) (section.Record, error) {
	v := "no"
	if checked(rawString(raw)) {
		v = "yes"
	}
	return section.Record{"value": v}, nil
}

func (f *Checkbox) isYes(r section.Record) bool {
	v, ok := r["value"]
	return ok && rawString(v) == "yes"
}

func (f *Checkbox) PrepareTableValue(r section.Record) string {
	s, _ := f.PrepareExportValue(r, ExportValue).(string)
	return s
}

func (f *Checkbox) ParameterPoolValue(r section.Record) any {
	return f.PrepareExportValue(r, ExportPostdata)
}

func (f *Checkbox) ExportModes() map[string]ExportMode {
	return map[string]ExportMode{
		"getBoolean":  ExportBoolean,
		"getValue":    ExportValue,
		"getPostdata": ExportPostdata,
	}
}

func (f *Checkbox) PrepareExportValue(r section.Record, mode ExportMode) any {
	yes := f.isYes(r)
	switch mode {
	case ExportPostdata:
		if yes {
			return "yes"
		}
		return "no"
	case ExportValue:
		if yes {
			return "Yes"
		}
		return "No"
	case ExportBoolean:
		return yes
	}
	return nil
}

func (f *Checkbox) ImportModes() map[string]ImportMode {
	return map[string]ImportMode{
		"getValue":    ImportStringValue,
		"getPostdata": ImportArrayValue,
	}
}

func (f *Checkbox) PrepareImportValue(raw any, mode ImportMode) any {
	r, _ := f.ProcessRawFieldData(raw)
	switch mode {
	case ImportStringValue:
		return r["value"]
	case ImportArrayValue:
		return r
	}
	return nil
}

func (f *Checkbox) ToggleStates() []ToggleState {
	return []ToggleState{{Value: "yes", Label: "Yes"}, {Value: "no", Label: "No"}}
}

func (f *Checkbox) ToggleFieldData(r section.Record, state string) (section.Record, error) {
	state = strings.ToLower(strings.TrimSpace(state))
	if state != "yes" && state != "no" {
		return nil, fmt.Errorf("unknown toggle state %q", state)
	}
	out := section.Record{}
	for k, v := range r {
		out[k] = v
	}
	out["value"] = state
	return out, nil
}

// BuildDSRetrievalSQL: если значение по умолчанию среди запрошенных,
// строки без значения (NULL у старых записей) тоже подходят.
func (f *Checkbox) BuildDSRetrievalSQL(values []string, q *Query, and bool) error {
	id := f.def.ID
	if id == 0 {
		return ErrNoFieldID
	}
	values = trimValues(values)
	if len(values) == 0 {
		return nil
	}
	def := f.defaultValue()

	if and {
		for _, v := range values {
			alias := q.JoinData(id)
			ph := q.Arg(v)
			if v == def {
				q.Where(fmt.Sprintf("(%s.value = %s OR %s.value IS NULL)", alias, ph, alias))
			} else {
				q.Where(fmt.Sprintf("(%s.value = %s)", alias, ph))
			}
		}
		return nil
	}

	alias := q.JoinData(id)
	list := q.ArgList(values)
	if contains(values, def) {
		q.Where(fmt.Sprintf("(%s.value IN (%s) OR %s.value IS NULL)", alias, list, alias))
	} else {
		q.Where(fmt.Sprintf("(%s.value IN (%s))", alias, list))
	}
	return nil
}

func (f *Checkbox) BuildSortingSQL(q *Query, order string) error {
	return sortBySubquery(q, f.def.ID, "value", order)
}

// GroupRecords: записи без значения попадают в корзину значения по умолчанию.
func (f *Checkbox) GroupRecords(entries []*section.Entry) Groups {
	groups := Groups{}
	for _, e := range entries {
		v := f.defaultValue()
		if r := e.Get(f.def.ID); r != nil {
			if s := rawString(r["value"]); s != "" {
				v = s
			}
		}
		groups.add(f.def.ElementName, v, map[string]string{"value": v}, e)
	}
	return groups
}

func (f *Checkbox) Schema(d Dialect, prefix string) []string {
	table := DataTableName(prefix, f.def.ID)
	return []string{
		fmt.Sprintf(`create table if not exists %s (
  %s,
  "entry_id" bigint not null,
  "value" varchar(3) not null default '%s' check ("value" in ('yes', 'no'))
)`, d.QuoteIdent(table), d.IdentityColumn(), f.defaultValue()),
		fmt.Sprintf(`create unique index if not exists %s on %s ("entry_id")`, d.QuoteIdent(table+"_entry_id_uq"), d.QuoteIdent(table)),
		fmt.Sprintf(`create index if not exists %s on %s ("value")`, d.QuoteIdent(table+"_value_idx"), d.QuoteIdent(table)),
	}
}

func (f *Checkbox) Columns() []string { return []string{"value"} }
func (f *Checkbox) Multiple() bool    { return false }
