package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"symphony/internal/field"
	"symphony/internal/section"
	"symphony/internal/store"
)

// ErrEmpty — выборка пуста, а датасорс требует редиректа (404).
var ErrEmpty = errors.New("datasource returned no entries")

// SectionSource ищет секцию по хэндлу (section.Catalog).
type SectionSource interface {
	Get(handle string) (*section.Section, bool)
}

// Executor исполняет датасорсы над хранилищем записей.
type Executor struct {
	Store    *store.Store
	Sections SectionSource
	Log      *zap.Logger
	// MaxRows — размер страницы, если лимит не задан
	MaxRows int
}

type Pagination struct {
	TotalEntries int `json:"total_entries"`
	TotalPages   int `json:"total_pages"`
	PerPage      int `json:"per_page"`
	CurrentPage  int `json:"current_page"`
}

type EntryOutput struct {
	ID        int64          `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Fields    map[string]any `json:"fields"`
}

type GroupOutput struct {
	Field   string            `json:"field"`
	Value   string            `json:"value"`
	Attr    map[string]string `json:"attr,omitempty"`
	Entries []EntryOutput     `json:"entries"`
}

// Result — результат исполнения датасорса.
type Result struct {
	Handle      string              `json:"handle"`
	RootElement string              `json:"root_element"`
	Skipped     bool                `json:"skipped,omitempty"`
	Static      string              `json:"static,omitempty"`
	Section     string              `json:"section,omitempty"`
	Pagination  *Pagination         `json:"pagination,omitempty"`
	Entries     []EntryOutput       `json:"entries,omitempty"`
	Groups      []GroupOutput       `json:"groups,omitempty"`
	Params      map[string][]string `json:"params,omitempty"`
}

// Run исполняет определение с параметрами страницы.
func (x *Executor) Run(ctx context.Context, def *Definition, params map[string]string) (*Result, error) {
	res := &Result{Handle: def.Handle, RootElement: def.RootElement}

	if def.Extends == ExtendsStaticXML || def.Source == SourceStaticXML {
		res.Static = def.Static
		return res, nil
	}

	if rp := requiredParamName(def.RequiredParam); rp != "" && strings.TrimSpace(params[rp]) == "" {
		res.Skipped = true
		return res, nil
	}

	sec, ok := x.Sections.Get(def.Source)
	if !ok {
		return nil, fmt.Errorf("datasource %s: section %q: %w", def.Handle, def.Source, store.ErrNotFound)
	}
	res.Section = sec.Handle

	fields, err := x.Store.Fields.ByElement(sec)
	if err != nil {
		return nil, err
	}

	q := field.NewQuery(x.Store.Dialect, x.Store.Prefix)
	if err := x.applyFilters(q, def, fields, params); err != nil {
		return nil, fmt.Errorf("datasource %s: %w", def.Handle, err)
	}
	if err := ApplySort(q, fields, def.Sort, def.Order); err != nil {
		return nil, fmt.Errorf("datasource %s: %w", def.Handle, err)
	}

	entries, err := x.fetch(ctx, sec, q, def, params, res)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 && def.RedirectOnEmpty {
		return nil, ErrEmpty
	}

	res.Params = x.outputParams(def, fields, entries)

	included := parseIncluded(def.IncludedElements)
	if def.Group != "" {
		g, ok := fields[def.Group].(field.Groupable)
		if !ok {
			return nil, fmt.Errorf("datasource %s: field %q cannot group", def.Handle, def.Group)
		}
		for _, b := range g.GroupRecords(entries).Buckets(def.Group) {
			res.Groups = append(res.Groups, GroupOutput{
				Field:   def.Group,
				Value:   b.Value,
				Attr:    b.Attr,
				Entries: x.render(b.Entries, fields, included, def.HTMLEncode),
			})
		}
		return res, nil
	}
	res.Entries = x.render(entries, fields, included, def.HTMLEncode)
	return res, nil
}

func requiredParamName(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimSuffix(strings.TrimPrefix(p, "{"), "}")
	return strings.TrimPrefix(p, "$")
}

func (x *Executor) applyFilters(q *field.Query, def *Definition, fields map[string]field.Field, params map[string]string) error {
	names := make([]string, 0, len(def.Filters))
	for name := range def.Filters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ApplyFilter(q, fields, name, ResolveParams(def.Filters[name], params)); err != nil {
			return err
		}
	}
	return nil
}

// ApplyFilter добавляет к запросу фильтр по полю или system:id.
// "+" между значениями — все сразу, "," — любое из; регулярка не режется.
func ApplyFilter(q *field.Query, fields map[string]field.Field, name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if name == "system:id" {
		return filterByID(q, value)
	}
	f, ok := fields[name].(field.Filterable)
	if !ok {
		return fmt.Errorf("field %q cannot filter", name)
	}
	values, and := splitFilter(value)
	if err := f.BuildDSRetrievalSQL(values, q, and); err != nil {
		return fmt.Errorf("filter %s: %w", name, err)
	}
	return nil
}

func splitFilter(value string) ([]string, bool) {
	if field.IsFilterRegex(value) {
		return []string{value}, false
	}
	if strings.Contains(value, "+") {
		return trimAll(strings.Split(value, "+")), true
	}
	return trimAll(strings.Split(value, ",")), false
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// filterByID: "1, 2" или "not: 1, 2".
func filterByID(q *field.Query, value string) error {
	op := "IN"
	if rest, ok := strings.CutPrefix(value, "not:"); ok {
		op, value = "NOT IN", rest
	}
	var ph []string
	for _, s := range trimAll(strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '+' })) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("system:id: %q is not a number", s)
		}
		ph = append(ph, q.Arg(id))
	}
	if len(ph) == 0 {
		return nil
	}
	q.Where(fmt.Sprintf("(%s.id %s (%s))", field.EntriesAlias, op, strings.Join(ph, ", ")))
	return nil
}

// ApplySort задаёт порядок: system:id, system:date или сортируемое поле.
func ApplySort(q *field.Query, fields map[string]field.Field, sortField, order string) error {
	order = strings.ToLower(strings.TrimSpace(order))
	if order == "" {
		order = "desc"
	}
	if order == "random" {
		q.SetSort(q.Dialect.Random())
		return nil
	}
	dir := "DESC"
	if order == "asc" {
		dir = "ASC"
	}

	switch sortField {
	case "", "system:id":
		q.SetSort(fmt.Sprintf("%s.id %s", field.EntriesAlias, dir))
	case "system:date":
		q.SetSort(fmt.Sprintf("%[1]s.created_at %[2]s, %[1]s.id %[2]s", field.EntriesAlias, dir))
	default:
		f, ok := fields[sortField].(field.Sortable)
		if !ok {
			return fmt.Errorf("field %q cannot sort", sortField)
		}
		if err := f.BuildSortingSQL(q, order); err != nil {
			return fmt.Errorf("sort %s: %w", sortField, err)
		}
	}
	return nil
}

func (x *Executor) fetch(ctx context.Context, sec *section.Section, q *field.Query, def *Definition, params map[string]string, res *Result) ([]*section.Entry, error) {
	entries := x.Store.Entries()
	if !def.PaginateResults {
		list, err := entries.Fetch(ctx, sec, store.ListQuery{Query: q})
		if err != nil {
			return nil, err
		}
		return list, nil
	}

	maxRows := x.MaxRows
	if maxRows < 1 {
		maxRows = 20
	}
	perPage := resolveInt(def.Limit, params, maxRows)
	page := resolveInt(def.StartPage, params, 1)

	p, err := entries.FetchByPage(ctx, sec, q, page, perPage)
	if err != nil {
		return nil, err
	}
	res.Pagination = &Pagination{
		TotalEntries: p.Total,
		TotalPages:   p.TotalPages,
		PerPage:      p.PerPage,
		CurrentPage:  p.Page,
	}
	if x.Log != nil {
		x.Log.Debug("datasource page",
			zap.String("datasource", def.Handle),
			zap.Int("page", p.Page),
			zap.Int("total", p.Total))
	}
	return p.Entries, nil
}

// outputParams: ds-<root>.<element> → значения без повторов.
func (x *Executor) outputParams(def *Definition, fields map[string]field.Field, entries []*section.Entry) map[string][]string {
	if len(def.ParamOutput) == 0 {
		return nil
	}
	out := make(map[string][]string, len(def.ParamOutput))
	for _, el := range def.ParamOutput {
		key := "ds-" + def.RootElement + "." + strings.ReplaceAll(el, ":", "-")
		var vals []string
		for _, e := range entries {
			if el == "system:id" {
				vals = appendUniq(vals, strconv.FormatInt(e.ID, 10))
				continue
			}
			f, ok := fields[el]
			if !ok {
				continue
			}
			po, ok := f.(field.ParamOutput)
			if !ok {
				continue
			}
			r := e.Get(f.Definition().ID)
			if r == nil {
				continue
			}
			switch v := po.ParameterPoolValue(r).(type) {
			case string:
				vals = appendUniq(vals, v)
			case []string:
				for _, s := range v {
					vals = appendUniq(vals, s)
				}
			}
		}
		out[key] = vals
	}
	return out
}

func appendUniq(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, it := range list {
		if it == s {
			return list
		}
	}
	return append(list, s)
}

type includedElement struct {
	name string
	mode string
}

// parseIncluded разбирает "element" и "element: mode".
func parseIncluded(list []string) []includedElement {
	out := make([]includedElement, 0, len(list))
	for _, it := range list {
		name, mode, _ := strings.Cut(it, ":")
		name, mode = strings.TrimSpace(name), strings.TrimSpace(mode)
		if name == "" || name == "system" {
			continue
		}
		out = append(out, includedElement{name: name, mode: mode})
	}
	return out
}

func (x *Executor) render(entries []*section.Entry, fields map[string]field.Field, included []includedElement, encode bool) []EntryOutput {
	out := make([]EntryOutput, 0, len(entries))
	for _, e := range entries {
		eo := EntryOutput{ID: e.ID, CreatedAt: e.CreatedAt, Fields: map[string]any{}}
		for _, inc := range included {
			f, ok := fields[inc.name]
			if !ok {
				continue
			}
			ex, ok := f.(field.Exportable)
			if !ok {
				continue
			}
			r := e.Get(f.Definition().ID)
			if r == nil {
				continue
			}
			mode := field.ExportPostdata
			if inc.mode != "" {
				m, ok := field.ParseExportMode(ex, inc.mode)
				if !ok {
					continue
				}
				mode = m
			}
			v := ex.PrepareExportValue(r, mode)
			if v == nil {
				continue
			}
			if encode {
				v = htmlEncode(v)
			}
			eo.Fields[inc.name] = v
		}
		out = append(out, eo)
	}
	return out
}

func htmlEncode(v any) any {
	switch t := v.(type) {
	case string:
		return html.EscapeString(t)
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = html.EscapeString(s)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = html.EscapeString(s)
		}
		return out
	default:
		return v
	}
}
