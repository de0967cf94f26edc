package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"symphony/internal/field"
	"symphony/internal/section"
)

// Entries — записи секций и данные их полей.
type Entries struct {
	s *Store
}

func (s *Store) Entries() *Entries { return &Entries{s: s} }

// ListQuery — выборка записей: фильтры и сортировка в Query, плюс окно.
type ListQuery struct {
	Query  *field.Query
	Limit  int
	Offset int
}

// Page — страница выборки.
type Page struct {
	Entries    []*section.Entry `json:"entries"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalPages int              `json:"total_pages"`
}

// Create вставляет запись и данные полей одной транзакцией.
func (r *Entries) Create(ctx context.Context, sec *section.Section, data map[int64]section.Record) (*section.Entry, error) {
	s := r.s
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDB("create entry", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	p := s.Dialect.Placeholder
	q := fmt.Sprintf(`insert into %s ("section_id", "created_at", "modified_at") values (%s, %s, %s) returning "id"`,
		s.table("entries"), p(1), p(2), p(3))
	e := &section.Entry{SectionID: sec.ID, CreatedAt: now, ModifiedAt: now}
	if err := tx.QueryRowContext(ctx, q, sec.ID, now, now).Scan(&e.ID); err != nil {
		return nil, wrapDB("create entry", q, err)
	}

	for _, def := range sec.Fields {
		rec, ok := data[def.ID]
		if !ok || rec == nil {
			continue
		}
		if err := r.writeField(ctx, tx, def, e.ID, rec); err != nil {
			return nil, err
		}
		e.Set(def.ID, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapDB("create entry", "", err)
	}
	return e, nil
}

// Update заменяет данные переданных полей. Поля, которых нет в data, не трогаются;
// nil-запись очищает поле.
func (r *Entries) Update(ctx context.Context, sec *section.Section, id int64, data map[int64]section.Record) (*section.Entry, error) {
	s := r.s
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDB("update entry", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	p := s.Dialect.Placeholder
	q := fmt.Sprintf(`update %s set "modified_at" = %s where "id" = %s and "section_id" = %s`,
		s.table("entries"), p(1), p(2), p(3))
	res, err := tx.ExecContext(ctx, q, now, id, sec.ID)
	if err != nil {
		return nil, wrapDB("update entry", q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	for _, def := range sec.Fields {
		rec, ok := data[def.ID]
		if !ok {
			continue
		}
		del := fmt.Sprintf(`delete from %s where "entry_id" = %s`,
			s.Dialect.QuoteIdent(field.DataTableName(s.Prefix, def.ID)), p(1))
		if _, err := tx.ExecContext(ctx, del, id); err != nil {
			return nil, wrapDB("update entry", del, err)
		}
		if rec == nil {
			continue
		}
		if err := r.writeField(ctx, tx, def, id, rec); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapDB("update entry", "", err)
	}
	return r.Get(ctx, sec, id)
}

// writeField пишет запись поля: одна строка или по строке на элемент.
func (r *Entries) writeField(ctx context.Context, tx *sql.Tx, def section.FieldDef, entryID int64, rec section.Record) error {
	s := r.s
	f, err := s.field(def)
	if err != nil {
		return err
	}
	st, ok := f.(field.Storable)
	if !ok {
		return nil
	}
	cols := st.Columns()

	quoted := make([]string, 0, len(cols)+1)
	quoted = append(quoted, `"entry_id"`)
	for _, c := range cols {
		quoted = append(quoted, s.Dialect.QuoteIdent(c))
	}
	q := fmt.Sprintf(`insert into %s (%s) values (%s)`,
		s.Dialect.QuoteIdent(field.DataTableName(s.Prefix, def.ID)),
		strings.Join(quoted, ", "), s.placeholders(1, len(quoted)))

	rows := 1
	if st.Multiple() {
		rows = 0
		for _, c := range cols {
			if n := len(asList(rec[c])); n > rows {
				rows = n
			}
		}
	}

	for i := 0; i < rows; i++ {
		args := make([]any, 0, len(quoted))
		args = append(args, entryID)
		for _, c := range cols {
			if st.Multiple() {
				list := asList(rec[c])
				if i < len(list) {
					args = append(args, list[i])
				} else {
					args = append(args, nil)
				}
				continue
			}
			args = append(args, rec[c])
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return wrapDB("write field "+def.ElementName, q, err)
		}
	}
	return nil
}

// Delete удаляет одну запись.
func (r *Entries) Delete(ctx context.Context, sec *section.Section, id int64) error {
	n, err := r.DeleteMany(ctx, sec, []int64{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany удаляет записи секции вместе с данными полей; возвращает число удалённых.
func (r *Entries) DeleteMany(ctx context.Context, sec *section.Section, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	s := r.s
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapDB("delete entries", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	in := s.placeholders(1, len(ids))
	for _, def := range sec.Fields {
		q := fmt.Sprintf(`delete from %s where "entry_id" in (%s)`,
			s.Dialect.QuoteIdent(field.DataTableName(s.Prefix, def.ID)), in)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return 0, wrapDB("delete entries", q, err)
		}
	}

	q := fmt.Sprintf(`delete from %s where "id" in (%s) and "section_id" = %s`,
		s.table("entries"), in, s.Dialect.Placeholder(len(ids)+1))
	res, err := tx.ExecContext(ctx, q, append(args, sec.ID)...)
	if err != nil {
		return 0, wrapDB("delete entries", q, err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, wrapDB("delete entries", "", err)
	}
	return int(n), nil
}

// Get возвращает запись с данными всех полей.
func (r *Entries) Get(ctx context.Context, sec *section.Section, id int64) (*section.Entry, error) {
	s := r.s
	p := s.Dialect.Placeholder
	q := fmt.Sprintf(`select "id", "section_id", "created_at", "modified_at" from %s where "id" = %s and "section_id" = %s`,
		s.table("entries"), p(1), p(2))

	var created, modified any
	e := &section.Entry{}
	err := s.DB.QueryRowContext(ctx, q, id, sec.ID).Scan(&e.ID, &e.SectionID, &created, &modified)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapDB("get entry", q, err)
	}
	e.CreatedAt, e.ModifiedAt = asTime(created), asTime(modified)

	if err := r.loadData(ctx, sec, []*section.Entry{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// selectSQL собирает выборку по секции с джойнами и условиями полей.
// Аргументы запроса не меняются: id секции идёт последним аргументом.
func (r *Entries) selectSQL(sec *section.Section, q *field.Query, columns string) (string, []any) {
	s := r.s
	args := append(append([]any{}, q.Args()...), sec.ID)
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s AS %s", columns, s.table("entries"), field.EntriesAlias)
	if j := q.JoinsSQL(); j != "" {
		b.WriteString("\n")
		b.WriteString(j)
	}
	fmt.Fprintf(&b, "\nWHERE %s.section_id = %s%s", field.EntriesAlias, s.Dialect.Placeholder(len(args)), q.WhereSQL())
	return b.String(), args
}

func (r *Entries) query(lq ListQuery) *field.Query {
	if lq.Query != nil {
		return lq.Query
	}
	return field.NewQuery(r.s.Dialect, r.s.Prefix)
}

// Fetch выбирает записи секции по фильтрам и сортировке запроса.
func (r *Entries) Fetch(ctx context.Context, sec *section.Section, lq ListQuery) ([]*section.Entry, error) {
	s := r.s
	q := r.query(lq)
	e := field.EntriesAlias

	text, args := r.selectSQL(sec, q, fmt.Sprintf("%[1]s.id, %[1]s.section_id, %[1]s.created_at, %[1]s.modified_at", e))
	var b strings.Builder
	b.WriteString(text)
	if q.Distinct() {
		fmt.Fprintf(&b, "\nGROUP BY %[1]s.id, %[1]s.section_id, %[1]s.created_at, %[1]s.modified_at", e)
	}
	if order := q.OrderSQL(); order != "" {
		b.WriteString("\n" + order)
	} else {
		fmt.Fprintf(&b, "\nORDER BY %s.id DESC", e)
	}
	if lq.Limit > 0 {
		fmt.Fprintf(&b, "\nLIMIT %d", lq.Limit)
		if lq.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", lq.Offset)
		}
	}
	sqlText := b.String()

	rows, err := s.DB.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, wrapDB("fetch entries", sqlText, err)
	}
	defer rows.Close()

	var out []*section.Entry
	for rows.Next() {
		var created, modified any
		en := &section.Entry{}
		if err := rows.Scan(&en.ID, &en.SectionID, &created, &modified); err != nil {
			return nil, wrapDB("fetch entries", sqlText, err)
		}
		en.CreatedAt, en.ModifiedAt = asTime(created), asTime(modified)
		out = append(out, en)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB("fetch entries", sqlText, err)
	}
	_ = rows.Close()

	if err := r.loadData(ctx, sec, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count — число записей, прошедших фильтры.
func (r *Entries) Count(ctx context.Context, sec *section.Section, q *field.Query) (int, error) {
	if q == nil {
		q = field.NewQuery(r.s.Dialect, r.s.Prefix)
	}
	text, args := r.selectSQL(sec, q, fmt.Sprintf("COUNT(DISTINCT %s.id)", field.EntriesAlias))
	var n int
	if err := r.s.DB.QueryRowContext(ctx, text, args...).Scan(&n); err != nil {
		return 0, wrapDB("count entries", text, err)
	}
	return n, nil
}

// FetchByPage — страница выборки; page считается с единицы.
func (r *Entries) FetchByPage(ctx context.Context, sec *section.Section, q *field.Query, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	total, err := r.Count(ctx, sec, q)
	if err != nil {
		return nil, err
	}
	entries, err := r.Fetch(ctx, sec, ListQuery{Query: q, Limit: perPage, Offset: (page - 1) * perPage})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*section.Entry{}
	}
	return &Page{
		Entries:    entries,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// DistinctValues — различные значения колонки поля по возрастанию (подсказки тегов).
func (r *Entries) DistinctValues(ctx context.Context, fieldID int64, column string) ([]string, error) {
	s := r.s
	f, ok := s.Fields.Fetch(fieldID)
	if !ok {
		return nil, fmt.Errorf("field %d: %w", fieldID, ErrNotFound)
	}
	st, ok := f.(field.Storable)
	if !ok || !containsString(st.Columns(), column) {
		return nil, fmt.Errorf("field %d has no column %q", fieldID, column)
	}
	col := s.Dialect.QuoteIdent(column)
	q := fmt.Sprintf(`select distinct %s from %s where %s is not null order by %s asc`,
		col, s.Dialect.QuoteIdent(field.DataTableName(s.Prefix, fieldID)), col, col)

	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, wrapDB("distinct values", q, err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, wrapDB("distinct values", q, err)
		}
		out = append(out, asString(v))
	}
	return out, wrapDB("distinct values", q, rows.Err())
}

// loadData подтягивает данные всех полей секции для набора записей.
func (r *Entries) loadData(ctx context.Context, sec *section.Section, entries []*section.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s := r.s
	byID := make(map[int64]*section.Entry, len(entries))
	args := make([]any, 0, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
		args = append(args, e.ID)
	}
	in := s.placeholders(1, len(args))

	for _, def := range sec.Fields {
		f, err := s.field(def)
		if err != nil {
			return err
		}
		st, ok := f.(field.Storable)
		if !ok {
			continue
		}
		cols := st.Columns()
		quoted := make([]string, 0, len(cols))
		for _, c := range cols {
			quoted = append(quoted, s.Dialect.QuoteIdent(c))
		}
		q := fmt.Sprintf(`select "entry_id", %s from %s where "entry_id" in (%s) order by "id"`,
			strings.Join(quoted, ", "), s.Dialect.QuoteIdent(field.DataTableName(s.Prefix, def.ID)), in)

		if err := r.scanField(ctx, q, args, cols, st.Multiple(), def.ID, byID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Entries) scanField(ctx context.Context, q string, args []any, cols []string, multiple bool, fieldID int64, byID map[int64]*section.Entry) error {
	rows, err := r.s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return wrapDB("load field data", q, err)
	}
	defer rows.Close()

	for rows.Next() {
		var entryID int64
		vals := make([]any, len(cols))
		dest := make([]any, 0, len(cols)+1)
		dest = append(dest, &entryID)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return wrapDB("load field data", q, err)
		}
		e := byID[entryID]
		if e == nil {
			continue
		}
		rec := e.Get(fieldID)
		if rec == nil {
			rec = section.Record{}
			e.Set(fieldID, rec)
		}
		for i, c := range cols {
			if multiple {
				list, _ := rec[c].([]string)
				rec[c] = append(list, asString(vals[i]))
				continue
			}
			rec[c] = normalize(vals[i])
		}
	}
	return wrapDB("load field data", q, rows.Err())
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

// asList сводит значение многострочного поля к срезу.
func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, 0, len(t))
		for _, s := range t {
			out = append(out, s)
		}
		return out
	default:
		return []any{t}
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// asTime читает время из драйвера: pgx даёт time.Time, sqlite может вернуть строку.
func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case []byte:
		return asTime(string(t))
	case string:
		for _, l := range timeLayouts {
			if ts, err := time.Parse(l, t); err == nil {
				return ts.UTC()
			}
		}
	case int64:
		return time.Unix(t, 0).UTC()
	}
	return time.Time{}
}

func containsString(list []string, s string) bool {
	for _, it := range list {
		if it == s {
			return true
		}
	}
	return false
}
