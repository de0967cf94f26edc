package field

import (
	"fmt"
	"strings"
)

// EntriesAlias — алиас основной таблицы записей во всех запросах.
const EntriesAlias = "e"

// Query накапливает фрагменты JOIN / WHERE / ORDER BY, которые поля добавляют
// при фильтрации и сортировке. Живёт в пределах одного запроса; счётчик key
// делает алиасы уникальными при повторных фильтрах по одному полю.
type Query struct {
	Dialect Dialect
	Prefix  string

	joins    []string
	where    []string
	sort     string
	args     []any
	key      int
	distinct bool
}

func NewQuery(d Dialect, prefix string) *Query {
	return &Query{Dialect: d, Prefix: prefix}
}

// NextKey увеличивает счётчик алиасов и возвращает новое значение.
func (q *Query) NextKey() int {
	q.key++
	return q.key
}

// Arg добавляет аргумент и возвращает его плейсхолдер.
func (q *Query) Arg(v any) string {
	q.args = append(q.args, v)
	return q.Dialect.Placeholder(len(q.args))
}

// ArgList добавляет несколько аргументов и возвращает "p1, p2, ...".
func (q *Query) ArgList(vals []string) string {
	ph := make([]string, 0, len(vals))
	for _, v := range vals {
		ph = append(ph, q.Arg(v))
	}
	return strings.Join(ph, ", ")
}

// EntriesTable — квотированное имя основной таблицы записей.
func (q *Query) EntriesTable() string {
	return q.Dialect.QuoteIdent(q.Prefix + "entries")
}

// DataTable — квотированное имя таблицы данных поля.
func (q *Query) DataTable(fieldID int64) string {
	return q.Dialect.QuoteIdent(DataTableName(q.Prefix, fieldID))
}

// Alias — алиас джойна данных поля: t<field>_<key>.
func Alias(fieldID int64, key int) string {
	return fmt.Sprintf("t%d_%d", fieldID, key)
}

// DataTableName — неквотированное имя таблицы данных поля.
func DataTableName(prefix string, fieldID int64) string {
	return fmt.Sprintf("%sentries_data_%d", prefix, fieldID)
}

// JoinData добавляет LEFT JOIN таблицы данных поля и возвращает алиас.
func (q *Query) JoinData(fieldID int64) string {
	alias := Alias(fieldID, q.NextKey())
	q.joins = append(q.joins, fmt.Sprintf(
		"LEFT JOIN %s AS %s ON (%s.id = %s.entry_id)",
		q.DataTable(fieldID), alias, EntriesAlias, alias,
	))
	return alias
}

// Join добавляет произвольный JOIN-фрагмент.
func (q *Query) Join(sql string) { q.joins = append(q.joins, strings.TrimSpace(sql)) }

// Where добавляет условие; все условия склеиваются через AND.
func (q *Query) Where(cond string) { q.where = append(q.where, strings.TrimSpace(cond)) }

// SetSort задаёт ORDER BY (без самих ключевых слов).
func (q *Query) SetSort(expr string) { q.sort = expr }

// RequireDistinct — многострочные джойны требуют GROUP BY по записи.
func (q *Query) RequireDistinct() { q.distinct = true }

func (q *Query) Distinct() bool  { return q.distinct }
func (q *Query) JoinCount() int  { return len(q.joins) }
func (q *Query) Args() []any     { return q.args }
func (q *Query) Sort() string    { return q.sort }
func (q *Query) Conditions() int { return len(q.where) }

// JoinsSQL склеивает джойны.
func (q *Query) JoinsSQL() string { return strings.Join(q.joins, "\n") }

// WhereSQL возвращает "AND (...) AND (...)" для дописывания к базовому условию.
func (q *Query) WhereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	var b strings.Builder
	for _, w := range q.where {
		b.WriteString(" AND ")
		b.WriteString(w)
	}
	return b.String()
}

// OrderSQL возвращает "ORDER BY ..." или пустую строку.
func (q *Query) OrderSQL() string {
	if q.sort == "" {
		return ""
	}
	return "ORDER BY " + q.sort
}

// normalizeOrder приводит направление сортировки к asc|desc|random.
func normalizeOrder(order string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "asc":
		return "ASC", nil
	case "desc":
		return "DESC", nil
	case "random", "rand":
		return "random", nil
	default:
		return "", fmt.Errorf("unknown sort order %q", order)
	}
}

// sortBySubquery — стандартная сортировка по колонке таблицы данных поля.
func sortBySubquery(q *Query, fieldID int64, column, order string) error {
	if fieldID == 0 {
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
	q.SetSort(fmt.Sprintf(
		"(SELECT ed.%s FROM %s AS ed WHERE ed.entry_id = %s.id) %s",
		q.Dialect.QuoteIdent(column), q.DataTable(fieldID), EntriesAlias, dir,
	))
	return nil
}
