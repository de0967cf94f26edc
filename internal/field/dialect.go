package field

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrRegexUnsupported — диалект не умеет фильтровать по регулярке.
var ErrRegexUnsupported = errors.New("regexp filtering is not supported by this database")

// Dialect скрывает различия SQL между поддерживаемыми базами.
type Dialect interface {
	Name() string
	// Placeholder возвращает плейсхолдер n-го аргумента (с единицы).
	Placeholder(n int) string
	QuoteIdent(s string) string
	// IdentityColumn — объявление автоинкрементного первичного ключа "id".
	IdentityColumn() string
	// TimestampType — тип колонки для дат записей.
	TimestampType() string
	Random() string
	// RegexpOp возвращает оператор сравнения с регуляркой без учёта регистра.
	RegexpOp(negate bool) (string, error)
}

type postgres struct{}

func (postgres) Name() string               { return "pgx" }
func (postgres) Placeholder(n int) string   { return "$" + strconv.Itoa(n) }
func (postgres) QuoteIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }
func (postgres) IdentityColumn() string     { return `"id" bigserial primary key` }
func (postgres) TimestampType() string      { return "timestamptz" }
func (postgres) Random() string             { return "RANDOM()" }
func (postgres) RegexpOp(negate bool) (string, error) {
	if negate {
		return "!~*", nil
	}
	return "~*", nil
}

type sqlite struct{}

func (sqlite) Name() string { return "sqlite" }

// нумерованные ?NNN: порядок появления в тексте не обязан совпадать с порядком аргументов
func (sqlite) Placeholder(n int) string   { return "?" + strconv.Itoa(n) }
func (sqlite) QuoteIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }
func (sqlite) IdentityColumn() string     { return `"id" integer primary key autoincrement` }
func (sqlite) TimestampType() string      { return "timestamp" }
func (sqlite) Random() string             { return "RANDOM()" }
func (sqlite) RegexpOp(bool) (string, error) {
	return "", ErrRegexUnsupported
}

var (
	Postgres Dialect = postgres{}
	SQLite   Dialect = sqlite{}
)

// DialectFor подбирает диалект по имени драйвера database/sql.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
