package field

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	regexpPrefix    = "regexp:"
	notRegexpPrefix = "not-regexp:"
)

// ErrInvalidFilter — значение фильтра нельзя превратить в условие (битая регулярка).
var ErrInvalidFilter = errors.New("invalid filter value")

// IsFilterRegex — значение фильтра задаёт регулярку (regexp: / not-regexp:).
func IsFilterRegex(v string) bool {
	l := strings.ToLower(strings.TrimSpace(v))
	return strings.HasPrefix(l, regexpPrefix) || strings.HasPrefix(l, notRegexpPrefix)
}

// buildRegexSQL добавляет один джойн и условие по регулярке на columns.
// regexp: — совпадение хотя бы в одной колонке, not-regexp: — ни в одной.
func buildRegexSQL(q *Query, fieldID int64, filter string, columns []string) error {
	if fieldID == 0 {
		return ErrNoFieldID
	}
	v := strings.TrimSpace(filter)
	negate := strings.HasPrefix(strings.ToLower(v), notRegexpPrefix)
	if negate {
		v = v[len(notRegexpPrefix):]
	} else {
		v = v[len(regexpPrefix):]
	}
	v = strings.TrimSpace(v)
	if _, err := regexp.Compile(v); err != nil {
		return fmt.Errorf("%w: pattern %q: %v", ErrInvalidFilter, v, err)
	}

	op, err := q.Dialect.RegexpOp(negate)
	if err != nil {
		return err
	}

	alias := q.JoinData(fieldID)
	ph := q.Arg(v)
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		parts = append(parts, fmt.Sprintf("%s.%s %s %s", alias, q.Dialect.QuoteIdent(c), op, ph))
	}
	glue := " OR "
	if negate {
		glue = " AND "
	}
	q.Where("(" + strings.Join(parts, glue) + ")")
	return nil
}

// buildValueSQL — стандартная схема фильтра по колонкам значения:
// AND — джойн на каждое значение, OR — один джойн и IN.
func buildValueSQL(q *Query, fieldID int64, values []string, and bool, columns []string) error {
	if fieldID == 0 {
		return ErrNoFieldID
	}
	values = trimValues(values)
	if len(values) == 0 {
		return nil
	}

	if and {
		for _, v := range values {
			alias := q.JoinData(fieldID)
			ph := q.Arg(v)
			parts := make([]string, 0, len(columns))
			for _, c := range columns {
				parts = append(parts, fmt.Sprintf("%s.%s = %s", alias, q.Dialect.QuoteIdent(c), ph))
			}
			q.Where("(" + strings.Join(parts, " OR ") + ")")
		}
		return nil
	}

	alias := q.JoinData(fieldID)
	list := q.ArgList(values)
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		parts = append(parts, fmt.Sprintf("%s.%s IN (%s)", alias, q.Dialect.QuoteIdent(c), list))
	}
	q.Where("(" + strings.Join(parts, " OR ") + ")")
	return nil
}

// CompileValidator переводит валидатор в стиле PCRE ("/^\d+$/i") в regexp.
// Строка без разделителей компилируется как есть.
func CompileValidator(s string) (*regexp.Regexp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if len(s) >= 2 && s[0] == '/' {
		if end := strings.LastIndexByte(s, '/'); end > 0 {
			pattern, flags := s[1:end], s[end+1:]
			var goFlags strings.Builder
			for _, f := range flags {
				switch f {
				case 'i', 'm', 's', 'U':
					goFlags.WriteRune(f)
				case 'u', 'D', 'x':
					// utf-8 по умолчанию; остальное игнорируем
				default:
					return nil, fmt.Errorf("unsupported validator flag %q", f)
				}
			}
			if goFlags.Len() > 0 {
				pattern = "(?" + goFlags.String() + ")" + pattern
			}
			return regexp.Compile(pattern)
		}
	}
	return regexp.Compile(s)
}
