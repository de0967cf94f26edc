// Package xss — эвристический детектор XSS во входящих данных формы.
package xss

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"symphony/internal/section"
)

var (
	hexRef     = regexp.MustCompile(`(?:&#|\\)[xX]([0-9a-fA-F]+);?`)
	zeroPadRef = regexp.MustCompile(`(&#0+[0-9]+)`)
	spaces     = regexp.MustCompile(`\s`)
)

// порядок влияет только на стоимость, не на результат
var patterns = []*regexp.Regexp{
	// атрибуты on* и xmlns
	regexp.MustCompile(`(?i)(<[^>]+[\x00-\x20"'/])(on|xmlns)[^>]*>?`),
	// javascript:, livescript:, vbscript:, mocha:, feed:, data:
	regexp.MustCompile(`(?i)((java|live|vb)script|mocha|feed|data):(\w)*`),
	regexp.MustCompile(`-moz-binding[\x00-\x20]*:`),
	// style=
	regexp.MustCompile(`(?i)(<[^>]+[\x00-\x20"'/])style=[^>]*>?`),
	// теги, которым нечего делать во вводе
	regexp.MustCompile(`(?i)</*(applet|meta|xml|blink|link|style|script|embed|object|iframe|frame|frameset|ilayer|layer|bgsound|title|base)[^>]*>?`),
}

// Detect сообщает, похожа ли строка на XSS.
func Detect(s string) bool {
	if s == "" {
		return false
	}
	decoded := decode(s)
	candidates := []string{s, decoded, spaces.ReplaceAllString(decoded, "")}
	for _, p := range patterns {
		for _, c := range candidates {
			if p.MatchString(c) {
				return true
			}
		}
	}
	return false
}

// decode: URL-декодирование, hex-ссылки в символы, html-сущности.
func decode(s string) string {
	s = urlDecode(s)
	s = hexRef.ReplaceAllStringFunc(s, func(m string) string {
		sub := hexRef.FindStringSubmatch(m)
		n, err := strconv.ParseUint(sub[1], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(n))
	})
	s = zeroPadRef.ReplaceAllString(s, "$1;")
	return html.UnescapeString(s)
}

// urlDecode — терпимый аналог QueryUnescape: битые %xx остаются как есть.
func urlDecode(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			v, _ := strconv.ParseUint(s[i+1:i+3], 16, 8)
			b.WriteByte(byte(v))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// DetectInValue обходит вложенные значения формы.
func DetectInValue(v any) bool {
	switch t := v.(type) {
	case string:
		return Detect(t)
	case []string:
		for _, s := range t {
			if Detect(s) {
				return true
			}
		}
	case []any:
		return DetectInArray(t)
	case map[string]any:
		for _, it := range t {
			if DetectInValue(it) {
				return true
			}
		}
	case section.Record:
		return DetectInValue(map[string]any(t))
	case map[string]string:
		for _, s := range t {
			if Detect(s) {
				return true
			}
		}
	}
	return false
}

// DetectInArray проверяет все элементы, включая вложенные срезы;
// вложенный чистый срез не прекращает проверку соседей.
func DetectInArray(arr []any) bool {
	for _, v := range arr {
		if DetectInValue(v) {
			return true
		}
	}
	return false
}

// Strip возвращает копию данных без значений, похожих на XSS.
// Вложенные структуры чистятся рекурсивно.
func Strip(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if clean, ok := stripValue(v); ok {
			out[k] = clean
		}
	}
	return out
}

func stripValue(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		return t, !Detect(t)
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if !Detect(s) {
				out = append(out, s)
			}
		}
		return out, true
	case []any:
		out := make([]any, 0, len(t))
		for _, it := range t {
			if clean, ok := stripValue(it); ok {
				out = append(out, clean)
			}
		}
		return out, true
	case map[string]any:
		return Strip(t), true
	default:
		return v, true
	}
}

// Offending — имена полей с подозрительными значениями, по алфавиту.
func Offending(fields map[string]any) []string {
	var out []string
	for k, v := range fields {
		if DetectInValue(v) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Message — текст ошибки для режима xss-fail.
const Message = "Possible XSS attack detected in submitted data"

// Apply применяет фильтр секции к данным формы.
// xss-fail: данные не меняются, на каждое подозрительное поле — ошибка.
// xss-remove: подозрительные значения выбрасываются, ошибок нет.
func Apply(mode section.FilterMode, fields map[string]any) (map[string]any, []section.FieldError) {
	switch mode {
	case section.FilterXSSFail:
		var errs []section.FieldError
		for _, name := range Offending(fields) {
			errs = append(errs, section.FieldError{Code: section.ErrXSS, Field: name, Message: Message})
		}
		return fields, errs
	case section.FilterXSSRemove:
		return Strip(fields), nil
	default:
		return fields, nil
	}
}
