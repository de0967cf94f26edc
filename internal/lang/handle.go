// Package lang содержит утилиты для работы с человеческими строками: хэндлы, транслитерация.
package lang

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HandleMaxLength — длина хэндла по умолчанию (как у колонок varchar(255)).
const HandleMaxLength = 255

// стандартная замена «особых» латинских букв, которые norm не раскладывает
var special = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "ae", "ø", "o", "Ø", "o",
	"œ", "oe", "Œ", "oe", "ł", "l", "Ł", "l", "đ", "d", "Đ", "d",
	"&", " and ",
)

// CreateHandle превращает произвольную строку в хэндл: латиница, цифры и delim.
//
//	CreateHandle("Crème Brûlée", 255, "-") == "creme-brulee"
//
// Если maxLen <= 0, используется HandleMaxLength.
func CreateHandle(s string, maxLen int, delim string) string {
	if maxLen <= 0 {
		maxLen = HandleMaxLength
	}
	s = special.Replace(strings.TrimSpace(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)

	var b strings.Builder
	pending := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteString(delim)
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}

	out := b.String()
	if len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], delim)
	}
	return out
}

// IsHandle — строка уже в каноничном виде (ровно то, что вернул бы CreateHandle).
func IsHandle(s, delim string) bool {
	return s != "" && CreateHandle(s, len(s), delim) == s
}
