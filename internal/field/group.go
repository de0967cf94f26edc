package field

import (
	"sort"

	"symphony/internal/section"
)

// Group — корзина записей с одинаковым значением поля.
type Group struct {
	Value   string            `json:"value"`
	Attr    map[string]string `json:"attr"`
	Entries []*section.Entry  `json:"-"`
}

// Groups: element name → значение → корзина.
type Groups map[string]map[string]*Group

// add кладёт запись в корзину, создавая её при необходимости.
func (g Groups) add(element, value string, attr map[string]string, e *section.Entry) {
	byValue, ok := g[element]
	if !ok {
		byValue = make(map[string]*Group)
		g[element] = byValue
	}
	b, ok := byValue[value]
	if !ok {
		b = &Group{Value: value, Attr: attr}
		byValue[value] = b
	}
	b.Entries = append(b.Entries, e)
}

// Buckets возвращает корзины элемента, отсортированные по значению.
func (g Groups) Buckets(element string) []*Group {
	byValue := g[element]
	out := make([]*Group, 0, len(byValue))
	for _, b := range byValue {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}
