package api

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ==== Параметры листинга публикации ====

type filterParam struct {
	Field string
	Value string
}

type ListParams struct {
	Filters []filterParam
	Sort    string
	Order   string
	Page    int
	PerPage int
}

// ==== Парсинг query-параметров ====

// parseListParams понимает filter[<поле>]=<значение> и старое filter=<поле>:<значение>.
// Значения уже декодированы: "+" из URL стал пробелом, разделитель AND — %2B.
func parseListParams(q url.Values, maxRows int) ListParams {
	lp := ListParams{
		Sort:    strings.TrimSpace(q.Get("sort")),
		Order:   strings.ToLower(strings.TrimSpace(q.Get("order"))),
		Page:    1,
		PerPage: maxRows,
	}
	if lp.PerPage < 1 {
		lp.PerPage = 20
	}

	if v := q.Get("pg"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lp.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			lp.PerPage = n
		}
	}

	for key, vals := range q {
		switch {
		case key == "filter":
			for _, v := range vals {
				name, value, ok := strings.Cut(v, ":")
				if !ok {
					continue
				}
				lp.addFilter(name, value)
			}
		case strings.HasPrefix(key, "filter[") && strings.HasSuffix(key, "]"):
			name := key[len("filter[") : len(key)-1]
			for _, v := range vals {
				lp.addFilter(name, v)
			}
		}
	}
	sort.SliceStable(lp.Filters, func(i, j int) bool { return lp.Filters[i].Field < lp.Filters[j].Field })
	return lp
}

func (lp *ListParams) addFilter(name, value string) {
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if name == "" || value == "" {
		return
	}
	lp.Filters = append(lp.Filters, filterParam{Field: name, Value: value})
}

// pageParams — все параметры запроса для датасорса (первое значение ключа).
func pageParams(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for k, vals := range q {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}
