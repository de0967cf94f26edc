package section

import (
	"fmt"
	"sort"
	"strings"
)

type Issue struct {
	Section string `json:"section"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint проверяет базовые противоречия в описаниях секций.
// knownTypes — зарегистрированные типы полей.
func Lint(sections []*Section, knownTypes []string) []Issue {
	var issues []Issue

	types := make(map[string]struct{}, len(knownTypes))
	for _, t := range knownTypes {
		types[t] = struct{}{}
	}

	for _, s := range sections {
		switch s.Filter {
		case FilterNone, FilterXSSFail, FilterXSSRemove:
		default:
			issues = append(issues, Issue{
				Section: s.Handle,
				Code:    "filter_unknown",
				Message: fmt.Sprintf("unknown filter %q (allowed: xss-fail|xss-remove)", s.Filter),
			})
		}
		switch s.SortOrder {
		case "", "asc", "desc", "random", "rand":
		default:
			issues = append(issues, Issue{
				Section: s.Handle,
				Code:    "order_unknown",
				Message: fmt.Sprintf("unknown sort order %q", s.SortOrder),
			})
		}

		names := map[string]struct{}{}
		for _, f := range s.Fields {
			if strings.TrimSpace(f.Label) == "" {
				issues = append(issues, Issue{Section: s.Handle, Field: f.ElementName, Code: "label_empty", Message: "field has no label"})
			}
			if f.ElementName == "" {
				issues = append(issues, Issue{Section: s.Handle, Field: f.Label, Code: "element_name_empty", Message: "label contains no latin characters, set element_name"})
			} else if _, dup := names[f.ElementName]; dup {
				issues = append(issues, Issue{Section: s.Handle, Field: f.ElementName, Code: "element_name_duplicate", Message: "element name is used twice in the section"})
			}
			names[f.ElementName] = struct{}{}

			if _, ok := types[f.Type]; !ok {
				issues = append(issues, Issue{
					Section: s.Handle,
					Field:   f.ElementName,
					Code:    "type_unknown",
					Message: fmt.Sprintf("unknown field type %q", f.Type),
				})
			}
			if f.Location != LocationMain && f.Location != LocationSidebar {
				issues = append(issues, Issue{
					Section: s.Handle,
					Field:   f.ElementName,
					Code:    "location_unknown",
					Message: fmt.Sprintf("unknown location %q (allowed: main|sidebar)", f.Location),
				})
			}
		}
		if s.SortField != "" && !strings.HasPrefix(s.SortField, "system:") {
			if _, ok := names[s.SortField]; !ok {
				issues = append(issues, Issue{Section: s.Handle, Field: s.SortField, Code: "sort_field_unknown", Message: "sort field is not defined in the section"})
			}
		}
	}

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Section < issues[j].Section })
	return issues
}
