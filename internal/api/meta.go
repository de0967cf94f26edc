package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"symphony/internal/field"
	"symphony/internal/section"
)

// ===== META HANDLERS =====

type metaSectionListItem struct {
	ID              int64  `json:"id"`
	Handle          string `json:"handle"`
	Name            string `json:"name"`
	NavigationGroup string `json:"navigation_group,omitempty"`
	Entries         int    `json:"entries"`
}

func MetaListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		all := s.Catalog.All()
		out := make([]metaSectionListItem, 0, len(all))
		for _, sec := range all {
			n, err := s.Store.Entries().Count(c.Request.Context(), sec, nil)
			if err != nil {
				s.internalError(c, err)
				return
			}
			out = append(out, metaSectionListItem{
				ID:              sec.ID,
				Handle:          sec.Handle,
				Name:            sec.Name,
				NavigationGroup: sec.NavigationGroup,
				Entries:         n,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// metaField — описание поля и того, что с ним можно делать.
type metaField struct {
	section.FieldDef
	Capabilities []string            `json:"capabilities"`
	ToggleStates []field.ToggleState `json:"toggle_states,omitempty"`
	ExportModes  []string            `json:"export_modes,omitempty"`
}

type metaSection struct {
	ID              int64              `json:"id"`
	Handle          string             `json:"handle"`
	Name            string             `json:"name"`
	NavigationGroup string             `json:"navigation_group,omitempty"`
	Filter          section.FilterMode `json:"filter,omitempty"`
	Sort            string             `json:"sort,omitempty"`
	Order           string             `json:"order,omitempty"`
	Fields          []metaField        `json:"fields"`
}

func MetaSectionHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		sec, ok := s.sectionFrom(c)
		if !ok {
			return
		}
		fields, err := s.Store.Fields.ForSection(sec)
		if err != nil {
			s.internalError(c, err)
			return
		}

		out := metaSection{
			ID:              sec.ID,
			Handle:          sec.Handle,
			Name:            sec.Name,
			NavigationGroup: sec.NavigationGroup,
			Filter:          sec.Filter,
			Sort:            sec.SortField,
			Order:           sec.SortOrder,
			Fields:          make([]metaField, 0, len(fields)),
		}
		for _, f := range fields {
			mf := metaField{FieldDef: *f.Definition(), Capabilities: capabilities(f)}
			if tg, ok := f.(field.Toggleable); ok {
				mf.ToggleStates = tg.ToggleStates()
			}
			if ex, ok := f.(field.Exportable); ok {
				for name := range ex.ExportModes() {
					mf.ExportModes = append(mf.ExportModes, name)
				}
				sort.Strings(mf.ExportModes)
			}
			out.Fields = append(out.Fields, mf)
		}
		c.JSON(http.StatusOK, out)
	}
}

// capabilities — какие необязательные интерфейсы реализует поле.
func capabilities(f field.Field) []string {
	caps := []string{}
	add := func(ok bool, name string) {
		if ok {
			caps = append(caps, name)
		}
	}
	_, ok := f.(field.Filterable)
	add(ok, "filter")
	_, ok = f.(field.Sortable)
	add(ok, "sort")
	_, ok = f.(field.Groupable)
	add(ok, "group")
	_, ok = f.(field.Toggleable)
	add(ok, "toggle")
	_, ok = f.(field.Exportable)
	add(ok, "export")
	_, ok = f.(field.Importable)
	add(ok, "import")
	_, ok = f.(field.ParamOutput)
	add(ok, "param_output")
	_, ok = f.(field.Suggester)
	add(ok, "suggest")
	return caps
}

func MetaFieldTypesHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"types": s.Store.Fields.Types()})
	}
}
