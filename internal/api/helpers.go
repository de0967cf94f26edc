package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"symphony/internal/field"
	"symphony/internal/section"
)

// flatten — запись для ответа: служебные поля, данные по element name
// и короткие значения для таблицы в "_table".
func flatten(fields []field.Field, e *section.Entry) map[string]any {
	out := map[string]any{
		"id":          e.ID,
		"section_id":  e.SectionID,
		"created_at":  e.CreatedAt.Format(time.RFC3339),
		"modified_at": e.ModifiedAt.Format(time.RFC3339),
	}
	table := map[string]string{}
	for _, f := range fields {
		def := f.Definition()
		r := e.Get(def.ID)
		if r == nil {
			continue
		}
		if tv, ok := f.(field.TableValuer); ok {
			table[def.ElementName] = tv.PrepareTableValue(r)
		}
		// поля пользователя не перетирают служебные, если вдруг совпадут
		if _, clash := out[def.ElementName]; clash {
			out["data."+def.ElementName] = r
			continue
		}
		out[def.ElementName] = r
	}
	out["_table"] = table
	return out
}

func flattenAll(fields []field.Field, entries []*section.Entry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, flatten(fields, e))
	}
	return out
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
