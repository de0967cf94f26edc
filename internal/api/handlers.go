package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symphony/internal/datasource"
	"symphony/internal/field"
	"symphony/internal/section"
	"symphony/internal/store"
)

// FilterAlert — что видит автор, когда отфильтрованная выборка упала.
const FilterAlert = "An error occurred while retrieving filtered entries. Showing all entries instead."

type publishReq struct {
	Fields map[string]any `json:"fields"`
}

// POST /api/publish/:section
func CreateHandler(s *Server) gin.HandlerFunc {
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

		var req publishReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		data, errs := prepareFields(sec, fields, req.Fields, false)
		if len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		e, err := s.Store.Entries().Create(c.Request.Context(), sec, data)
		if err != nil {
			s.internalError(c, err)
			return
		}
		c.JSON(http.StatusCreated, flatten(fields, e))
	}
}

// GET /api/publish/:section?filter[<поле>]=...&sort=...&order=...&pg=...
// Значения фильтра: "," — любое из, "+" — все сразу. Литеральный "+" в query
// декодируется в пробел, поэтому AND передаётся как %2B (filter[tags]=go%2Bsql).
func ListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		sec, ok := s.sectionFrom(c)
		if !ok {
			return
		}
		fields, err := s.Store.Fields.ByElement(sec)
		if err != nil {
			s.internalError(c, err)
			return
		}
		lp := parseListParams(c.Request.URL.Query(), s.Cfg.PaginationMaxRows)

		sortField, order := lp.Sort, lp.Order
		if sortField == "" {
			sortField, order = sec.SortField, sec.SortOrder
		}
		q := field.NewQuery(s.Store.Dialect, s.Store.Prefix)
		if err := datasource.ApplySort(q, fields, sortField, order); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": []section.FieldError{ferr(section.ErrInvalid, "sort", err.Error())}})
			return
		}

		var ferrs []section.FieldError
		for _, f := range lp.Filters {
			if _, ok := fields[f.Field]; !ok && f.Field != "system:id" {
				ferrs = append(ferrs, ferr(section.ErrNotFound, "filter."+f.Field, "Unknown field"))
			}
		}
		if len(ferrs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": ferrs})
			return
		}

		ctx := c.Request.Context()
		var page *store.Page
		err = nil
		for _, f := range lp.Filters {
			if err = datasource.ApplyFilter(q, fields, f.Field, f.Value); err != nil {
				break
			}
		}
		if err == nil {
			page, err = s.Store.Entries().FetchByPage(ctx, sec, q, lp.Page, lp.PerPage)
		}

		// упавший фильтр: предупреждаем и показываем всё
		alert := ""
		if err != nil && filterFailed(err) {
			s.Log.Warn("filtered query failed, falling back",
				zap.String("section", sec.Handle),
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.Error(err))
			alert = FilterAlert
			plain := field.NewQuery(s.Store.Dialect, s.Store.Prefix)
			_ = datasource.ApplySort(plain, fields, sortField, order)
			page, err = s.Store.Entries().FetchByPage(ctx, sec, plain, lp.Page, lp.PerPage)
		}
		if err != nil {
			s.internalError(c, err)
			return
		}

		list, _ := s.Store.Fields.ForSection(sec)
		body := gin.H{
			"entries": flattenAll(list, page.Entries),
			"pagination": gin.H{
				"total_entries": page.Total,
				"total_pages":   page.TotalPages,
				"per_page":      page.PerPage,
				"current_page":  page.Page,
			},
		}
		if alert != "" {
			body["alert"] = alert
		}
		c.Header("X-Total-Count", strconv.Itoa(page.Total))
		c.JSON(http.StatusOK, body)
	}
}

// filterFailed — ошибка выборки из-за фильтра, а не из-за сервера.
func filterFailed(err error) bool {
	return store.IsDatabaseError(err) ||
		errors.Is(err, field.ErrRegexUnsupported) ||
		errors.Is(err, field.ErrInvalidFilter)
}

// GET /api/publish/:section/:id
func GetOneHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		sec, ok := s.sectionFrom(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		e, err := s.Store.Entries().Get(c.Request.Context(), sec, id)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}
		fields, _ := s.Store.Fields.ForSection(sec)
		c.JSON(http.StatusOK, flatten(fields, e))
	}
}

// PUT /api/publish/:section/:id — меняются только присланные поля.
func UpdateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		sec, ok := s.sectionFrom(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		fields, err := s.Store.Fields.ForSection(sec)
		if err != nil {
			s.internalError(c, err)
			return
		}

		var req publishReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		data, errs := prepareFields(sec, fields, req.Fields, true)
		if len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		e, err := s.Store.Entries().Update(c.Request.Context(), sec, id, data)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, flatten(fields, e))
	}
}

// DELETE /api/publish/:section/:id
func DeleteHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		sec, ok := s.sectionFrom(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		err := s.Store.Entries().Delete(c.Request.Context(), sec, id)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type bulkIDsReq struct {
	IDs []int64 `json:"ids"`
}

// POST /api/publish/:section/_bulk_delete {ids:[]}
func BulkDeleteHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		sec, ok := s.sectionFrom(c)
		if !ok {
			return
		}
		var req bulkIDsReq
		if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: expected {ids:[]}"})
			return
		}
		n, err := s.Store.Entries().DeleteMany(c.Request.Context(), sec, req.IDs)
		if err != nil {
			s.internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
	}
}

// POST /api/publish/:section/:id/toggle/:field?value=yes
func ToggleHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		sec, ok := s.sectionFrom(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		fields, err := s.Store.Fields.ByElement(sec)
		if err != nil {
			s.internalError(c, err)
			return
		}
		f, ok := fields[c.Param("field")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Field not found"})
			return
		}
		tg, ok := f.(field.Toggleable)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Field cannot be toggled"})
			return
		}

		ctx := c.Request.Context()
		e, err := s.Store.Entries().Get(ctx, sec, id)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}

		fid := f.Definition().ID
		rec, err := tg.ToggleFieldData(e.Get(fid), c.Query("value"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": []section.FieldError{ferr(section.ErrInvalid, c.Param("field"), err.Error())}})
			return
		}
		e, err = s.Store.Entries().Update(ctx, sec, id, map[int64]section.Record{fid: rec})
		if err != nil {
			s.internalError(c, err)
			return
		}
		list, _ := s.Store.Fields.ForSection(sec)
		c.JSON(http.StatusOK, flatten(list, e))
	}
}

// GET /api/publish/:section/_suggest/:field — подсказки значений (теги).
func SuggestHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		sec, ok := s.sectionFrom(c)
		if !ok {
			return
		}
		fields, err := s.Store.Fields.ByElement(sec)
		if err != nil {
			s.internalError(c, err)
			return
		}
		sg, ok := fields[c.Param("field")].(field.Suggester)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Field has no suggestions"})
			return
		}

		seen := map[string]struct{}{}
		out := []string{}
		for _, src := range sg.SuggestionSources() {
			vals, err := s.Store.Entries().DistinctValues(c.Request.Context(), src, "value")
			if err != nil {
				s.Log.Warn("suggestion source failed", zap.Int64("field_id", src), zap.Error(err))
				continue
			}
			for _, v := range vals {
				if _, dup := seen[v]; !dup {
					seen[v] = struct{}{}
					out = append(out, v)
				}
			}
		}
		sort.Strings(out)
		c.JSON(http.StatusOK, out)
	}
}

// internalError пишет 500; текст ошибки БД видит только автор.
func (s *Server) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	body := gin.H{"error": "Internal error"}
	var dbErr *store.DatabaseError
	if s.isAuthor(c) {
		body["details"] = err.Error()
		if errors.As(err, &dbErr) {
			body["code"] = dbErr.Code
		}
	}
	c.JSON(http.StatusInternalServerError, body)
}
