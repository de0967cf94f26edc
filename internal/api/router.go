// api/router.go
package api

import (
	"github.com/gin-gonic/gin"
)

// Route — строка таблицы маршрутов. Author — только с токеном автора.
type Route struct {
	Method  string
	Path    string
	Author  bool
	Handler func(s *Server) gin.HandlerFunc
}

// Routes — вся таблица маршрутов API.
func Routes() []Route {
	return []Route{
		// служебные маршруты секции — СНАЧАЛА
		{"POST", "/api/publish/:section/_bulk_delete", true, BulkDeleteHandler},
		{"GET", "/api/publish/:section/_suggest/:field", true, SuggestHandler},
		{"POST", "/api/publish/:section/:id/toggle/:field", true, ToggleHandler},
		{"POST", "/api/publish/:section/:id/_file/:field", true, UploadFileHandler},

		// публикация
		{"GET", "/api/publish/:section", true, ListHandler},
		{"POST", "/api/publish/:section", true, CreateHandler},
		{"GET", "/api/publish/:section/:id", true, GetOneHandler},
		{"PUT", "/api/publish/:section/:id", true, UpdateHandler},
		{"DELETE", "/api/publish/:section/:id", true, DeleteHandler},

		{"GET", "/api/files/*key", false, DownloadFileHandler},

		{"GET", "/api/meta/sections", false, MetaListHandler},
		{"GET", "/api/meta/sections/:section", false, MetaSectionHandler},
		{"GET", "/api/meta/fields/types", false, MetaFieldTypesHandler},

		{"GET", "/api/blueprints/datasources", true, DatasourceListHandler},
		{"POST", "/api/blueprints/datasources", true, DatasourceCreateHandler},
		{"GET", "/api/blueprints/datasources/:handle", true, DatasourceGetHandler},
		{"PUT", "/api/blueprints/datasources/:handle", true, DatasourceUpdateHandler},
		{"DELETE", "/api/blueprints/datasources/:handle", true, DatasourceDeleteHandler},

		{"GET", "/api/datasources/:handle", false, DatasourceExecuteHandler},

		{"POST", "/api/admin/reload", true, AdminReloadHandler},
	}
}

// Engine собирает gin: middleware и маршруты из таблицы.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(s.requestID(), s.accessLog(), s.recovery())

	for _, rt := range Routes() {
		h := rt.Handler(s)
		if rt.Author {
			r.Handle(rt.Method, rt.Path, s.authorOnly(), h)
			continue
		}
		r.Handle(rt.Method, rt.Path, h)
	}
	return r
}
