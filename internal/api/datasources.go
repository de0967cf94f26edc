package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symphony/internal/datasource"
	"symphony/internal/section"
	"symphony/internal/store"
)

// datasourceReq — форма редактора плюс сведения об авторе.
type datasourceReq struct {
	datasource.Form
	AuthorName    string `json:"author_name"`
	AuthorWebsite string `json:"author_website"`
	AuthorEmail   string `json:"author_email"`
}

func (s *Server) about(req datasourceReq) datasource.About {
	return datasource.About{
		Version:       s.Cfg.Version,
		ReleaseDate:   time.Now().UTC().Format(time.RFC3339),
		AuthorName:    req.AuthorName,
		AuthorWebsite: req.AuthorWebsite,
		AuthorEmail:   req.AuthorEmail,
	}
}

func (s *Server) validateContext(mode datasource.Mode, existing string) datasource.ValidateContext {
	return datasource.ValidateContext{
		Mode:           mode,
		ExistingHandle: existing,
		Exists:         s.Datasources.Exists,
		Section:        s.Catalog.Get,
	}
}

// GET /api/blueprints/datasources
func DatasourceListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		defs, err := s.Datasources.List()
		if err != nil {
			s.internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, defs)
	}
}

// POST /api/blueprints/datasources
func DatasourceCreateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datasourceReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if errs := datasource.Validate(req.Form, s.validateContext(datasource.ModeNew, "")); len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		def := datasource.Build(req.Form, s.about(req))
		if err := s.Datasources.Save(def, ""); err != nil {
			s.saveError(c, def.Handle, err)
			return
		}
		s.Log.Info("datasource created", zap.String("handle", def.Handle))
		c.JSON(http.StatusCreated, def)
	}
}

// GET /api/blueprints/datasources/:handle — определение и форма редактора.
func DatasourceGetHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		def, ok := s.loadDatasource(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"datasource": def, "form": def.ToForm()})
	}
}

// PUT /api/blueprints/datasources/:handle — правка, в том числе переименование.
func DatasourceUpdateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		prev, ok := s.loadDatasource(c)
		if !ok {
			return
		}
		var req datasourceReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if errs := datasource.Validate(req.Form, s.validateContext(datasource.ModeEdit, prev.Handle)); len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		// автор не прислан — остаётся прежний
		if req.AuthorName == "" && req.AuthorWebsite == "" && req.AuthorEmail == "" {
			req.AuthorName = prev.About.AuthorName
			req.AuthorWebsite = prev.About.AuthorWebsite
			req.AuthorEmail = prev.About.AuthorEmail
		}
		def := datasource.Build(req.Form, s.about(req))
		if err := s.Datasources.Save(def, prev.Handle); err != nil {
			s.saveError(c, def.Handle, err)
			return
		}
		s.Log.Info("datasource updated", zap.String("handle", def.Handle), zap.String("previous", prev.Handle))
		c.JSON(http.StatusOK, def)
	}
}

// DELETE /api/blueprints/datasources/:handle
func DatasourceDeleteHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.Datasources.Delete(c.Param("handle"))
		switch {
		case errors.Is(err, datasource.ErrNotFound), errors.Is(err, datasource.ErrBadHandle):
			c.JSON(http.StatusNotFound, gin.H{"error": "Datasource not found"})
		case err != nil:
			s.internalError(c, err)
		default:
			c.Status(http.StatusNoContent)
		}
	}
}

// GET /api/datasources/:handle?<параметры страницы>
func DatasourceExecuteHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		def, ok := s.loadDatasource(c)
		if !ok {
			return
		}
		res, err := s.Exec.Run(c.Request.Context(), def, pageParams(c.Request.URL.Query()))
		switch {
		case errors.Is(err, datasource.ErrEmpty):
			c.JSON(http.StatusNotFound, gin.H{"error": "No entries"})
			return
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Section not found"})
			return
		case err != nil:
			s.Log.Error("datasource failed", zap.String("handle", def.Handle), zap.Error(err))
			s.internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) loadDatasource(c *gin.Context) (*datasource.Definition, bool) {
	def, err := s.Datasources.Load(c.Param("handle"))
	switch {
	case errors.Is(err, datasource.ErrNotFound), errors.Is(err, datasource.ErrBadHandle):
		c.JSON(http.StatusNotFound, gin.H{"error": "Datasource not found"})
		return nil, false
	case err != nil:
		s.internalError(c, err)
		return nil, false
	}
	return def, true
}

func (s *Server) saveError(c *gin.Context, handle string, err error) {
	if errors.Is(err, datasource.ErrExists) {
		c.JSON(http.StatusConflict, gin.H{"errors": []section.FieldError{
			ferr(section.ErrDuplicate, "name", "A Data source with the name "+handle+" already exists"),
		}})
		return
	}
	s.internalError(c, err)
}
