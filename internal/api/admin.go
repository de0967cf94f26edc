package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symphony/internal/section"
)

type reloadReq struct {
	SectionsDir string `json:"sections_dir"` // директория с *.yaml секций
}

// POST /api/admin/reload — перечитать секции, проверить и применить к базе.
func AdminReloadHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reloadReq
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
				return
			}
		}
		dir := strings.TrimSpace(req.SectionsDir)
		if dir == "" {
			dir = s.Cfg.SectionsDir
		}

		s.reloadMu.Lock()
		defer s.reloadMu.Unlock()

		// 1) читаем новые описания
		sections, err := section.LoadAll(dir)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Section load error", "details": err.Error()})
			return
		}

		// 2) линтер: блокирующие проблемы не применяем
		if issues := section.Lint(sections, s.Store.Fields.Types()); len(issues) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":        "sections have blocking issues",
				"issues":       issues,
				"hint":         "fix section files and retry",
				"sections_dir": dir,
			})
			return
		}

		// 3) схема базы, потом каталог
		if err := s.Store.SyncSections(c.Request.Context(), sections); err != nil {
			s.internalError(c, err)
			return
		}
		s.Catalog.Replace(sections)
		s.Log.Info("sections reloaded", zap.String("dir", dir), zap.Int("sections", len(sections)))

		c.JSON(http.StatusOK, gin.H{
			"ok":           true,
			"sections_dir": dir,
			"sections":     len(sections),
		})
	}
}
