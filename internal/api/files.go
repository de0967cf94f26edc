package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symphony/internal/blob"
	"symphony/internal/field"
	"symphony/internal/section"
	"symphony/internal/store"
)

// POST /api/publish/:section/:id/_file/:field (multipart, поле "file")
func UploadFileHandler(s *Server) gin.HandlerFunc {
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
		if s.Blob == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "blob store not configured"})
			return
		}
		fields, err := s.Store.Fields.ByElement(sec)
		if err != nil {
			s.internalError(c, err)
			return
		}
		name := c.Param("field")
		f, ok := fields[name]
		if !ok || f.Type() != field.TypeUpload {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Field is not an upload field"})
			return
		}
		ctx := c.Request.Context()
		if _, err := s.Store.Entries().Get(ctx, sec, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
				return
			}
			s.internalError(c, err)
			return
		}

		file, hdr, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart file not found (field name 'file')"})
			return
		}
		defer file.Close()

		def := f.Definition()
		obj, err := s.Blob.Put(def.Setting("destination"), safeName(hdr), file)
		if err != nil {
			s.internalError(c, err)
			return
		}
		up := field.UploadedFile{
			Name:     safeName(hdr),
			Key:      obj.Key,
			Size:     obj.Size,
			MimeType: mimeOf(hdr),
			Meta:     map[string]string{"sha256": obj.SHA256},
		}

		// не прошёл проверку — файл не нужен
		if st, msg := f.(field.Validator).CheckPostFieldData(up); st != field.StatusOK {
			s.dropBlob(obj.Key)
			c.JSON(http.StatusBadRequest, gin.H{"errors": []section.FieldError{ferr(st.String(), name, msg)}})
			return
		}
		rec, err := f.(field.Processor).ProcessRawFieldData(up)
		if err != nil {
			s.dropBlob(obj.Key)
			c.JSON(http.StatusBadRequest, gin.H{"errors": []section.FieldError{ferr(section.ErrInvalid, name, err.Error())}})
			return
		}
		e, err := s.Store.Entries().Update(ctx, sec, id, map[int64]section.Record{def.ID: rec})
		if err != nil {
			s.dropBlob(obj.Key)
			s.internalError(c, err)
			return
		}

		list, _ := s.Store.Fields.ForSection(sec)
		c.JSON(http.StatusOK, gin.H{
			"file":  up,
			"entry": flatten(list, e),
		})
	}
}

func (s *Server) dropBlob(key string) {
	if err := s.Blob.Delete(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.Log.Warn("blob cleanup failed", zap.String("key", key), zap.Error(err))
	}
}

func safeName(h *multipart.FileHeader) string {
	name := strings.TrimSpace(filepath.Base(h.Filename))
	if name == "" || name == "." {
		return "file"
	}
	return name
}

func mimeOf(h *multipart.FileHeader) string {
	if mt := h.Header.Get("Content-Type"); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// GET /api/files/*key
func DownloadFileHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Blob == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "blob store not configured"})
			return
		}
		key := strings.TrimPrefix(c.Param("key"), "/")
		p, err := s.Blob.Path(key)
		if errors.Is(err, blob.ErrBadKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file key"})
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}
		if st, err := os.Stat(p); err != nil || st.IsDir() {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		c.FileAttachment(p, path.Base(key))
	}
}
