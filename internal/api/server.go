package api

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"symphony/internal/blob"
	"symphony/internal/config"
	"symphony/internal/datasource"
	"symphony/internal/section"
	"symphony/internal/store"
)

// Server — все зависимости обработчиков; глобального состояния нет.
type Server struct {
	Cfg         config.Config
	Log         *zap.Logger
	Store       *store.Store
	Catalog     *section.Catalog
	Datasources *datasource.Repository
	Exec        *datasource.Executor
	Blob        blob.Store

	// перезагрузка секций идёт по одной
	reloadMu sync.Mutex

	idMu    sync.Mutex
	entropy io.Reader
}

// NewServer собирает сервер; исполнитель датасорсов строится здесь же.
func NewServer(cfg config.Config, log *zap.Logger, st *store.Store, catalog *section.Catalog, repo *datasource.Repository, files blob.Store) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Server{
		Cfg:         cfg,
		Log:         log,
		Store:       st,
		Catalog:     catalog,
		Datasources: repo,
		Blob:        files,
		Exec: &datasource.Executor{
			Store:    st,
			Sections: catalog,
			Log:      log,
			MaxRows:  cfg.PaginationMaxRows,
		},
		entropy: ulid.Monotonic(src, 0),
	}
}

// newID — ULID для request id; monotonic-источник не потокобезопасен.
func (s *Server) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Run слушает addr до отмены ctx, потом мягко останавливается.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("http server started", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Log.Info("http server stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// sectionFrom ищет секцию из :section; 404 уже отправлен, если нет.
func (s *Server) sectionFrom(c *gin.Context) (*section.Section, bool) {
	sec, ok := s.Catalog.Get(c.Param("section"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Section not found"})
		return nil, false
	}
	return sec, true
}
