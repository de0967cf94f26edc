package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ApplyDDL выполняет map[имя]sql в порядке имён. Ожидается идемпотентный DDL
// (create ... if not exists); duplicate_object пропускается.
func ApplyDDL(ctx context.Context, db *sql.DB, ddl map[string]string, log *zap.Logger) error {
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sqlText := strings.TrimSpace(ddl[k])
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				log.Debug("DDL skipped (already exists)", zap.String("name", k), zap.String("message", pgErr.Message))
				continue
			}
			e := strings.ToLower(err.Error())
			if strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") {
				log.Debug("DDL skipped (already exists)", zap.String("name", k), zap.Error(err))
				continue
			}
			return wrapDB("apply ddl "+k, sqlText, fmt.Errorf("DDL apply failed: %w", err))
		}
	}
	return nil
}
