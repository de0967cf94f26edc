// Package store — реляционное хранилище секций, полей и записей.
// Каждое поле живёт в своей таблице <prefix>entries_data_<id>.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"symphony/internal/field"
)

// Open открывает базу и проверяет соединение. driver: pgx | sqlite.
func Open(ctx context.Context, driver, url string) (*sql.DB, field.Dialect, error) {
	d, err := field.DialectFor(driver)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(d.Name(), url)
	if err != nil {
		return nil, nil, err
	}
	if d == field.SQLite {
		// один писатель; :memory: живёт в пределах соединения
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, d, nil
}
