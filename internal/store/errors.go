package store

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

// ErrNotFound — записи нет.
var ErrNotFound = errors.New("not found")

// DatabaseError — ошибка драйвера с кодом и текстом запроса.
type DatabaseError struct {
	Op      string
	Code    string
	Message string
	Query   string
	Err     error
}

func (e *DatabaseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: [%s] %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// wrapDB заворачивает ошибку драйвера в *DatabaseError; nil и ErrNotFound как есть.
func wrapDB(op, query string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var de *DatabaseError
	if errors.As(err, &de) {
		return err
	}
	out := &DatabaseError{Op: op, Message: err.Error(), Query: query, Err: err}

	var pgErr *pgconn.PgError
	var liteErr *sqlite.Error
	switch {
	case errors.As(err, &pgErr):
		out.Code = pgErr.Code
		out.Message = pgErr.Message
	case errors.As(err, &liteErr):
		out.Code = strconv.Itoa(liteErr.Code())
	}
	return out
}

// IsDatabaseError — ошибка пришла из базы, а не из построения запроса.
func IsDatabaseError(err error) bool {
	var de *DatabaseError
	return errors.As(err, &de)
}
