package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"symphony/internal/field"
	"symphony/internal/section"
)

// Store — доступ к базе: схема, секции, записи.
type Store struct {
	DB      *sql.DB
	Dialect field.Dialect
	Prefix  string
	Fields  *field.Manager
	Log     *zap.Logger
}

func New(db *sql.DB, d field.Dialect, prefix string, fields *field.Manager, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{DB: db, Dialect: d, Prefix: prefix, Fields: fields, Log: log}
}

func (s *Store) table(name string) string { return s.Dialect.QuoteIdent(s.Prefix + name) }

// placeholders возвращает "p(from), p(from+1), ..." на n аргументов.
func (s *Store) placeholders(from, n int) string {
	ph := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ph = append(ph, s.Dialect.Placeholder(from+i))
	}
	return strings.Join(ph, ", ")
}

// Migrate создаёт служебные таблицы.
func (s *Store) Migrate(ctx context.Context) error {
	return ApplyDDL(ctx, s.DB, CoreDDL(s.Dialect, s.Prefix), s.Log)
}

// field возвращает настроенный экземпляр поля (из кэша менеджера или новый).
func (s *Store) field(def section.FieldDef) (field.Field, error) {
	if f, ok := s.Fields.Fetch(def.ID); ok {
		return f, nil
	}
	return s.Fields.Create(def)
}

// SyncSections приводит таблицы секций и полей к описанию из файлов:
// выдаёт id, сохраняет настройки, создаёт таблицы данных и удаляет поля,
// которых больше нет в описании. Секции, пропавшие из файлов, не трогаются.
func (s *Store) SyncSections(ctx context.Context, sections []*section.Section) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return wrapDB("sync sections", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	var dropped []int64
	for _, sec := range sections {
		if err := s.upsertSection(ctx, tx, sec); err != nil {
			return err
		}
		keep := make(map[int64]struct{}, len(sec.Fields))
		for i := range sec.Fields {
			fd := &sec.Fields[i]
			fd.SectionID = sec.ID
			fd.SortOrder = i
			// настройки по умолчанию тоже сохраняем
			f, err := s.Fields.Create(*fd)
			if err != nil {
				return fmt.Errorf("section %s: %w", sec.Handle, err)
			}
			fd.Settings = f.Definition().Settings
			if err := s.upsertField(ctx, tx, fd); err != nil {
				return err
			}
			keep[fd.ID] = struct{}{}
		}

		stale, err := s.staleFields(ctx, tx, sec.ID, keep)
		if err != nil {
			return err
		}
		dropped = append(dropped, stale...)
	}

	if err := tx.Commit(); err != nil {
		return wrapDB("sync sections", "", err)
	}

	for _, id := range dropped {
		s.Fields.Forget(id)
		q := "drop table if exists " + s.Dialect.QuoteIdent(field.DataTableName(s.Prefix, id))
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return wrapDB("drop field table", q, err)
		}
		s.Log.Info("field removed", zap.Int64("field_id", id))
	}

	for _, sec := range sections {
		for _, fd := range sec.Fields {
			s.Fields.Forget(fd.ID)
			f, err := s.Fields.Create(fd)
			if err != nil {
				return err
			}
			if err := ApplyDDL(ctx, s.DB, FieldDDL(f, s.Dialect, s.Prefix), s.Log); err != nil {
				return err
			}
		}
		s.Log.Debug("section synced", zap.String("section", sec.Handle), zap.Int64("id", sec.ID), zap.Int("fields", len(sec.Fields)))
	}
	return nil
}

func (s *Store) upsertSection(ctx context.Context, tx *sql.Tx, sec *section.Section) error {
	nav := sec.NavigationGroup
	if nav == "" {
		nav = "Content"
	}
	order := strings.ToLower(sec.SortOrder)
	if order == "" {
		order = "asc"
	}
	p := s.Dialect.Placeholder
	q := fmt.Sprintf(`insert into %s ("handle", "name", "navigation_group", "filter", "sort_field", "sort_order")
values (%s, %s, %s, %s, %s, %s)
on conflict ("handle") do update set
  "name" = excluded."name",
  "navigation_group" = excluded."navigation_group",
  "filter" = excluded."filter",
  "sort_field" = excluded."sort_field",
  "sort_order" = excluded."sort_order"
returning "id"`, s.table("sections"), p(1), p(2), p(3), p(4), p(5), p(6))

	err := tx.QueryRowContext(ctx, q, sec.Handle, sec.Name, nav, string(sec.Filter), sec.SortField, order).Scan(&sec.ID)
	return wrapDB("upsert section "+sec.Handle, q, err)
}

func (s *Store) upsertField(ctx context.Context, tx *sql.Tx, fd *section.FieldDef) error {
	settings, err := json.Marshal(fd.Settings)
	if err != nil {
		return fmt.Errorf("field %s settings: %w", fd.ElementName, err)
	}
	p := s.Dialect.Placeholder
	q := fmt.Sprintf(`insert into %s ("section_id", "element_name", "label", "type", "required", "location", "sortorder", "show_column", "settings")
values (%s, %s, %s, %s, %s, %s, %s, %s, %s)
on conflict ("section_id", "element_name") do update set
  "label" = excluded."label",
  "type" = excluded."type",
  "required" = excluded."required",
  "location" = excluded."location",
  "sortorder" = excluded."sortorder",
  "show_column" = excluded."show_column",
  "settings" = excluded."settings"
returning "id"`, s.table("fields"), p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9))

	err = tx.QueryRowContext(ctx, q,
		fd.SectionID, fd.ElementName, fd.Label, fd.Type, fd.Required,
		string(fd.Location), fd.SortOrder, fd.ShowColumn, string(settings),
	).Scan(&fd.ID)
	return wrapDB("upsert field "+fd.ElementName, q, err)
}

// staleFields удаляет строки полей секции, которых нет в keep, и возвращает их id.
func (s *Store) staleFields(ctx context.Context, tx *sql.Tx, sectionID int64, keep map[int64]struct{}) ([]int64, error) {
	q := fmt.Sprintf(`select "id" from %s where "section_id" = %s`, s.table("fields"), s.Dialect.Placeholder(1))
	rows, err := tx.QueryContext(ctx, q, sectionID)
	if err != nil {
		return nil, wrapDB("list fields", q, err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, wrapDB("list fields", q, err)
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDB("list fields", q, err)
	}
	_ = rows.Close()

	for _, id := range stale {
		del := fmt.Sprintf(`delete from %s where "id" = %s`, s.table("fields"), s.Dialect.Placeholder(1))
		if _, err := tx.ExecContext(ctx, del, id); err != nil {
			return nil, wrapDB("delete field", del, err)
		}
	}
	return stale, nil
}
