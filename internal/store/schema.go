package store

import (
	"fmt"

	"symphony/internal/field"
)

// имена ключей задают порядок применения в ApplyDDL
func CoreDDL(d field.Dialect, prefix string) map[string]string {
	q := d.QuoteIdent
	sections := q(prefix + "sections")
	fields := q(prefix + "fields")
	entries := q(prefix + "entries")

	return map[string]string{
		"1_sections": fmt.Sprintf(`create table if not exists %s (
  %s,
  "handle" varchar(255) not null unique,
  "name" varchar(255) not null,
  "navigation_group" varchar(255) not null default 'Content',
  "filter" varchar(32) not null default '',
  "sort_field" varchar(255) not null default '',
  "sort_order" varchar(8) not null default 'asc'
)`, sections, d.IdentityColumn()),

		"2_fields": fmt.Sprintf(`create table if not exists %s (
  %s,
  "section_id" bigint not null references %s ("id") on delete cascade,
  "element_name" varchar(255) not null,
  "label" varchar(255) not null,
  "type" varchar(32) not null,
  "required" boolean not null default false,
  "location" varchar(16) not null default 'main',
  "sortorder" integer not null default 0,
  "show_column" boolean not null default false,
  "settings" text not null default '{}',
  unique ("section_id", "element_name")
)`, fields, d.IdentityColumn(), sections),

		"3_entries": fmt.Sprintf(`create table if not exists %s (
  %s,
  "section_id" bigint not null references %s ("id") on delete cascade,
  "created_at" %s not null,
  "modified_at" %s not null
)`, entries, d.IdentityColumn(), sections, d.TimestampType(), d.TimestampType()),

		"4_entries_section_idx": fmt.Sprintf(`create index if not exists %s on %s ("section_id")`,
			q(prefix+"entries_section_idx"), entries),
	}
}

// FieldDDL — DDL таблицы данных поля; nil для полей без хранения.
func FieldDDL(f field.Field, d field.Dialect, prefix string) map[string]string {
	st, ok := f.(field.Storable)
	if !ok {
		return nil
	}
	out := make(map[string]string)
	for i, stmt := range st.Schema(d, prefix) {
		out[fmt.Sprintf("field_%d_%02d", f.Definition().ID, i)] = stmt
	}
	return out
}
