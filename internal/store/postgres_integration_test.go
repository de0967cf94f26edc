//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap/zaptest"

	"symphony/internal/field"
	"symphony/internal/section"
)

func TestPostgres_EndToEnd(t *testing.T) {
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("symphony"),
		postgres.WithUsername("symphony"),
		postgres.WithPassword("symphony"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, d, err := Open(ctx, "pgx", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db, d, "tbl_", field.DefaultManager(), zaptest.NewLogger(t))
	require.NoError(t, s.Migrate(ctx))
	// повторная миграция ничего не ломает
	require.NoError(t, s.Migrate(ctx))

	sec := articles()
	require.NoError(t, s.SyncSections(ctx, []*section.Section{sec}))
	tags := sec.Fields[2].ID

	entries := s.Entries()
	_, err = entries.Create(ctx, sec, process(t, s, sec, map[string]any{"title": "Alpha", "tags": "Go, SQL"}))
	require.NoError(t, err)
	_, err = entries.Create(ctx, sec, process(t, s, sec, map[string]any{"title": "Beta", "tags": "Rust"}))
	require.NoError(t, err)

	q := field.NewQuery(s.Dialect, s.Prefix)
	f, _ := s.Fields.Fetch(tags)
	require.NoError(t, f.(field.Filterable).BuildDSRetrievalSQL([]string{"regexp:^(go|rust)$"}, q, false))
	require.NoError(t, f.(field.Sortable).BuildSortingSQL(q, "asc"))

	list, err := entries.Fetch(ctx, sec, ListQuery{Query: q})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta"}, titles(list, sec))
}
