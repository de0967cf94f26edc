package field

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symphony/internal/section"
)

func newCheckbox(t *testing.T, id int64, settings map[string]any) *Checkbox {
	t.Helper()
	f, err := DefaultManager().Create(section.FieldDef{
		ID: id, Label: "Published", ElementName: "published", Type: TypeCheckbox, Settings: settings,
	})
	require.NoError(t, err)
	return f.(*Checkbox)
}

func TestCheckbox_ProcessNormalizes(t *testing.T) {
	f := newCheckbox(t, 5, nil)

	on, err := f.ProcessRawFieldData("On")
	require.NoError(t, err)
	yes, err := f.ProcessRawFieldData("yes")
	require.NoError(t, err)
	off, err := f.ProcessRawFieldData("off")
	require.NoError(t, err)
	none, err := f.ProcessRawFieldData(nil)
	require.NoError(t, err)

	assert.Equal(t, on, yes)
	assert.Equal(t, section.Record{"value": "yes"}, on)
	assert.Equal(t, section.Record{"value": "no"}, off)
	assert.Equal(t, off, none)

	again, err := f.ProcessRawFieldData(on)
	require.NoError(t, err)
	assert.Equal(t, on, again)
}

func TestCheckbox_Required(t *testing.T) {
	f := newCheckbox(t, 5, nil)
	f.def.Required = true

	st, msg := f.CheckPostFieldData("")
	assert.Equal(t, StatusMissingRequired, st)
	assert.Contains(t, msg, "Published")

	st, _ = f.CheckPostFieldData("on")
	assert.Equal(t, StatusOK, st)
}

func TestCheckbox_ExportEmptySentinels(t *testing.T) {
	f := newCheckbox(t, 5, nil)
	empty := section.Record{}

	assert.Equal(t, "no", f.PrepareExportValue(empty, ExportPostdata))
	assert.Equal(t, "No", f.PrepareExportValue(empty, ExportValue))
	assert.Equal(t, false, f.PrepareExportValue(empty, ExportBoolean))
	assert.Nil(t, f.PrepareExportValue(empty, ExportListOf|ExportHandle))
	assert.Nil(t, f.PrepareExportValue(nil, ExportHandle))

	yes := section.Record{"value": "yes"}
	assert.Equal(t, true, f.PrepareExportValue(yes, ExportBoolean))
	assert.Equal(t, "Yes", f.PrepareTableValue(yes))
}

func TestCheckbox_FilterAndMode(t *testing.T) {
	f := newCheckbox(t, 5, nil)
	q := NewQuery(Postgres, "tbl_")

	require.NoError(t, f.BuildDSRetrievalSQL([]string{"yes", "no"}, q, true))

	assert.Equal(t, 2, q.JoinCount())
	assert.Contains(t, q.JoinsSQL(), `LEFT JOIN "tbl_entries_data_5" AS t5_1 ON (e.id = t5_1.entry_id)`)
	assert.Contains(t, q.JoinsSQL(), `AS t5_2 ON`)
	assert.Equal(t, " AND (t5_1.value = $1) AND (t5_2.value = $2 OR t5_2.value IS NULL)", q.WhereSQL())
	assert.Equal(t, []any{"yes", "no"}, q.Args())
}

func TestCheckbox_FilterOrModeSingleJoin(t *testing.T) {
	f := newCheckbox(t, 7, map[string]any{"default_state": "on"})
	q := NewQuery(Postgres, "tbl_")

	require.NoError(t, f.BuildDSRetrievalSQL([]string{"yes", "no", " "}, q, false))

	assert.Equal(t, 1, q.JoinCount())
	assert.Equal(t, 1, strings.Count(q.WhereSQL(), "IN ("))
	assert.Equal(t, " AND (t7_1.value IN ($1, $2) OR t7_1.value IS NULL)", q.WhereSQL())
	assert.Len(t, q.Args(), 2)
}

func TestCheckbox_FilterNoDefaultNoNull(t *testing.T) {
	f := newCheckbox(t, 7, nil)
	q := NewQuery(SQLite, "")

	require.NoError(t, f.BuildDSRetrievalSQL([]string{"yes"}, q, false))
	assert.Equal(t, " AND (t7_1.value IN (?1))", q.WhereSQL())
}

func TestCheckbox_MissingIDAborts(t *testing.T) {
	f := newCheckbox(t, 0, nil)
	q := NewQuery(Postgres, "tbl_")

	err := f.BuildDSRetrievalSQL([]string{"yes"}, q, false)
	assert.True(t, errors.Is(err, ErrNoFieldID))
	assert.True(t, errors.Is(f.BuildSortingSQL(q, "asc"), ErrNoFieldID))
	assert.Equal(t, 0, q.JoinCount())
}

func TestCheckbox_Sorting(t *testing.T) {
	f := newCheckbox(t, 5, nil)

	q := NewQuery(Postgres, "tbl_")
	require.NoError(t, f.BuildSortingSQL(q, "desc"))
	assert.Equal(t, `ORDER BY (SELECT ed."value" FROM "tbl_entries_data_5" AS ed WHERE ed.entry_id = e.id) DESC`, q.OrderSQL())

	q = NewQuery(Postgres, "tbl_")
	require.NoError(t, f.BuildSortingSQL(q, "random"))
	assert.Equal(t, "RANDOM()", q.Sort())

	assert.Error(t, f.BuildSortingSQL(q, "sideways"))
}

func TestCheckbox_GroupRecords(t *testing.T) {
	f := newCheckbox(t, 5, nil)

	assert.NotNil(t, f.GroupRecords(nil))
	assert.Empty(t, f.GroupRecords(nil))

	e1 := &section.Entry{ID: 1}
	e1.Set(5, section.Record{"value": "yes"})
	e2 := &section.Entry{ID: 2}
	e3 := &section.Entry{ID: 3}
	e3.Set(5, section.Record{"value": "no"})

	g := f.GroupRecords([]*section.Entry{e1, e2, e3})
	require.Contains(t, g, "published")
	buckets := g.Buckets("published")
	require.Len(t, buckets, 2)
	assert.Equal(t, "no", buckets[0].Value)
	assert.Len(t, buckets[0].Entries, 2)
	assert.Equal(t, "yes", buckets[1].Value)
}

func TestCheckbox_Toggle(t *testing.T) {
	f := newCheckbox(t, 5, nil)
	assert.Len(t, f.ToggleStates(), 2)

	r, err := f.ToggleFieldData(section.Record{"value": "no"}, "yes")
	require.NoError(t, err)
	assert.Equal(t, "yes", r["value"])

	_, err = f.ToggleFieldData(nil, "maybe")
	assert.Error(t, err)
}

func TestCheckbox_SchemaDefault(t *testing.T) {
	f := newCheckbox(t, 5, map[string]any{"default_state": "on"})
	ddl := f.Schema(Postgres, "tbl_")
	require.Len(t, ddl, 3)
	assert.Contains(t, ddl[0], `default 'yes'`)
	assert.Contains(t, ddl[1], "unique index")
}
