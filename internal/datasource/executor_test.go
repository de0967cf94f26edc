package datasource

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"symphony/internal/field"
	"symphony/internal/section"
	"symphony/internal/store"
)

type fixture struct {
	exec *Executor
	sec  *section.Section
	ids  map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, d, err := store.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.New(db, d, "tbl_", field.DefaultManager(), zaptest.NewLogger(t))
	require.NoError(t, st.Migrate(ctx))

	sec := &section.Section{
		Handle: "articles",
		Name:   "Articles",
		Fields: []section.FieldDef{
			{Label: "Title", ElementName: "title", Type: field.TypeInput, Location: section.LocationMain},
			{Label: "Published", ElementName: "published", Type: field.TypeCheckbox, Location: section.LocationSidebar},
			{Label: "Tags", ElementName: "tags", Type: field.TypeTagList, Location: section.LocationMain},
		},
	}
	require.NoError(t, st.SyncSections(ctx, []*section.Section{sec}))

	ids := map[string]int64{}
	for _, row := range []map[string]string{
		{"title": "Alpha", "published": "yes", "tags": "go, sql"},
		{"title": "Beta", "published": "no", "tags": "go, web"},
		{"title": "<b>Gamma</b>", "published": "yes", "tags": "sql"},
	} {
		data := map[int64]section.Record{}
		for _, def := range sec.Fields {
			f, err := st.Fields.Create(def)
			require.NoError(t, err)
			rec, err := f.(field.Processor).ProcessRawFieldData(row[def.ElementName])
			require.NoError(t, err)
			data[def.ID] = rec
		}
		e, err := st.Entries().Create(ctx, sec, data)
		require.NoError(t, err)
		ids[row["title"]] = e.ID
	}

	return &fixture{
		exec: &Executor{
			Store:    st,
			Sections: section.NewCatalog([]*section.Section{sec}),
			Log:      zaptest.NewLogger(t),
			MaxRows:  20,
		},
		sec: sec,
		ids: ids,
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func titlesOf(entries []EntryOutput) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		s, _ := e.Fields["title"].(string)
		out = append(out, s)
	}
	return out
}

func sectionDef(mut func(d *Definition)) *Definition {
	d := &Definition{
		Handle:           "articles",
		Extends:          ExtendsSection,
		Source:           "articles",
		RootElement:      "articles",
		Sort:             "title",
		Order:            "asc",
		IncludedElements: []string{"title"},
	}
	if mut != nil {
		mut(d)
	}
	return d
}

func TestExecutor_FilterModes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		filters map[string]string
		params  map[string]string
		want    []string
	}{
		{"no filters", nil, nil, []string{"<b>Gamma</b>", "Alpha", "Beta"}},
		{"or", map[string]string{"tags": "web, sql"}, nil, []string{"<b>Gamma</b>", "Alpha", "Beta"}},
		{"and", map[string]string{"tags": "go+sql"}, nil, []string{"Alpha"}},
		{"param", map[string]string{"tags": "{$tag}"}, map[string]string{"tag": "web"}, []string{"Beta"}},
		{"empty param is ignored", map[string]string{"tags": "{$tag}"}, nil, []string{"<b>Gamma</b>", "Alpha", "Beta"}},
		{"checkbox", map[string]string{"published": "no"}, nil, []string{"Beta"}},
		{"combined", map[string]string{"published": "yes", "tags": "go"}, nil, []string{"Alpha"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := fx.exec.Run(ctx, sectionDef(func(d *Definition) { d.Filters = tt.filters }), tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titlesOf(res.Entries))
		})
	}
}

func TestExecutor_SystemIDFilter(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res, err := fx.exec.Run(ctx, sectionDef(func(d *Definition) {
		d.Filters = map[string]string{"system:id": "{$id}"}
	}), map[string]string{"id": itoa(fx.ids["Beta"])})
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, titlesOf(res.Entries))

	res, err = fx.exec.Run(ctx, sectionDef(func(d *Definition) {
		d.Filters = map[string]string{"system:id": "not: " + itoa(fx.ids["Beta"])}
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"<b>Gamma</b>", "Alpha"}, titlesOf(res.Entries))

	_, err = fx.exec.Run(ctx, sectionDef(func(d *Definition) {
		d.Filters = map[string]string{"system:id": "abc"}
	}), nil)
	assert.Error(t, err)
}

func TestExecutor_Sorting(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res, err := fx.exec.Run(ctx, sectionDef(func(d *Definition) { d.Order = "desc" }), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta", "Alpha", "<b>Gamma</b>"}, titlesOf(res.Entries))

	res, err = fx.exec.Run(ctx, sectionDef(func(d *Definition) { d.Sort = "system:id"; d.Order = "asc" }), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta", "<b>Gamma</b>"}, titlesOf(res.Entries))

	res, err = fx.exec.Run(ctx, sectionDef(func(d *Definition) { d.Order = "random" }), nil)
	require.NoError(t, err)
	assert.Len(t, res.Entries, 3)
}

func TestExecutor_Pagination(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	def := sectionDef(func(d *Definition) {
		d.PaginateResults = true
		d.Limit = "{$limit:1}"
		d.StartPage = "{$page:1}"
	})
	res, err := fx.exec.Run(ctx, def, map[string]string{"page": "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, titlesOf(res.Entries))
	assert.Equal(t, &Pagination{TotalEntries: 3, TotalPages: 3, PerPage: 1, CurrentPage: 2}, res.Pagination)

	res, err = fx.exec.Run(ctx, def, map[string]string{"limit": "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"<b>Gamma</b>", "Alpha"}, titlesOf(res.Entries))
	assert.Equal(t, 2, res.Pagination.TotalPages)
}

func TestExecutor_RequiredParamAndRedirect(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res, err := fx.exec.Run(ctx, sectionDef(func(d *Definition) { d.RequiredParam = "$tag" }), nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Nil(t, res.Entries)

	res, err = fx.exec.Run(ctx, sectionDef(func(d *Definition) { d.RequiredParam = "$tag" }), map[string]string{"tag": "go"})
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	_, err = fx.exec.Run(ctx, sectionDef(func(d *Definition) {
		d.RedirectOnEmpty = true
		d.Filters = map[string]string{"tags": "nope"}
	}), nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestExecutor_OutputAndEncoding(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res, err := fx.exec.Run(ctx, sectionDef(func(d *Definition) {
		d.HTMLEncode = true
		d.IncludedElements = []string{"title", "tags: listHandle", "published: getBoolean", "tags: bogus"}
		d.ParamOutput = []string{"tags", "system:id"}
		d.Filters = map[string]string{"tags": "sql"}
	}), nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)

	gamma := res.Entries[0]
	assert.Equal(t, "&lt;b&gt;Gamma&lt;/b&gt;", gamma.Fields["title"])
	assert.Equal(t, true, gamma.Fields["published"])
	assert.Equal(t, []string{"sql"}, gamma.Fields["tags"])

	assert.ElementsMatch(t, []string{"go", "sql"}, res.Params["ds-articles.tags"])
	assert.ElementsMatch(t,
		[]string{itoa(fx.ids["Alpha"]), itoa(fx.ids["<b>Gamma</b>"])},
		res.Params["ds-articles.system-id"])
}

func TestExecutor_Grouping(t *testing.T) {
	fx := newFixture(t)
	res, err := fx.exec.Run(context.Background(), sectionDef(func(d *Definition) { d.Group = "published" }), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Entries)
	require.Len(t, res.Groups, 2)
	assert.Equal(t, "no", res.Groups[0].Value)
	assert.Equal(t, []string{"Beta"}, titlesOf(res.Groups[0].Entries))
	assert.Equal(t, "yes", res.Groups[1].Value)
	assert.Equal(t, []string{"<b>Gamma</b>", "Alpha"}, titlesOf(res.Groups[1].Entries))
}

func TestExecutor_StaticAndErrors(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res, err := fx.exec.Run(ctx, &Definition{Handle: "menu", Extends: ExtendsStaticXML, Source: SourceStaticXML, Static: "<menu/>"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<menu/>", res.Static)

	_, err = fx.exec.Run(ctx, sectionDef(func(d *Definition) { d.Source = "missing" }), nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// регулярные выражения в SQLite не поддерживаются
	_, err = fx.exec.Run(ctx, sectionDef(func(d *Definition) { d.Filters = map[string]string{"tags": "regexp:^g"} }), nil)
	assert.ErrorIs(t, err, field.ErrRegexUnsupported)
}
