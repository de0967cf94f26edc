package section

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlesYAML = `
name: Latest Articles
filter: xss-fail
sort: published
order: desc
fields:
  - label: Title
    type: input
    required: true
  - label: Published
    type: checkbox
    location: sidebar
    settings:
      default_state: "on"
  - label: Tags
    type: taglist
    settings:
      pre_populate_source: [existing, "12"]
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "articles.yaml", articlesYAML)

	s, err := LoadFile(p)
	require.NoError(t, err)

	assert.Equal(t, "latest-articles", s.Handle)
	assert.Equal(t, FilterXSSFail, s.Filter)
	require.Len(t, s.Fields, 3)

	assert.Equal(t, "title", s.Fields[0].ElementName)
	assert.Equal(t, LocationMain, s.Fields[0].Location)
	assert.True(t, s.Fields[0].Required)

	assert.Equal(t, LocationSidebar, s.Fields[1].Location)
	assert.Equal(t, "on", s.Fields[1].Setting("default_state"))
	assert.Equal(t, 1, s.Fields[1].SortOrder)

	assert.Equal(t, []string{"existing", "12"}, s.Fields[2].SettingList("pre_populate_source"))
}

func TestLoadAll_Duplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: News\n")
	writeFile(t, dir, "b.yml", "name: news\n")
	writeFile(t, dir, "readme.txt", "ignored")

	_, err := LoadAll(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate section")
}

func TestLoadAll_Ok(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: News\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "nested"), "b.yaml", "name: Pages\n")

	got, err := LoadAll(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "news", got[0].Handle)
	assert.Equal(t, "pages", got[1].Handle)
}

func TestCatalog(t *testing.T) {
	news := &Section{ID: 1, Handle: "news", Fields: []FieldDef{{ID: 10, ElementName: "title"}}}
	pages := &Section{ID: 2, Handle: "pages"}
	c := NewCatalog([]*Section{pages, news})

	s, ok := c.Get("NEWS")
	require.True(t, ok)
	assert.Same(t, news, s)

	_, ok = c.Get("")
	assert.False(t, ok)

	s, ok = c.ByID(2)
	require.True(t, ok)
	assert.Same(t, pages, s)

	f, owner, ok := c.FieldByID(10)
	require.True(t, ok)
	assert.Equal(t, "title", f.ElementName)
	assert.Same(t, news, owner)

	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, "news", all[0].Handle)

	c.Replace(nil)
	_, ok = c.Get("news")
	assert.False(t, ok)
}

func TestLint(t *testing.T) {
	s := &Section{
		Handle:    "news",
		Filter:    "xss-maybe",
		SortField: "missing",
		Fields: []FieldDef{
			{Label: "Title", ElementName: "title", Type: "input", Location: LocationMain},
			{Label: "Title", ElementName: "title", Type: "input", Location: LocationMain},
			{Label: "Odd", ElementName: "odd", Type: "wysiwyg", Location: "footer"},
		},
	}

	issues := Lint([]*Section{s}, []string{"input", "checkbox"})
	codes := map[string]bool{}
	for _, it := range issues {
		codes[it.Code] = true
	}
	assert.True(t, codes["filter_unknown"])
	assert.True(t, codes["element_name_duplicate"])
	assert.True(t, codes["type_unknown"])
	assert.True(t, codes["location_unknown"])
	assert.True(t, codes["sort_field_unknown"])
	assert.False(t, codes["label_empty"])
}

func TestFieldDef_Setting(t *testing.T) {
	f := FieldDef{Settings: map[string]any{
		"flag":  true,
		"list":  []any{"a", " b "},
		"num":   3,
		"plain": "x, y",
	}}
	assert.Equal(t, "yes", f.Setting("flag"))
	assert.Equal(t, "a, b ", f.Setting("list"))
	assert.Equal(t, "3", f.Setting("num"))
	assert.Equal(t, "", f.Setting("missing"))
	assert.Equal(t, []string{"a", "b"}, f.SettingList("list"))
	assert.Equal(t, []string{"x", "y"}, f.SettingList("plain"))
	assert.Nil(t, f.SettingList("missing"))
}

func TestEntry_GetSet(t *testing.T) {
	var e Entry
	assert.Nil(t, e.Get(1))
	e.Set(1, Record{"value": "yes"})
	assert.Equal(t, "yes", e.Get(1)["value"])
}
