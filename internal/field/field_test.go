package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symphony/internal/section"
)

func TestManager(t *testing.T) {
	m := DefaultManager()
	assert.Equal(t, []string{TypeCheckbox, TypeInput, TypeTagList, TypeUpload}, m.Types())

	_, err := m.Create(section.FieldDef{ID: 1, Type: "geolocation"})
	assert.Error(t, err)

	settings := map[string]any{}
	f, err := m.Create(section.FieldDef{ID: 3, Type: TypeCheckbox, Settings: settings})
	require.NoError(t, err)
	assert.Equal(t, "off", f.Definition().Setting("default_state"))
	assert.Empty(t, settings, "caller settings must stay untouched")

	cached, ok := m.Fetch(3)
	require.True(t, ok)
	assert.Same(t, f, cached)

	m.Forget(3)
	_, ok = m.Fetch(3)
	assert.False(t, ok)

	_, err = m.Create(section.FieldDef{Type: TypeInput})
	require.NoError(t, err)
	_, ok = m.Fetch(0)
	assert.False(t, ok)
}

func TestManager_ForSection(t *testing.T) {
	s := &section.Section{Handle: "articles", Fields: []section.FieldDef{
		{ID: 1, ElementName: "title", Type: TypeInput},
		{ID: 2, ElementName: "tags", Type: TypeTagList},
	}}
	fields, err := DefaultManager().ForSection(s)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, TypeInput, fields[0].Type())
	assert.Equal(t, TypeTagList, fields[1].Type())

	s.Fields = append(s.Fields, section.FieldDef{ID: 3, ElementName: "map", Type: "map"})
	_, err = DefaultManager().ForSection(s)
	assert.ErrorContains(t, err, "articles")
}

func TestCapabilities(t *testing.T) {
	m := DefaultManager()
	for _, typ := range m.Types() {
		f, err := m.Create(section.FieldDef{ID: 1, Type: typ})
		require.NoError(t, err)

		_, ok := f.(Filterable)
		assert.True(t, ok, typ)
		_, ok = f.(Storable)
		assert.True(t, ok, typ)
		_, ok = f.(Exportable)
		assert.True(t, ok, typ)
	}

	cb, _ := m.Create(section.FieldDef{ID: 1, Type: TypeCheckbox})
	_, ok := cb.(Toggleable)
	assert.True(t, ok)

	in, _ := m.Create(section.FieldDef{ID: 1, Type: TypeInput})
	_, ok = in.(Toggleable)
	assert.False(t, ok)
}

func TestInput(t *testing.T) {
	f, err := DefaultManager().Create(section.FieldDef{
		ID: 2, Label: "Title", ElementName: "title", Type: TypeInput, Required: true,
		Settings: map[string]any{"validator": `/^\d+$/`},
	})
	require.NoError(t, err)
	in := f.(*Input)

	st, _ := in.CheckPostFieldData("  ")
	assert.Equal(t, StatusMissingRequired, st)
	st, _ = in.CheckPostFieldData("abc")
	assert.Equal(t, StatusInvalid, st)
	st, _ = in.CheckPostFieldData("123")
	assert.Equal(t, StatusOK, st)

	r, err := in.ProcessRawFieldData(" Crème Brûlée ")
	require.NoError(t, err)
	assert.Equal(t, section.Record{"value": "Crème Brûlée", "handle": "creme-brulee"}, r)
	again, _ := in.ProcessRawFieldData(r)
	assert.Equal(t, r, again)

	assert.Nil(t, in.PrepareExportValue(section.Record{}, ExportHandle))
	assert.Nil(t, in.PrepareExportValue(section.Record{}, ExportBoolean))
	assert.Equal(t, "creme-brulee", in.ParameterPoolValue(r))

	q := NewQuery(Postgres, "tbl_")
	require.NoError(t, in.BuildDSRetrievalSQL([]string{"a", "b"}, q, false))
	assert.Equal(t, 1, q.JoinCount())
	assert.Equal(t, ` AND (t2_1."value" IN ($1, $2) OR t2_1."handle" IN ($1, $2))`, q.WhereSQL())
}

func TestUpload(t *testing.T) {
	f, err := DefaultManager().Create(section.FieldDef{
		ID: 4, Label: "Cover", ElementName: "cover", Type: TypeUpload,
		Settings: map[string]any{"validator": `/\.(?:jpe?g|png)$/i`, "mimetypes": "image/*"},
	})
	require.NoError(t, err)
	up := f.(*Upload)
	assert.Equal(t, "/uploads", up.Definition().Setting("destination"))

	file := UploadedFile{Name: "cat.PNG", Key: "uploads/ab12/cat.PNG", Size: 42, MimeType: "image/png"}
	st, _ := up.CheckPostFieldData(file)
	assert.Equal(t, StatusOK, st)

	st, _ = up.CheckPostFieldData(UploadedFile{Name: "evil.exe", Key: "x/evil.exe", MimeType: "image/png"})
	assert.Equal(t, StatusInvalid, st)
	st, _ = up.CheckPostFieldData(UploadedFile{Name: "a.png", Key: "x/a.png", MimeType: "text/plain"})
	assert.Equal(t, StatusInvalid, st)
	st, _ = up.CheckPostFieldData(nil)
	assert.Equal(t, StatusOK, st)

	r, err := up.ProcessRawFieldData(file)
	require.NoError(t, err)
	assert.Equal(t, section.Record{"file": "uploads/ab12/cat.PNG", "size": int64(42), "mimetype": "image/png", "meta": "{}"}, r)
	again, err := up.ProcessRawFieldData(r)
	require.NoError(t, err)
	assert.Equal(t, r, again)

	assert.Equal(t, "cat.PNG", up.PrepareTableValue(r))
	assert.Nil(t, up.PrepareExportValue(section.Record{}, ExportValue))
	assert.Nil(t, up.PrepareExportValue(section.Record{}, ExportPostdata))
}

func TestCompileValidator(t *testing.T) {
	re, err := CompileValidator(`/^[a-z]+$/i`)
	require.NoError(t, err)
	assert.True(t, re.MatchString("HeLLo"))

	re, err = CompileValidator(`^\d+$`)
	require.NoError(t, err)
	assert.True(t, re.MatchString("42"))

	re, err = CompileValidator("")
	require.NoError(t, err)
	assert.Nil(t, re)

	_, err = CompileValidator(`/abc/e`)
	assert.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = DialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "?3", d.Placeholder(3))

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}
