package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symphony/internal/section"
)

func articlesSection() *section.Section {
	return &section.Section{
		Handle: "articles",
		Name:   "Articles",
		Fields: []section.FieldDef{
			{Label: "Title", ElementName: "title", Type: "input"},
			{Label: "Published", ElementName: "published", Type: "checkbox"},
			{Label: "Tags", ElementName: "tags", Type: "taglist"},
		},
	}
}

func validateContext(existing ...string) ValidateContext {
	sec := articlesSection()
	return ValidateContext{
		Mode: ModeNew,
		Exists: func(h string) bool {
			for _, e := range existing {
				if e == h {
					return true
				}
			}
			return false
		},
		Section: func(h string) (*section.Section, bool) {
			if h == sec.Handle {
				return sec, true
			}
			return nil, false
		},
	}
}

func codes(errs []section.FieldError) map[string]string {
	out := map[string]string{}
	for _, e := range errs {
		out[e.Field] = e.Code
	}
	return out
}

func TestIsValidPageString(t *testing.T) {
	cases := map[string]bool{
		"10":          true,
		"0":           true,
		"{$page}":     true,
		"{$a:$b:1}":   true,
		"{$page:2}":   true,
		"{$ds-x.y}":   false,
		"{$page":      false,
		"abc":         false,
		"-1":          false,
		"{$a:b}":      false,
		"":            false,
		"{$url-page}": true,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsValidPageString(in), in)
	}
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "articles_by_tag", ClassName("Articles by Tag"))
	assert.Equal(t, "", ClassName("!!!"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		form Form
		vc   ValidateContext
		want map[string]string
	}{
		{
			name: "empty form",
			form: Form{},
			vc:   validateContext(),
			want: map[string]string{"name": section.ErrMissingRequired, "source": section.ErrMissingRequired},
		},
		{
			name: "valid section source",
			form: Form{Name: "Latest", Source: "articles", MaxRecords: "{$limit:10}", PageNumber: "1",
				PaginateResults: true, Sort: "title", Order: "asc",
				Filters: map[string]string{"tags": "go", "system:id": "1"}, XMLElements: []string{"tags: listHandle"}},
			vc:   validateContext(),
			want: map[string]string{},
		},
		{
			name: "broken static xml",
			form: Form{Name: "Static", Source: SourceStaticXML, StaticXML: "<a><b></a>"},
			vc:   validateContext(),
			want: map[string]string{"static_xml": section.ErrInvalid},
		},
		{
			name: "static xml with declaration",
			form: Form{Name: "Static", Source: SourceStaticXML, StaticXML: `<?xml version="1.0"?><a/><b/>`},
			vc:   validateContext(),
			want: map[string]string{},
		},
		{
			name: "unknown section",
			form: Form{Name: "X", Source: "nope"},
			vc:   validateContext(),
			want: map[string]string{"source": section.ErrNotFound},
		},
		{
			name: "paginate without window",
			form: Form{Name: "X", Source: "articles", PaginateResults: true, MaxRecords: "0"},
			vc:   validateContext(),
			want: map[string]string{"max_records": section.ErrMissingRequired, "page_number": section.ErrMissingRequired},
		},
		{
			name: "bad page string",
			form: Form{Name: "X", Source: "articles", MaxRecords: "ten", PageNumber: "{$p"},
			vc:   validateContext(),
			want: map[string]string{"max_records": section.ErrInvalid, "page_number": section.ErrInvalid},
		},
		{
			name: "group by system field",
			form: Form{Name: "X", Source: "articles", Group: "system:id"},
			vc:   validateContext(),
			want: map[string]string{"group": section.ErrInvalid},
		},
		{
			name: "group by system date",
			form: Form{Name: "X", Source: "articles", Group: "system:date"},
			vc:   validateContext(),
			want: map[string]string{"group": section.ErrInvalid},
		},
		{
			name: "unknown elements",
			form: Form{Name: "X", Source: "articles", Sort: "body", Group: "author", Order: "sideways",
				Filters: map[string]string{"system:date": "2024"}},
			vc: validateContext(),
			want: map[string]string{
				"sort": section.ErrNotFound, "group": section.ErrNotFound,
				"order": section.ErrInvalid, "filter.system:date": section.ErrNotFound,
			},
		},
		{
			name: "no latin characters",
			form: Form{Name: "!!!", Source: "articles"},
			vc:   validateContext(),
			want: map[string]string{"name": section.ErrInvalid},
		},
		{
			name: "duplicate on create",
			form: Form{Name: "Latest", Source: "articles"},
			vc:   validateContext("latest"),
			want: map[string]string{"name": section.ErrDuplicate},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(Validate(tt.form, tt.vc)))
		})
	}
}

func TestValidate_EditRename(t *testing.T) {
	vc := validateContext("latest", "popular")
	vc.Mode = ModeEdit
	vc.ExistingHandle = "latest"

	assert.Empty(t, Validate(Form{Name: "Latest", Source: "articles"}, vc))

	errs := Validate(Form{Name: "Popular", Source: "articles"}, vc)
	require.Len(t, errs, 1)
	assert.Equal(t, section.ErrDuplicate, errs[0].Code)
	assert.Contains(t, errs[0].Message, "popular")
}

func TestBuild(t *testing.T) {
	def := Build(Form{
		Name:    "Articles by Tag",
		Source:  "articles",
		Order:   "ASC",
		Filters: map[string]string{"tags": "{$tag}", "title": "  "},
		Param:   []string{"tags"},
	}, About{AuthorName: "admin"})

	assert.Equal(t, "articles_by_tag", def.Handle)
	assert.Equal(t, "articles-by-tag", def.RootElement)
	assert.Equal(t, ExtendsSection, def.Extends)
	assert.Equal(t, "asc", def.Order)
	assert.Equal(t, map[string]string{"tags": "{$tag}"}, def.Filters)
	assert.Equal(t, "Articles by Tag", def.About.Name)
	assert.Equal(t, "admin", def.About.AuthorName)

	form := def.ToForm()
	assert.Equal(t, "Articles by Tag", form.Name)
	assert.Equal(t, []string{"tags"}, form.Param)

	static := Build(Form{Name: "Menu", Source: SourceStaticXML, StaticXML: `<?xml version="1.0"?>
<menu/>`}, About{})
	assert.Equal(t, ExtendsStaticXML, static.Extends)
	assert.Equal(t, "<menu/>", static.Static)
}
