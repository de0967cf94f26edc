// Package datasource — сохранённые выборки записей: форма редактора,
// генерация исходника, репозиторий файлов и исполнение.
package datasource

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"symphony/internal/lang"
	"symphony/internal/section"
)

const (
	ExtendsSection   = "SectionDatasource"
	ExtendsStaticXML = "StaticXMLDatasource"

	SourceStaticXML = "static_xml"
)

// About — сведения об авторе датасорса.
type About struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	ReleaseDate   string `json:"release_date"`
	AuthorName    string `json:"author_name"`
	AuthorWebsite string `json:"author_website"`
	AuthorEmail   string `json:"author_email"`
}

// Definition — датасорс в том виде, в каком он лежит в сгенерированном файле.
type Definition struct {
	Handle       string   `json:"handle"`
	About        About    `json:"about"`
	Extends      string   `json:"extends"`
	Source       string   `json:"source"`
	Dependencies []string `json:"dependencies,omitempty"`

	RootElement           string   `json:"root_element"`
	Order                 string   `json:"order,omitempty"`
	Group                 string   `json:"group,omitempty"`
	PaginateResults       bool     `json:"paginate_results"`
	Limit                 string   `json:"limit,omitempty"`
	StartPage             string   `json:"start_page,omitempty"`
	RedirectOnEmpty       bool     `json:"redirect_on_empty"`
	RequiredParam         string   `json:"required_param,omitempty"`
	ParamOutput           []string `json:"param_output,omitempty"`
	Sort                  string   `json:"sort,omitempty"`
	HTMLEncode            bool     `json:"html_encode"`
	// AssociatedEntryCounts хранится ради совместимости файлов; полей-связей нет,
	// исполнитель его не читает
	AssociatedEntryCounts bool     `json:"associated_entry_counts"`
	Static                string   `json:"static,omitempty"`

	IncludedElements []string          `json:"included_elements,omitempty"`
	Filters          map[string]string `json:"filters,omitempty"`
}

// Form — то, что присылает редактор датасорса.
type Form struct {
	Name                  string            `json:"name"`
	Source                string            `json:"source"`
	Filters               map[string]string `json:"filter"`
	Sort                  string            `json:"sort"`
	Order                 string            `json:"order"`
	Group                 string            `json:"group"`
	PaginateResults       bool              `json:"paginate_results"`
	MaxRecords            string            `json:"max_records"`
	PageNumber            string            `json:"page_number"`
	RedirectOnEmpty       bool              `json:"redirect_on_empty"`
	RequiredURLParam      string            `json:"required_url_param"`
	Param                 []string          `json:"param"`
	XMLElements           []string          `json:"xml_elements"`
	HTMLEncode            bool              `json:"html_encode"`
	AssociatedEntryCounts bool              `json:"associated_entry_counts"`
	StaticXML             string            `json:"static_xml"`
}

// Mode — создаётся новый датасорс или правится существующий.
type Mode int

const (
	ModeNew Mode = iota
	ModeEdit
)

// ValidateContext — окружение проверки формы.
type ValidateContext struct {
	Mode           Mode
	ExistingHandle string
	// Exists сообщает, есть ли уже датасорс с таким хэндлом
	Exists func(handle string) bool
	// Section ищет секцию-источник
	Section func(handle string) (*section.Section, bool)
}

var pageString = regexp.MustCompile(`^(?:\{\$[\w-]+(?::\$[\w-]+)*(?::\d+)?}|\d+)$`)

// IsValidPageString: число или параметр вида {$page}, {$a:$b:1}.
func IsValidPageString(s string) bool {
	return pageString.MatchString(s)
}

// ClassName — хэндл датасорса из имени: латиница, цифры и подчёркивания.
func ClassName(name string) string {
	return lang.CreateHandle(name, lang.HandleMaxLength, "_")
}

// Validate проверяет форму. Пустой список — форма годна.
func Validate(form Form, vc ValidateContext) []section.FieldError {
	var errs []section.FieldError
	add := func(code, fld, msg string) {
		errs = append(errs, section.FieldError{Code: code, Field: fld, Message: msg})
	}

	if strings.TrimSpace(form.Name) == "" {
		add(section.ErrMissingRequired, "name", "This is a required field")
	}

	switch {
	case form.Source == SourceStaticXML:
		if strings.TrimSpace(form.StaticXML) == "" {
			add(section.ErrMissingRequired, "static_xml", "This is a required field")
		} else if err := wellFormed(form.StaticXML); err != nil {
			add(section.ErrInvalid, "static_xml", "XML is invalid.")
		}

	case strings.TrimSpace(form.Source) == "":
		add(section.ErrMissingRequired, "source", "This is a required field")

	default:
		var sec *section.Section
		ok := false
		if vc.Section != nil {
			sec, ok = vc.Section(form.Source)
		}
		if !ok {
			add(section.ErrNotFound, "source", "Unknown section")
			break
		}
		validateWindow(form.MaxRecords, form.PaginateResults, "max_records", "A result limit must be set", add)
		validateWindow(form.PageNumber, form.PaginateResults, "page_number", "A page number must be set", add)
		validateElements(sec, form, add)
	}

	if strings.TrimSpace(form.Name) != "" {
		handle := ClassName(form.Name)
		switch {
		case handle == "":
			add(section.ErrInvalid, "name", "Please ensure name contains at least one Latin-based character.")
		case vc.Mode == ModeNew && vc.Exists != nil && vc.Exists(handle):
			add(section.ErrDuplicate, "name", "A Data source with the name "+handle+" already exists")
		case vc.Mode == ModeEdit && handle != vc.ExistingHandle && vc.Exists != nil && vc.Exists(handle):
			add(section.ErrDuplicate, "name", "A Data source with the name "+handle+" already exists")
		}
	}
	return errs
}

func validateWindow(v string, paginate bool, fld, emptyMsg string, add func(code, fld, msg string)) {
	v = strings.TrimSpace(v)
	if v == "" || isNonPositive(v) {
		if paginate {
			add(section.ErrMissingRequired, fld, emptyMsg)
		}
		return
	}
	if !IsValidPageString(v) {
		add(section.ErrInvalid, fld, "Must be a valid number or parameter")
	}
}

func isNonPositive(v string) bool {
	if v == "" || strings.Trim(v, "0123456789") != "" {
		return false
	}
	return strings.Trim(v, "0") == ""
}

// validateElements: фильтры, сортировка, группировка и вывод ссылаются на поля секции.
func validateElements(sec *section.Section, form Form, add func(code, fld, msg string)) {
	known := func(name string) bool {
		if strings.HasPrefix(name, "system:") {
			return name == "system:id" || name == "system:date"
		}
		_, ok := sec.FieldByElementName(name)
		return ok
	}
	for name := range form.Filters {
		if name == "system:date" || !known(name) {
			add(section.ErrNotFound, "filter."+name, "Unknown field")
		}
	}
	if form.Sort != "" && !known(form.Sort) {
		add(section.ErrNotFound, "sort", "Unknown field")
	}
	switch {
	case form.Group == "":
	case strings.HasPrefix(form.Group, "system:"):
		add(section.ErrInvalid, "group", "System fields cannot be used for grouping")
	case !known(form.Group):
		add(section.ErrNotFound, "group", "Unknown field")
	}
	for _, p := range form.Param {
		if !known(p) {
			add(section.ErrNotFound, "param", "Unknown field "+p)
		}
	}
	for _, el := range form.XMLElements {
		name, _, _ := strings.Cut(el, ":")
		if !known(strings.TrimSpace(name)) {
			add(section.ErrNotFound, "xml_elements", "Unknown field "+el)
		}
	}
	switch strings.ToLower(form.Order) {
	case "", "asc", "desc", "random":
	default:
		add(section.ErrInvalid, "order", "Must be asc, desc or random")
	}
}

// wellFormed проверяет, что фрагмент XML разбирается целиком.
func wellFormed(s string) error {
	d := xml.NewDecoder(strings.NewReader("<root>" + stripXMLDecl(s) + "</root>"))
	for {
		_, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

var xmlDecl = regexp.MustCompile(`(?i)^<\?xml[^>]+>`)

func stripXMLDecl(s string) string {
	return strings.TrimSpace(xmlDecl.ReplaceAllString(strings.TrimSpace(s), ""))
}

// Build превращает проверенную форму в определение.
func Build(form Form, about About) *Definition {
	handle := ClassName(form.Name)
	about.Name = form.Name
	def := &Definition{
		Handle:      handle,
		About:       about,
		Source:      form.Source,
		RootElement: strings.ReplaceAll(handle, "_", "-"),
	}

	if form.Source == SourceStaticXML {
		def.Extends = ExtendsStaticXML
		def.Static = stripXMLDecl(form.StaticXML)
		return def
	}

	def.Extends = ExtendsSection
	def.Order = strings.ToLower(form.Order)
	def.Group = form.Group
	def.PaginateResults = form.PaginateResults
	def.Limit = strings.TrimSpace(form.MaxRecords)
	def.StartPage = strings.TrimSpace(form.PageNumber)
	def.RedirectOnEmpty = form.RedirectOnEmpty
	def.RequiredParam = strings.TrimSpace(form.RequiredURLParam)
	def.ParamOutput = form.Param
	def.Sort = form.Sort
	def.HTMLEncode = form.HTMLEncode
	def.AssociatedEntryCounts = form.AssociatedEntryCounts
	def.IncludedElements = form.XMLElements

	if len(form.Filters) > 0 {
		def.Filters = make(map[string]string, len(form.Filters))
		for k, v := range form.Filters {
			if strings.TrimSpace(v) != "" {
				def.Filters[k] = v
			}
		}
	}
	return def
}

// ToForm — обратное преобразование для редактора.
func (d *Definition) ToForm() Form {
	return Form{
		Name:                  d.About.Name,
		Source:                d.Source,
		Filters:               d.Filters,
		Sort:                  d.Sort,
		Order:                 d.Order,
		Group:                 d.Group,
		PaginateResults:       d.PaginateResults,
		MaxRecords:            d.Limit,
		PageNumber:            d.StartPage,
		RedirectOnEmpty:       d.RedirectOnEmpty,
		RequiredURLParam:      d.RequiredParam,
		Param:                 d.ParamOutput,
		XMLElements:           d.IncludedElements,
		HTMLEncode:            d.HTMLEncode,
		AssociatedEntryCounts: d.AssociatedEntryCounts,
		StaticXML:             d.Static,
	}
}
