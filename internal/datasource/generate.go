package datasource

import (
	_ "embed"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed template.go.tmpl
var shellTemplate string

// VarName — имя переменной с определением в сгенерированном файле.
const VarName = "Datasource"

var (
	blankLines = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)
	dependency  = regexp.MustCompile(`(?i)\$ds-[0-9a-z_.\-]+`)
	placeholder = func(name string) string { return "<!-- " + name + " -->" }
)

type param struct {
	key   string
	value any
}

// Generate собирает исходник датасорса из шаблона и форматирует его gofmt'ом.
func Generate(def *Definition) ([]byte, error) {
	if def.Handle == "" {
		return nil, fmt.Errorf("datasource has no handle")
	}
	shell := shellTemplate

	shell = injectAbout(shell, def.About)
	shell = strings.ReplaceAll(shell, placeholder("CLASS NAME"), def.Handle)

	shell = injectVarList(shell, varList(def))
	shell = injectList(shell, "INCLUDED ELEMENTS", "IncludedElements", def.IncludedElements)
	shell = injectFilters(shell, def.Filters)

	if deps := uniq(dependency.FindAllString(shell, -1)); len(deps) > 0 {
		shell = strings.ReplaceAll(shell, placeholder("DS DEPENDENCY LIST"), quoteList(deps))
	}

	shell = strings.ReplaceAll(shell, placeholder("CLASS EXTENDS"), def.Extends)
	shell = strings.ReplaceAll(shell, placeholder("SOURCE"), quote(def.Source))

	// незаполненные метки; в пользовательском тексте "<!--" экранирован (quote)
	for _, name := range []string{"VAR LIST", "INCLUDED ELEMENTS", "FILTERS", "DS DEPENDENCY LIST"} {
		shell = strings.ReplaceAll(shell, placeholder(name), "")
	}
	shell = blankLines.ReplaceAllString(shell, "\n\n")

	out, err := format.Source([]byte(shell))
	if err != nil {
		return nil, fmt.Errorf("format datasource %s: %w", def.Handle, err)
	}
	return out, nil
}

func injectAbout(shell string, a About) string {
	for key, val := range map[string]string{
		"NAME":           a.Name,
		"VERSION":        a.Version,
		"RELEASE DATE":   a.ReleaseDate,
		"AUTHOR NAME":    a.AuthorName,
		"AUTHOR WEBSITE": a.AuthorWebsite,
		"AUTHOR EMAIL":   a.AuthorEmail,
	} {
		shell = strings.ReplaceAll(shell, placeholder(key), quote(val))
	}
	return shell
}

// varList — параметры в порядке вывода; пустые строки пропускаются.
func varList(def *Definition) []param {
	if def.Extends == ExtendsStaticXML {
		return []param{
			{"RootElement", def.RootElement},
			{"Static", def.Static},
		}
	}
	return []param{
		{"RootElement", def.RootElement},
		{"Order", def.Order},
		{"Group", def.Group},
		{"PaginateResults", def.PaginateResults},
		{"Limit", def.Limit},
		{"StartPage", def.StartPage},
		{"RedirectOnEmpty", def.RedirectOnEmpty},
		{"RequiredParam", def.RequiredParam},
		{"ParamOutput", def.ParamOutput},
		{"Sort", def.Sort},
		{"HTMLEncode", def.HTMLEncode},
		{"AssociatedEntryCounts", def.AssociatedEntryCounts},
	}
}

func injectVarList(shell string, vars []param) string {
	var b strings.Builder
	for _, v := range vars {
		switch t := v.value.(type) {
		case string:
			if strings.TrimSpace(t) == "" {
				continue
			}
			fmt.Fprintf(&b, "%s: %s,\n", v.key, quote(t))
		case bool:
			fmt.Fprintf(&b, "%s: %t,\n", v.key, t)
		case []string:
			if len(t) == 0 {
				continue
			}
			fmt.Fprintf(&b, "%s: []string{%s},\n", v.key, quoteList(t))
		}
	}
	return strings.ReplaceAll(shell, placeholder("VAR LIST"), strings.TrimSpace(b.String()))
}

func injectList(shell, name, key string, list []string) string {
	if len(list) == 0 {
		return shell
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: []string{\n", key)
	for _, it := range list {
		fmt.Fprintf(&b, "%s,\n", quote(it))
	}
	b.WriteString("},")
	return strings.ReplaceAll(shell, placeholder(name), b.String())
}

// injectFilters пишет фильтры в порядке имён полей; пустые значения пропускаются.
func injectFilters(shell string, filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k, v := range filters {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return shell
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Filters: map[string]string{\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s,\n", quote(k), quote(filters[k]))
	}
	b.WriteString("},")
	return strings.ReplaceAll(shell, placeholder("FILTERS"), b.String())
}

// quote — строковый литерал Go, в котором "<!--" записан как \u003c!--,
// чтобы метки шаблона в тексте пользователя не подставлялись.
func quote(s string) string {
	return strings.ReplaceAll(strconv.Quote(s), "<!--", `\u003c!--`)
}

func quoteList(list []string) string {
	q := make([]string, 0, len(list))
	for _, s := range list {
		q = append(q, quote(s))
	}
	return strings.Join(q, ", ")
}

// uniq убирает повторы без учёта регистра, сохраняя порядок.
func uniq(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Parse читает определение обратно из сгенерированного исходника.
func Parse(filename string, src []byte) (*Definition, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, 0)
	if err != nil {
		return nil, fmt.Errorf("parse datasource: %w", err)
	}

	lit := findDefinition(file)
	if lit == nil {
		return nil, fmt.Errorf("%s: no %s variable", filename, VarName)
	}

	def := &Definition{}
	if err := fill(reflect.ValueOf(def).Elem(), lit); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return def, nil
}

func findDefinition(file *ast.File) *ast.CompositeLit {
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			continue
		}
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, name := range vs.Names {
				if name.Name != VarName || i >= len(vs.Values) {
					continue
				}
				if lit, ok := vs.Values[i].(*ast.CompositeLit); ok {
					return lit
				}
			}
		}
	}
	return nil
}

// fill раскладывает поля литерала по полям структуры с теми же именами.
func fill(dst reflect.Value, lit *ast.CompositeLit) error {
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			return fmt.Errorf("positional fields are not supported")
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			return fmt.Errorf("unexpected key %T", kv.Key)
		}
		f := dst.FieldByName(key.Name)
		if !f.IsValid() {
			return fmt.Errorf("unknown field %s", key.Name)
		}
		if err := assign(f, kv.Value); err != nil {
			return fmt.Errorf("field %s: %w", key.Name, err)
		}
	}
	return nil
}

func assign(f reflect.Value, expr ast.Expr) error {
	switch f.Kind() {
	case reflect.String:
		s, err := stringLit(expr)
		if err != nil {
			return err
		}
		f.SetString(s)
	case reflect.Bool:
		id, ok := expr.(*ast.Ident)
		if !ok || (id.Name != "true" && id.Name != "false") {
			return fmt.Errorf("expected bool")
		}
		f.SetBool(id.Name == "true")
	case reflect.Slice:
		lit, ok := expr.(*ast.CompositeLit)
		if !ok {
			return fmt.Errorf("expected []string literal")
		}
		if len(lit.Elts) == 0 {
			return nil
		}
		out := make([]string, 0, len(lit.Elts))
		for _, e := range lit.Elts {
			s, err := stringLit(e)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		f.Set(reflect.ValueOf(out))
	case reflect.Map:
		lit, ok := expr.(*ast.CompositeLit)
		if !ok {
			return fmt.Errorf("expected map literal")
		}
		out := make(map[string]string, len(lit.Elts))
		for _, e := range lit.Elts {
			kv, ok := e.(*ast.KeyValueExpr)
			if !ok {
				return fmt.Errorf("expected key: value")
			}
			k, err := stringLit(kv.Key)
			if err != nil {
				return err
			}
			v, err := stringLit(kv.Value)
			if err != nil {
				return err
			}
			out[k] = v
		}
		f.Set(reflect.ValueOf(out))
	case reflect.Struct:
		lit, ok := expr.(*ast.CompositeLit)
		if !ok {
			return fmt.Errorf("expected struct literal")
		}
		return fill(f, lit)
	default:
		return fmt.Errorf("unsupported kind %s", f.Kind())
	}
	return nil
}

func stringLit(expr ast.Expr) (string, error) {
	bl, ok := expr.(*ast.BasicLit)
	if !ok || bl.Kind != token.STRING {
		return "", fmt.Errorf("expected string literal")
	}
	return strconv.Unquote(bl.Value)
}
