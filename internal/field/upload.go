package field

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"symphony/internal/section"
)

const TypeUpload = "upload"

// UploadedFile — файл, уже положенный в blob-хранилище.
type UploadedFile struct {
	Name     string            `json:"name"`
	Key      string            `json:"file"`
	Size     int64             `json:"size"`
	MimeType string            `json:"mimetype"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// Upload — ссылка на файл: ключ в хранилище, размер, тип, метаданные.
type Upload struct {
	Base
	validator *regexp.Regexp
}

func NewUpload(def section.FieldDef) Field {
	f := &Upload{Base: Base{def: def}}
	f.validator, _ = CompileValidator(def.Setting("validator"))
	return f
}

func (f *Upload) Type() string { return TypeUpload }

func (f *Upload) FindDefaults(settings map[string]any) {
	if _, ok := settings["destination"]; !ok {
		settings["destination"] = "/uploads"
	}
}

// toUpload сводит сырое значение к UploadedFile. ok=false — файла нет.
func toUpload(raw any) (UploadedFile, bool) {
	switch t := raw.(type) {
	case UploadedFile:
		return t, t.Key != ""
	case *UploadedFile:
		if t == nil {
			return UploadedFile{}, false
		}
		return *t, t.Key != ""
	case section.Record:
		return toUpload(map[string]any(t))
	case map[string]any:
		u := UploadedFile{
			Name:     rawString(t["name"]),
			Key:      rawString(t["file"]),
			MimeType: rawString(t["mimetype"]),
		}
		switch s := t["size"].(type) {
		case int64:
			u.Size = s
		case int:
			u.Size = int64(s)
		case float64:
			u.Size = int64(s)
		default:
			u.Size, _ = strconv.ParseInt(rawString(s), 10, 64)
		}
		switch m := t["meta"].(type) {
		case map[string]string:
			u.Meta = m
		case string:
			if m != "" {
				_ = json.Unmarshal([]byte(m), &u.Meta)
			}
		case map[string]any:
			u.Meta = make(map[string]string, len(m))
			for k, v := range m {
				u.Meta[k] = rawString(v)
			}
		}
		return u, u.Key != ""
	default:
		s := strings.TrimSpace(rawString(raw))
		return UploadedFile{Key: s, Name: path.Base(s)}, s != ""
	}
}

func (f *Upload) CheckPostFieldData(raw any) (Status, string) {
	u, ok := toUpload(raw)
	if !ok {
		if f.def.Required {
			return StatusMissingRequired, f.requiredMessage()
		}
		return StatusOK, ""
	}
	name := u.Name
	if name == "" {
		name = path.Base(u.Key)
	}
	if f.validator != nil && !f.validator.MatchString(name) {
		return StatusInvalid, fmt.Sprintf("File chosen in ‘%s’ does not match allowable file types for that field.", f.def.Label)
	}
	if allowed := f.def.SettingList("mimetypes"); len(allowed) > 0 && !mimeAllowed(u.MimeType, allowed) {
		return StatusInvalid, fmt.Sprintf("File chosen in ‘%s’ does not match allowable file types for that field.", f.def.Label)
	}
	return StatusOK, ""
}

// mimeAllowed понимает точные типы и маски вида image/*.
func mimeAllowed(mt string, allowed []string) bool {
	mt = strings.ToLower(mt)
	for _, a := range allowed {
		a = strings.ToLower(a)
		if a == mt {
			return true
		}
		if strings.HasSuffix(a, "/*") && strings.HasPrefix(mt, strings.TrimSuffix(a, "*")) {
			return true
		}
	}
	return false
}

// ProcessRawFieldData: ключ файла кладётся относительно destination.
func (f *Upload) ProcessRawFieldData(raw any) (section.Record, error) {
	u, ok := toUpload(raw)
	if !ok {
		return nil, nil
	}
	meta := "{}"
	if len(u.Meta) > 0 {
		b, err := json.Marshal(u.Meta)
		if err != nil {
			return nil, fmt.Errorf("encode file meta: %w", err)
		}
		meta = string(b)
	}
	return section.Record{
		"file":     u.Key,
		"size":     u.Size,
		"mimetype": u.MimeType,
		"meta":     meta,
	}, nil
}

func (f *Upload) PrepareTableValue(r section.Record) string {
	return path.Base(rawString(r["file"]))
}

func (f *Upload) ParameterPoolValue(r section.Record) any {
	return f.PrepareExportValue(r, ExportValue)
}

func (f *Upload) ExportModes() map[string]ExportMode {
	return map[string]ExportMode{
		"getFilename": ExportValue,
		"getPostdata": ExportPostdata,
	}
}

func (f *Upload) PrepareExportValue(r section.Record, mode ExportMode) any {
	key := rawString(r["file"])
	switch mode {
	case ExportValue:
		if key == "" {
			return nil
		}
		return key
	case ExportPostdata:
		if key == "" {
			return nil
		}
		u, _ := toUpload(r)
		return u
	}
	return nil
}

func (f *Upload) ImportModes() map[string]ImportMode {
	return map[string]ImportMode{
		"getValue": ImportStringValue,
	}
}

func (f *Upload) PrepareImportValue(raw any, mode ImportMode) any {
	if mode != ImportStringValue {
		return nil
	}
	r, _ := f.ProcessRawFieldData(raw)
	return r
}

func (f *Upload) BuildDSRetrievalSQL(values []string, q *Query, and bool) error {
	if f.def.ID == 0 {
		return ErrNoFieldID
	}
	values = trimValues(values)
	if len(values) > 0 && IsFilterRegex(values[0]) {
		return buildRegexSQL(q, f.def.ID, values[0], []string{"file", "mimetype"})
	}
	return buildValueSQL(q, f.def.ID, values, and, []string{"file"})
}

func (f *Upload) BuildSortingSQL(q *Query, order string) error {
	return sortBySubquery(q, f.def.ID, "file", order)
}

func (f *Upload) Schema(d Dialect, prefix string) []string {
	table := DataTableName(prefix, f.def.ID)
	return []string{
		fmt.Sprintf(`create table if not exists %s (
  %s,
  "entry_id" bigint not null,
  "file" varchar(255),
  "size" bigint,
  "mimetype" varchar(100),
  "meta" text
)`, d.QuoteIdent(table), d.IdentityColumn()),
		fmt.Sprintf(`create unique index if not exists %s on %s ("entry_id")`, d.QuoteIdent(table+"_entry_id_uq"), d.QuoteIdent(table)),
		fmt.Sprintf(`create index if not exists %s on %s ("file")`, d.QuoteIdent(table+"_file_idx"), d.QuoteIdent(table)),
	}
}

func (f *Upload) Columns() []string { return []string{"file", "size", "mimetype", "meta"} }
func (f *Upload) Multiple() bool    { return false }
