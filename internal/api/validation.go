package api

import (
	"net/http"
	"sort"

	"symphony/internal/field"
	"symphony/internal/section"
	"symphony/internal/xss"
)

func ferr(code, fld, msg string) section.FieldError {
	return section.FieldError{Code: code, Field: fld, Message: msg}
}

// prepareFields — XSS-фильтр секции, проверка полей, потом обработка.
// partial: проверяются только присланные поля (правка записи).
func prepareFields(sec *section.Section, fields []field.Field, raw map[string]any, partial bool) (map[int64]section.Record, []section.FieldError) {
	raw, errs := xss.Apply(sec.Filter, raw)
	if len(errs) > 0 {
		return nil, errs
	}

	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Definition().ElementName] = struct{}{}
	}
	var unknown []string
	for k := range raw {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		errs = append(errs, ferr(section.ErrNotFound, k, "Unknown field"))
	}

	// 1) проверка — без побочных эффектов
	for _, f := range fields {
		def := f.Definition()
		v, present := raw[def.ElementName]
		if partial && !present {
			continue
		}
		if val, ok := f.(field.Validator); ok {
			if st, msg := val.CheckPostFieldData(v); st != field.StatusOK {
				errs = append(errs, ferr(st.String(), def.ElementName, msg))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// 2) обработка в записи хранилища
	data := make(map[int64]section.Record, len(fields))
	for _, f := range fields {
		def := f.Definition()
		v, present := raw[def.ElementName]
		if partial && !present {
			continue
		}
		p, ok := f.(field.Processor)
		if !ok {
			continue
		}
		rec, err := p.ProcessRawFieldData(v)
		if err != nil {
			errs = append(errs, ferr(section.ErrInvalid, def.ElementName, err.Error()))
			continue
		}
		data[def.ID] = rec
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return data, nil
}

func statusForErrors(errs []section.FieldError) int {
	for _, e := range errs {
		if e.Code == section.ErrDuplicate {
			return http.StatusConflict
		}
	}
	return http.StatusBadRequest
}
