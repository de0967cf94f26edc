package field

// ExportMode — битовые флаги режима экспорта; комбинируются через |.
type ExportMode int

const (
	ExportValue ExportMode = 1 << iota
	ExportHandle
	ExportPostdata
	ExportBoolean
	ExportListOf
)

// ImportMode — форма входного значения при импорте.
type ImportMode int

const (
	ImportStringValue ImportMode = iota + 1
	ImportArrayValue
)

// ParseExportMode разбирает имя режима ("getValue", "listHandle", ...)
// по таблице режимов поля.
func ParseExportMode(f Exportable, name string) (ExportMode, bool) {
	m, ok := f.ExportModes()[name]
	return m, ok
}
