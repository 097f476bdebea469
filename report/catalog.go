package report

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

const (
	inventoryQuery = `SELECT EQUIPO, MARCA, MODELO, N_CASETA, N_SERIE,
	N_INVENTARIO, VOLTAJE, POTENCIA, CANTIDAD,
	NUMERACION, OBSERVACIONES
FROM %s ORDER BY NUMERACION DESC, EQUIPO, N_CASETA ASC`

	transactionsQuery = `SELECT ncontrol, hora_solicitud, fecha_solicitud, hora_final, fecha_final,
	name, lastname, teacher, casetero, topic, grupo, number_group,
	laboratory, tipo_vale, reporte, i_material
FROM registro ORDER BY fecha_final ASC`
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type catalogEntry struct {
	title      func(lab string) string
	query      func(table string) string
	columns    []Column
	annotation Annotation
	materials  bool
	needsLab   bool
}

func staticQuery(sql string) func(string) string {
	return func(string) string { return sql }
}

func staticTitle(title string) func(string) string {
	return func(string) string { return title }
}

var catalogEntries = map[Kind]catalogEntry{
	KindStudents: {
		title: staticTitle("Estudiantes valesTECNM"),
		query: staticQuery("SELECT ncontrol, correo, carrera, nombres, apellidos FROM usuarios"),
		columns: []Column{
			{Name: "ncontrol", Label: "Número de Control", Width: 50},
			{Name: "correo", Label: "Correo", Width: 140},
			{Name: "carrera", Label: "Carrera", Width: 160},
			{Name: "nombres", Label: "Nombres", Width: 100},
			{Name: "apellidos", Label: "Apellidos", Width: 100},
		},
	},
	KindTeachers: {
		title: staticTitle("Maestros valesTECNM"),
		query: staticQuery("SELECT * FROM maestros"),
		columns: []Column{
			{Name: "id", Label: "Identificación", Width: 50},
			{Name: "correo", Label: "Correo", Width: 160},
			{Name: "nombres", Label: "Nombres", Width: 100},
			{Name: "apellidos", Label: "Apellidos", Width: 100},
			{Name: "password", Label: "Contraseña", Width: 50},
		},
	},
	KindAttendants: {
		title: staticTitle("Caseteros valesTECNM"),
		query: staticQuery("SELECT * FROM caseteros"),
		columns: []Column{
			{Name: "id", Label: "Identificación", Width: 50},
			{Name: "nombres", Label: "Nombres", Width: 100},
			{Name: "apellidos", Label: "Apellidos", Width: 100},
			{Name: "laboratorio", Label: "Laboratorio", Width: 50},
			{Name: "correo", Label: "Correo", Width: 160},
			{Name: "password", Label: "Contraseña", Width: 50},
		},
	},
	KindInventory: {
		title: func(lab string) string { return "Materiales - " + lab },
		query: func(table string) string { return fmt.Sprintf(inventoryQuery, table) },
		columns: []Column{
			{Name: "EQUIPO", Label: "Equipo", Width: 60},
			{Name: "MARCA", Label: "Marca", Width: 40},
			{Name: "MODELO", Label: "Modelo", Width: 50},
			{Name: "N_CASETA", Label: "Caseta", Width: 40},
			{Name: "N_SERIE", Label: "N. Serie", Width: 80},
			{Name: "N_INVENTARIO", Label: "N. Inventario", Width: 80},
			{Name: "VOLTAJE", Label: "Voltaje", Width: 40},
			{Name: "POTENCIA", Label: "Potencia", Width: 40},
			{Name: "CANTIDAD", Label: "Cantidad", Width: 30},
			{Name: "NUMERACION", Label: "Numeracion", Width: 30},
			{Name: "OBSERVACIONES", Label: "Observaciones"},
		},
		annotation: AnnotationSingleSpan,
		needsLab:   true,
	},
	KindTransactions: {
		title: staticTitle("Registros"),
		query: staticQuery(transactionsQuery),
		columns: []Column{
			{Name: "ncontrol", Label: "Identificación", PDFLabel: "ID", Width: 50},
			{Name: "hora_solicitud", Label: "Hora Solicitud", Width: 40},
			{Name: "fecha_solicitud", Label: "Fecha Solicitud", Width: 50},
			{Name: "hora_final", Label: "Hora Final", Width: 40},
			{Name: "fecha_final", Label: "Fecha Final", Width: 50},
			{Name: "name", Label: "Nombre", Width: 60},
			{Name: "lastname", Label: "Apellido", Width: 60},
			{Name: "teacher", Label: "Profesor", Width: 60},
			{Name: "casetero", Label: "Casetero", Width: 60},
			{Name: "topic", Label: "Tema", Width: 50},
			{Name: "grupo", Label: "Grupo", Width: 30},
			{Name: "number_group", Label: "No. Grupo", Width: 30},
			{Name: "laboratory", Label: "Laboratorio", PDFLabel: "LAB", Width: 30},
			{Name: "tipo_vale", Label: "Vale", Width: 50},
			{Name: "reporte", Label: "Reporte"},
			{Name: "i_material", Label: "Materiales"},
		},
		annotation: AnnotationDualSpan,
		materials:  true,
	},
}

// DefaultLabTables maps laboratory identifiers to their inventory tables.
func DefaultLabTables() map[string]string {
	return map[string]string{
		"Y1-Y2": "labpotencia",
		"Y6-Y7": "labelectronica",
		"Y8":    "labthird",
	}
}

// Kinds lists the known report kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindStudents, KindTeachers, KindAttendants, KindInventory, KindTransactions}
}

// LookupKind parses a kind strictly.
func LookupKind(raw string) (Kind, bool) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := catalogEntries[kind]; !ok {
		return "", false
	}
	return kind, true
}

// NormalizeKind parses a kind, falling back to the attendant report for unknown values.
func NormalizeKind(raw string) Kind {
	if kind, ok := LookupKind(raw); ok {
		return kind
	}
	return KindAttendants
}

// Catalog resolves report kinds into executable specs.
type Catalog struct {
	mu   sync.RWMutex
	labs map[string]string
}

// NewCatalog creates a catalog with the given lab table mapping.
func NewCatalog(labs map[string]string) (*Catalog, error) {
	c := &Catalog{labs: make(map[string]string, len(labs))}
	for lab, table := range labs {
		if err := c.SetLab(lab, table); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetLab registers or replaces the inventory table for a lab.
func (c *Catalog) SetLab(lab, table string) error {
	lab = strings.TrimSpace(lab)
	if lab == "" {
		return NewError(KindValidation, "lab identifier is required", nil)
	}
	if !tableNamePattern.MatchString(table) {
		return NewError(KindValidation, fmt.Sprintf("invalid inventory table %q for lab %q", table, lab), nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.labs == nil {
		c.labs = make(map[string]string)
	}
	c.labs[lab] = table
	return nil
}

// Labs returns the configured lab identifiers sorted.
func (c *Catalog) Labs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	labs := make([]string, 0, len(c.labs))
	for lab := range c.labs {
		labs = append(labs, lab)
	}
	sort.Strings(labs)
	return labs
}

// Resolve builds the spec for a kind. Unknown kinds resolve to the attendant report.
func (c *Catalog) Resolve(kind Kind, lab string) (Spec, error) {
	kind = NormalizeKind(string(kind))
	entry := catalogEntries[kind]

	table := ""
	if entry.needsLab {
		lab = strings.TrimSpace(lab)
		if lab == "" {
			return Spec{}, NewError(KindValidation, "lab is required for inventory reports", nil)
		}
		var ok bool
		c.mu.RLock()
		table, ok = c.labs[lab]
		c.mu.RUnlock()
		if !ok {
			return Spec{}, NewError(KindNotFound, fmt.Sprintf("lab %q not configured", lab), nil)
		}
	} else {
		lab = ""
	}

	columns := make([]Column, len(entry.columns))
	copy(columns, entry.columns)

	return Spec{
		Kind:       kind,
		Title:      entry.title(lab),
		Lab:        lab,
		Query:      entry.query(table),
		Columns:    columns,
		Annotation: entry.annotation,
		Materials:  entry.materials,
	}, nil
}
