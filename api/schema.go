package api

// Config is the root of a twbgraph configuration file. Paths are resolved
// against the filesystem the workbook is opened on.
type Config struct {
	// Preferences is the preference file palettes are copied from.
	Preferences string `hcl:"preferences,optional"`
	// Palette is used when a command is not given one explicitly.
	Palette string `hcl:"palette,optional"`
	// Catalog is the SQLite file the catalog command writes to.
	Catalog string `hcl:"catalog,optional"`
	// Bindings are applied in order by the apply command.
	Bindings []Binding `hcl:"binding,block"`
}

// Binding ties a palette to a set of columns.
type Binding struct {
	// Palette is the palette name; it is the block label.
	Palette string `hcl:"palette,label"`
	// Columns are bound with palette encodings.
	Columns []string `hcl:"columns,optional"`
	// Instances adds nominal key column instances for Columns first.
	Instances bool `hcl:"instances,optional"`
	// Measure applies the palette to measure-colored worksheets instead.
	Measure bool `hcl:"measure,optional"`
}
