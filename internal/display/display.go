// Package display maps raw database identifiers onto human-readable labels.
// The catalog is loaded from a YAML file at startup; identifiers absent from
// the catalog fall back to the raw name so unknown tables stay usable.
package display

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldEntry carries the presentation strings for one column.
type FieldEntry struct {
	Label string `yaml:"label"`
	Hint  string `yaml:"hint"`
}

// TableEntry carries the presentation strings for one table.
type TableEntry struct {
	Display string                `yaml:"display"`
	Fields  map[string]FieldEntry `yaml:"fields"`
}

// Catalog is the full identifier-to-label map.
type Catalog struct {
	Tables map[string]TableEntry `yaml:"tables"`
}

// Load reads the catalog from path. A missing file yields an empty catalog,
// not an error: the console works fine with raw identifiers.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{Tables: map[string]TableEntry{}}, nil
		}
		return nil, fmt.Errorf("reading display catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing display catalog: %w", err)
	}
	if c.Tables == nil {
		c.Tables = map[string]TableEntry{}
	}
	return &c, nil
}

// TableName returns the display name for a table, or the raw name.
func (c *Catalog) TableName(table string) string {
	if e, ok := c.Tables[table]; ok && e.Display != "" {
		return e.Display
	}
	return table
}

// FieldLabel returns the display label for a column, or the raw name.
func (c *Catalog) FieldLabel(table, column string) string {
	if e, ok := c.Tables[table]; ok {
		if f, ok := e.Fields[column]; ok && f.Label != "" {
			return f.Label
		}
	}
	return column
}

// FieldHint returns the input hint for a column, or an empty string.
func (c *Catalog) FieldHint(table, column string) string {
	if e, ok := c.Tables[table]; ok {
		return e.Fields[column].Hint
	}
	return ""
}
