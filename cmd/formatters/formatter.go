// Package formatters encodes generated tables as parquet, csv or jsonl.
package formatters

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format type constants
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
)

// ErrUnsupportedFormat is returned for unknown output formats
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Kind is the physical type of a column.
type Kind int

const (
	KindDouble Kind = iota
	KindInt64
)

// Column is one leaf of the output schema. A Path with two elements is a
// leaf of a composite field.
type Column struct {
	Path []string
	Kind Kind
}

// Name returns the dotted column path.
func (c Column) Name() string {
	return strings.Join(c.Path, ".")
}

// Schema describes a table to be written. Leaves of the same composite field
// must be adjacent.
type Schema struct {
	Table   string
	Columns []Column
}

// Row holds one value per schema column: float64 for KindDouble and int64
// for KindInt64.
type Row []any

// StreamWriter writes rows in chunks
type StreamWriter interface {
	// WriteChunk writes a chunk of rows
	WriteChunk(rows []Row) error
	// Close flushes buffered rows and writes any footer
	Close() error
}

// Formatter defines the interface for output format handlers
type Formatter interface {
	// NewWriter starts a table with the given schema on w
	NewWriter(w io.Writer, schema Schema) (StreamWriter, error)

	// Extension returns the file extension for this format (e.g., ".jsonl", ".csv", ".parquet")
	Extension() string

	// MIMEType returns the MIME type for this format
	MIMEType() string
}

// GetFormatter returns the formatter for format. For parquet the compression
// selects the internal page codec; other formats ignore it.
func GetFormatter(format string, compression string) (Formatter, error) {
	switch format {
	case FormatJSONL:
		return NewJSONLFormatter(), nil
	case FormatCSV:
		return NewCSVFormatter(), nil
	case FormatParquet:
		return NewParquetFormatterWithCompression(compression), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, format)
	}
}

// UsesInternalCompression returns true if the format handles compression internally
func UsesInternalCompression(format string) bool {
	return format == FormatParquet
}

func validateSchema(schema Schema) error {
	scalars := make(map[string]bool)
	leaves := make(map[string]bool)
	closed := make(map[string]bool)
	prev := ""
	for _, col := range schema.Columns {
		if len(col.Path) == 0 || len(col.Path) > 2 {
			return fmt.Errorf("column %q: path must have one or two elements", col.Name())
		}
		name := col.Name()
		if scalars[col.Path[0]] || leaves[name] {
			return fmt.Errorf("duplicate column %q", name)
		}

		group := ""
		if len(col.Path) == 2 {
			group = col.Path[0]
			if closed[group] {
				return fmt.Errorf("leaves of %q are not adjacent", group)
			}
			leaves[name] = true
		} else {
			if closed[name] || prev == name {
				return fmt.Errorf("duplicate column %q", name)
			}
			scalars[name] = true
		}
		if prev != "" && prev != group {
			closed[prev] = true
		}
		prev = group
	}
	return nil
}
