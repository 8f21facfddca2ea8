package formatters

import (
	"fmt"
	"io"
	"strings"

	"github.com/airframesio/table-compare/cmd/tablefile"
	"github.com/parquet-go/parquet-go"
)

// ParquetFormatter handles Parquet format output. Composite fields become
// required groups. Parquet orders the fields of every group by name, so the
// written column order follows the names rather than the schema order.
type ParquetFormatter struct {
	compression string
}

// NewParquetFormatter creates a new Parquet formatter
func NewParquetFormatter() *ParquetFormatter {
	return &ParquetFormatter{
		compression: "snappy", // Default Parquet compression
	}
}

// NewParquetFormatterWithCompression creates a Parquet formatter with specified compression
func NewParquetFormatterWithCompression(compression string) *ParquetFormatter {
	return &ParquetFormatter{
		compression: compression,
	}
}

// codec maps the compression name to a parquet page codec
func (f *ParquetFormatter) codec() parquet.WriterOption {
	switch f.compression {
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "lz4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		// Default to Snappy (standard for Parquet)
		return parquet.Compression(&parquet.Snappy)
	}
}

// NewWriter creates a new Parquet stream writer. The table name is stored
// in the file's key-value metadata.
func (f *ParquetFormatter) NewWriter(w io.Writer, schema Schema) (StreamWriter, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}

	pqSchema := buildSchema(schema)

	// Map each physical column back to its position in the row
	positions := make(map[string]int, len(schema.Columns))
	for i, col := range schema.Columns {
		positions[col.Name()] = i
	}
	leafPaths := pqSchema.Columns()
	order := make([]int, len(leafPaths))
	for i, path := range leafPaths {
		pos, ok := positions[strings.Join(path, ".")]
		if !ok {
			return nil, fmt.Errorf("parquet column %s has no schema column", strings.Join(path, "."))
		}
		order[i] = pos
	}

	opts := []parquet.WriterOption{pqSchema, f.codec()}
	if schema.Table != "" {
		opts = append(opts, parquet.KeyValueMetadata(tablefile.TableNameKey, schema.Table))
	}

	return &parquetStreamWriter{
		writer:  parquet.NewWriter(w, opts...),
		columns: schema.Columns,
		order:   order,
	}, nil
}

// buildSchema creates a Parquet schema with one required leaf per column
func buildSchema(schema Schema) *parquet.Schema {
	fields := make(parquet.Group)
	for _, col := range schema.Columns {
		leaf := leafNode(col.Kind)
		if len(col.Path) == 1 {
			fields[col.Path[0]] = leaf
			continue
		}
		group, ok := fields[col.Path[0]].(parquet.Group)
		if !ok {
			group = make(parquet.Group)
			fields[col.Path[0]] = group
		}
		group[col.Path[1]] = leaf
	}
	name := schema.Table
	if name == "" {
		name = "table"
	}
	return parquet.NewSchema(name, fields)
}

func leafNode(kind Kind) parquet.Node {
	switch kind {
	case KindInt64:
		return parquet.Leaf(parquet.Int64Type)
	default:
		return parquet.Leaf(parquet.DoubleType)
	}
}

// Extension returns the file extension for Parquet files
func (f *ParquetFormatter) Extension() string {
	return ".parquet"
}

// MIMEType returns the MIME type for Parquet
func (f *ParquetFormatter) MIMEType() string {
	return "application/vnd.apache.parquet"
}

// parquetStreamWriter implements StreamWriter for Parquet format
type parquetStreamWriter struct {
	writer  *parquet.Writer
	columns []Column
	order   []int
}

// WriteChunk converts a chunk to parquet rows and writes them
func (w *parquetStreamWriter) WriteChunk(rows []Row) error {
	pqRows := make([]parquet.Row, len(rows))
	for r, row := range rows {
		if len(row) != len(w.columns) {
			return fmt.Errorf("row has %d values, schema has %d columns", len(row), len(w.columns))
		}
		pqRow := make(parquet.Row, len(w.order))
		for c, pos := range w.order {
			value, err := parquetValue(w.columns[pos], row[pos])
			if err != nil {
				return err
			}
			pqRow[c] = value.Level(0, 0, c)
		}
		pqRows[r] = pqRow
	}

	if _, err := w.writer.WriteRows(pqRows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	return nil
}

// parquetValue converts v to the physical type of col. Columns are
// required, so nulls are rejected.
func parquetValue(col Column, v any) (parquet.Value, error) {
	switch col.Kind {
	case KindInt64:
		if n, ok := v.(int64); ok {
			return parquet.Int64Value(n), nil
		}
	default:
		if x, ok := v.(float64); ok {
			return parquet.DoubleValue(x), nil
		}
	}
	return parquet.Value{}, fmt.Errorf("column %s: unsupported value type %T", col.Name(), v)
}

// Close writes the footer
func (w *parquetStreamWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
