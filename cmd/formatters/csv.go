package formatters

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVFormatter handles CSV format output. Leaves of composite fields become
// columns named by their dotted path.
type CSVFormatter struct{}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

// NewWriter creates a new CSV stream writer and writes the header
func (f *CSVFormatter) NewWriter(w io.Writer, schema Schema) (StreamWriter, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}

	header := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		header[i] = col.Name()
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	return &csvStreamWriter{
		writer:  csvWriter,
		columns: schema.Columns,
		record:  make([]string, len(schema.Columns)),
	}, nil
}

// Extension returns the file extension for CSV files
func (f *CSVFormatter) Extension() string {
	return ".csv"
}

// MIMEType returns the MIME type for CSV
func (f *CSVFormatter) MIMEType() string {
	return "text/csv"
}

// csvStreamWriter implements StreamWriter for CSV format
type csvStreamWriter struct {
	writer  *csv.Writer
	columns []Column
	record  []string
}

// WriteChunk writes a chunk of rows in CSV format
func (w *csvStreamWriter) WriteChunk(rows []Row) error {
	for _, row := range rows {
		if len(row) != len(w.columns) {
			return fmt.Errorf("row has %d values, schema has %d columns", len(row), len(w.columns))
		}
		for i, val := range row {
			s, err := formatValue(val)
			if err != nil {
				return fmt.Errorf("column %s: %w", w.columns[i].Name(), err)
			}
			w.record[i] = s
		}

		if err := w.writer.Write(w.record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	return nil
}

// Close finalizes the CSV output by flushing the writer
func (w *csvStreamWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

func formatValue(val any) (string, error) {
	switch v := val.(type) {
	case nil:
		return "", nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", val)
	}
}
