package formatters

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

const jsonlBufferSize = 4096

// JSONLFormatter handles JSONL (JSON Lines) format output. Keys are written
// in schema order and leaves of a composite field share one nested object.
type JSONLFormatter struct{}

// NewJSONLFormatter creates a new JSONL formatter
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{}
}

// NewWriter creates a new JSONL stream writer
func (f *JSONLFormatter) NewWriter(w io.Writer, schema Schema) (StreamWriter, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	return &jsonlStreamWriter{
		stream:  jsoniter.NewStream(jsoniter.ConfigCompatibleWithStandardLibrary, w, jsonlBufferSize),
		columns: schema.Columns,
	}, nil
}

// Extension returns the file extension for JSONL files
func (f *JSONLFormatter) Extension() string {
	return ".jsonl"
}

// MIMEType returns the MIME type for JSONL
func (f *JSONLFormatter) MIMEType() string {
	return "application/x-ndjson"
}

// jsonlStreamWriter implements StreamWriter for JSONL format
type jsonlStreamWriter struct {
	stream  *jsoniter.Stream
	columns []Column
}

// WriteChunk writes a chunk of rows in JSONL format
func (w *jsonlStreamWriter) WriteChunk(rows []Row) error {
	for _, row := range rows {
		if len(row) != len(w.columns) {
			return fmt.Errorf("row has %d values, schema has %d columns", len(row), len(w.columns))
		}
		if err := w.writeRow(row); err != nil {
			return err
		}
		if w.stream.Error != nil {
			return w.stream.Error
		}
	}
	return w.stream.Flush()
}

func (w *jsonlStreamWriter) writeRow(row Row) error {
	s := w.stream
	group := ""

	s.WriteObjectStart()
	for i, col := range w.columns {
		leafGroup := ""
		if len(col.Path) == 2 {
			leafGroup = col.Path[0]
		}

		switch {
		case leafGroup == group && i > 0:
			s.WriteMore()
		case leafGroup != group:
			if group != "" {
				s.WriteObjectEnd()
			}
			if i > 0 {
				s.WriteMore()
			}
			if leafGroup != "" {
				s.WriteObjectField(leafGroup)
				s.WriteObjectStart()
			}
		}
		group = leafGroup

		s.WriteObjectField(col.Path[len(col.Path)-1])
		switch v := row[i].(type) {
		case nil:
			s.WriteNil()
		case float64:
			s.WriteFloat64(v)
		case int64:
			s.WriteInt64(v)
		default:
			return fmt.Errorf("column %s: unsupported value type %T", col.Name(), row[i])
		}
	}
	if group != "" {
		s.WriteObjectEnd()
	}
	s.WriteObjectEnd()
	s.WriteRaw("\n")
	return nil
}

// Close flushes the stream. JSONL has no footer.
func (w *jsonlStreamWriter) Close() error {
	return w.stream.Flush()
}
