package tablefile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// memoryFile holds a single decoded table. Any table name is accepted since
// csv and jsonl files carry no table name of their own.
type memoryFile struct {
	location string
	newTable func(name string) Table
}

func (f *memoryFile) Location() string {
	return f.location
}

func (f *memoryFile) Table(_ context.Context, name string) (Table, error) {
	return f.newTable(name), nil
}

func (f *memoryFile) Close() error {
	return nil
}

type csvTable struct {
	fieldSet
	name    string
	columns map[string]int
	records [][]string
}

func readCSV(location string, data []byte) (*memoryFile, error) {
	reader := csv.NewReader(bytes.NewReader(data))

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("failed to read CSV header: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		records = append(records, record)
	}

	columns := make(map[string]int, len(headers))
	fields := make([]Field, 0, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if _, dup := columns[header]; dup {
			return nil, fmt.Errorf("duplicate CSV column %q", header)
		}
		columns[header] = i
		fields = append(fields, Field{
			Name:     header,
			Path:     header,
			TypeName: inferCSVType(records, i),
		})
	}

	fs := newFieldSet(fields)
	return &memoryFile{
		location: location,
		newTable: func(name string) Table {
			return &csvTable{fieldSet: fs, name: name, columns: columns, records: records}
		},
	}, nil
}

func (t *csvTable) Name() string {
	return t.name
}

func (t *csvTable) Values(ctx context.Context, path string) ([]float64, error) {
	col, ok := t.columns[path]
	if !ok {
		return nil, fieldNotFound(t.name, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(t.records))
	for row, record := range t.records {
		if col >= len(record) || record[col] == "" {
			continue
		}
		x, err := parseNumber(record[col])
		if err != nil {
			return nil, fmt.Errorf("row %d of %q: %w", row+1, path, err)
		}
		values = append(values, x)
	}
	return values, nil
}

// inferCSVType names the narrowest type every non-empty cell of a column
// converts to.
func inferCSVType(records [][]string, col int) string {
	typeName := ""
	for _, record := range records {
		if col >= len(record) || record[col] == "" {
			continue
		}
		cell := strings.TrimSpace(record[col])

		var cellType string
		switch {
		case isInt(cell):
			cellType = "int64"
		case isFloat(cell):
			cellType = "double"
		case isBool(cell):
			cellType = "bool"
		default:
			return "string"
		}

		switch {
		case typeName == "":
			typeName = cellType
		case typeName == cellType:
		case (typeName == "int64" && cellType == "double") || (typeName == "double" && cellType == "int64"):
			typeName = "double"
		default:
			return "string"
		}
	}
	if typeName == "" {
		return "string"
	}
	return typeName
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isBool(s string) bool {
	_, err := strconv.ParseBool(s)
	return err == nil
}
