package tablefile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLineSize bounds a single JSONL record.
const maxLineSize = 64 * 1024 * 1024

type jsonlTable struct {
	fieldSet
	name string
	// paths maps a qualified name to its key path inside a record.
	paths   map[string][]string
	records []map[string]any
}

func readJSONL(location string, data []byte) (*memoryFile, error) {
	var (
		records []map[string]any
		first   []byte
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("failed to decode JSONL line %d: %w", line, err)
		}
		if first == nil {
			first = append([]byte(nil), raw...)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL: %w", err)
	}
	if first == nil {
		return nil, errors.New("failed to read JSONL: no records")
	}

	paths := make(map[string][]string)
	fields, err := jsonlSchema(first, paths)
	if err != nil {
		return nil, err
	}

	fs := newFieldSet(fields)
	return &memoryFile{
		location: location,
		newTable: func(name string) Table {
			return &jsonlTable{fieldSet: fs, name: name, paths: paths, records: records}
		},
	}, nil
}

// jsonlSchema derives the fields from one record, keeping its key order.
func jsonlSchema(record []byte, paths map[string][]string) ([]Field, error) {
	iter := jsoniter.ParseBytes(json, record)
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil, errors.New("JSONL record is not an object")
	}

	var fields []Field
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, key string) bool {
		fields = append(fields, jsonField(iter, key, nil, "", paths))
		return true
	})
	if iter.Error != nil {
		return nil, fmt.Errorf("failed to parse JSONL schema: %w", iter.Error)
	}
	return fields, nil
}

// jsonField consumes the value under key. prefix is prepended to the type
// name of leaves found inside arrays.
func jsonField(iter *jsoniter.Iterator, key string, parent []string, prefix string, paths map[string][]string) Field {
	keys := joinPath(parent, key)
	path := strings.Join(keys, ".")
	field := Field{Name: key, Path: path}

	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		iter.ReadObjectCB(func(iter *jsoniter.Iterator, child string) bool {
			field.Leaves = append(field.Leaves, leavesOf(jsonField(iter, child, keys, prefix, paths))...)
			return true
		})
		if !field.IsComposite() {
			field.TypeName = "map<string,?>"
			return field
		}
		field.TypeName = wrapType(prefix, "object")
		return field
	case jsoniter.ArrayValue:
		field.TypeName = wrapType(prefix, "vector<?>")
		first := true
		iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
			if !first {
				iter.Skip()
				return true
			}
			first = false
			elem := jsonField(iter, key, parent, prefix+"vector<", paths)
			field.TypeName = elem.TypeName
			field.Leaves = elem.Leaves
			return true
		})
		if field.IsComposite() {
			return field
		}
	default:
		field.TypeName = wrapType(prefix, jsonScalarType(iter))
	}

	paths[path] = keys
	return field
}

func jsonScalarType(iter *jsoniter.Iterator) string {
	defer iter.Skip()
	switch iter.WhatIsNext() {
	case jsoniter.NumberValue:
		return "double"
	case jsoniter.BoolValue:
		return "bool"
	case jsoniter.StringValue:
		return "string"
	default:
		return "null"
	}
}

// wrapType closes every "vector<" opened in prefix around name.
func wrapType(prefix, name string) string {
	return prefix + name + strings.Repeat(">", strings.Count(prefix, "<"))
}

func (t *jsonlTable) Name() string {
	return t.name
}

func (t *jsonlTable) Values(ctx context.Context, path string) ([]float64, error) {
	keys, ok := t.paths[path]
	if !ok {
		return nil, fieldNotFound(t.name, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(t.records))
	for i, record := range t.records {
		var err error
		values, err = collectJSON(values, record, keys)
		if err != nil {
			return nil, fmt.Errorf("record %d of %q: %w", i+1, path, err)
		}
	}
	return values, nil
}

// collectJSON follows keys through v, descending into every array element
// on the way. Missing keys and nulls contribute nothing.
func collectJSON(dst []float64, v any, keys []string) ([]float64, error) {
	switch val := v.(type) {
	case nil:
		return dst, nil
	case []any:
		var err error
		for _, elem := range val {
			if dst, err = collectJSON(dst, elem, keys); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case map[string]any:
		if len(keys) == 0 {
			return nil, fmt.Errorf("%w: object value", ErrNotNumeric)
		}
		return collectJSON(dst, val[keys[0]], keys[1:])
	default:
		if len(keys) > 0 {
			return dst, nil
		}
		return appendValue(dst, val)
	}
}
