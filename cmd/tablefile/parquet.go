package tablefile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/afero"
)

// TableNameKey is the key-value metadata entry naming the table stored in a
// parquet file. Files without it accept any table name.
const TableNameKey = "table_name"

// readBatchSize is the number of values decoded per ReadValues call.
const readBatchSize = 1024

// ParquetFile is a single-table parquet file.
type ParquetFile struct {
	location string
	file     *parquet.File
	closer   io.Closer
}

func openParquetFile(fs afero.Fs, path string) (*ParquetFile, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceAccess, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to get file stats: %w", ErrResourceAccess, err)
	}

	pf, err := newParquetFile(path, f, stat.Size(), f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceAccess, path, err)
	}
	return pf, nil
}

func openParquetBytes(location string, data []byte) (*ParquetFile, error) {
	return newParquetFile(location, bytes.NewReader(data), int64(len(data)), nil)
}

func newParquetFile(location string, r io.ReaderAt, size int64, closer io.Closer) (*ParquetFile, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	return &ParquetFile{
		location: location,
		file:     file,
		closer:   closer,
	}, nil
}

// Location returns the file location
func (f *ParquetFile) Location() string {
	return f.location
}

// Table returns the table stored in the file. When the file names its table
// through TableNameKey the requested name must match.
func (f *ParquetFile) Table(_ context.Context, name string) (Table, error) {
	if stored, ok := f.file.Lookup(TableNameKey); ok && stored != name {
		return nil, tableNotFound(f.location, name)
	}

	columns := make(map[string][]string)
	var fields []Field
	for _, node := range f.file.Schema().Fields() {
		fields = append(fields, parquetField(node, nil, nil, columns))
	}

	return &parquetTable{
		name:     name,
		file:     f.file,
		fieldSet: newFieldSet(fields),
		columns:  columns,
	}, nil
}

// Close closes the underlying reader
func (f *ParquetFile) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

type parquetTable struct {
	fieldSet
	name string
	file *parquet.File
	// columns maps a qualified name to its physical column path.
	columns map[string][]string
}

func (t *parquetTable) Name() string {
	return t.name
}

func (t *parquetTable) Values(ctx context.Context, path string) ([]float64, error) {
	column, ok := t.columns[path]
	if !ok {
		return nil, fieldNotFound(t.name, path)
	}
	leaf, ok := t.file.Schema().Lookup(column...)
	if !ok {
		return nil, fieldNotFound(t.name, path)
	}

	conv, err := newParquetConverter(leaf.Node)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	values := make([]float64, 0, t.file.NumRows())
	buf := make([]parquet.Value, readBatchSize)
	for _, rowGroup := range t.file.RowGroups() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values, err = readColumnChunk(rowGroup.ColumnChunks()[leaf.ColumnIndex], conv, buf, values)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", path, err)
		}
	}
	return values, nil
}

func readColumnChunk(chunk parquet.ColumnChunk, conv parquetConverter, buf []parquet.Value, dst []float64) ([]float64, error) {
	pages := chunk.Pages()
	defer pages.Close()

	for {
		page, err := pages.ReadPage()
		if errors.Is(err, io.EOF) {
			return dst, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet page: %w", err)
		}

		reader := page.Values()
		for {
			n, err := reader.ReadValues(buf)
			for _, v := range buf[:n] {
				x, ok, convErr := conv.toFloat(v)
				if convErr != nil {
					return nil, convErr
				}
				if ok {
					dst = append(dst, x)
				}
			}
			if errors.Is(err, io.EOF) || (err == nil && n == 0) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read parquet values: %w", err)
			}
		}
	}
}

// parquetConverter turns the physical values of one leaf column into
// float64, honouring the logical type annotation of the leaf.
type parquetConverter struct {
	unsigned bool
	decimal  bool
	scale    int
}

// newParquetConverter rejects temporal columns, which have no numeric
// distribution to compare.
func newParquetConverter(node parquet.Node) (parquetConverter, error) {
	var c parquetConverter
	lt := node.Type().LogicalType()
	switch {
	case node.Type().Kind() == parquet.Int96:
		return c, fmt.Errorf("%w: parquet int96 timestamp", ErrNotNumeric)
	case lt == nil:
	case lt.Timestamp != nil, lt.Date != nil, lt.Time != nil:
		return c, fmt.Errorf("%w: parquet %s", ErrNotNumeric, parquetLeafTypeName(node))
	case lt.Integer != nil:
		c.unsigned = !lt.Integer.IsSigned
	case lt.Decimal != nil:
		c.decimal = true
		c.scale = int(lt.Decimal.Scale)
	}
	return c, nil
}

// toFloat converts v; the bool result is false for nulls.
func (c parquetConverter) toFloat(v parquet.Value) (float64, bool, error) {
	if v.IsNull() {
		return 0, false, nil
	}

	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return 1, true, nil
		}
		return 0, true, nil
	case parquet.Int32:
		if c.unsigned {
			return float64(uint32(v.Int32())), true, nil
		}
		return c.scaled(float64(v.Int32())), true, nil
	case parquet.Int64:
		if c.unsigned {
			return float64(uint64(v.Int64())), true, nil
		}
		return c.scaled(float64(v.Int64())), true, nil
	case parquet.Float:
		return float64(v.Float()), true, nil
	case parquet.Double:
		return v.Double(), true, nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		if c.decimal {
			return c.scaled(unscaledDecimal(v.ByteArray())), true, nil
		}
		x, err := parseNumber(string(v.ByteArray()))
		return x, err == nil, err
	default:
		return 0, false, fmt.Errorf("%w: parquet %s", ErrNotNumeric, v.Kind())
	}
}

func (c parquetConverter) scaled(x float64) float64 {
	if !c.decimal || c.scale == 0 {
		return x
	}
	return x / math.Pow10(c.scale)
}

// unscaledDecimal decodes a big-endian two's complement integer.
func unscaledDecimal(b []byte) float64 {
	n := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b))*8))
	}
	x, _ := new(big.Float).SetInt(n).Float64()
	return x
}

// parquetField converts a schema node. logical is the dotted path of the
// parent, physical its column path in the file.
func parquetField(node parquet.Field, logical, physical []string, columns map[string][]string) Field {
	logical = joinPath(logical, node.Name())
	physical = joinPath(physical, node.Name())
	path := strings.Join(logical, ".")
	field := Field{Name: node.Name(), Path: path}

	switch {
	case isParquetMap(node):
		field.TypeName = parquetMapTypeName(node)
	case isParquetList(node):
		elem, elemPhysical := parquetListElement(node, physical)
		if elem.Leaf() {
			field.TypeName = "vector<" + parquetLeafTypeName(elem) + ">"
			columns[path] = elemPhysical
			break
		}
		field.TypeName = "vector<group>"
		for _, child := range elem.Fields() {
			field.Leaves = append(field.Leaves, leavesOf(parquetField(child, logical, elemPhysical, columns))...)
		}
	case node.Leaf():
		field.TypeName = parquetLeafTypeName(node)
		if node.Repeated() {
			field.TypeName = "vector<" + field.TypeName + ">"
		}
		columns[path] = physical
	default:
		field.TypeName = "group"
		for _, child := range node.Fields() {
			field.Leaves = append(field.Leaves, leavesOf(parquetField(child, logical, physical, columns))...)
		}
	}
	return field
}

// isParquetMap recognises MAP annotated groups and the bare
// repeated key_value layout written by older tools.
func isParquetMap(node parquet.Node) bool {
	if node.Leaf() {
		return false
	}
	if lt := node.Type().LogicalType(); lt != nil && lt.Map != nil {
		return true
	}
	children := node.Fields()
	if len(children) != 1 || children[0].Leaf() || !children[0].Repeated() {
		return false
	}
	kv := children[0].Fields()
	return len(kv) == 2 && kv[0].Name() == "key"
}

func isParquetList(node parquet.Node) bool {
	if node.Leaf() {
		return false
	}
	if lt := node.Type().LogicalType(); lt != nil && lt.List != nil {
		return true
	}
	children := node.Fields()
	return len(children) == 1 && children[0].Repeated() && children[0].Name() == "list"
}

// parquetListElement returns the element node of a LIST group and its
// physical path. Both the three-level and the legacy two-level layouts are
// handled.
func parquetListElement(node parquet.Node, physical []string) (parquet.Field, []string) {
	repeated := node.Fields()[0]
	physical = joinPath(physical, repeated.Name())
	if repeated.Leaf() {
		return repeated, physical
	}
	inner := repeated.Fields()
	if len(inner) == 1 {
		return inner[0], joinPath(physical, inner[0].Name())
	}
	return repeated, physical
}

func parquetMapTypeName(node parquet.Node) string {
	key, value := "?", "?"
	if children := node.Fields(); len(children) == 1 && !children[0].Leaf() {
		for _, kv := range children[0].Fields() {
			name := "group"
			if kv.Leaf() {
				name = parquetLeafTypeName(kv)
			}
			switch kv.Name() {
			case "key":
				key = name
			case "value":
				value = name
			}
		}
	}
	return "map<" + key + "," + value + ">"
}

func parquetLeafTypeName(node parquet.Node) string {
	t := node.Type()
	if lt := t.LogicalType(); lt != nil {
		switch {
		case lt.UTF8 != nil, lt.Enum != nil, lt.Json != nil:
			return "string"
		case lt.Integer != nil:
			if lt.Integer.IsSigned {
				return fmt.Sprintf("int%d", lt.Integer.BitWidth)
			}
			return fmt.Sprintf("uint%d", lt.Integer.BitWidth)
		case lt.Decimal != nil:
			return "decimal"
		case lt.Date != nil:
			return "date"
		case lt.Time != nil:
			return "time"
		case lt.Timestamp != nil:
			return "timestamp"
		}
	}

	switch t.Kind() {
	case parquet.Boolean:
		return "bool"
	case parquet.Int32:
		return "int32"
	case parquet.Int64:
		return "int64"
	case parquet.Int96:
		return "int96"
	case parquet.Float:
		return "float"
	case parquet.Double:
		return "double"
	case parquet.ByteArray:
		return "bytes"
	default:
		return "fixed"
	}
}
