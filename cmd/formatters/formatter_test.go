package formatters

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/airframesio/table-compare/cmd/tablefile"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	Table: "AnalysisTree",
	Columns: []Column{
		{Path: []string{"a"}, Kind: KindDouble},
		{Path: []string{"b"}, Kind: KindDouble},
		{Path: []string{"hits", "e"}, Kind: KindDouble},
		{Path: []string{"hits", "n"}, Kind: KindInt64},
	},
}

var testRows = []Row{
	{0.25, 1.0, 3.5, int64(2)},
	{0.5, 2.0, 4.5, int64(7)},
	{0.75, 3.0, 5.5, int64(1)},
}

func encode(t *testing.T, format, compression string) []byte {
	t.Helper()
	f, err := GetFormatter(format, compression)
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := f.NewWriter(&buf, testSchema)
	require.NoError(t, err)
	require.NoError(t, w.WriteChunk(testRows[:2]))
	require.NoError(t, w.WriteChunk(testRows[2:]))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readBack(t *testing.T, name string, data []byte) tablefile.Table {
	t.Helper()
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, name, data, 0o644))

	f, err := tablefile.Open(ctx, name, tablefile.Options{Fs: fs})
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	table, err := f.Table(ctx, "AnalysisTree")
	require.NoError(t, err)
	return table
}

func TestFormattersRoundTripThroughTableFiles(t *testing.T) {
	tests := []struct {
		format      string
		compression string
		leafPath    string
	}{
		{FormatParquet, "zstd", "hits.e"},
		{FormatParquet, "snappy", "hits.e"},
		{FormatJSONL, "", "hits.e"},
		{FormatCSV, "", "hits.e"},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.compression, func(t *testing.T) {
			table := readBack(t, "tree."+tt.format, encode(t, tt.format, tt.compression))

			ctx := context.Background()
			a, err := table.Values(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []float64{0.25, 0.5, 0.75}, a)

			e, err := table.Values(ctx, tt.leafPath)
			require.NoError(t, err)
			assert.Equal(t, []float64{3.5, 4.5, 5.5}, e)

			n, err := table.Values(ctx, "hits.n")
			require.NoError(t, err)
			assert.Equal(t, []float64{2, 7, 1}, n)
		})
	}
}

func TestNestedFormatsKeepGroups(t *testing.T) {
	for _, format := range []string{FormatParquet, FormatJSONL} {
		t.Run(format, func(t *testing.T) {
			table := readBack(t, "tree."+format, encode(t, format, ""))

			fields := table.Fields()
			require.Len(t, fields, 3)
			assert.Equal(t, "a", fields[0].Name)
			assert.Equal(t, "b", fields[1].Name)

			hits, ok := table.Field("hits")
			require.True(t, ok)
			require.Len(t, hits.Leaves, 2)
			assert.Equal(t, "hits.e", hits.Leaves[0].Path)
			assert.Equal(t, "hits.n", hits.Leaves[1].Path)
		})
	}
}

func TestJSONLKeyOrder(t *testing.T) {
	data := encode(t, FormatJSONL, "")
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `{"a":0.25,"b":1,"hits":{"e":3.5,"n":2}}`, lines[0])
}

func TestCSVHeader(t *testing.T) {
	data := encode(t, FormatCSV, "")
	header, _, ok := strings.Cut(string(data), "\n")
	require.True(t, ok)
	assert.Equal(t, "a,b,hits.e,hits.n", header)
}

func TestParquetTableName(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "tree.parquet", encode(t, FormatParquet, ""), 0o644))

	f, err := tablefile.Open(ctx, "tree.parquet", tablefile.Options{Fs: fs})
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Table(ctx, "OtherTree")
	assert.ErrorIs(t, err, tablefile.ErrTableNotFound)
}

func TestWriteChunkRejectsBadRows(t *testing.T) {
	for _, format := range []string{FormatParquet, FormatJSONL, FormatCSV} {
		t.Run(format, func(t *testing.T) {
			f, err := GetFormatter(format, "")
			require.NoError(t, err)
			w, err := f.NewWriter(&bytes.Buffer{}, testSchema)
			require.NoError(t, err)

			assert.Error(t, w.WriteChunk([]Row{{1.0}}))
			assert.Error(t, w.WriteChunk([]Row{{1.0, 2.0, 3.0, "x"}}))
		})
	}
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		columns []Column
		wantErr bool
	}{
		{"scalars", []Column{{Path: []string{"a"}}, {Path: []string{"b"}}}, false},
		{"group", []Column{{Path: []string{"a"}}, {Path: []string{"g", "x"}}, {Path: []string{"g", "y"}}}, false},
		{"duplicate scalar", []Column{{Path: []string{"a"}}, {Path: []string{"a"}}}, true},
		{"scalar shadows group", []Column{{Path: []string{"g", "x"}}, {Path: []string{"g"}}}, true},
		{"group shadows scalar", []Column{{Path: []string{"g"}}, {Path: []string{"g", "x"}}}, true},
		{"split group", []Column{{Path: []string{"g", "x"}}, {Path: []string{"a"}}, {Path: []string{"g", "y"}}}, true},
		{"too deep", []Column{{Path: []string{"g", "h", "x"}}}, true},
		{"empty path", []Column{{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSchema(Schema{Columns: tt.columns})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetFormatterUnsupported(t *testing.T) {
	_, err := GetFormatter("root", "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.True(t, UsesInternalCompression(FormatParquet))
	assert.False(t, UsesInternalCompression(FormatCSV))
}
