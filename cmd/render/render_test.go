package render

import (
	"testing"

	"github.com/airframesio/table-compare/cmd/histogram"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput(t *testing.T, v1, v2 []float64) Input {
	t.Helper()
	pair, err := histogram.NewPair(v1, v2, histogram.DefaultBins)
	require.NoError(t, err)
	return Input{Title: "hits.e", Label1: "ref.parquet", Label2: "new.parquet", Pair: pair}
}

func TestRender(t *testing.T) {
	in := testInput(t, []float64{1, 2, 2, 3, 3, 3}, []float64{1, 2, 3, 3, 4})

	for _, format := range []string{"pdf", "png", "svg", "eps"} {
		t.Run(format, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			path := "out/hits/e_compare." + format
			require.NoError(t, fs.MkdirAll("out/hits", 0o755))

			require.NoError(t, New(fs, DefaultConfig()).Render(path, format, in))

			info, err := fs.Stat(path)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}
}

func TestRenderWithoutRatioPanel(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := DefaultConfig()
	cfg.Ratio = false

	require.NoError(t, New(fs, cfg).Render("x.svg", "svg", testInput(t, []float64{1, 2}, []float64{1, 2})))
	exists, err := afero.Exists(fs, "x.svg")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRenderEmptyComparison(t *testing.T) {
	// The second series is empty, so only the overlay is drawn.
	fs := afero.NewMemMapFs()
	require.NoError(t, New(fs, DefaultConfig()).Render("x.pdf", "pdf", testInput(t, []float64{1, 1, 1}, nil)))
}

func TestRenderUnsupportedFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	err := New(fs, DefaultConfig()).Render("x.root", "root", testInput(t, []float64{1}, []float64{1}))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	exists, err := afero.Exists(fs, "x.root")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSupportedFormat(t *testing.T) {
	assert.True(t, SupportedFormat("PDF"))
	assert.True(t, SupportedFormat("tiff"))
	assert.False(t, SupportedFormat("root"))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.8, clamp(0.1, 0.8, 1.2))
	assert.Equal(t, 1.2, clamp(5, 0.8, 1.2))
	assert.Equal(t, 1.0, clamp(1, 0.8, 1.2))
}
