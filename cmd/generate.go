package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/airframesio/table-compare/cmd/compressors"
	"github.com/airframesio/table-compare/cmd/formatters"
	"github.com/airframesio/table-compare/cmd/tablefile"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Static errors for generator configuration
var (
	ErrFieldsInvalid          = errors.New("fields must be between 1 and 10000")
	ErrRowsInvalid            = errors.New("rows must be at least 1")
	ErrGroupLeavesInvalid     = errors.New("group leaves must be between 1 and 1000")
	ErrGenerateOutputRequired = errors.New("output file is required")
	ErrGenerateFormatInvalid  = errors.New("output file must be .parquet, .csv or .jsonl, optionally followed by .zst, .lz4 or .gz")
	ErrParquetCodecInvalid    = errors.New("parquet compression must be one of: snappy, zstd, lz4, gzip, none")
)

const generateChunkSize = 1000

var (
	genOutput           string
	genTableName        string
	genFields           int
	genRows             int
	genSeed             uint64
	genGroup            string
	genGroupLeaves      int
	genParquetCodec     string
	genCompressionLevel int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a table of uniformly distributed random values",
	Long: `Write a table with a number of double fields filled with uniform random values in [0, 1).
An optional composite field adds a group of double leaves and one integer count.

The format follows the output extension. A trailing .zst, .lz4 or .gz compresses the whole file.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		runGenerate(cmd)
	},
}

func addGenerateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&genOutput, "output", "o", "tree.parquet", "output file")
	cmd.Flags().StringVar(&genTableName, "table-name", defaultTableName, "table name stored in the file")
	cmd.Flags().IntVar(&genFields, "fields", 10, "number of scalar fields")
	cmd.Flags().IntVar(&genRows, "rows", 100, "number of rows")
	cmd.Flags().Uint64Var(&genSeed, "seed", 0, "random seed (0 picks one from the clock)")
	cmd.Flags().StringVar(&genGroup, "group", "", "name of an optional composite field")
	cmd.Flags().IntVar(&genGroupLeaves, "group-leaves", 3, "number of double leaves in the composite field")
	cmd.Flags().StringVar(&genParquetCodec, "parquet-compression", "snappy", "parquet page compression: snappy, zstd, lz4, gzip, none")
	cmd.Flags().IntVar(&genCompressionLevel, "compression-level", 0, "file compression level (0 uses the compressor default)")
}

// GenerateConfig configures the random table generator
type GenerateConfig struct {
	Output           string
	TableName        string
	Fields           int
	Rows             int
	Seed             uint64
	Group            string
	GroupLeaves      int
	ParquetCodec     string
	CompressionLevel int
}

// isValidParquetCodec validates the parquet page codec
func isValidParquetCodec(codec string) bool {
	validCodecs := map[string]bool{
		"snappy": true,
		"zstd":   true,
		"lz4":    true,
		"gzip":   true,
		"none":   true,
	}
	return validCodecs[codec]
}

// outputFormat returns the table format and the file compressor of the output
func (c *GenerateConfig) outputFormat() (string, compressors.Compressor, error) {
	compressor, inner := compressors.Detect(c.Output)
	format, err := tablefile.FormatOf(inner)
	if err != nil {
		return "", nil, fmt.Errorf("%w: '%s'", ErrGenerateFormatInvalid, c.Output)
	}
	switch format {
	case tablefile.FormatParquet, tablefile.FormatCSV, tablefile.FormatJSONL:
		return format, compressor, nil
	default:
		return "", nil, fmt.Errorf("%w: '%s'", ErrGenerateFormatInvalid, c.Output)
	}
}

func (c *GenerateConfig) Validate() error {
	if c.Output == "" {
		return ErrGenerateOutputRequired
	}
	if _, _, err := c.outputFormat(); err != nil {
		return err
	}
	if c.TableName == "" {
		return ErrTableNameRequired
	}
	if c.Fields < 1 || c.Fields > 10000 {
		return fmt.Errorf("%w, got %d", ErrFieldsInvalid, c.Fields)
	}
	if c.Rows < 1 {
		return fmt.Errorf("%w, got %d", ErrRowsInvalid, c.Rows)
	}
	if c.Group != "" && (c.GroupLeaves < 1 || c.GroupLeaves > 1000) {
		return fmt.Errorf("%w, got %d", ErrGroupLeavesInvalid, c.GroupLeaves)
	}
	if !isValidParquetCodec(c.ParquetCodec) {
		return fmt.Errorf("%w: '%s'", ErrParquetCodecInvalid, c.ParquetCodec)
	}
	return nil
}

// generateSchema names scalar fields field00, field01, ... so that name order
// matches declaration order
func generateSchema(c *GenerateConfig) formatters.Schema {
	width := len(fmt.Sprint(c.Fields - 1))
	schema := formatters.Schema{Table: c.TableName}
	for i := 0; i < c.Fields; i++ {
		schema.Columns = append(schema.Columns, formatters.Column{
			Path: []string{fmt.Sprintf("field%0*d", width, i)},
			Kind: formatters.KindDouble,
		})
	}
	if c.Group != "" {
		width := len(fmt.Sprint(c.GroupLeaves - 1))
		for i := 0; i < c.GroupLeaves; i++ {
			schema.Columns = append(schema.Columns, formatters.Column{
				Path: []string{c.Group, fmt.Sprintf("leaf%0*d", width, i)},
				Kind: formatters.KindDouble,
			})
		}
		schema.Columns = append(schema.Columns, formatters.Column{
			Path: []string{c.Group, "n"},
			Kind: formatters.KindInt64,
		})
	}
	return schema
}

// generateTable writes the random table described by c to fs
func generateTable(fs afero.Fs, c *GenerateConfig) error {
	format, compressor, err := c.outputFormat()
	if err != nil {
		return err
	}
	formatter, err := formatters.GetFormatter(format, c.ParquetCodec)
	if err != nil {
		return err
	}

	schema := generateSchema(c)
	rng := rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))

	var buffer bytes.Buffer
	writer, err := formatter.NewWriter(&buffer, schema)
	if err != nil {
		return fmt.Errorf("failed to start %s writer: %w", format, err)
	}

	chunk := make([]formatters.Row, 0, generateChunkSize)
	for r := 0; r < c.Rows; r++ {
		row := make(formatters.Row, len(schema.Columns))
		for i, col := range schema.Columns {
			if col.Kind == formatters.KindInt64 {
				row[i] = int64(rng.IntN(100))
			} else {
				row[i] = rng.Float64()
			}
		}
		chunk = append(chunk, row)
		if len(chunk) == generateChunkSize {
			if err := writer.WriteChunk(chunk); err != nil {
				return err
			}
			chunk = chunk[:0]
		}
	}
	if len(chunk) > 0 {
		if err := writer.WriteChunk(chunk); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	level := c.CompressionLevel
	if level == 0 {
		level = compressor.DefaultLevel()
	}
	data, err := compressor.Compress(buffer.Bytes(), level)
	if err != nil {
		return fmt.Errorf("failed to compress %s: %w", c.Output, err)
	}

	if err := afero.WriteFile(fs, c.Output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.Output, err)
	}
	return nil
}

func runGenerate(cmd *cobra.Command) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n❌ PANIC: %v\n", r)
			os.Exit(1)
		}
	}()

	initLogger(viper.GetBool("debug"), viper.GetString("log_format"))

	config := &GenerateConfig{
		Output:           genOutput,
		TableName:        genTableName,
		Fields:           genFields,
		Rows:             genRows,
		Seed:             genSeed,
		Group:            genGroup,
		GroupLeaves:      genGroupLeaves,
		ParquetCodec:     genParquetCodec,
		CompressionLevel: genCompressionLevel,
	}
	if !cmd.Flags().Lookup("seed").Changed || config.Seed == 0 {
		config.Seed = uint64(time.Now().UnixNano())
	}

	if err := config.Validate(); err != nil {
		logger.Error(fmt.Sprintf("❌ Configuration error: %s", err.Error()))
		os.Exit(1)
	}

	logger.Info(fmt.Sprintf("🎲 Generating %d rows x %d fields (seed %d)", config.Rows, config.Fields, config.Seed))
	if err := generateTable(afero.NewOsFs(), config); err != nil {
		logger.Error(fmt.Sprintf("❌ Generate failed: %s", err.Error()))
		os.Exit(1)
	}
	logger.Info(fmt.Sprintf("✅ Wrote table %s to %s", config.TableName, config.Output))
}
