package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information - set via ldflags during build
	// Example: go build -ldflags "-X github.com/airframesio/table-compare/cmd.Version=1.2.3"
	Version = "dev"

	// signalContext is set by main() before Cobra initialization
	signalContext context.Context

	cfgFile   string
	envFile   string
	debug     bool
	logFormat string

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			Underline(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D9FF"))

	logger *slog.Logger
)

var errCompareArgs = errors.New("expected a reference and a comparison table file")

// SetSignalContext stores the signal-aware context created in main()
// This must be called before Execute() to ensure proper signal handling
func SetSignalContext(ctx context.Context) {
	signalContext = ctx
}

// textOnlyHandler is a custom slog handler that outputs human-readable text
// without key=value pairs, suitable for interactive terminal usage
type textOnlyHandler struct {
	opts   slog.HandlerOptions
	writer io.Writer
}

func newTextOnlyHandler(w io.Writer, opts *slog.HandlerOptions) *textOnlyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &textOnlyHandler{
		opts:   *opts,
		writer: w,
	}
}

func (h *textOnlyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *textOnlyHandler) Handle(_ context.Context, r slog.Record) error {
	// Warnings and errors carry their level, everything else is plain output
	var err error
	if r.Level >= slog.LevelWarn {
		_, err = fmt.Fprintf(h.writer, "%s %s\n", r.Level.String(), r.Message)
	} else {
		_, err = fmt.Fprintln(h.writer, r.Message)
	}
	return err
}

func (h *textOnlyHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *textOnlyHandler) WithGroup(_ string) slog.Handler {
	return h
}

// newLogger builds a logger writing to w in the given format
func newLogger(w io.Writer, isDebug bool, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if isDebug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "logfmt":
		// logfmt uses slog.TextHandler which outputs key=value pairs
		handler = slog.NewTextHandler(w, opts)
	default: // "text" or anything else
		handler = newTextOnlyHandler(w, opts)
	}
	return slog.New(handler)
}

// initLogger initializes the slog logger based on debug flag and log format
func initLogger(isDebug bool, format string) {
	logger = newLogger(os.Stdout, isDebug, format)
}

var rootCmd = &cobra.Command{
	Use:     "table-compare [reference] [comparison]",
	Version: Version,
	Short:   "📊 Compare the field distributions of a table in two files",
	Long: titleStyle.Render("Table Compare") + `

A CLI tool to check that two runs of a data pipeline produced equivalent output.
Every numeric field of a named table is histogrammed in both files and drawn as an
overlay plot. Fields whose entry counts or means differ are flagged.

Reads parquet, csv and jsonl files (optionally zstd/lz4/gzip compressed), SQLite and
DuckDB databases, PostgreSQL and s3:// locations.

Running with two arguments is the same as running the compare command.`,
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("%w, got %d arguments", errCompareArgs, len(args))
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 2 {
			runCompare(cmd, args)
			return
		}
		// Show help when no subcommand is specified
		cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(generateCmd)

	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.table-compare.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from a .env file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, logfmt, json)")

	addCompareFlags(rootCmd)
	addCompareFlags(compareCmd)
	addSchemaFlags(schemaCmd)
	addGenerateFlags(generateCmd)

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Failed to load %s: %v\n", envFile, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".table-compare")
	}

	viper.SetEnvPrefix("TABLECOMPARE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && debug {
		if logger == nil {
			initLogger(debug, logFormat)
		}
		logger.Debug(fmt.Sprintf("📄 Using config file: %s", viper.ConfigFileUsed()))
	}
}
