package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/airframesio/table-compare/cmd/comparison"
	"github.com/airframesio/table-compare/cmd/render"
	"github.com/airframesio/table-compare/cmd/schemawalk"
	"github.com/airframesio/table-compare/cmd/tablefile"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	outputDir    string
	tableName    string
	outputFmt    string
	verbose      bool
	bins         int
	noRatio      bool
	pathTemplate string
	reportFile   string
	showProgress bool
	s3Endpoint   string
	s3AccessKey  string
	s3SecretKey  string
	s3Region     string

	sameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	diffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)
)

var compareCmd = &cobra.Command{
	Use:   "compare <reference> <comparison>",
	Short: "Compare the field distributions of two tables",
	Long: `Compare every field of a named table in two files. Each comparable field gets an
overlay plot of both distributions. Fields whose entry counts or means differ are
reported and their plots are prefixed with DIFF_.

Exits with status 1 when any field differs.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runCompare(cmd, args)
	},
}

// addCompareFlags registers the comparison flags on cmd. The root command and
// the compare subcommand share them.
func addCompareFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "directory for comparison plots")
	cmd.Flags().StringVar(&tableName, "table-name", defaultTableName, "name of the table to compare in both files")
	cmd.Flags().StringVar(&outputFmt, "output-fmt", defaultOutputFormat, "plot format: "+strings.Join(render.Formats, ", "))
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every field and the list of differing fields")
	cmd.Flags().IntVar(&bins, "bins", defaultBins, "number of histogram bins")
	cmd.Flags().BoolVar(&noRatio, "no-ratio", false, "do not draw the ratio panel below each overlay")
	cmd.Flags().StringVar(&pathTemplate, "path-template", defaultPathTemplate, "artifact path below the output directory with placeholders: {field}, {name}, {fmt}, {table}")
	cmd.Flags().StringVar(&reportFile, "report", "", "write a summary report (.json, .yaml or .xlsx)")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "show a progress view when attached to a terminal")
	cmd.Flags().StringVar(&s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL for s3:// inputs")
	cmd.Flags().StringVar(&s3AccessKey, "s3-access-key", "", "S3 access key")
	cmd.Flags().StringVar(&s3SecretKey, "s3-secret-key", "", "S3 secret key")
	cmd.Flags().StringVar(&s3Region, "s3-region", "", "S3 region")
}

// loadCompareConfig builds the comparison config. A flag set on the command
// line wins over viper (config file or TABLECOMPARE_* environment), which
// wins over the flag default.
func loadCompareConfig(cmd *cobra.Command, args []string) *Config {
	getStringConfig := func(flagValue string, flagName string, viperKey string) string {
		if flag := cmd.Flags().Lookup(flagName); flag != nil && flag.Changed {
			return flagValue
		}
		if viperValue := viper.GetString(viperKey); viperValue != "" {
			return viperValue
		}
		return flagValue
	}
	getIntConfig := func(flagValue int, flagName string, viperKey string) int {
		if flag := cmd.Flags().Lookup(flagName); flag != nil && flag.Changed {
			return flagValue
		}
		if viperValue := viper.GetInt(viperKey); viperValue != 0 {
			return viperValue
		}
		return flagValue
	}
	getBoolConfig := func(flagValue bool, flagName string, viperKey string) bool {
		if flag := cmd.Flags().Lookup(flagName); flag != nil && flag.Changed {
			return flagValue
		}
		return flagValue || viper.GetBool(viperKey)
	}

	config := &Config{
		Debug:        viper.GetBool("debug"),
		LogFormat:    viper.GetString("log_format"),
		TableName:    getStringConfig(tableName, "table-name", "table_name"),
		OutputDir:    getStringConfig(outputDir, "output-dir", "output_dir"),
		OutputFormat: strings.ToLower(getStringConfig(outputFmt, "output-fmt", "output_fmt")),
		Verbose:      getBoolConfig(verbose, "verbose", "verbose"),
		Bins:         getIntConfig(bins, "bins", "bins"),
		NoRatio:      getBoolConfig(noRatio, "no-ratio", "no_ratio"),
		PathTemplate: getStringConfig(pathTemplate, "path-template", "path_template"),
		Report:       getStringConfig(reportFile, "report", "report"),
		Progress:     getBoolConfig(showProgress, "progress", "progress"),
		S3: S3Config{
			Endpoint:  getStringConfig(s3Endpoint, "s3-endpoint", "s3.endpoint"),
			AccessKey: getStringConfig(s3AccessKey, "s3-access-key", "s3.access_key"),
			SecretKey: getStringConfig(s3SecretKey, "s3-secret-key", "s3.secret_key"),
			Region:    getStringConfig(s3Region, "s3-region", "s3.region"),
		},
	}
	if len(args) > 0 {
		config.Reference = args[0]
	}
	if len(args) > 1 {
		config.Comparison = args[1]
	}
	return config
}

func runCompare(cmd *cobra.Command, args []string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n❌ PANIC: %v\n", r)
			os.Exit(1)
		}
	}()

	config := loadCompareConfig(cmd, args)

	initLogger(config.Debug, config.LogFormat)

	logger.Info("")
	logger.Info(fmt.Sprintf("🔍 Table Compare v%s", Version))
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	printConfig(config)

	if err := config.Validate(); err != nil {
		logger.Error(fmt.Sprintf("❌ Configuration error: %s", err.Error()))
		os.Exit(1)
	}

	ctx := signalContext
	if ctx == nil {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
	}

	fs := afero.NewOsFs()

	var (
		report *comparison.Report
		err    error
	)
	if config.Progress && term.IsTerminal(int(os.Stdout.Fd())) {
		report, err = runWithProgress(ctx, config, fs)
	} else {
		if config.Progress {
			logger.Debug("Progress view needs a terminal, continuing without it")
		}
		report, err = newComparisonRun(config, fs, logger).Run(ctx)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("")
			logger.Info("⚠️  Comparison cancelled by user")
			os.Exit(130)
		}
		logger.Error(fmt.Sprintf("❌ Comparison failed: %s", err.Error()))
		os.Exit(1)
	}

	if config.Report != "" {
		if err := writeReport(fs, config.Report, config, report); err != nil {
			logger.Error(fmt.Sprintf("❌ %s", err.Error()))
			os.Exit(1)
		}
		logger.Info(fmt.Sprintf("📝 Report written to %s", config.Report))
	}

	logger.Info("")
	if err := printVerdict(os.Stdout, report, config.Verbose); err != nil {
		os.Exit(1)
	}
}

// printConfig prints a table of configuration information
func printConfig(config *Config) {
	logger.Info("")
	logger.Info("📋 Configuration:")
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Info(fmt.Sprintf("  Reference:         %s", config.Reference))
	logger.Info(fmt.Sprintf("  Comparison:        %s", config.Comparison))
	logger.Info(fmt.Sprintf("  Table:             %s", config.TableName))
	logger.Info(fmt.Sprintf("  Output Directory:  %s", config.OutputDir))
	logger.Info(fmt.Sprintf("  Output Format:     %s", config.OutputFormat))
	logger.Info(fmt.Sprintf("  Path Template:     %s", config.PathTemplate))
	logger.Info(fmt.Sprintf("  Bins:              %d", config.Bins))
	logger.Info(fmt.Sprintf("  Ratio Panel:       %t", !config.NoRatio))
	if config.Report != "" {
		logger.Info(fmt.Sprintf("  Report:            %s", config.Report))
	}
	if config.S3.Endpoint != "" {
		logger.Info(fmt.Sprintf("  S3 Endpoint:       %s", config.S3.Endpoint))
		logger.Info(fmt.Sprintf("  S3 Access Key:     %s", maskString(config.S3.AccessKey)))
	}
	logger.Info("")
}

// maskString hides all but the first two characters of a secret
func maskString(s string) string {
	if len(s) <= 2 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-2)
}

// taskFunc is called after each task with the number of finished tasks
type taskFunc func(done, total int, task schemawalk.Task, res *comparison.Result)

// comparisonRun compares every task of two tables one after another
type comparisonRun struct {
	config *Config
	fs     afero.Fs
	logger *slog.Logger
	onTask taskFunc
}

func newComparisonRun(config *Config, fs afero.Fs, logger *slog.Logger) *comparisonRun {
	return &comparisonRun{config: config, fs: fs, logger: logger}
}

// openTable opens location and looks up the configured table. The returned
// file must be closed by the caller.
func (r *comparisonRun) openTable(ctx context.Context, location string) (tablefile.File, tablefile.Table, error) {
	f, err := tablefile.Open(ctx, location, tablefile.Options{
		Fs: r.fs,
		S3: tablefile.S3Options{
			Endpoint:  r.config.S3.Endpoint,
			Region:    r.config.S3.Region,
			AccessKey: r.config.S3.AccessKey,
			SecretKey: r.config.S3.SecretKey,
		},
		Logger: r.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	t, err := f.Table(ctx, r.config.TableName)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, t, nil
}

// Run opens both tables, enumerates the comparison tasks and compares them
// in order. Cancellation is checked between tasks.
func (r *comparisonRun) Run(ctx context.Context) (*comparison.Report, error) {
	f1, t1, err := r.openTable(ctx, r.config.Reference)
	if err != nil {
		return nil, err
	}
	defer f1.Close()

	f2, t2, err := r.openTable(ctx, r.config.Comparison)
	if err != nil {
		return nil, err
	}
	defer f2.Close()

	r.logger.Info(fmt.Sprintf("📁 Plots produced in %s", r.config.OutputDir))
	if err := r.fs.MkdirAll(r.config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	walker := schemawalk.New(r.fs, r.config.OutputDir, r.logger, r.config.Verbose)
	tasks, err := walker.Enumerate(t1, t2)
	if err != nil {
		return nil, err
	}
	r.logger.Debug(fmt.Sprintf("Found %d comparable fields", len(tasks)))

	renderConfig := render.DefaultConfig()
	renderConfig.Ratio = !r.config.NoRatio
	comparator := comparison.New(comparison.Config{
		Bins:   r.config.Bins,
		Format: r.config.OutputFormat,
		Label1: filepath.Base(f1.Location()),
		Label2: filepath.Base(f2.Location()),
	}, render.New(r.fs, renderConfig), r.logger)

	template := NewPathTemplate(r.config.PathTemplate)
	report := comparison.NewReport()

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%w after %d of %d fields: %w", ErrComparisonInterrupted, i, len(tasks), err)
		}

		path := template.ArtifactPath(r.config.OutputDir, task, r.config.OutputFormat, r.config.TableName)
		if err := r.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return report, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}

		res, err := comparator.Compare(ctx, t1, t2, task, path, true)
		if err != nil {
			return report, err
		}
		report.Add(res)

		if res != nil && res.IsDifferent {
			r.logger.Debug(fmt.Sprintf("Wrote %s", res.Artifact))
		}
		if r.onTask != nil {
			r.onTask(i+1, len(tasks), task, res)
		}
	}

	return report, nil
}

// printVerdict writes the final verdict to out and returns
// ErrDistributionsDiffer when any field differs. In verbose mode the
// differing fields are listed between separator lines instead.
func printVerdict(out io.Writer, report *comparison.Report, verbose bool) error {
	if report.AllSame() {
		fmt.Fprintln(out, sameStyle.Render("All distributions same"))
		return nil
	}

	if !verbose {
		fmt.Fprintln(out, diffStyle.Render("Not all distributions same"))
		return ErrDistributionsDiffer
	}

	width := 0
	for _, res := range report.Results() {
		width = max(width, len(res.Task.QualifiedName))
	}
	separator := strings.Repeat("*", width)

	fmt.Fprintln(out, separator)
	fmt.Fprintln(out, "Differing vars:")
	fmt.Fprintln(out, separator)
	for _, name := range report.Differing() {
		fmt.Fprintln(out, diffStyle.Render(name))
	}
	fmt.Fprintln(out, separator)
	return ErrDistributionsDiffer
}
