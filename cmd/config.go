package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/airframesio/table-compare/cmd/render"
)

// Static errors for configuration validation
var (
	ErrReferenceRequired     = errors.New("reference table file is required")
	ErrComparisonRequired    = errors.New("comparison table file is required")
	ErrTableNameRequired     = errors.New("table name is required")
	ErrOutputDirRequired     = errors.New("output directory is required")
	ErrOutputFormatInvalid   = errors.New("output format must be one of: pdf, png, svg, eps, jpg, jpeg, tif, tiff")
	ErrBinsInvalid           = errors.New("bins must be between 1 and 100000")
	ErrPathTemplateRequired  = errors.New("path template is required")
	ErrPathTemplateInvalid   = errors.New("path template must contain {name} placeholder")
	ErrReportFormatInvalid   = errors.New("report file must end in .json, .yaml, .yml or .xlsx")
	ErrLogFormatInvalid      = errors.New("log format must be one of: text, logfmt, json")
	ErrS3RegionInvalid       = errors.New("S3 region contains invalid characters or is too long")
	ErrS3CredentialsPartial  = errors.New("S3 access key and secret key must be set together")
	ErrDistributionsDiffer   = errors.New("not all distributions same")
	ErrComparisonInterrupted = errors.New("comparison interrupted")
)

const (
	defaultOutputDir    = "ComparisonPlots"
	defaultTableName    = "AnalysisTree"
	defaultOutputFormat = "pdf"
	defaultBins         = 50
	defaultPathTemplate = "{field}/{name}_compare.{fmt}"
	maxBins             = 100000
)

type Config struct {
	Debug        bool
	LogFormat    string
	Reference    string
	Comparison   string
	TableName    string
	OutputDir    string
	OutputFormat string
	Verbose      bool
	Bins         int
	NoRatio      bool
	PathTemplate string
	Report       string // Optional summary file, format chosen by extension
	Progress     bool
	S3           S3Config
}

// S3Config holds credentials for s3:// table locations
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
}

// isValidRegion validates that an S3 region is reasonable
func isValidRegion(region string) bool {
	if region == "" {
		return true
	}
	if len(region) > 50 {
		return false
	}
	matched, _ := regexp.MatchString(`^[a-zA-Z0-9_-]+$`, region)
	return matched
}

// isValidPathTemplate validates that a path template names each artifact
func isValidPathTemplate(template string) bool {
	return regexp.MustCompile(`\{name\}`).MatchString(template)
}

// isValidLogFormat validates the log format
func isValidLogFormat(format string) bool {
	validFormats := map[string]bool{
		"":       true,
		"text":   true,
		"logfmt": true,
		"json":   true,
	}
	return validFormats[format]
}

// reportFormat returns the report writer selected by the file extension
func reportFormat(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return reportJSON, true
	case ".yaml", ".yml":
		return reportYAML, true
	case ".xlsx":
		return reportXLSX, true
	default:
		return "", false
	}
}

func (c *Config) Validate() error {
	if c.Reference == "" {
		return ErrReferenceRequired
	}
	if c.Comparison == "" {
		return ErrComparisonRequired
	}
	if c.TableName == "" {
		return ErrTableNameRequired
	}
	if c.OutputDir == "" {
		return ErrOutputDirRequired
	}

	if !render.SupportedFormat(c.OutputFormat) {
		return fmt.Errorf("%w: '%s'", ErrOutputFormatInvalid, c.OutputFormat)
	}

	if c.Bins < 1 || c.Bins > maxBins {
		return fmt.Errorf("%w, got %d", ErrBinsInvalid, c.Bins)
	}

	if c.PathTemplate == "" {
		return ErrPathTemplateRequired
	}
	if !isValidPathTemplate(c.PathTemplate) {
		return fmt.Errorf("%w: '%s'", ErrPathTemplateInvalid, c.PathTemplate)
	}

	if c.Report != "" {
		if _, ok := reportFormat(c.Report); !ok {
			return fmt.Errorf("%w: '%s'", ErrReportFormatInvalid, c.Report)
		}
	}

	if !isValidLogFormat(c.LogFormat) {
		return fmt.Errorf("%w: '%s'", ErrLogFormatInvalid, c.LogFormat)
	}

	if !isValidRegion(c.S3.Region) {
		return fmt.Errorf("%w: '%s'", ErrS3RegionInvalid, c.S3.Region)
	}
	if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return ErrS3CredentialsPartial
	}

	return nil
}
