package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/airframesio/table-compare/cmd/tablefile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var schemaTableName string

var schemaCmd = &cobra.Command{
	Use:   "schema <file>",
	Short: "List the fields of a table",
	Long: `List the top-level fields of a table with their nested leaves and types.
Map leaves are marked because they are skipped when comparing.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSchema(cmd, args[0])
	},
}

func addSchemaFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&schemaTableName, "table-name", defaultTableName, "name of the table to inspect")
}

func runSchema(cmd *cobra.Command, location string) {
	initLogger(viper.GetBool("debug"), viper.GetString("log_format"))

	name := schemaTableName
	if flag := cmd.Flags().Lookup("table-name"); (flag == nil || !flag.Changed) && viper.GetString("table_name") != "" {
		name = viper.GetString("table_name")
	}

	ctx := signalContext
	if ctx == nil {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
	}

	f, err := tablefile.Open(ctx, location, tablefile.Options{
		S3: tablefile.S3Options{
			Endpoint:  viper.GetString("s3.endpoint"),
			Region:    viper.GetString("s3.region"),
			AccessKey: viper.GetString("s3.access_key"),
			SecretKey: viper.GetString("s3.secret_key"),
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error(fmt.Sprintf("❌ %s", err.Error()))
		os.Exit(1)
	}
	defer f.Close()

	table, err := f.Table(ctx, name)
	if err != nil {
		logger.Error(fmt.Sprintf("❌ %s", err.Error()))
		f.Close()
		os.Exit(1)
	}

	printSchema(os.Stdout, f.Location(), table)
}

// printSchema writes the fields of table as an indented tree
func printSchema(out io.Writer, location string, table tablefile.Table) {
	fields := table.Fields()

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s in %s", table.Name(), location)))
	fmt.Fprintf(out, "%d fields\n\n", len(fields))

	for i, field := range fields {
		fmt.Fprintf(out, "%3d  %s %s\n", i, field.Name, infoStyle.Render(field.TypeName))
		if !field.IsComposite() {
			continue
		}
		for _, leaf := range field.Leaves {
			note := ""
			if leaf.IsMap() {
				note = "  (skipped)"
			}
			fmt.Fprintf(out, "       %s %s%s\n", leaf.Path, infoStyle.Render(leaf.TypeName), note)
		}
	}
}
