// Command catchment inspects Caravan catchment files from the command line.
//
// Usage:
//
//	catchment list --data-dir data
//	catchment normalize camelsgb_33024.csv --data-dir data
//	catchment simulate camelsgb_33024.csv --model hymod --spinup 10
//	catchment validate --data-dir data
//	catchment validate --date-column day --column-map "prcp=P [mm/day],pet=PET [mm/day],q=Q [mm/day],tmean=T [C]"
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/catchment-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/catchment-etl/internal/adapter/filesystem"
	"github.com/couchcryptid/catchment-etl/internal/adapter/hydromodel"
	"github.com/couchcryptid/catchment-etl/internal/domain"
	"github.com/couchcryptid/catchment-etl/internal/pipeline"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type options struct {
	dataDir    string
	pattern    string
	dateColumn string
	columnMap  string
	start      string
	end        string
	spinUp     int
}

func (o *options) normalizer() (*domain.Normalizer, error) {
	w, err := domain.ParseWindow(o.start, o.end)
	if err != nil {
		return nil, err
	}
	mappings, err := domain.ParseColumnMappings(o.columnMap)
	if err != nil {
		return nil, fmt.Errorf("invalid --column-map: %w", err)
	}
	return domain.NewNormalizer(o.dataDir,
		domain.WithDateColumn(o.dateColumn),
		domain.WithColumnMappings(mappings),
		domain.WithWindow(w),
	)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	def := domain.DefaultWindow()

	root := &cobra.Command{
		Use:          "catchment",
		Short:        "Normalize and simulate Caravan catchment files",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "data", "directory holding catchment CSV files")
	root.PersistentFlags().StringVar(&opts.pattern, "pattern", "*.csv", "glob selecting catchment files")
	root.PersistentFlags().StringVar(&opts.dateColumn, "date-column", domain.DefaultDateColumn, "name of the source date column")
	root.PersistentFlags().StringVar(&opts.columnMap, "column-map", "", "source=target column pairs, comma separated (default Caravan names)")
	root.PersistentFlags().StringVar(&opts.start, "start", def.Start.Format(domain.DateLayout), "first day of the analysis window")
	root.PersistentFlags().StringVar(&opts.end, "end", def.End.Format(domain.DateLayout), "last day of the analysis window")
	root.PersistentFlags().IntVar(&opts.spinUp, "spinup", 10, "times the window is repeated before the reported year")

	root.AddCommand(
		newListCmd(opts),
		newNormalizeCmd(opts),
		newSimulateCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catchment files in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := filesystem.NewSource(opts.dataDir, opts.pattern)
			if err != nil {
				return err
			}
			paths, err := src.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", domain.CatchmentName(p), p)
			}
			return nil
		},
	}
}

func newNormalizeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <file>",
		Short: "Print the normalized table of one catchment file as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := opts.normalizer()
			if err != nil {
				return err
			}
			table, err := n.Normalize(args[0])
			if err != nil {
				return err
			}
			return csvfile.WriteTable(csv.NewWriter(cmd.OutOrStdout()), table)
		},
	}
}

func newSimulateCmd(opts *options) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Run a model over one catchment file and print daily results as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := hydromodel.Lookup(model)
			if err != nil {
				return err
			}
			n, err := opts.normalizer()
			if err != nil {
				return err
			}
			table, err := n.Normalize(args[0])
			if err != nil {
				return err
			}
			if table.Len() == 0 {
				return fmt.Errorf("%s has no records inside the window", args[0])
			}

			catchment := domain.CatchmentName(args[0])
			params, err := hydromodel.Params(catchment, exec.Name())
			if err != nil {
				return err
			}
			_, results, err := pipeline.Simulate(cmd.Context(), exec, params, catchment, table, opts.spinUp)
			if err != nil {
				return err
			}
			return csvfile.WriteResults(csv.NewWriter(cmd.OutOrStdout()), results)
		},
	}
	cmd.Flags().StringVar(&model, "model", hydromodel.KeyHBV, "model to run: hbv, hbv2 or hymod")
	return cmd
}

// check tracks pass/fail for one catchment file.
type check struct {
	name   string
	errors []string
}

func (c *check) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *check) passed() bool { return len(c.errors) == 0 }

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Normalize every catchment file and report integrity problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := filesystem.NewSource(opts.dataDir, opts.pattern)
			if err != nil {
				return err
			}
			n, err := opts.normalizer()
			if err != nil {
				return err
			}
			paths, err := src.List(cmd.Context())
			if err != nil {
				return err
			}

			failed := 0
			for _, p := range paths {
				c := validateFile(n, p)
				printCheck(cmd.OutOrStdout(), c)
				if !c.passed() {
					failed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d files, %d failed\n", len(paths), failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d catchment files failed validation", failed, len(paths))
			}
			return nil
		},
	}
}

func validateFile(n *domain.Normalizer, path string) *check {
	c := &check{name: path}
	table, err := n.Normalize(path)
	if err != nil {
		c.errorf("%s: %v", domain.ErrorKind(err), err)
		return c
	}

	w := n.Window()
	want := int(w.End.Sub(w.Start).Hours()/24) + 1
	if table.Len() != want {
		c.errorf("window has %d of %d days", table.Len(), want)
	}
	for i := 1; i < len(table.Records); i++ {
		if table.Records[i].Date.Equal(table.Records[i-1].Date) {
			c.errorf("duplicate date %s", table.Records[i].Date.Format(domain.DateLayout))
		}
	}
	for _, col := range []string{domain.ColPrecipitation, domain.ColPET, domain.ColTemperature} {
		series, err := table.Series(col)
		if err != nil {
			c.errorf("%v", err)
			continue
		}
		if missing := countNaN(series); missing > 0 {
			c.errorf("%s has %d missing values", col, missing)
		}
	}
	return c
}

func countNaN(xs []float64) int {
	n := 0
	for _, x := range xs {
		if math.IsNaN(x) {
			n++
		}
	}
	return n
}

func printCheck(w io.Writer, c *check) {
	if c.passed() {
		fmt.Fprintf(w, "PASS %s\n", c.name)
		return
	}
	fmt.Fprintf(w, "FAIL %s\n", c.name)
	for _, e := range c.errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
