package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"logistria/internal/etl"
	"logistria/internal/service"
)

var (
	previewRows   int
	previewStrict bool
)

var importCmd = &cobra.Command{
	Use:   "import <target> <file>",
	Short: "Import a CSV or Excel file into a target collection",
	Long: `Reads the file, drops blank rows, derives document ids and coerces
numeric columns, then writes every document in one atomic batch.

Example:
  logistria import inventory ./stock.xlsx
  logistria import bom ./bom.csv`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

var previewCmd = &cobra.Command{
	Use:   "preview <target> <file>",
	Short: "Show how a file maps to documents without writing anything",
	Args:  cobra.ExactArgs(2),
	RunE:  runPreview,
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List import targets and their expected columns",
	Args:  cobra.NoArgs,
	RunE:  listTargets,
}

func init() {
	previewCmd.Flags().IntVarP(&previewRows, "rows", "n", 10, "Number of documents to show")
	previewCmd.Flags().BoolVar(&previewStrict, "strict", false, "Reject malformed numeric cells instead of writing 0")
}

func openRequest(target, path string) (etl.ImportRequest, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return etl.ImportRequest{}, nil, err
	}
	return etl.ImportRequest{Target: target, FileName: path, Body: f}, func() { f.Close() }, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	req, closeFile, err := openRequest(args[0], args[1])
	if err != nil {
		return err
	}
	defer closeFile()

	result, err := rt.imports.Import(ctx, service.SurfaceCLI, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Successfully imported %d records into %s\n", result.RowsWritten, result.Collection)
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	// Preview never touches the store, so it runs without a connection.
	req, closeFile, err := openRequest(args[0], args[1])
	if err != nil {
		return err
	}
	defer closeFile()

	preview, err := (&etl.Engine{StrictNumbers: previewStrict}).Preview(cmd.Context(), req, previewRows)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(preview)
}

func listTargets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tCOLLECTION\tID\tCOLUMNS")
	for _, t := range etl.Targets() {
		id := t.IDField
		if len(t.CompositeIDFields) > 0 {
			id = fmt.Sprint(t.CompositeIDFields)
		}
		if id == "" {
			id = "(generated)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Key, t.Collection, id, t.Hint)
	}
	return w.Flush()
}
