// Package preview implements the command that prints the cleaned table of an export.
package preview

import (
	"fmt"

	"aquere/libros-iva/cmd/common"
	"aquere/libros-iva/cmd/root"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/models"

	"github.com/spf13/cobra"
)

var rows int

// Cmd represents the preview command
var Cmd = &cobra.Command{
	Use:   "preview",
	Short: "Clean an export and write it as CSV",
	Long: `Runs the normalization and cleaning steps on an export without touching Drive and
writes the resulting table, totals row included, as delimited text.`,
	RunE: previewFunc,
}

func init() {
	Cmd.Flags().IntVarP(&rows, "rows", "n", models.PreviewRowLimit, "Number of data rows to write")
}

func previewFunc(cmd *cobra.Command, args []string) error {
	name, data, err := common.ReadInput(root.SharedFlags.Input)
	if err != nil {
		return err
	}
	c := root.GetContainer()
	p, err := c.GetProcessor().Preview(name, data, rows)
	if err != nil {
		return fmt.Errorf("error cleaning %s: %w", name, err)
	}

	w, closeOut, err := common.OpenOutput(root.SharedFlags.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	delimiter := []rune(c.GetConfig().CSV.OutputDelimiter)[0]
	if err := common.WriteLedgerCSV(w, p.Ledger, delimiter); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	root.Log.Info("Preview written",
		logging.F(logging.FieldFile, name),
		logging.F(logging.FieldMonth, p.Period.SheetName()),
		logging.F(logging.FieldCount, p.TotalRows),
		logging.F(logging.FieldColumns, p.ColumnsKept))
	return nil
}
