// Package detect implements the command that reports what an export covers.
package detect

import (
	"fmt"

	"aquere/libros-iva/cmd/common"
	"aquere/libros-iva/cmd/root"
	"aquere/libros-iva/internal/logging"

	"github.com/spf13/cobra"
)

// Cmd represents the detect command
var Cmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect taxpayer, ledger type and period of an export",
	Long: `Reads the banner and the dates of a "Mis Comprobantes" export and prints the CUIT,
the registered client, the ledger type (ventas/compras) and the month it covers.`,
	RunE: detectFunc,
}

func detectFunc(cmd *cobra.Command, args []string) error {
	name, data, err := common.ReadInput(root.SharedFlags.Input)
	if err != nil {
		return err
	}
	proc := root.GetContainer().GetProcessor()
	d, err := proc.AutoDetect(name, data)
	if err != nil {
		return fmt.Errorf("error detecting %s: %w", name, err)
	}
	root.Log.Debug("Export detected", logging.F(logging.FieldFile, name), logging.F(logging.FieldTaxpayerID, d.TaxpayerID))

	out := cmd.OutOrStdout()
	client := d.Client
	if !d.ClientFound {
		client = "(no registrado)"
	}
	fmt.Fprintf(out, "CUIT:    %s\n", d.TaxpayerID)
	fmt.Fprintf(out, "Cliente: %s\n", client)
	fmt.Fprintf(out, "Tipo:    %s\n", d.Type)
	fmt.Fprintf(out, "Periodo: %s %d\n", d.Period.SheetName(), d.Period.Year)
	return nil
}
