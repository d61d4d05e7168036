// Package merge implements the command that appends an export to its yearly workbook.
package merge

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"aquere/libros-iva/cmd/common"
	"aquere/libros-iva/cmd/root"
	"aquere/libros-iva/internal/dateutils"
	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/models"
	"aquere/libros-iva/internal/processor"

	"github.com/spf13/cobra"
)

// Flags of the merge command.
type Flags struct {
	Client  string
	Type    string
	Year    int
	Month   string
	Confirm bool
}

var flags Flags

// Cmd represents the merge command
var Cmd = &cobra.Command{
	Use:   "merge",
	Short: "Append an export as a month sheet of the client's yearly workbook",
	Long: `Cleans the export and adds it as a new month sheet to "Libro Iva <Tipo> <Año> <Cliente>.xlsx".
Client and type default to what the export banner says; the month defaults to the
dates in the export. A missing workbook is only created with --confirm.`,
	RunE: mergeFunc,
}

func init() {
	f := Cmd.Flags()
	f.StringVar(&flags.Client, "client", "", "Client name (default: looked up by the export's CUIT)")
	f.StringVar(&flags.Type, "tipo", "", "Ledger type, ventas or compras (default: from the export)")
	f.IntVar(&flags.Year, "year", 0, "Year of the workbook (default: from the export)")
	f.StringVar(&flags.Month, "month", "", "Month as 1-12 or Spanish name (default: from the export)")
	f.BoolVar(&flags.Confirm, "confirm", false, "Create the yearly workbook when it does not exist")
}

// ParseMonth accepts "3", "03" or "Marzo". Empty yields zero.
func ParseMonth(s string) (time.Month, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("invalid month '%s'", s)
		}
		return time.Month(n), nil
	}
	if m, ok := dateutils.MonthFromName(s); ok {
		return m, nil
	}
	return 0, fmt.Errorf("invalid month '%s'", s)
}

func mergeFunc(cmd *cobra.Command, args []string) error {
	name, data, err := common.ReadInput(root.SharedFlags.Input)
	if err != nil {
		return err
	}
	month, err := ParseMonth(flags.Month)
	if err != nil {
		return err
	}
	proc := root.GetContainer().GetProcessor()

	req := processor.ProcessRequest{
		FileName:      name,
		Data:          data,
		Client:        flags.Client,
		Year:          flags.Year,
		Month:         month,
		ConfirmCreate: flags.Confirm,
	}
	if flags.Type != "" {
		if req.Type, err = models.ParseLedgerType(flags.Type); err != nil {
			return err
		}
	}
	if req.Client == "" || req.Type == "" {
		d, err := proc.AutoDetect(name, data)
		if err != nil {
			return fmt.Errorf("cannot infer client or type from %s (use --client and --tipo): %w", name, err)
		}
		if req.Type == "" {
			req.Type = d.Type
		}
		if req.Client == "" {
			if !d.ClientFound {
				return fmt.Errorf("CUIT %s is not registered; add it with 'clients add' or pass --client", d.TaxpayerID)
			}
			req.Client = d.Client
		}
	}

	res, err := proc.Process(cmd.Context(), req)
	out := cmd.OutOrStdout()
	if errors.Is(err, ledgererror.ErrConfirmationRequired) {
		fmt.Fprintln(out, res.Message)
		return fmt.Errorf("workbook '%s' not created: run again with --confirm", res.FileName)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res.Message)
	fmt.Fprintf(out, "Filas procesadas: %d\n", res.RowsProcessed)
	return nil
}
