// Package clients implements the commands that manage the client registry.
package clients

import (
	"fmt"
	"text/tabwriter"

	"aquere/libros-iva/cmd/root"

	"github.com/spf13/cobra"
)

// Cmd represents the clients command
var Cmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage the CUIT to client registry",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered clients sorted by name",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all := root.GetContainer().GetProcessor().Clients()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CUIT\tCLIENTE")
		for _, c := range all {
			fmt.Fprintf(w, "%s\t%s\n", c.TaxpayerID, c.Name)
		}
		return w.Flush()
	},
}

var addCmd = &cobra.Command{
	Use:   "add <cuit> <name>",
	Short: "Register a client and create its Drive folders",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer().GetProcessor().CreateClient(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cliente '%s' (%s) creado\n", c.Name, c.TaxpayerID)
		return nil
	},
}

var (
	editName string
	editID   string
)

var editCmd = &cobra.Command{
	Use:   "edit <cuit>",
	Short: "Rename a client or change its CUIT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if editName == "" && editID == "" {
			return fmt.Errorf("nothing to change: pass --name and/or --cuit")
		}
		c, err := root.GetContainer().GetProcessor().UpdateClient(cmd.Context(), args[0], editName, editID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cliente '%s' (%s) actualizado\n", c.Name, c.TaxpayerID)
		return nil
	},
}

func init() {
	editCmd.Flags().StringVar(&editName, "name", "", "New client name")
	editCmd.Flags().StringVar(&editID, "cuit", "", "New CUIT")
	Cmd.AddCommand(listCmd, addCmd, editCmd)
}
