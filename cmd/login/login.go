// Package login implements the interactive OAuth consent for the Drive account.
package login

import (
	"bufio"
	"fmt"
	"strings"

	"aquere/libros-iva/cmd/root"
	"aquere/libros-iva/internal/session"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Cmd represents the login command
var Cmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize access to Google Drive and store the token",
	Long: `Prints the consent URL for the OAuth client in drive.credentials_file, reads the
authorization code from stdin and stores the token in drive.token_file.`,
	Args: cobra.NoArgs,
	RunE: loginFunc,
}

func loginFunc(cmd *cobra.Command, args []string) error {
	provider, ok := root.GetContainer().GetSession().(*session.OAuthProvider)
	if !ok {
		return fmt.Errorf("login needs drive.auth=oauth and a readable drive.credentials_file")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Abra el siguiente enlace y pegue el código de autorización:\n\n%s\n\nCódigo: ",
		provider.AuthCodeURL(uuid.NewString()))

	code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	code = strings.TrimSpace(code)
	if code == "" {
		if err != nil {
			return fmt.Errorf("error reading authorization code: %w", err)
		}
		return fmt.Errorf("empty authorization code")
	}
	if err := provider.Exchange(cmd.Context(), code); err != nil {
		return err
	}
	fmt.Fprintln(out, "Token guardado.")
	return nil
}
