// Package remotestore abstracts the document store holding the yearly workbooks as a
// small key/blob surface: locate, create, fetch and replace.
package remotestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aquere/libros-iva/internal/models"
)

// Key identifies one yearly workbook.
type Key struct {
	Client string
	Type   models.LedgerType
	Year   int
}

// FileName is the deterministic workbook name: "Libro Iva Ventas 2024 ACME SA.xlsx".
func (k Key) FileName() string {
	return fmt.Sprintf("Libro Iva %s %d %s%s", k.Type.Title(), k.Year, k.Client, models.WorkbookExtension)
}

// Validate rejects keys that cannot name a workbook.
func (k Key) Validate() error {
	switch {
	case strings.TrimSpace(k.Client) == "":
		return errors.New("client name is required")
	case k.Type != models.LedgerSales && k.Type != models.LedgerPurchases:
		return fmt.Errorf("invalid ledger type '%s'", k.Type)
	case k.Year < 1900 || k.Year > 9999:
		return fmt.Errorf("invalid year %d", k.Year)
	}
	return nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Client, k.Type, k.Year)
}

// Handle points at a stored workbook.
type Handle struct {
	ID       string
	Name     string
	FolderID string
	MimeType string
}

// Store is the surface the merge protocol needs. Implementations give no transactions
// or locks; at most one merge per key is assumed to be in flight.
type Store interface {
	// Locate finds the workbook for key. found is false when it does not exist.
	Locate(ctx context.Context, key Key) (h Handle, found bool, err error)
	// Create uploads a new workbook that holds only the placeholder sheet.
	Create(ctx context.Context, key Key) (Handle, error)
	// Fetch downloads the workbook as xlsx, exporting live spreadsheet documents.
	Fetch(ctx context.Context, h Handle) ([]byte, error)
	// Replace overwrites the workbook with data and returns its possibly new handle.
	Replace(ctx context.Context, h Handle, data []byte) (Handle, error)
}

// FolderManager maintains the per-client folder layout.
type FolderManager interface {
	// EnsureClient creates the client folder and its ledger-type subfolders.
	EnsureClient(ctx context.Context, client string) error
	// RenameClient renames a client folder and the workbooks named after the client.
	RenameClient(ctx context.Context, from, to string) error
}

// FolderName returns the subfolder holding workbooks of t ("Ventas", "Compras").
func FolderName(t models.LedgerType) string {
	return t.Title()
}
