package normalizer

import (
	"regexp"
	"strings"

	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/models"
)

// bannerScanCells is how many cells of the first row are inspected for the banner.
const bannerScanCells = 5

var (
	labelledTaxID = regexp.MustCompile(`(?i)(?:CUIT|tax\s*id)\s*[:\-]?\s*(\d{2}-?\d{8}-?\d)\b`)
	bareTaxID     = regexp.MustCompile(`\b(\d{11})\b`)
	bannerHints   = []string{"comprobantes", "cuit", "tax id"}
	salesHints    = []string{"emitidos", "issued"}
	purchaseHints = []string{"recibidos", "received"}
)

// ParseHeader extracts the taxpayer id and direction from the banner on the first
// physical row of the document.
func ParseHeader(doc *Document) (models.DocumentHeader, error) {
	banner := findBanner(doc)
	header := models.DocumentHeader{
		Banner:     banner,
		TaxpayerID: extractTaxpayerID(banner),
		Direction:  extractDirection(banner),
	}
	if header.TaxpayerID == "" || header.Direction == "" {
		return header, &ledgererror.HeaderDetectionError{
			Banner:     banner,
			TaxpayerID: header.TaxpayerID,
			Direction:  string(header.Direction),
		}
	}
	return header, nil
}

// findBanner returns A1 unless it carries none of the banner hints, in which case the
// first of the leading cells that does is used.
func findBanner(doc *Document) string {
	if doc == nil || len(doc.Rows) == 0 || len(doc.Rows[0]) == 0 {
		return ""
	}
	first := doc.Rows[0]
	a1 := strings.TrimSpace(first[0])
	if hasAny(a1, bannerHints) {
		return a1
	}
	for i := 1; i < len(first) && i < bannerScanCells; i++ {
		cell := strings.TrimSpace(first[i])
		if hasAny(cell, bannerHints) {
			return cell
		}
	}
	return a1
}

func extractTaxpayerID(banner string) string {
	if m := labelledTaxID.FindStringSubmatch(banner); m != nil {
		return strings.ReplaceAll(m[1], "-", "")
	}
	if m := bareTaxID.FindStringSubmatch(banner); m != nil {
		return m[1]
	}
	return ""
}

func extractDirection(banner string) models.Direction {
	switch {
	case hasAny(banner, salesHints):
		return models.DirectionSales
	case hasAny(banner, purchaseHints):
		return models.DirectionPurchases
	}
	return ""
}

func hasAny(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
