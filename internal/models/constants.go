package models

// Column names of the "Mis Comprobantes" export. Purchases exports name the
// counterpart columns after the issuer instead of the receiver.
const (
	ColumnDate               = "Fecha"
	ColumnType               = "Tipo"
	ColumnPointOfSale        = "Punto de Venta"
	ColumnNumberFrom         = "Número Desde"
	ColumnNumberTo           = "Número Hasta"
	ColumnAuthCode           = "Cód. Autorización"
	ColumnCounterpartDocType = "Tipo Doc. Receptor"
	ColumnCounterpartID      = "Nro. Doc. Receptor"
	ColumnCounterpartName    = "Denominación Receptor"
	ColumnIssuerDocType      = "Tipo Doc. Emisor"
	ColumnIssuerID           = "Nro. Doc. Emisor"
	ColumnIssuerName         = "Denominación Emisor"
	ColumnExchangeRate       = "Tipo Cambio"
	ColumnCurrency           = "Moneda"
)

// Defaults shared by the configuration and the components.
const (
	DefaultMarkerColumn       = ColumnCurrency
	DefaultPlaceholderSheet   = "_temp"
	DefaultCreditNotePattern  = `(?i)nota\s+de\s+cr[eé]dito|\bnc\b|credit\s+note`
	DefaultWorkbookRootFolder = "Clientes Libros Iva"
	LocalCurrencyCode         = "PES"
	PreviewRowLimit           = 10
)

// Remote file formats.
const (
	WorkbookExtension       = ".xlsx"
	WorkbookMimeType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	LiveSpreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	FolderMimeType          = "application/vnd.google-apps.folder"
)

// File permissions
const (
	PermissionConfigFile = 0600
	PermissionDirectory  = 0750
)
