package xmlutils

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workbookXML = `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheets>
    <sheet name="Enero" sheetId="1"/>
    <sheet name="Febrero" sheetId="2"/>
  </sheets>
</workbook>`

func buildPackage(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractFromXML(t *testing.T) {
	root, err := Parse(strings.NewReader(workbookXML))
	require.NoError(t, err)

	names, err := ExtractFromXML(root, "/workbook/sheets/sheet/@name")
	require.NoError(t, err)
	assert.Equal(t, []string{"Enero", "Febrero"}, names)

	_, err = ExtractFromXML(root, "/workbook/[")
	assert.Error(t, err)
}

func TestExtractFromPackage(t *testing.T) {
	data := buildPackage(t, map[string]string{"xl/workbook.xml": workbookXML})

	names, err := ExtractFromPackage(data, "xl/workbook.xml", "/workbook/sheets/sheet/@name")
	require.NoError(t, err)
	assert.Equal(t, []string{"Enero", "Febrero"}, names)

	_, err = ExtractFromPackage(data, "xl/missing.xml", "/x")
	assert.Error(t, err)

	_, err = ExtractFromPackage([]byte("not a zip"), "xl/workbook.xml", "/x")
	assert.Error(t, err)
}
