package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"aquere/libros-iva/cmd/root"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesExport = `Mis Comprobantes Emitidos - CUIT 30716820080;;;
Fecha;Tipo;Punto de Venta;Número Desde;Nro. Doc. Receptor;Denominación Receptor;Tipo Cambio;Moneda;Imp. Neto Gravado;IVA;Imp. Total;Otros Tributos
01/03/2024;1 - Factura A;3;101;30500000007;ACME SA;1,000000;PES;1.000,00;210,00;1.210,00;0
15/03/2024;3 - Nota de Crédito A;3;5;30500000007;ACME SA;1,000000;PES;100,00;21,00;121,00;0
`

// workspace isolates config, registry and HOME in a temp directory.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(original) })
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LIBROS_REGISTRY_FILE", filepath.Join(dir, "clients.yaml"))
	t.Setenv("LIBROS_LOG_LEVEL", "error")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ventas.csv"), []byte(salesExport), 0600))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.Cmd.SetOut(&out)
	root.Cmd.SetArgs(append([]string{"--drive-auth", "none"}, args...))
	err := root.Cmd.Execute()
	return out.String(), err
}

func TestCLI_ClientsDetectPreviewMerge(t *testing.T) {
	dir := workspace(t)

	out, err := run(t, "clients", "add", "30-71682008-0", "Mi Empresa SA")
	require.NoError(t, err)
	assert.Contains(t, out, "Mi Empresa SA")
	assert.FileExists(t, filepath.Join(dir, "clients.yaml"))

	out, err = run(t, "clients", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "30716820080")

	out, err = run(t, "detect", "-i", "ventas.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Mi Empresa SA")
	assert.Contains(t, out, "Marzo 2024")

	previewPath := filepath.Join(dir, "preview.csv")
	_, err = run(t, "preview", "-i", "ventas.csv", "-o", previewPath)
	require.NoError(t, err)
	data, err := os.ReadFile(previewPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Denominación Receptor")

	out, err = run(t, "merge", "-i", "ventas.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--confirm")
	assert.Contains(t, out, "no existe")

	out, err = run(t, "merge", "-i", "ventas.csv", "--confirm")
	require.NoError(t, err)
	assert.Contains(t, out, "Pestaña 'Marzo' agregada exitosamente")
	assert.Contains(t, out, "Filas procesadas: 2")
}

func TestCLI_MergeUnknownClient(t *testing.T) {
	workspace(t)
	_, err := run(t, "merge", "-i", "ventas.csv", "--confirm=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}
