package remotestore

import (
	"context"
	"errors"
	"testing"

	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/models"
	"aquere/libros-iva/internal/workbook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var salesKey = Key{Client: "ACME SA", Type: models.LedgerSales, Year: 2024}

func TestKey(t *testing.T) {
	assert.Equal(t, "Libro Iva Ventas 2024 ACME SA.xlsx", salesKey.FileName())
	assert.Equal(t, "Libro Iva Compras 2023 ACME SA.xlsx",
		Key{Client: "ACME SA", Type: models.LedgerPurchases, Year: 2023}.FileName())
	assert.NoError(t, salesKey.Validate())

	tests := []struct {
		name string
		key  Key
	}{
		{"no client", Key{Type: models.LedgerSales, Year: 2024}},
		{"bad type", Key{Client: "x", Type: "otros", Year: 2024}},
		{"bad year", Key{Client: "x", Type: models.LedgerSales, Year: 24}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.key.Validate())
		})
	}
}

func TestMemoryStore_CreateLocateFetch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("")

	_, found, err := m.Locate(ctx, salesKey)
	require.NoError(t, err)
	assert.False(t, found)

	h, err := m.Create(ctx, salesKey)
	require.NoError(t, err)
	assert.Equal(t, salesKey.FileName(), h.Name)
	assert.Equal(t, 1, m.Writes())

	located, found, err := m.Locate(ctx, salesKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, h, located)

	data, err := m.Fetch(ctx, h)
	require.NoError(t, err)
	names, err := workbook.ProbeSheetNames(data)
	require.NoError(t, err)
	assert.Equal(t, []string{models.DefaultPlaceholderSheet}, names)

	_, err = m.Create(ctx, salesKey)
	assert.Error(t, err, "duplicate create must fail")
}

func TestMemoryStore_Replace(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("")
	h := m.Put(salesKey, []byte("v1"))

	next, err := m.Replace(ctx, h, []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, h.ID, next.ID)
	data, _ := m.Data(salesKey)
	assert.Equal(t, []byte("v2"), data)
}

func TestMemoryStore_ReplaceLiveDocumentRecreates(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("")
	m.Put(salesKey, []byte("v1"))
	require.True(t, m.ConvertToLive(salesKey))

	h, found, err := m.Locate(ctx, salesKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.LiveSpreadsheetMimeType, h.MimeType)

	next, err := m.Replace(ctx, h, []byte("v2"))
	require.NoError(t, err)
	assert.NotEqual(t, h.ID, next.ID)
	assert.Equal(t, models.WorkbookMimeType, next.MimeType)

	_, err = m.Fetch(ctx, h)
	assert.Error(t, err, "old handle is gone")
}

func TestMemoryStore_Faults(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("")
	h := m.Put(salesKey, []byte("v1"))
	boom := errors.New("boom")

	m.FailNext("replace", Fault{Err: boom})
	_, err := m.Replace(ctx, h, []byte("v2"))
	assert.ErrorIs(t, err, boom)
	data, _ := m.Data(salesKey)
	assert.Equal(t, []byte("v1"), data)

	m.FailNext("replace", Fault{Err: boom, Applied: true})
	_, err = m.Replace(ctx, h, []byte("v3"))
	assert.ErrorIs(t, err, boom)
	data, _ = m.Data(salesKey)
	assert.Equal(t, []byte("v3"), data, "applied fault still writes")

	m.FailNext("fetch", Fault{Err: boom})
	_, err = m.Fetch(ctx, h)
	assert.ErrorIs(t, err, boom)
	_, err = m.Fetch(ctx, h)
	assert.NoError(t, err, "faults are consumed")
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemoryStore("")
	_, _, err := m.Locate(ctx, salesKey)
	assert.True(t, ledgererror.IsRemote(err))
	assert.False(t, ledgererror.IsTransient(err))
}

func TestMemoryStore_Clients(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("")
	require.NoError(t, m.EnsureClient(ctx, "ACME SA"))
	m.Put(salesKey, []byte("x"))

	require.NoError(t, m.RenameClient(ctx, "ACME SA", "ACME SRL"))
	assert.False(t, m.HasClient("ACME SA"))
	assert.True(t, m.HasClient("ACME SRL"))

	renamed := Key{Client: "ACME SRL", Type: models.LedgerSales, Year: 2024}
	h, found, err := m.Locate(ctx, renamed)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, renamed.FileName(), h.Name)

	assert.Error(t, m.RenameClient(ctx, "Nobody", "Other"))
}
