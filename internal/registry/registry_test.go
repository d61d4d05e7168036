package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"aquere/libros-iva/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestNormalizeTaxpayerID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"30716820080", "30716820080", false},
		{"30-71682008-0", "30716820080", false},
		{" 20 12345678 9 ", "20123456789", false},
		{"3071682008", "", true},
		{"3071682008A", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTaxpayerID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTaxpayerID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clients.yaml")
	writeFile(t, file, "\"30716820080\": ACME SA\n\"20123456789\": beta srl\n")

	reg, err := Open(file, logging.NewDiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	name, ok := reg.ClientByTaxpayerID("30-71682008-0")
	assert.True(t, ok)
	assert.Equal(t, "ACME SA", name)

	id, ok := reg.TaxpayerIDByClient("beta srl")
	assert.True(t, ok)
	assert.Equal(t, "20123456789", id)

	_, ok = reg.ClientByTaxpayerID("27000000001")
	assert.False(t, ok, "misses are not errors")
}

func TestOpen_MissingFileStartsEmpty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "clients.yaml")
	logger := logging.NewMockLogger()
	reg, err := Open(file, logger)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
	assert.True(t, logger.HasEntry("WARN", "Client registry not found, starting empty"))

	_, err = reg.Add("30716820080", "ACME SA")
	require.NoError(t, err)
	assert.FileExists(t, file)
}

func TestOpen_Invalid(t *testing.T) {
	dir := t.TempDir()

	malformed := filepath.Join(dir, "bad.yaml")
	writeFile(t, malformed, "not: [valid")
	_, err := Open(malformed, nil)
	assert.Error(t, err)

	badID := filepath.Join(dir, "badid.yaml")
	writeFile(t, badID, "\"123\": Short\n")
	_, err = Open(badID, nil)
	assert.ErrorIs(t, err, ErrInvalidTaxpayerID)
}

func TestAdd(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clients.yaml")
	reg, err := Open(file, nil)
	require.NoError(t, err)

	c, err := reg.Add("30-71682008-0", "  ACME SA ")
	require.NoError(t, err)
	assert.Equal(t, Client{TaxpayerID: "30716820080", Name: "ACME SA"}, c)

	_, err = reg.Add("30716820080", "Other")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = reg.Add("20123456789", "")
	assert.Error(t, err)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var stored map[string]string
	require.NoError(t, yaml.Unmarshal(data, &stored))
	assert.Equal(t, map[string]string{"30716820080": "ACME SA"}, stored)
}

func TestUpdate(t *testing.T) {
	reg := NewInMemory(map[string]string{"30716820080": "ACME SA", "20123456789": "Beta SRL"})

	tests := []struct {
		name    string
		oldID   string
		newName string
		newID   string
		want    Client
		wantErr error
	}{
		{"rename only", "30716820080", "ACME SRL", "", Client{"30716820080", "ACME SRL"}, nil},
		{"move id keeps name", "30716820080", "", "30716820099", Client{"30716820099", "ACME SRL"}, nil},
		{"unknown", "27000000001", "X", "", Client{}, ErrNotFound},
		{"target taken", "30716820099", "", "20123456789", Client{}, ErrDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Update(tt.oldID, tt.newName, tt.newID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.False(t, reg.Exists("30716820080"))
	assert.Equal(t, 2, reg.Len())
}

func TestAll_SortedByName(t *testing.T) {
	reg := NewInMemory(map[string]string{
		"30716820080": "zeta SA",
		"20123456789": "Alfa SRL",
		"27000000001": "beta",
	})
	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Alfa SRL", "beta", "zeta SA"}, []string{all[0].Name, all[1].Name, all[2].Name})
}

func TestConcurrentAccess(t *testing.T) {
	reg := NewInMemory(nil)
	ids := []string{"20000000001", "20000000002", "20000000003", "20000000004"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			_, _ = reg.Add(id, "Client "+id)
		}(id)
		go func() {
			defer wg.Done()
			_ = reg.All()
		}()
	}
	wg.Wait()
	assert.Equal(t, len(ids), reg.Len())
}
