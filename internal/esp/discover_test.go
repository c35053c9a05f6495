package esp_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dusk-indust/espgraph/internal/esp"
	"github.com/dusk-indust/espgraph/internal/esp/esptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPaths(t *testing.T) {
	data := t.TempDir()
	b := esptest.New().Write(t, data, "B.esp")
	a := esptest.New().Write(t, data, "A.ESM")
	esptest.WriteFile(t, data, "notes.txt", []byte("x"))
	require.NoError(t, os.Mkdir(filepath.Join(data, "Scripts.esp"), 0o755))

	other := t.TempDir()
	loose := esptest.WriteFile(t, other, "loose.bin", []byte("x"))
	missing := filepath.Join(other, "Missing.esp")

	got, err := esp.ExpandPaths([]string{loose, data, missing}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{loose, a, b, missing}, got)

	got, err = esp.ExpandPaths([]string{data}, []string{".esp"})
	require.NoError(t, err)
	assert.Equal(t, []string{b}, got)
}
