package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config"
)

func TestProvider_Yaml(t *testing.T) {
	path := writeFile(t, "config.yaml", `
cpi_swap:
  lookup_table_concurrency: 4
  simulate_compute_units: true
  commitment: finalized
  assembly_timeout: 45s
`)

	p, err := NewProvider(path)
	require.NoError(t, err)

	ctx := context.Background()
	assert.EqualValues(t, 4, p.NewUint64Config("cpi_swap.lookup_table_concurrency", 8).Get(ctx))
	assert.True(t, p.NewBoolConfig("CPI_SWAP.SIMULATE_COMPUTE_UNITS", false).Get(ctx))
	assert.Equal(t, "finalized", p.NewStringConfig("cpi_swap.commitment", "confirmed").Get(ctx))
	assert.Equal(t, 45*time.Second, p.NewDurationConfig("cpi_swap.assembly_timeout", time.Second).Get(ctx))

	// Missing keys fall back to defaults
	assert.EqualValues(t, 10_000, p.NewUint64Config("cpi_swap.compute_unit_margin", 10_000).Get(ctx))

	_, err = p.NewConfig("cpi_swap.missing").Get(ctx)
	assert.Equal(t, config.ErrNoValue, err)
}

func TestProvider_Json(t *testing.T) {
	path := writeFile(t, "config.json", `{"lookup_table_concurrency": 2, "commitment": "processed"}`)

	p, err := NewProvider(path)
	require.NoError(t, err)

	ctx := context.Background()
	assert.EqualValues(t, 2, p.NewUint64Config("lookup_table_concurrency", 8).Get(ctx))
	assert.Equal(t, "processed", p.NewStringConfig("commitment", "confirmed").Get(ctx))
}

func TestProvider_MissingFile(t *testing.T) {
	_, err := NewProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func writeFile(t *testing.T, name, contents string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}
