package swap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config/file"
)

func TestWithEnvConfigs(t *testing.T) {
	t.Setenv(ComputeUnitPriceConfigEnvName, "1000")
	t.Setenv(SimulateComputeUnitsConfigEnvName, "true")
	t.Setenv(AssemblyTimeoutConfigEnvName, "5s")

	ctx := context.Background()
	conf := WithEnvConfigs()()

	assert.EqualValues(t, 1000, conf.computeUnitPrice.Get(ctx))
	assert.True(t, conf.simulateComputeUnits.Get(ctx))
	assert.Equal(t, 5*time.Second, conf.assemblyTimeout.Get(ctx))

	assert.Equal(t, defaultProgramAddress, conf.programAddress.Get(ctx))
	assert.Equal(t, defaultJupiterProgramAddress, conf.jupiterProgramAddress.Get(ctx))
	assert.EqualValues(t, defaultLookupTableConcurrency, conf.lookupTableConcurrency.Get(ctx))
	assert.EqualValues(t, defaultComputeUnitMargin, conf.computeUnitMargin.Get(ctx))
	assert.Equal(t, defaultBlockhashExpiryRetryDelay, conf.blockhashExpiryRetryDelay.Get(ctx))
}

func TestWithFileConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cpi_swap:
  simulate_compute_units: true
  compute_unit_margin: 20000
  blockhash_expiry_retries: 2
  blockhash_expiry_retry_delay: 250ms
  commitment: finalized
`), 0o600))

	provider, err := file.NewProvider(path)
	require.NoError(t, err)

	ctx := context.Background()
	conf := WithFileConfigs(provider)()

	assert.True(t, conf.simulateComputeUnits.Get(ctx))
	assert.EqualValues(t, 20000, conf.computeUnitMargin.Get(ctx))
	assert.EqualValues(t, 2, conf.blockhashExpiryRetries.Get(ctx))
	assert.Equal(t, 250*time.Millisecond, conf.blockhashExpiryRetryDelay.Get(ctx))
	assert.Equal(t, "finalized", conf.commitment.Get(ctx))

	assert.EqualValues(t, defaultSimulationComputeUnitLimit, conf.simulationComputeUnitLimit.Get(ctx))
	assert.Equal(t, defaultAssemblyTimeout, conf.assemblyTimeout.Get(ctx))
}
