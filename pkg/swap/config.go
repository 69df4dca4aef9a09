package swap

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config/env"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config/file"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config/memory"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config/wrapper"
	compute_budget "github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/computebudget"
)

const (
	envConfigPrefix  = "CPI_SWAP_"
	fileConfigPrefix = "cpi_swap."

	ProgramAddressConfigEnvName = envConfigPrefix + "PROGRAM_ADDRESS"
	defaultProgramAddress       = "8KQG1MYXru73rqobftpFjD3hBD8Ab3jaag8wbjZG63sx"

	JupiterProgramAddressConfigEnvName = envConfigPrefix + "JUPITER_PROGRAM_ADDRESS"
	defaultJupiterProgramAddress       = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"

	LookupTableConcurrencyConfigEnvName = envConfigPrefix + "LOOKUP_TABLE_CONCURRENCY"
	defaultLookupTableConcurrency       = DefaultLookupTableConcurrency

	SimulateComputeUnitsConfigEnvName = envConfigPrefix + "SIMULATE_COMPUTE_UNITS"
	defaultSimulateComputeUnits       = false

	SimulationComputeUnitLimitConfigEnvName = envConfigPrefix + "SIMULATION_COMPUTE_UNIT_LIMIT"
	defaultSimulationComputeUnitLimit       = compute_budget.MaxComputeUnitLimit

	ComputeUnitMarginConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_MARGIN"
	defaultComputeUnitMargin       = 10_000

	ComputeUnitPriceConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_PRICE"
	defaultComputeUnitPrice       = 0

	CommitmentConfigEnvName = envConfigPrefix + "COMMITMENT"
	defaultCommitment       = "confirmed"

	BlockhashExpiryRetriesConfigEnvName = envConfigPrefix + "BLOCKHASH_EXPIRY_RETRIES"
	defaultBlockhashExpiryRetries       = 0

	BlockhashExpiryRetryDelayConfigEnvName = envConfigPrefix + "BLOCKHASH_EXPIRY_RETRY_DELAY"
	defaultBlockhashExpiryRetryDelay       = 500 * time.Millisecond

	AssemblyTimeoutConfigEnvName = envConfigPrefix + "ASSEMBLY_TIMEOUT"
	defaultAssemblyTimeout       = 30 * time.Second
)

type conf struct {
	programAddress             config.String
	jupiterProgramAddress      config.String
	lookupTableConcurrency     config.Uint64
	simulateComputeUnits       config.Bool
	simulationComputeUnitLimit config.Uint64
	computeUnitMargin          config.Uint64
	computeUnitPrice           config.Uint64
	commitment                 config.String
	blockhashExpiryRetries     config.Uint64
	blockhashExpiryRetryDelay  config.Duration
	assemblyTimeout            config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			programAddress:             env.NewStringConfig(ProgramAddressConfigEnvName, defaultProgramAddress),
			jupiterProgramAddress:      env.NewStringConfig(JupiterProgramAddressConfigEnvName, defaultJupiterProgramAddress),
			lookupTableConcurrency:     env.NewUint64Config(LookupTableConcurrencyConfigEnvName, defaultLookupTableConcurrency),
			simulateComputeUnits:       env.NewBoolConfig(SimulateComputeUnitsConfigEnvName, defaultSimulateComputeUnits),
			simulationComputeUnitLimit: env.NewUint64Config(SimulationComputeUnitLimitConfigEnvName, defaultSimulationComputeUnitLimit),
			computeUnitMargin:          env.NewUint64Config(ComputeUnitMarginConfigEnvName, defaultComputeUnitMargin),
			computeUnitPrice:           env.NewUint64Config(ComputeUnitPriceConfigEnvName, defaultComputeUnitPrice),
			commitment:                 env.NewStringConfig(CommitmentConfigEnvName, defaultCommitment),
			blockhashExpiryRetries:     env.NewUint64Config(BlockhashExpiryRetriesConfigEnvName, defaultBlockhashExpiryRetries),
			blockhashExpiryRetryDelay:  env.NewDurationConfig(BlockhashExpiryRetryDelayConfigEnvName, defaultBlockhashExpiryRetryDelay),
			assemblyTimeout:            env.NewDurationConfig(AssemblyTimeoutConfigEnvName, defaultAssemblyTimeout),
		}
	}
}

// WithFileConfigs returns configuration pulled from the cpi_swap section of a
// config file. Keys match the environment variable names without the prefix.
func WithFileConfigs(p *file.Provider) ConfigProvider {
	key := func(envName string) string {
		return fileConfigPrefix + strings.ToLower(strings.TrimPrefix(envName, envConfigPrefix))
	}

	return func() *conf {
		return &conf{
			programAddress:             p.NewStringConfig(key(ProgramAddressConfigEnvName), defaultProgramAddress),
			jupiterProgramAddress:      p.NewStringConfig(key(JupiterProgramAddressConfigEnvName), defaultJupiterProgramAddress),
			lookupTableConcurrency:     p.NewUint64Config(key(LookupTableConcurrencyConfigEnvName), defaultLookupTableConcurrency),
			simulateComputeUnits:       p.NewBoolConfig(key(SimulateComputeUnitsConfigEnvName), defaultSimulateComputeUnits),
			simulationComputeUnitLimit: p.NewUint64Config(key(SimulationComputeUnitLimitConfigEnvName), defaultSimulationComputeUnitLimit),
			computeUnitMargin:          p.NewUint64Config(key(ComputeUnitMarginConfigEnvName), defaultComputeUnitMargin),
			computeUnitPrice:           p.NewUint64Config(key(ComputeUnitPriceConfigEnvName), defaultComputeUnitPrice),
			commitment:                 p.NewStringConfig(key(CommitmentConfigEnvName), defaultCommitment),
			blockhashExpiryRetries:     p.NewUint64Config(key(BlockhashExpiryRetriesConfigEnvName), defaultBlockhashExpiryRetries),
			blockhashExpiryRetryDelay:  p.NewDurationConfig(key(BlockhashExpiryRetryDelayConfigEnvName), defaultBlockhashExpiryRetryDelay),
			assemblyTimeout:            p.NewDurationConfig(key(AssemblyTimeoutConfigEnvName), defaultAssemblyTimeout),
		}
	}
}

type testOverrides struct {
	simulateComputeUnits      bool
	computeUnitMargin         uint64
	computeUnitPrice          uint64
	blockhashExpiryRetries    uint64
	blockhashExpiryRetryDelay time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			programAddress:             wrapper.NewStringConfig(memory.NewConfig(defaultProgramAddress), defaultProgramAddress),
			jupiterProgramAddress:      wrapper.NewStringConfig(memory.NewConfig(defaultJupiterProgramAddress), defaultJupiterProgramAddress),
			lookupTableConcurrency:     wrapper.NewUint64Config(memory.NewConfig(uint64(4)), defaultLookupTableConcurrency),
			simulateComputeUnits:       wrapper.NewBoolConfig(memory.NewConfig(overrides.simulateComputeUnits), defaultSimulateComputeUnits),
			simulationComputeUnitLimit: wrapper.NewUint64Config(memory.NewConfig(uint64(defaultSimulationComputeUnitLimit)), defaultSimulationComputeUnitLimit),
			computeUnitMargin:          wrapper.NewUint64Config(memory.NewConfig(overrides.computeUnitMargin), defaultComputeUnitMargin),
			computeUnitPrice:           wrapper.NewUint64Config(memory.NewConfig(overrides.computeUnitPrice), defaultComputeUnitPrice),
			commitment:                 wrapper.NewStringConfig(memory.NewConfig(defaultCommitment), defaultCommitment),
			blockhashExpiryRetries:     wrapper.NewUint64Config(memory.NewConfig(overrides.blockhashExpiryRetries), defaultBlockhashExpiryRetries),
			blockhashExpiryRetryDelay:  wrapper.NewDurationConfig(memory.NewConfig(overrides.blockhashExpiryRetryDelay), defaultBlockhashExpiryRetryDelay),
			assemblyTimeout:            wrapper.NewDurationConfig(memory.NewConfig(defaultAssemblyTimeout), defaultAssemblyTimeout),
		}
	}
}

// ConfiguredProgram returns the CPI swap program named by the configuration.
func ConfiguredProgram(ctx context.Context, configProvider ConfigProvider) (CPIProgram, error) {
	return configProvider().cpiProgram(ctx)
}

func (c *conf) cpiProgram(ctx context.Context) (CPIProgram, error) {
	program, err := decodeConfiguredKey(c.programAddress.Get(ctx))
	if err != nil {
		return CPIProgram{}, errors.Wrap(err, "invalid cpi swap program address")
	}

	jupiterProgram, err := decodeConfiguredKey(c.jupiterProgramAddress.Get(ctx))
	if err != nil {
		return CPIProgram{}, errors.Wrap(err, "invalid jupiter program address")
	}

	return CPIProgram{
		Program:        program,
		JupiterProgram: jupiterProgram,
	}, nil
}
