package cpi_swap

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/token"
)

func TestVaultAddress(t *testing.T) {
	address, bump, err := GetVaultAddress(PROGRAM_ID)
	require.NoError(t, err)
	assert.Equal(t, "sETPbWCNcRQfDCwtqLm5iFwcVYUJsBeNiocg1dsfqtw", base58.Encode(address))
	assert.EqualValues(t, 252, bump)
}

func TestVaultTokenAccountAddress(t *testing.T) {
	vault, _, err := GetVaultAddress(PROGRAM_ID)
	require.NoError(t, err)

	usdc := mustBase58Decode("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	address, err := GetVaultTokenAccountAddress(&GetVaultTokenAccountAddressArgs{
		Vault: vault,
		Mint:  usdc,
	})
	require.NoError(t, err)
	assert.Equal(t, "6Adro4DcqodYQ1AUJyExvzrWZv6Aq99AsLTuUtUhdudf", base58.Encode(address))

	address, err = GetVaultTokenAccountAddress(&GetVaultTokenAccountAddressArgs{
		Vault:        vault,
		Mint:         token.WrappedSolMint,
		TokenProgram: token.ProgramKey,
	})
	require.NoError(t, err)
	assert.Equal(t, "FM6LxZzXyPwwQgYEip8tryedqDQjM8Jpx44xk4nm49ZR", base58.Encode(address))

	_, err = GetVaultTokenAccountAddress(&GetVaultTokenAccountAddressArgs{
		Vault:        vault,
		Mint:         usdc,
		TokenProgram: JUPITER_PROGRAM_ID,
	})
	assert.Error(t, err)
}
