package swap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
	cpi_swap "github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/cpiswap"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/token"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/testutil"
)

var testCPIProgram = CPIProgram{
	Program:        cpi_swap.PROGRAM_ID,
	JupiterProgram: cpi_swap.JUPITER_PROGRAM_ID,
}

func TestResolveCPIAccounts_NeverSigner(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 4)

	accounts := []solana.AccountMeta{
		{PublicKey: keys[0], IsSigner: true, IsWritable: true},
		{PublicKey: keys[1], IsSigner: true, IsWritable: false},
		{PublicKey: keys[2], IsSigner: false, IsWritable: true},
		{PublicKey: keys[3], IsSigner: false, IsWritable: false},
	}

	resolved := ResolveCPIAccounts(accounts)
	require.Len(t, resolved, len(accounts))
	for i, account := range resolved {
		assert.EqualValues(t, accounts[i].PublicKey, account.PublicKey)
		assert.Equal(t, accounts[i].IsWritable, account.IsWritable)
		assert.False(t, account.IsSigner)
	}

	// The input is left untouched
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[1].IsSigner)
}

func TestNewCPISwapInstruction(t *testing.T) {
	f := newRouteFixture(t, 0, 6)
	mints := testutil.GenerateSolanaKeys(t, 2)

	ixn, err := NewCPISwapInstruction(testCPIProgram, Mints{
		InputMint:  mints[0],
		OutputMint: mints[1],
	}, f.swap)
	require.NoError(t, err)

	vault, _, err := cpi_swap.GetVaultAddress(cpi_swap.PROGRAM_ID)
	require.NoError(t, err)
	vaultInput, err := token.GetAssociatedAccount(vault, mints[0])
	require.NoError(t, err)
	vaultOutput, err := token.GetAssociatedAccount(vault, mints[1])
	require.NoError(t, err)

	assert.EqualValues(t, cpi_swap.PROGRAM_ID, ixn.Program)

	require.Len(t, ixn.Accounts, cpi_swap.SwapInstructionFixedAccounts+len(f.swap.Accounts))
	expectedFixed := []solana.AccountMeta{
		{PublicKey: mints[0]},
		{PublicKey: token.ProgramKey},
		{PublicKey: mints[1]},
		{PublicKey: token.ProgramKey},
		{PublicKey: vault, IsWritable: true},
		{PublicKey: vaultInput, IsWritable: true},
		{PublicKey: vaultOutput, IsWritable: true},
		{PublicKey: cpi_swap.JUPITER_PROGRAM_ID},
	}
	for i, expected := range expectedFixed {
		assert.EqualValues(t, expected.PublicKey, ixn.Accounts[i].PublicKey, "account %d", i)
		assert.Equal(t, expected.IsWritable, ixn.Accounts[i].IsWritable, "account %d", i)
		assert.False(t, ixn.Accounts[i].IsSigner, "account %d", i)
	}

	for i, expected := range f.swap.Accounts {
		actual := ixn.Accounts[cpi_swap.SwapInstructionFixedAccounts+i]
		assert.EqualValues(t, expected.PublicKey, actual.PublicKey)
		assert.Equal(t, expected.IsWritable, actual.IsWritable)
		assert.False(t, actual.IsSigner)
	}

	args, err := cpi_swap.DecompileSwapInstructionData(ixn.Data)
	require.NoError(t, err)
	assert.Equal(t, f.swap.Data, args.Data)
}

func TestNewCPISwapInstruction_Token2022Mint(t *testing.T) {
	f := newRouteFixture(t, 0, 2)
	mints := testutil.GenerateSolanaKeys(t, 2)

	ixn, err := NewCPISwapInstruction(testCPIProgram, Mints{
		InputMint:        mints[0],
		InputMintProgram: token.Token2022ProgramKey,
		OutputMint:       mints[1],
	}, f.swap)
	require.NoError(t, err)

	vault, _, err := cpi_swap.GetVaultAddress(cpi_swap.PROGRAM_ID)
	require.NoError(t, err)
	vaultInput, err := token.GetAssociatedAccountForProgram(vault, mints[0], token.Token2022ProgramKey)
	require.NoError(t, err)

	assert.EqualValues(t, token.Token2022ProgramKey, ixn.Accounts[1].PublicKey)
	assert.EqualValues(t, token.ProgramKey, ixn.Accounts[3].PublicKey)
	assert.EqualValues(t, vaultInput, ixn.Accounts[5].PublicKey)
}

func TestNewCPISwapInstruction_Invalid(t *testing.T) {
	f := newRouteFixture(t, 0, 2)
	mints := testutil.GenerateSolanaKeys(t, 2)

	notJupiter := f.swap.Clone()
	notJupiter.Program = testutil.GenerateSolanaKeys(t, 1)[0]
	_, err := NewCPISwapInstruction(testCPIProgram, Mints{InputMint: mints[0], OutputMint: mints[1]}, notJupiter)
	assert.Equal(t, ErrUnexpectedSwapProgram, err)

	_, err = NewCPISwapInstruction(testCPIProgram, Mints{InputMint: mints[0]}, f.swap)
	assert.Error(t, err)

	_, err = NewCPISwapInstruction(testCPIProgram, Mints{
		InputMint:        mints[0],
		InputMintProgram: cpi_swap.JUPITER_PROGRAM_ID,
		OutputMint:       mints[1],
	}, f.swap)
	assert.ErrorIs(t, err, solana.ErrIncorrectProgram)

	otherVault := newRouteFixtureForProgram(t, testutil.GenerateSolanaKeys(t, 1)[0], 0, 2)
	_, err = NewCPISwapInstruction(testCPIProgram, Mints{InputMint: mints[0], OutputMint: mints[1]}, otherVault.swap)
	assert.Equal(t, ErrVaultNotInRoute, err)
}
