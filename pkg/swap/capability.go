package swap

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
	cpi_swap "github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/cpiswap"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/token"
)

// ResolveCPIAccounts derives the account list forwarded to the Jupiter CPI.
// Writability is copied from the route, but no account is ever a signer: the
// vault is owned by the program, which signs for it with its PDA seeds during
// the CPI. A route claiming otherwise is not trusted.
func ResolveCPIAccounts(accounts []solana.AccountMeta) []solana.AccountMeta {
	resolved := make([]solana.AccountMeta, len(accounts))
	for i, account := range accounts {
		resolved[i] = solana.AccountMeta{
			PublicKey:  account.PublicKey,
			IsWritable: account.IsWritable,
			IsSigner:   false,
		}
	}
	return resolved
}

// CPIProgram identifies the deployed CPI swap program and the Jupiter program
// it is allowed to invoke.
type CPIProgram struct {
	Program        ed25519.PublicKey
	JupiterProgram ed25519.PublicKey
}

// Mints describes the two sides of a swap. Empty mint programs default to the
// legacy token program.
type Mints struct {
	InputMint         ed25519.PublicKey
	InputMintProgram  ed25519.PublicKey
	OutputMint        ed25519.PublicKey
	OutputMintProgram ed25519.PublicKey
}

// NewCPISwapInstruction wraps the route's Jupiter swap instruction in the CPI
// program's swap instruction, which performs the swap on behalf of its vault.
func NewCPISwapInstruction(program CPIProgram, mints Mints, swapIxn solana.Instruction) (solana.Instruction, error) {
	if !bytes.Equal(swapIxn.Program, program.JupiterProgram) {
		return solana.Instruction{}, ErrUnexpectedSwapProgram
	}

	if len(mints.InputMint) != ed25519.PublicKeySize || len(mints.OutputMint) != ed25519.PublicKeySize {
		return solana.Instruction{}, errors.New("input and output mints are required")
	}

	inputMintProgram := mints.InputMintProgram
	if len(inputMintProgram) == 0 {
		inputMintProgram = token.ProgramKey
	}
	outputMintProgram := mints.OutputMintProgram
	if len(outputMintProgram) == 0 {
		outputMintProgram = token.ProgramKey
	}

	vault, _, err := cpi_swap.GetVaultAddress(program.Program)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "error deriving vault address")
	}

	// The route must have been quoted with this program's vault as the user
	if !referencesAccount(swapIxn, vault) {
		return solana.Instruction{}, ErrVaultNotInRoute
	}

	vaultInputAccount, err := cpi_swap.GetVaultTokenAccountAddress(&cpi_swap.GetVaultTokenAccountAddressArgs{
		Vault:        vault,
		Mint:         mints.InputMint,
		TokenProgram: inputMintProgram,
	})
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "error deriving vault input token account")
	}

	vaultOutputAccount, err := cpi_swap.GetVaultTokenAccountAddress(&cpi_swap.GetVaultTokenAccountAddressArgs{
		Vault:        vault,
		Mint:         mints.OutputMint,
		TokenProgram: outputMintProgram,
	})
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "error deriving vault output token account")
	}

	resolved := ResolveCPIAccounts(swapIxn.Accounts)
	remainingAccounts := make([]cpi_swap.AccountMeta, len(resolved))
	for i, account := range resolved {
		remainingAccounts[i] = cpi_swap.AccountMeta{
			PublicKey:  account.PublicKey,
			IsWritable: account.IsWritable,
			IsSigner:   account.IsSigner,
		}
	}

	ixn, err := cpi_swap.NewSwapInstruction(
		program.Program,
		&cpi_swap.SwapInstructionAccounts{
			InputMint:          mints.InputMint,
			InputMintProgram:   inputMintProgram,
			OutputMint:         mints.OutputMint,
			OutputMintProgram:  outputMintProgram,
			Vault:              vault,
			VaultInputAccount:  vaultInputAccount,
			VaultOutputAccount: vaultOutputAccount,
			JupiterProgram:     program.JupiterProgram,
			RemainingAccounts:  remainingAccounts,
		},
		&cpi_swap.SwapInstructionArgs{
			Data: swapIxn.Data,
		},
	)
	if err != nil {
		return solana.Instruction{}, err
	}

	return ixn.ToSolanaInstruction(), nil
}

func referencesAccount(ixn solana.Instruction, account ed25519.PublicKey) bool {
	for _, meta := range ixn.Accounts {
		if bytes.Equal(meta.PublicKey, account) {
			return true
		}
	}
	return false
}
