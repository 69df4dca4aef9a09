package cpi_swap

import (
	"crypto/ed25519"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/token"
)

var (
	vaultPrefix = []byte("vault")
)

// GetVaultAddress derives the vault PDA that custodies swap funds for the
// provided program deployment.
func GetVaultAddress(program ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		program,
		vaultPrefix,
	)
}

type GetVaultTokenAccountAddressArgs struct {
	Vault        ed25519.PublicKey
	Mint         ed25519.PublicKey
	TokenProgram ed25519.PublicKey
}

// GetVaultTokenAccountAddress returns the vault's associated token account
// for a mint.
func GetVaultTokenAccountAddress(args *GetVaultTokenAccountAddressArgs) (ed25519.PublicKey, error) {
	tokenProgram := args.TokenProgram
	if len(tokenProgram) == 0 {
		tokenProgram = token.ProgramKey
	}

	return token.GetAssociatedAccountForProgram(args.Vault, args.Mint, tokenProgram)
}
