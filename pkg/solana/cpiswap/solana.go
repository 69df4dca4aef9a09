package cpi_swap

import "github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"

func (i Instruction) ToSolanaInstruction() solana.Instruction {
	legacyAccountMeta := make([]solana.AccountMeta, len(i.Accounts))
	for i, accountMeta := range i.Accounts {
		legacyAccountMeta[i] = solana.AccountMeta{
			PublicKey:  accountMeta.PublicKey,
			IsSigner:   accountMeta.IsSigner,
			IsWritable: accountMeta.IsWritable,
		}
	}

	return solana.Instruction{
		Program:  i.Program,
		Accounts: legacyAccountMeta,
		Data:     i.Data,
	}
}
