package cpi_swap

import (
	"bytes"
	"crypto/ed25519"

	"github.com/near/borsh-go"
	"github.com/pkg/errors"
)

var swapInstructionDiscriminator = []byte{
	0xf8, 0xc6, 0x9e, 0x91, 0xe1, 0x75, 0x87, 0xc8,
}

// SwapInstructionArgs carries the opaque Jupiter route instruction data that
// the program forwards verbatim in its CPI.
type SwapInstructionArgs struct {
	Data []byte
}

type SwapInstructionAccounts struct {
	InputMint          ed25519.PublicKey
	InputMintProgram   ed25519.PublicKey
	OutputMint         ed25519.PublicKey
	OutputMintProgram  ed25519.PublicKey
	Vault              ed25519.PublicKey
	VaultInputAccount  ed25519.PublicKey
	VaultOutputAccount ed25519.PublicKey
	JupiterProgram     ed25519.PublicKey
	RemainingAccounts  []AccountMeta
}

// NewSwapInstruction builds the program's swap instruction. Remaining
// accounts are appended in order after the fixed accounts and are never
// marked as signers, since the program signs for the vault itself.
func NewSwapInstruction(
	program ed25519.PublicKey,
	accounts *SwapInstructionAccounts,
	args *SwapInstructionArgs,
) (Instruction, error) {
	serialized, err := borsh.Serialize(*args)
	if err != nil {
		return Instruction{}, errors.Wrap(err, "error serializing swap args")
	}

	var offset int

	// Serialize instruction arguments
	data := make([]byte, len(swapInstructionDiscriminator)+len(serialized))

	putDiscriminator(data, swapInstructionDiscriminator, &offset)
	copy(data[offset:], serialized)

	jupiterProgram := accounts.JupiterProgram
	if len(jupiterProgram) == 0 {
		jupiterProgram = JUPITER_PROGRAM_ID
	}

	remainingAccounts := make([]AccountMeta, len(accounts.RemainingAccounts))
	for i, accountMeta := range accounts.RemainingAccounts {
		remainingAccounts[i] = AccountMeta{
			PublicKey:  accountMeta.PublicKey,
			IsWritable: accountMeta.IsWritable,
			IsSigner:   false,
		}
	}

	return Instruction{
		Program: program,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: append(
			[]AccountMeta{
				{
					PublicKey:  accounts.InputMint,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.InputMintProgram,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.OutputMint,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.OutputMintProgram,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.Vault,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.VaultInputAccount,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.VaultOutputAccount,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  jupiterProgram,
					IsWritable: false,
					IsSigner:   false,
				},
			},
			remainingAccounts...,
		),
	}, nil
}

// SwapInstructionFixedAccounts is the number of accounts that precede the
// forwarded Jupiter accounts.
const SwapInstructionFixedAccounts = 8

// DecompileSwapInstructionData parses swap instruction data back into its
// arguments.
func DecompileSwapInstructionData(data []byte) (*SwapInstructionArgs, error) {
	if len(data) < len(swapInstructionDiscriminator) {
		return nil, ErrInvalidInstructionData
	}

	var offset int
	var discriminator []byte
	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, swapInstructionDiscriminator) {
		return nil, ErrInvalidInstructionData
	}

	var args SwapInstructionArgs
	if err := borsh.Deserialize(&args, data[offset:]); err != nil {
		return nil, errors.Wrap(ErrInvalidInstructionData, err.Error())
	}
	return &args, nil
}
