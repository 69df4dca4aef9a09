package swap

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
)

// Compile compiles the plan into an unsigned v0 transaction paid for by
// payer. Accounts found in tables are referenced by index rather than
// embedded. Compilation is deterministic for a given payer, blockhash, plan
// and set of tables.
//
// A transaction that does not fit in a single packet fails with a
// *SizeExceededError.
func Compile(payer ed25519.PublicKey, blockhash solana.Blockhash, plan *Plan, tables []solana.AddressLookupTable) (*solana.Transaction, error) {
	if plan == nil || len(plan.Swap.Program) == 0 {
		return nil, ErrMissingSwapInstruction
	}

	txn, err := solana.NewV0Transaction(payer, tables, plan.Instructions())
	if err != nil {
		return nil, errors.Wrap(err, "error compiling transaction")
	}
	txn.SetBlockhash(blockhash)

	size := txn.Size()
	if size > solana.MaxTransactionSize {
		return nil, &SizeExceededError{
			Size:  size,
			Limit: solana.MaxTransactionSize,
		}
	}

	return &txn, nil
}
