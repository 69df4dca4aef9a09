package swap

import (
	"context"
	"crypto/ed25519"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
)

// Submitter forwards signed transactions to the network.
type Submitter interface {
	SubmitTransaction(ctx context.Context, txn solana.Transaction, commitment solana.Commitment) (solana.Signature, error)
}

// BlockhashSource provides recent blockhashes to compile against.
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error)
}

// Simulator executes transactions without committing them.
type Simulator interface {
	SimulateTransaction(ctx context.Context, txn solana.Transaction, commitment solana.Commitment) (*solana.SimulationResult, error)
}

// Sign signs the exact message bytes with every signer. All required
// signatures must be present afterwards.
func Sign(txn *solana.Transaction, signers ...ed25519.PrivateKey) error {
	if err := txn.Sign(signers...); err != nil {
		return err
	}

	missing := txn.MissingSigners()
	if len(missing) > 0 {
		encoded := make([]string, len(missing))
		for i, key := range missing {
			encoded[i] = base58.Encode(key)
		}
		return errors.Wrapf(solana.ErrMissingSignature, "unsigned: %s", strings.Join(encoded, ", "))
	}

	return nil
}

// Submit sends the signed transaction. An expired blockhash is reported as a
// *BlockhashExpiredError, and any other failure as a *SubmissionRejectedError
// carrying the network's reason.
func Submit(ctx context.Context, submitter Submitter, txn *solana.Transaction, commitment solana.Commitment) (solana.Signature, error) {
	if len(txn.MissingSigners()) > 0 {
		return solana.Signature{}, solana.ErrMissingSignature
	}

	sig, err := submitter.SubmitTransaction(ctx, *txn, commitment)
	if err == nil {
		return sig, nil
	}

	return sig, classifySubmissionError(txn.Message.RecentBlockhash, err)
}

const blockhashNotFoundMessage = "blockhash not found"

func classifySubmissionError(blockhash solana.Blockhash, err error) error {
	var txErr *solana.TransactionError
	if errors.As(err, &txErr) {
		if txErr.ErrorKey() == solana.TransactionErrorBlockhashNotFound {
			return &BlockhashExpiredError{Blockhash: blockhash, Err: err}
		}

		reason := txErr.Message()
		if len(reason) == 0 {
			reason = txErr.Error()
		}
		return &SubmissionRejectedError{
			Reason: reason,
			Logs:   txErr.Logs(),
			Err:    err,
		}
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		if strings.Contains(strings.ToLower(rpcErr.Message), blockhashNotFoundMessage) {
			return &BlockhashExpiredError{Blockhash: blockhash, Err: err}
		}
		return &SubmissionRejectedError{
			Reason: rpcErr.Message,
			Err:    err,
		}
	}

	return &SubmissionRejectedError{
		Reason: err.Error(),
		Err:    err,
	}
}
