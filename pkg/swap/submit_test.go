package swap

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/testutil"
)

type submitterFunc func(ctx context.Context, txn solana.Transaction, commitment solana.Commitment) (solana.Signature, error)

func (f submitterFunc) SubmitTransaction(ctx context.Context, txn solana.Transaction, commitment solana.Commitment) (solana.Signature, error) {
	return f(ctx, txn, commitment)
}

func compileTestTransaction(t *testing.T, payer ed25519.PublicKey, extraSigners ...ed25519.PublicKey) *solana.Transaction {
	setup := newInstruction(t, 1)
	for _, signer := range extraSigners {
		setup.Accounts = append(setup.Accounts, solana.NewAccountMeta(signer, true))
	}

	plan := &Plan{
		Setup: []solana.Instruction{setup},
		Swap:  newInstruction(t, 2),
	}

	txn, err := Compile(payer, testutil.GenerateBlockhash(t), plan, nil)
	require.NoError(t, err)
	return txn
}

func TestSign(t *testing.T) {
	payer := testutil.GenerateSolanaKeypair(t)
	payerPublicKey := payer.Public().(ed25519.PublicKey)

	txn := compileTestTransaction(t, payerPublicKey)
	require.NoError(t, Sign(txn, payer))

	assert.Empty(t, txn.MissingSigners())
	assert.True(t, ed25519.Verify(payerPublicKey, txn.Message.Marshal(), txn.Signatures[0][:]))
}

func TestSign_MissingSigner(t *testing.T) {
	payer := testutil.GenerateSolanaKeypair(t)
	other := testutil.GenerateSolanaKeypair(t)
	otherPublicKey := other.Public().(ed25519.PublicKey)

	txn := compileTestTransaction(t, payer.Public().(ed25519.PublicKey), otherPublicKey)
	err := Sign(txn, payer)
	assert.ErrorIs(t, err, solana.ErrMissingSignature)

	require.NoError(t, Sign(txn, other))
	assert.Empty(t, txn.MissingSigners())

	// Keys that are not required signers are rejected
	assert.Error(t, Sign(txn, testutil.GenerateSolanaKeypair(t)))
}

func TestSubmit(t *testing.T) {
	payer := testutil.GenerateSolanaKeypair(t)
	txn := compileTestTransaction(t, payer.Public().(ed25519.PublicKey))

	var submitted int
	sig, err := Submit(context.Background(), submitterFunc(func(_ context.Context, submittedTxn solana.Transaction, commitment solana.Commitment) (solana.Signature, error) {
		submitted++
		assert.Equal(t, solana.CommitmentConfirmed, commitment)
		return submittedTxn.Signatures[0], nil
	}), txn, solana.CommitmentConfirmed)
	assert.ErrorIs(t, err, solana.ErrMissingSignature)
	assert.Zero(t, submitted)

	require.NoError(t, Sign(txn, payer))
	sig, err = Submit(context.Background(), submitterFunc(func(_ context.Context, submittedTxn solana.Transaction, commitment solana.Commitment) (solana.Signature, error) {
		submitted++
		return submittedTxn.Signatures[0], nil
	}), txn, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, txn.Signatures[0], sig)
	assert.Equal(t, 1, submitted)
}

func TestSubmit_ErrorMapping(t *testing.T) {
	payer := testutil.GenerateSolanaKeypair(t)
	txn := compileTestTransaction(t, payer.Public().(ed25519.PublicKey))
	require.NoError(t, Sign(txn, payer))

	preflightErr, err := solana.ParseRPCError(&jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.",
		Data: map[string]interface{}{
			"err":  "AccountNotFound",
			"logs": []interface{}{"Program log: hello"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, preflightErr)

	for _, tc := range []struct {
		name      string
		submitErr error
		expired   bool
		reason    string
		logs      []string
	}{
		{
			name:      "blockhash not found",
			submitErr: solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound),
			expired:   true,
		},
		{
			name: "raw blockhash not found",
			submitErr: &jsonrpc.RPCError{
				Code:    -32002,
				Message: "Transaction simulation failed: Blockhash not found",
			},
			expired: true,
		},
		{
			name:      "preflight failure",
			submitErr: preflightErr,
			reason:    "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.",
			logs:      []string{"Program log: hello"},
		},
		{
			name: "rpc error",
			submitErr: &jsonrpc.RPCError{
				Code:    -32602,
				Message: "invalid transaction: Transaction loads an address table account that doesn't exist",
			},
			reason: "invalid transaction: Transaction loads an address table account that doesn't exist",
		},
		{
			name:      "transport error",
			submitErr: errors.Wrap(context.DeadlineExceeded, "sendTransaction() failed to send request"),
			reason:    "sendTransaction() failed to send request: context deadline exceeded",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Submit(context.Background(), submitterFunc(func(_ context.Context, submittedTxn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
				return submittedTxn.Signatures[0], tc.submitErr
			}), txn, solana.CommitmentConfirmed)
			require.Error(t, err)

			if tc.expired {
				var expiredErr *BlockhashExpiredError
				require.True(t, errors.As(err, &expiredErr), "unexpected error: %v", err)
				assert.Equal(t, txn.Message.RecentBlockhash, expiredErr.Blockhash)
				return
			}

			var rejectedErr *SubmissionRejectedError
			require.True(t, errors.As(err, &rejectedErr), "unexpected error: %v", err)
			assert.Equal(t, tc.reason, rejectedErr.Reason)
			assert.Equal(t, tc.logs, rejectedErr.Logs)
			assert.ErrorIs(t, err, tc.submitErr)
		})
	}
}
