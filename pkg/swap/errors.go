package swap

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
)

var (
	ErrMissingSwapInstruction = errors.New("plan is missing the swap instruction")
	ErrUnexpectedSwapProgram  = errors.New("swap instruction does not invoke the jupiter program")
	ErrNilRoute               = errors.New("route is nil")
	ErrVaultNotInRoute        = errors.New("swap instruction does not reference the vault")
)

// DecodeError indicates a route descriptor could not be decoded. Group is the
// name of the response field holding the descriptor, and Index its position
// within that group.
type DecodeError struct {
	Group string
	Index int
	Field string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	var sb strings.Builder
	sb.WriteString("decode error: ")
	sb.WriteString(e.Group)
	if e.Index >= 0 {
		fmt.Fprintf(&sb, "[%d]", e.Index)
	}
	if len(e.Field) > 0 {
		sb.WriteString(".")
		sb.WriteString(e.Field)
	}
	if len(e.Value) > 0 {
		fmt.Fprintf(&sb, " (%q)", e.Value)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// LookupTableNotFoundError indicates a referenced address lookup table does
// not exist, or the account at the address is not a lookup table.
type LookupTableNotFoundError struct {
	Address ed25519.PublicKey
	Reason  string
}

func (e *LookupTableNotFoundError) Error() string {
	if len(e.Reason) > 0 {
		return fmt.Sprintf("address lookup table %s not found: %s", base58.Encode(e.Address), e.Reason)
	}
	return fmt.Sprintf("address lookup table %s not found", base58.Encode(e.Address))
}

// SizeExceededError indicates the compiled transaction does not fit within
// the network packet limit, even after lookup table compression.
type SizeExceededError struct {
	Size  int
	Limit int
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("transaction size %d exceeds limit %d", e.Size, e.Limit)
}

// BlockhashExpiredError indicates the network rejected the transaction
// because its recent blockhash is no longer valid. The transaction must be
// recompiled against a fresh blockhash.
type BlockhashExpiredError struct {
	Blockhash solana.Blockhash
	Err       error
}

func (e *BlockhashExpiredError) Error() string {
	return fmt.Sprintf("blockhash %s expired", e.Blockhash.String())
}

func (e *BlockhashExpiredError) Unwrap() error {
	return e.Err
}

// SubmissionRejectedError carries the network's rejection reason verbatim.
type SubmissionRejectedError struct {
	Reason string
	Logs   []string
	Err    error
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("transaction rejected: %s", e.Reason)
}

func (e *SubmissionRejectedError) Unwrap() error {
	return e.Err
}

// SimulationFailedError indicates the compute unit simulation reported an
// execution error.
type SimulationFailedError struct {
	Reason string
	Logs   []string
}

func (e *SimulationFailedError) Error() string {
	return fmt.Sprintf("simulation failed: %s", e.Reason)
}
