package swap

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/jupiter"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
)

// Response field names, used to locate decode failures.
const (
	fieldTokenLedgerInstruction    = "tokenLedgerInstruction"
	fieldComputeBudgetInstructions = "computeBudgetInstructions"
	fieldSetupInstructions         = "setupInstructions"
	fieldSwapInstruction           = "swapInstruction"
	fieldCleanupInstruction        = "cleanupInstruction"
	fieldOtherInstructions         = "otherInstructions"
	fieldLookupTableAddresses      = "addressLookupTableAddresses"
	fieldResponse                  = "response"
)

// Route is a fully decoded Jupiter route, grouped by execution phase.
type Route struct {
	ComputeBudget []solana.Instruction
	Setup         []solana.Instruction
	Swap          solana.Instruction
	Cleanup       []solana.Instruction
	Other         []solana.Instruction

	// LookupTables are unique, in the order the route first references them
	LookupTables []ed25519.PublicKey
}

// InstructionCount is the number of instructions across all groups
func (r *Route) InstructionCount() int {
	return len(r.ComputeBudget) + len(r.Setup) + 1 + len(r.Cleanup) + len(r.Other)
}

// DecodeSwapInstructions parses a raw /swap-instructions response body. Shape
// failures are reported as a *DecodeError located at the offending group, so
// callers match a single error kind for any malformed route.
func DecodeSwapInstructions(body []byte) (*jupiter.SwapInstructions, error) {
	raw, err := jupiter.ParseSwapInstructions(body)
	if err == nil {
		return raw, nil
	}

	var fieldErr *jupiter.FieldError
	if errors.As(err, &fieldErr) {
		return nil, &DecodeError{
			Group: fieldErr.Field,
			Index: fieldErr.Index,
			Err:   fieldErr.Err,
		}
	}
	return nil, &DecodeError{Group: fieldResponse, Index: -1, Err: err}
}

// Normalize decodes every instruction descriptor in the route. Any malformed
// address or payload fails the whole route with a *DecodeError; no partially
// decoded route is ever returned.
func Normalize(raw *jupiter.SwapInstructions) (*Route, error) {
	if raw == nil {
		return nil, ErrNilRoute
	}

	var route Route
	var err error

	route.ComputeBudget, err = normalizeGroup(fieldComputeBudgetInstructions, raw.ComputeBudgetInstructions)
	if err != nil {
		return nil, err
	}

	route.Setup, err = normalizeGroup(fieldSetupInstructions, raw.SetupInstructions)
	if err != nil {
		return nil, err
	}

	// The token ledger instruction records the pre-swap balance, so it must
	// execute after account setup and before the swap.
	if raw.TokenLedgerInstruction != nil {
		ixn, err := normalizeInstruction(fieldTokenLedgerInstruction, -1, *raw.TokenLedgerInstruction)
		if err != nil {
			return nil, err
		}
		route.Setup = append(route.Setup, ixn)
	}

	if raw.SwapInstruction == nil {
		return nil, &DecodeError{
			Group: fieldSwapInstruction,
			Index: -1,
			Err:   errors.New("missing swap instruction"),
		}
	}
	route.Swap, err = normalizeInstruction(fieldSwapInstruction, -1, *raw.SwapInstruction)
	if err != nil {
		return nil, err
	}

	route.Cleanup, err = normalizeGroup(fieldCleanupInstruction, raw.CleanupInstruction)
	if err != nil {
		return nil, err
	}

	route.Other, err = normalizeGroup(fieldOtherInstructions, raw.OtherInstructions)
	if err != nil {
		return nil, err
	}

	for i, address := range raw.AddressLookupTableAddresses {
		decoded, err := decodePublicKey(address)
		if err != nil {
			return nil, &DecodeError{
				Group: fieldLookupTableAddresses,
				Index: i,
				Value: address,
				Err:   err,
			}
		}

		if containsPublicKey(route.LookupTables, decoded) {
			continue
		}
		route.LookupTables = append(route.LookupTables, decoded)
	}

	return &route, nil
}

func normalizeGroup(group string, raw []jupiter.Instruction) ([]solana.Instruction, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	res := make([]solana.Instruction, len(raw))
	for i, rawIxn := range raw {
		ixn, err := normalizeInstruction(group, i, rawIxn)
		if err != nil {
			return nil, err
		}
		res[i] = ixn
	}
	return res, nil
}

func normalizeInstruction(group string, index int, raw jupiter.Instruction) (solana.Instruction, error) {
	program, err := decodePublicKey(raw.ProgramID)
	if err != nil {
		return solana.Instruction{}, &DecodeError{
			Group: group,
			Index: index,
			Field: "programId",
			Value: raw.ProgramID,
			Err:   err,
		}
	}

	data, err := base64.StdEncoding.DecodeString(raw.Data)
	if err != nil {
		return solana.Instruction{}, &DecodeError{
			Group: group,
			Index: index,
			Field: "data",
			Value: raw.Data,
			Err:   errors.Wrap(err, "invalid base64 instruction data"),
		}
	}

	accounts := make([]solana.AccountMeta, len(raw.Accounts))
	for i, rawAccount := range raw.Accounts {
		pubkey, err := decodePublicKey(rawAccount.Pubkey)
		if err != nil {
			return solana.Instruction{}, &DecodeError{
				Group: group,
				Index: index,
				Field: fmt.Sprintf("accounts[%d].pubkey", i),
				Value: rawAccount.Pubkey,
				Err:   err,
			}
		}

		accounts[i] = solana.AccountMeta{
			PublicKey:  pubkey,
			IsSigner:   rawAccount.IsSigner,
			IsWritable: rawAccount.IsWritable,
		}
	}

	return solana.NewInstruction(program, data, accounts...), nil
}

func decodePublicKey(value string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(value)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base58 public key")
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid public key length: %d", len(decoded))
	}
	return decoded, nil
}

func containsPublicKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}
