package jupiter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

var nullLiteral = []byte("null")

// InstructionAccount is an account reference as returned by the swap API.
// Keys are base58 encoded and are not validated at this layer.
type InstructionAccount struct {
	Pubkey     string
	IsSigner   bool
	IsWritable bool
}

// Instruction is a raw instruction descriptor as returned by the swap API.
// Data is base64 encoded.
type Instruction struct {
	ProgramID string
	Accounts  []InstructionAccount
	Data      string
}

// InstructionList is a group that the API may return as null, a single
// instruction object, or an array of instruction objects.
type InstructionList []Instruction

// SwapInstructions is the decoded /swap-instructions response.
type SwapInstructions struct {
	TokenLedgerInstruction      *Instruction    `json:"tokenLedgerInstruction"`
	ComputeBudgetInstructions   []Instruction   `json:"computeBudgetInstructions"`
	SetupInstructions           []Instruction   `json:"setupInstructions"`
	SwapInstruction             *Instruction    `json:"swapInstruction"`
	CleanupInstruction          InstructionList `json:"cleanupInstruction"`
	OtherInstructions           []Instruction   `json:"otherInstructions"`
	AddressLookupTableAddresses []string        `json:"addressLookupTableAddresses"`
	ComputeUnitLimit            uint32          `json:"computeUnitLimit"`
	PrioritizationFeeLamports   uint64          `json:"prioritizationFeeLamports"`
}

// FieldError locates a malformed field of a /swap-instructions response.
// Index is the position of the offending instruction within an array field,
// or -1.
type FieldError struct {
	Field string
	Index int
	Err   error
}

func (e *FieldError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid %s[%d]: %v", e.Field, e.Index, e.Err)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ParseSwapInstructions decodes a /swap-instructions response body.
//
// Unknown top level fields are ignored, but instruction objects must carry
// exactly the programId, accounts and data fields. Malformed fields are
// reported as a *FieldError.
func ParseSwapInstructions(body []byte) (*SwapInstructions, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling swap instructions")
	}

	var res SwapInstructions
	var err error

	if res.TokenLedgerInstruction, err = decodeOptionalInstruction(fields, "tokenLedgerInstruction"); err != nil {
		return nil, err
	}
	if res.ComputeBudgetInstructions, err = decodeInstructionArray(fields, "computeBudgetInstructions"); err != nil {
		return nil, err
	}
	if res.SetupInstructions, err = decodeInstructionArray(fields, "setupInstructions"); err != nil {
		return nil, err
	}
	if res.SwapInstruction, err = decodeOptionalInstruction(fields, "swapInstruction"); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "cleanupInstruction", &res.CleanupInstruction); err != nil {
		return nil, err
	}
	if res.OtherInstructions, err = decodeInstructionArray(fields, "otherInstructions"); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "addressLookupTableAddresses", &res.AddressLookupTableAddresses); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "computeUnitLimit", &res.ComputeUnitLimit); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "prioritizationFeeLamports", &res.PrioritizationFeeLamports); err != nil {
		return nil, err
	}

	return &res, nil
}

func decodeField(fields map[string]json.RawMessage, name string, dst interface{}) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &FieldError{Field: name, Index: -1, Err: err}
	}
	return nil
}

func decodeOptionalInstruction(fields map[string]json.RawMessage, name string) (*Instruction, error) {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), nullLiteral) {
		return nil, nil
	}

	var ixn Instruction
	if err := json.Unmarshal(raw, &ixn); err != nil {
		return nil, &FieldError{Field: name, Index: -1, Err: err}
	}
	return &ixn, nil
}

func decodeInstructionArray(fields map[string]json.RawMessage, name string) ([]Instruction, error) {
	var elements []json.RawMessage
	if err := decodeField(fields, name, &elements); err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, nil
	}

	ixns := make([]Instruction, len(elements))
	for i, element := range elements {
		if err := json.Unmarshal(element, &ixns[i]); err != nil {
			return nil, &FieldError{Field: name, Index: i, Err: err}
		}
	}
	return ixns, nil
}

type jsonInstructionAccount struct {
	Pubkey     *string `json:"pubkey"`
	IsSigner   *bool   `json:"isSigner"`
	IsWritable *bool   `json:"isWritable"`
}

type jsonInstruction struct {
	ProgramId *string               `json:"programId"`
	Accounts  *[]InstructionAccount `json:"accounts"`
	Data      *string               `json:"data"`
}

func (a *InstructionAccount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), nullLiteral) {
		return errors.New("instruction account cannot be null")
	}

	var raw jsonInstructionAccount
	if err := strictUnmarshal(b, &raw); err != nil {
		return errors.Wrap(err, "invalid instruction account")
	}

	switch {
	case raw.Pubkey == nil:
		return errors.New("instruction account missing pubkey")
	case raw.IsSigner == nil:
		return errors.New("instruction account missing isSigner")
	case raw.IsWritable == nil:
		return errors.New("instruction account missing isWritable")
	}

	*a = InstructionAccount{
		Pubkey:     *raw.Pubkey,
		IsSigner:   *raw.IsSigner,
		IsWritable: *raw.IsWritable,
	}
	return nil
}

func (a InstructionAccount) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonInstructionAccount{
		Pubkey:     &a.Pubkey,
		IsSigner:   &a.IsSigner,
		IsWritable: &a.IsWritable,
	})
}

func (i *Instruction) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), nullLiteral) {
		return errors.New("instruction cannot be null")
	}

	var raw jsonInstruction
	if err := strictUnmarshal(b, &raw); err != nil {
		return errors.Wrap(err, "invalid instruction")
	}

	switch {
	case raw.ProgramId == nil:
		return errors.New("instruction missing programId")
	case raw.Accounts == nil:
		return errors.New("instruction missing accounts")
	case raw.Data == nil:
		return errors.New("instruction missing data")
	}

	*i = Instruction{
		ProgramID: *raw.ProgramId,
		Accounts:  *raw.Accounts,
		Data:      *raw.Data,
	}
	return nil
}

func (i Instruction) MarshalJSON() ([]byte, error) {
	accounts := i.Accounts
	if accounts == nil {
		accounts = []InstructionAccount{}
	}

	return json.Marshal(jsonInstruction{
		ProgramId: &i.ProgramID,
		Accounts:  &accounts,
		Data:      &i.Data,
	})
}

func (l *InstructionList) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return errors.New("empty instruction list")
	}

	switch trimmed[0] {
	case 'n':
		if !bytes.Equal(trimmed, nullLiteral) {
			return errors.New("invalid instruction list")
		}
		*l = nil
	case '{':
		var ixn Instruction
		if err := json.Unmarshal(trimmed, &ixn); err != nil {
			return err
		}
		*l = InstructionList{ixn}
	case '[':
		var ixns []Instruction
		if err := json.Unmarshal(trimmed, &ixns); err != nil {
			return err
		}
		*l = ixns
	default:
		return errors.Errorf("instruction list must be null, an object or an array: %s", trimmed)
	}

	return nil
}

func strictUnmarshal(b []byte, v interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
