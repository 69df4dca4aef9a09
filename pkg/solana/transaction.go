package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232

	// MaxAccountKeys is the number of accounts a compiled message can address,
	// static and loaded combined, since compiled instructions use u8 indexes.
	MaxAccountKeys = 256
)

var (
	ErrTooManyAccountKeys = errors.New("too many account keys")
	ErrMissingSignature   = errors.New("missing required signature")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

type MessageVersion uint8

const (
	MessageVersionLegacy MessageVersion = iota
	MessageVersion0
)

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

type MessageAddressTableLookup struct {
	PublicKey       ed25519.PublicKey
	WritableIndexes []byte
	ReadonlyIndexes []byte
}

type Message struct {
	Version             MessageVersion
	Header              Header
	Accounts            []ed25519.PublicKey
	RecentBlockhash     Blockhash
	Instructions        []CompiledInstruction
	AddressTableLookups []MessageAddressTableLookup
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewV0Transaction compiles the instructions into a v0 message paid for by
// payer. Accounts that are neither the payer, a signer, nor a program are
// loaded from the first lookup table (ordered by table address) containing
// them. The result is deterministic for a given set of inputs.
func NewV0Transaction(payer ed25519.PublicKey, addressLookupTables []AddressLookupTable, instructions []Instruction) (Transaction, error) {
	accounts := []AccountMeta{
		{
			PublicKey:  payer,
			IsSigner:   true,
			IsWritable: true,
			isPayer:    true,
		},
	}

	// Extract all of the unique accounts from the instructions.
	for _, i := range instructions {
		accounts = append(accounts, AccountMeta{
			PublicKey: i.Program,
			isProgram: true,
		})
		accounts = append(accounts, i.Accounts...)
	}

	// Sort the account meta's based on:
	//   1. Payer is always the first account / signer.
	//   2. All signers are before non-signers.
	//   3. Writable accounts before read-only accounts.
	//   4. Programs last within each of the above
	accounts = filterUnique(accounts)
	sort.Sort(SortableAccountMeta(accounts))

	// Sort address tables to guarantee consistent marshalling
	sortedAddressLookupTables := make([]AddressLookupTable, len(addressLookupTables))
	copy(sortedAddressLookupTables, addressLookupTables)
	sort.Stable(SortableAddressLookupTables(sortedAddressLookupTables))

	writableAddressTableIndexes := make([][]byte, len(sortedAddressLookupTables))
	readonlyAddressTableIndexes := make([][]byte, len(sortedAddressLookupTables))

	m := Message{
		Version: MessageVersion0,
	}
	for _, account := range accounts {
		if !account.isPayer && !account.IsSigner && !account.isProgram {
			tableIndex, entryIndex := findInAddressLookupTables(sortedAddressLookupTables, account.PublicKey)
			if tableIndex >= 0 {
				if account.IsWritable {
					writableAddressTableIndexes[tableIndex] = append(writableAddressTableIndexes[tableIndex], byte(entryIndex))
				} else {
					readonlyAddressTableIndexes[tableIndex] = append(readonlyAddressTableIndexes[tableIndex], byte(entryIndex))
				}
				continue
			}
		}

		// Otherwise, the account is defined statically
		m.Accounts = append(m.Accounts, account.PublicKey)

		if account.IsSigner {
			m.Header.NumSignatures++

			if !account.IsWritable {
				m.Header.NumReadonlySigned++
			}
		} else if !account.IsWritable {
			m.Header.NumReadOnly++
		}
	}

	// Consolidate static and dynamically loaded accounts into an ordered list,
	// which is used for index references encoded in the message
	allAccounts := make([]ed25519.PublicKey, 0, len(accounts))
	allAccounts = append(allAccounts, m.Accounts...)
	for i, indexes := range writableAddressTableIndexes {
		for _, index := range indexes {
			allAccounts = append(allAccounts, sortedAddressLookupTables[i].Addresses[index])
		}
	}
	for i, indexes := range readonlyAddressTableIndexes {
		for _, index := range indexes {
			allAccounts = append(allAccounts, sortedAddressLookupTables[i].Addresses[index])
		}
	}
	if len(allAccounts) > MaxAccountKeys {
		return Transaction{}, errors.Wrapf(ErrTooManyAccountKeys, "%d > %d", len(allAccounts), MaxAccountKeys)
	}

	// Generate the compiled instruction, which uses indices instead
	// of raw account keys.
	for _, i := range instructions {
		c := CompiledInstruction{
			ProgramIndex: byte(indexOf(allAccounts, i.Program)),
			Data:         i.Data,
		}

		for _, a := range i.Accounts {
			c.Accounts = append(c.Accounts, byte(indexOf(allAccounts, a.PublicKey)))
		}

		m.Instructions = append(m.Instructions, c)
	}

	// Generate the compiled message address table lookups
	for i, addressLookupTable := range sortedAddressLookupTables {
		if len(writableAddressTableIndexes[i]) == 0 && len(readonlyAddressTableIndexes[i]) == 0 {
			continue
		}

		m.AddressTableLookups = append(m.AddressTableLookups, MessageAddressTableLookup{
			PublicKey:       addressLookupTable.PublicKey,
			WritableIndexes: writableAddressTableIndexes[i],
			ReadonlyIndexes: readonlyAddressTableIndexes[i],
		})
	}

	for i := range m.Accounts {
		if len(m.Accounts[i]) == 0 {
			m.Accounts[i] = make([]byte, ed25519.PublicKeySize)
		}
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}, nil
}

func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

// Size is the length of the serialized transaction, signatures included.
func (t *Transaction) Size() int {
	return len(t.Marshal())
}

func (t *Transaction) String() string {
	var sb strings.Builder
	sb.WriteString("Signatures:\n")
	for i, s := range t.Signatures {
		sb.WriteString(fmt.Sprintf("  %d: %s\n", i, base58.Encode(s[:])))
	}
	sb.WriteString("Message:\n")
	sb.WriteString(fmt.Sprintf("  Version: %s\n", t.Message.Version.String()))
	sb.WriteString("  Header:\n")
	sb.WriteString(fmt.Sprintf("    NumSignatures: %d\n", t.Message.Header.NumSignatures))
	sb.WriteString(fmt.Sprintf("    NumReadOnly: %d\n", t.Message.Header.NumReadOnly))
	sb.WriteString(fmt.Sprintf("    NumReadOnlySigned: %d\n", t.Message.Header.NumReadonlySigned))
	sb.WriteString("  Static Accounts:\n")
	for i, a := range t.Message.Accounts {
		sb.WriteString(fmt.Sprintf("    %d: %s\n", i, base58.Encode(a)))
	}
	sb.WriteString("  Instructions:\n")
	for i := range t.Message.Instructions {
		sb.WriteString(fmt.Sprintf("    %d:\n", i))
		sb.WriteString(fmt.Sprintf("      ProgramIndex: %d\n", t.Message.Instructions[i].ProgramIndex))
		sb.WriteString(fmt.Sprintf("      Accounts: %v\n", t.Message.Instructions[i].Accounts))
		sb.WriteString(fmt.Sprintf("      Data: %v\n", t.Message.Instructions[i].Data))
	}
	if len(t.Message.AddressTableLookups) > 0 {
		sb.WriteString("  Address Table Lookups:\n")
		for i := range t.Message.AddressTableLookups {
			sb.WriteString(fmt.Sprintf("    %s:\n", base58.Encode(t.Message.AddressTableLookups[i].PublicKey)))
			sb.WriteString(fmt.Sprintf("      Writable Indexes: %v\n", t.Message.AddressTableLookups[i].WritableIndexes))
			sb.WriteString(fmt.Sprintf("      Readonly Indexes: %v\n", t.Message.AddressTableLookups[i].ReadonlyIndexes))
		}
	}
	return sb.String()
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	messageBytes := t.Message.Marshal()

	for _, s := range signers {
		pub := s.Public().(ed25519.PublicKey)
		index := indexOf(t.Message.Accounts, pub)
		if index < 0 {
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		}
		if index >= len(t.Signatures) {
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		}

		copy(t.Signatures[index][:], ed25519.Sign(s, messageBytes))
	}

	return nil
}

// MissingSigners returns the required signers whose signature slot is still
// empty.
func (t *Transaction) MissingSigners() []ed25519.PublicKey {
	var missing []ed25519.PublicKey
	for i := range t.Signatures {
		if t.Signatures[i] == (Signature{}) && i < len(t.Message.Accounts) {
			missing = append(missing, t.Message.Accounts[i])
		}
	}
	return missing
}

// NumLoadedAccounts is the number of accounts referenced through address
// lookup tables.
func (m Message) NumLoadedAccounts() (writable int, readonly int) {
	for _, lookup := range m.AddressTableLookups {
		writable += len(lookup.WritableIndexes)
		readonly += len(lookup.ReadonlyIndexes)
	}
	return writable, readonly
}

// IsSigner reports whether the account at the given compiled index is a
// signer. Loaded accounts are never signers.
func (m Message) IsSigner(index int) bool {
	return index >= 0 && index < int(m.Header.NumSignatures)
}

// IsWritable reports whether the account at the given compiled index is
// writable, covering both static and loaded accounts.
func (m Message) IsWritable(index int) bool {
	numStatic := len(m.Accounts)
	if index < 0 {
		return false
	}
	if index < numStatic {
		if index < int(m.Header.NumSignatures) {
			return index < int(m.Header.NumSignatures-m.Header.NumReadonlySigned)
		}
		return index < numStatic-int(m.Header.NumReadOnly)
	}

	writable, _ := m.NumLoadedAccounts()
	return index < numStatic+writable
}

// AccountKeys expands the full ordered account list the compiled
// instructions index into, using the provided tables to resolve loaded
// accounts.
func (m Message) AccountKeys(addressLookupTables []AddressLookupTable) ([]ed25519.PublicKey, error) {
	tables := make(map[string]AddressLookupTable, len(addressLookupTables))
	for _, table := range addressLookupTables {
		tables[string(table.PublicKey)] = table
	}

	resolve := func(pick func(MessageAddressTableLookup) []byte) ([]ed25519.PublicKey, error) {
		var keys []ed25519.PublicKey
		for _, lookup := range m.AddressTableLookups {
			table, ok := tables[string(lookup.PublicKey)]
			if !ok {
				return nil, errors.Errorf("address lookup table %s not provided", base58.Encode(lookup.PublicKey))
			}
			for _, index := range pick(lookup) {
				if int(index) >= len(table.Addresses) {
					return nil, errors.Errorf("index %d out of range for address lookup table %s", index, base58.Encode(lookup.PublicKey))
				}
				keys = append(keys, table.Addresses[index])
			}
		}
		return keys, nil
	}

	writable, err := resolve(func(l MessageAddressTableLookup) []byte { return l.WritableIndexes })
	if err != nil {
		return nil, err
	}
	readonly, err := resolve(func(l MessageAddressTableLookup) []byte { return l.ReadonlyIndexes })
	if err != nil {
		return nil, err
	}

	keys := make([]ed25519.PublicKey, 0, len(m.Accounts)+len(writable)+len(readonly))
	keys = append(keys, m.Accounts...)
	keys = append(keys, writable...)
	keys = append(keys, readonly...)
	return keys, nil
}

func findInAddressLookupTables(tables []AddressLookupTable, address ed25519.PublicKey) (int, int) {
	for i, table := range tables {
		if j := table.IndexOf(address); j >= 0 {
			return i, j
		}
	}
	return -1, -1
}

func filterUnique(accounts []AccountMeta) []AccountMeta {
	filtered := make([]AccountMeta, 0, len(accounts))

	for i := range accounts {
		for j := range filtered {
			// If we've already seen the account before, then we should check to
			// see if we should promote any of the permissions.
			if bytes.Equal(accounts[i].PublicKey, filtered[j].PublicKey) {
				if accounts[i].IsSigner {
					filtered[j].IsSigner = true
				}
				if accounts[i].IsWritable {
					filtered[j].IsWritable = true
				}
				if accounts[i].isPayer {
					filtered[j].isPayer = true
				}
				if accounts[i].isProgram {
					filtered[j].isProgram = true
				}

				goto next
			}
		}

		filtered = append(filtered, accounts[i])
	next:
	}

	return filtered
}

func indexOf(slice []ed25519.PublicKey, item ed25519.PublicKey) int {
	for i, val := range slice {
		if bytes.Equal(val, item) {
			return i
		}
	}

	return -1
}

func (v MessageVersion) String() string {
	switch v {
	case MessageVersionLegacy:
		return "legacy"
	case MessageVersion0:
		return "v0"
	}
	return "unknown"
}
