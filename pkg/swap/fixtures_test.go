package swap

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/jupiter"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
	compute_budget "github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/computebudget"
	cpi_swap "github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/cpiswap"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/testutil"
)

// routeFixture is a route built from known instructions, so decoded output
// can be compared against its source.
type routeFixture struct {
	computeBudget []solana.Instruction
	setup         []solana.Instruction
	swap          solana.Instruction
	cleanup       []solana.Instruction
	other         []solana.Instruction
	tables        []ed25519.PublicKey

	// vault is the user the route was quoted for. The route marks it as a
	// signer of the swap instruction.
	vault ed25519.PublicKey
}

func newRouteFixture(t *testing.T, setupCount, swapAccountCount int) *routeFixture {
	return newRouteFixtureForProgram(t, cpi_swap.PROGRAM_ID, setupCount, swapAccountCount)
}

func newRouteFixtureForProgram(t *testing.T, program ed25519.PublicKey, setupCount, swapAccountCount int) *routeFixture {
	vault, _, err := cpi_swap.GetVaultAddress(program)
	require.NoError(t, err)

	f := &routeFixture{
		computeBudget: []solana.Instruction{compute_budget.SetComputeUnitLimit(200_000)},
	}

	for i := 0; i < setupCount; i++ {
		keys := testutil.GenerateSolanaKeys(t, 2)
		f.setup = append(f.setup, solana.NewInstruction(
			keys[0],
			[]byte{1, byte(i)},
			solana.NewAccountMeta(keys[1], false),
		))
	}

	swapAccounts := make([]solana.AccountMeta, swapAccountCount)
	for i, key := range testutil.GenerateSolanaKeys(t, swapAccountCount) {
		swapAccounts[i] = solana.AccountMeta{
			PublicKey:  key,
			IsWritable: i%2 == 0,
		}
	}
	// Routes mark the user as a signer. The vault cannot sign the outer
	// transaction, so this must never survive resolution.
	swapAccounts[0] = solana.AccountMeta{PublicKey: vault, IsSigner: true}
	f.vault = vault

	f.swap = solana.NewInstruction(cpi_swap.JUPITER_PROGRAM_ID, []byte{0xe5, 0x17, 0xcb, 0x97, 0x7a, 0xe3, 0xad, 0x2a, 1, 2, 3}, swapAccounts...)
	return f
}

func (f *routeFixture) descriptor() *jupiter.SwapInstructions {
	swapIxn := toDescriptor(f.swap)

	tables := make([]string, len(f.tables))
	for i, table := range f.tables {
		tables[i] = base58.Encode(table)
	}

	return &jupiter.SwapInstructions{
		ComputeBudgetInstructions:   toDescriptors(f.computeBudget),
		SetupInstructions:           toDescriptors(f.setup),
		SwapInstruction:             &swapIxn,
		CleanupInstruction:          toDescriptors(f.cleanup),
		OtherInstructions:           toDescriptors(f.other),
		AddressLookupTableAddresses: tables,
	}
}

func toDescriptors(ixns []solana.Instruction) []jupiter.Instruction {
	if len(ixns) == 0 {
		return nil
	}

	res := make([]jupiter.Instruction, len(ixns))
	for i, ixn := range ixns {
		res[i] = toDescriptor(ixn)
	}
	return res
}

func toDescriptor(ixn solana.Instruction) jupiter.Instruction {
	accounts := make([]jupiter.InstructionAccount, len(ixn.Accounts))
	for i, account := range ixn.Accounts {
		accounts[i] = jupiter.InstructionAccount{
			Pubkey:     base58.Encode(account.PublicKey),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return jupiter.Instruction{
		ProgramID: base58.Encode(ixn.Program),
		Accounts:  accounts,
		Data:      base64.StdEncoding.EncodeToString(ixn.Data),
	}
}

// memoryLookupTableSource serves tables from memory and counts fetches.
type memoryLookupTableSource struct {
	mu     sync.Mutex
	tables map[string]solana.AddressLookupTable
	errs   map[string]error
	delay  time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newMemoryLookupTableSource(tables ...solana.AddressLookupTable) *memoryLookupTableSource {
	s := &memoryLookupTableSource{
		tables: make(map[string]solana.AddressLookupTable),
		errs:   make(map[string]error),
	}
	for _, table := range tables {
		s.tables[base58.Encode(table.PublicKey)] = table
	}
	return s
}

func (s *memoryLookupTableSource) setError(address ed25519.PublicKey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[base58.Encode(address)] = err
}

func (s *memoryLookupTableSource) GetAddressLookupTable(ctx context.Context, address ed25519.PublicKey) (solana.AddressLookupTable, error) {
	s.calls.Add(1)

	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return solana.AddressLookupTable{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := base58.Encode(address)
	if err, ok := s.errs[key]; ok {
		return solana.AddressLookupTable{}, err
	}

	table, ok := s.tables[key]
	if !ok {
		return solana.AddressLookupTable{}, &LookupTableNotFoundError{Address: address}
	}
	return table, nil
}

// fakeLedger stands in for the RPC node: it serves blockhashes, simulates
// and records submissions.
type fakeLedger struct {
	mu sync.Mutex

	blockhashes      []solana.Blockhash
	blockhashCalls   int
	invalidations    int
	simulations      []solana.Transaction
	simulationResult *solana.SimulationResult
	submissions      []solana.Transaction
	submitErrs       []error
}

func (l *fakeLedger) GetLatestBlockhash(_ context.Context) (solana.Blockhash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.blockhashCalls
	if i >= len(l.blockhashes) {
		i = len(l.blockhashes) - 1
	}
	l.blockhashCalls++
	return l.blockhashes[i], nil
}

func (l *fakeLedger) InvalidateBlockhash() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invalidations++
}

func (l *fakeLedger) SimulateTransaction(_ context.Context, txn solana.Transaction, _ solana.Commitment) (*solana.SimulationResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.simulations = append(l.simulations, txn)
	return l.simulationResult, nil
}

func (l *fakeLedger) SubmitTransaction(_ context.Context, txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := len(l.submissions)
	l.submissions = append(l.submissions, txn)
	if i < len(l.submitErrs) && l.submitErrs[i] != nil {
		return txn.Signatures[0], l.submitErrs[i]
	}
	return txn.Signatures[0], nil
}
