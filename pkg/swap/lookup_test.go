package swap

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
	address_lookup_table "github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/addresslookuptable"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/testutil"
)

func TestResolveLookupTables_Empty(t *testing.T) {
	source := newMemoryLookupTableSource()

	tables, err := ResolveLookupTables(context.Background(), source, nil)
	require.NoError(t, err)
	assert.Empty(t, tables)
	assert.EqualValues(t, 0, source.calls.Load())
}

func TestResolveLookupTables_RequestOrder(t *testing.T) {
	var tables []solana.AddressLookupTable
	var addresses []ed25519.PublicKey
	for i := 0; i < 5; i++ {
		table := testutil.GenerateAddressLookupTable(t, testutil.GenerateSolanaKeys(t, i+1)...)
		tables = append(tables, table)
		addresses = append(addresses, table.PublicKey)
	}

	source := newMemoryLookupTableSource(tables...)
	source.delay = 5 * time.Millisecond

	resolved, err := ResolveLookupTables(context.Background(), source, addresses)
	require.NoError(t, err)
	require.Len(t, resolved, len(tables))
	for i := range tables {
		assert.EqualValues(t, tables[i].PublicKey, resolved[i].PublicKey)
		assert.Len(t, resolved[i].Addresses, i+1)
	}
	assert.EqualValues(t, len(tables), source.calls.Load())
}

func TestResolveLookupTables_AllOrNothing(t *testing.T) {
	found := testutil.GenerateAddressLookupTable(t, testutil.GenerateSolanaKeys(t, 3)...)
	missing := testutil.GenerateSolanaKeys(t, 1)[0]

	source := newMemoryLookupTableSource(found)

	resolved, err := ResolveLookupTables(context.Background(), source, []ed25519.PublicKey{found.PublicKey, missing})
	assert.Nil(t, resolved)

	var notFound *LookupTableNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.EqualValues(t, missing, notFound.Address)
}

func TestResolveLookupTables_TransportError(t *testing.T) {
	table := testutil.GenerateAddressLookupTable(t, testutil.GenerateSolanaKeys(t, 1)...)
	transportErr := errors.New("connection reset")

	source := newMemoryLookupTableSource(table)
	source.setError(table.PublicKey, transportErr)

	resolved, err := ResolveLookupTables(context.Background(), source, []ed25519.PublicKey{table.PublicKey})
	assert.Nil(t, resolved)
	assert.ErrorIs(t, err, transportErr)
	assert.Contains(t, err.Error(), base58.Encode(table.PublicKey))
}

func TestResolveLookupTables_ConcurrencyLimit(t *testing.T) {
	var tables []solana.AddressLookupTable
	var addresses []ed25519.PublicKey
	for i := 0; i < 12; i++ {
		table := testutil.GenerateAddressLookupTable(t, testutil.GenerateSolanaKeys(t, 1)...)
		tables = append(tables, table)
		addresses = append(addresses, table.PublicKey)
	}

	source := newMemoryLookupTableSource(tables...)
	source.delay = 10 * time.Millisecond

	resolved, err := ResolveLookupTablesWithLimit(context.Background(), source, addresses, 3)
	require.NoError(t, err)
	assert.Len(t, resolved, len(tables))
	assert.LessOrEqual(t, source.peak.Load(), int32(3))
	assert.EqualValues(t, len(tables), source.calls.Load())
}

func TestResolveLookupTables_Cancelled(t *testing.T) {
	table := testutil.GenerateAddressLookupTable(t, testutil.GenerateSolanaKeys(t, 1)...)

	source := newMemoryLookupTableSource(table)
	source.delay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = testutil.WaitFor(time.Second, time.Millisecond, func() bool {
			return source.inFlight.Load() > 0
		})
		cancel()
	}()

	start := time.Now()
	resolved, err := ResolveLookupTables(ctx, source, []ed25519.PublicKey{table.PublicKey})
	assert.Nil(t, resolved)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLookupTablesByAddress(t *testing.T) {
	tables := []solana.AddressLookupTable{
		testutil.GenerateAddressLookupTable(t),
		testutil.GenerateAddressLookupTable(t),
	}

	indexed := LookupTablesByAddress(tables)
	require.Len(t, indexed, 2)
	for _, table := range tables {
		assert.EqualValues(t, table.PublicKey, indexed[base58.Encode(table.PublicKey)].PublicKey)
	}
}

type memoryAccountInfoGetter struct {
	accounts map[string]solana.AccountInfo
	err      error
}

func (g *memoryAccountInfoGetter) GetAccountInfo(_ context.Context, account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	if g.err != nil {
		return solana.AccountInfo{}, g.err
	}

	info, ok := g.accounts[base58.Encode(account)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	return info, nil
}

func encodeLookupTableAccount(deactivationSlot uint64, addresses ...ed25519.PublicKey) []byte {
	data := make([]byte, 56+len(addresses)*ed25519.PublicKeySize)
	binary.LittleEndian.PutUint32(data, 1)
	binary.LittleEndian.PutUint64(data[4:], deactivationSlot)
	for i, address := range addresses {
		copy(data[56+i*ed25519.PublicKeySize:], address)
	}
	return data
}

func TestRPCLookupTableSource(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 8)
	active, deactivating, wrongOwner, malformed, missing := keys[0], keys[1], keys[2], keys[3], keys[4]
	entries := keys[5:]

	getter := &memoryAccountInfoGetter{
		accounts: map[string]solana.AccountInfo{
			base58.Encode(active): {
				Owner: address_lookup_table.ProgramKey,
				Data:  encodeLookupTableAccount(math.MaxUint64, entries...),
			},
			base58.Encode(deactivating): {
				Owner: address_lookup_table.ProgramKey,
				Data:  encodeLookupTableAccount(100, entries[0]),
			},
			base58.Encode(wrongOwner): {
				Owner: testutil.GenerateSolanaKeys(t, 1)[0],
				Data:  encodeLookupTableAccount(math.MaxUint64, entries...),
			},
			base58.Encode(malformed): {
				Owner: address_lookup_table.ProgramKey,
				Data:  []byte{1, 0, 0, 0},
			},
		},
	}
	source := NewRPCLookupTableSource(getter, solana.CommitmentConfirmed)

	table, err := source.GetAddressLookupTable(context.Background(), active)
	require.NoError(t, err)
	assert.EqualValues(t, active, table.PublicKey)
	require.Len(t, table.Addresses, len(entries))
	for i := range entries {
		assert.EqualValues(t, entries[i], table.Addresses[i])
	}

	table, err = source.GetAddressLookupTable(context.Background(), deactivating)
	require.NoError(t, err)
	assert.Len(t, table.Addresses, 1)

	for _, address := range []ed25519.PublicKey{wrongOwner, malformed, missing} {
		_, err := source.GetAddressLookupTable(context.Background(), address)

		var notFound *LookupTableNotFoundError
		require.True(t, errors.As(err, &notFound), "unexpected error: %v", err)
		assert.EqualValues(t, address, notFound.Address)
	}

	transportErr := errors.New("timeout")
	getter.err = transportErr
	_, err = source.GetAddressLookupTable(context.Background(), active)
	assert.Equal(t, transportErr, err)
}
