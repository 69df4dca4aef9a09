package swap

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/metrics"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
	address_lookup_table "github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/addresslookuptable"
)

const (
	DefaultLookupTableConcurrency = 8

	lookupTableSourceMetricsStructName = "swap.rpc_lookup_table_source"
	lookupTablesResolvedMetricName     = "CpiSwap.LookupTablesResolved"
)

// LookupTableSource resolves address lookup table state by address. A table
// that does not exist must be reported as a *LookupTableNotFoundError.
type LookupTableSource interface {
	GetAddressLookupTable(ctx context.Context, address ed25519.PublicKey) (solana.AddressLookupTable, error)
}

// ResolveLookupTables resolves every address concurrently with the default
// concurrency limit. See ResolveLookupTablesWithLimit.
func ResolveLookupTables(ctx context.Context, source LookupTableSource, addresses []ed25519.PublicKey) ([]solana.AddressLookupTable, error) {
	return ResolveLookupTablesWithLimit(ctx, source, addresses, DefaultLookupTableConcurrency)
}

// ResolveLookupTablesWithLimit resolves every address, issuing at most limit
// fetches at a time. Resolution is all-or-nothing: the first failure cancels
// the remaining fetches and no tables are returned. Tables are returned in
// request order.
func ResolveLookupTablesWithLimit(ctx context.Context, source LookupTableSource, addresses []ed25519.PublicKey, limit int) ([]solana.AddressLookupTable, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	tables := make([]solana.AddressLookupTable, len(addresses))

	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, address := range addresses {
		i, address := i, address
		g.Go(func() error {
			// Skip fetches that were queued behind the limit after a failure
			if err := gCtx.Err(); err != nil {
				return err
			}

			table, err := source.GetAddressLookupTable(gCtx, address)
			if err != nil {
				var notFound *LookupTableNotFoundError
				if errors.As(err, &notFound) {
					return notFound
				}
				return errors.Wrapf(err, "error resolving address lookup table %s", base58.Encode(address))
			}

			table.PublicKey = address
			tables[i] = table
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.RecordCount(ctx, lookupTablesResolvedMetricName, uint64(len(tables)))
	return tables, nil
}

// LookupTablesByAddress indexes tables by their base58 encoded address.
func LookupTablesByAddress(tables []solana.AddressLookupTable) map[string]solana.AddressLookupTable {
	res := make(map[string]solana.AddressLookupTable, len(tables))
	for _, table := range tables {
		res[base58.Encode(table.PublicKey)] = table
	}
	return res
}

// AccountInfoGetter is the subset of the RPC client used to read lookup
// table accounts.
type AccountInfoGetter interface {
	GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment solana.Commitment) (solana.AccountInfo, error)
}

type rpcLookupTableSource struct {
	log        *logrus.Entry
	client     AccountInfoGetter
	commitment solana.Commitment
}

// NewRPCLookupTableSource returns a LookupTableSource that reads table state
// with getAccountInfo.
func NewRPCLookupTableSource(client AccountInfoGetter, commitment solana.Commitment) LookupTableSource {
	return &rpcLookupTableSource{
		log:        logrus.StandardLogger().WithField("type", "swap/rpc_lookup_table_source"),
		client:     client,
		commitment: commitment,
	}
}

func (s *rpcLookupTableSource) GetAddressLookupTable(ctx context.Context, address ed25519.PublicKey) (solana.AddressLookupTable, error) {
	tracer := metrics.TraceMethodCall(ctx, lookupTableSourceMetricsStructName, "GetAddressLookupTable")
	defer tracer.End()

	log := s.log.WithField("address", base58.Encode(address))

	info, err := s.client.GetAccountInfo(ctx, address, s.commitment)
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return solana.AddressLookupTable{}, &LookupTableNotFoundError{Address: address}
	} else if err != nil {
		tracer.OnError(err)
		return solana.AddressLookupTable{}, err
	}

	if !bytes.Equal(info.Owner, address_lookup_table.ProgramKey) {
		return solana.AddressLookupTable{}, &LookupTableNotFoundError{
			Address: address,
			Reason:  "account is not owned by the address lookup table program",
		}
	}

	var account address_lookup_table.AddressLookupTableAccount
	if err := account.Unmarshal(info.Data); err != nil {
		return solana.AddressLookupTable{}, &LookupTableNotFoundError{
			Address: address,
			Reason:  err.Error(),
		}
	}

	if !account.IsActive() {
		log.WithField("deactivation_slot", account.DeactivationSlot).Warn("address lookup table is deactivating")
	}

	return account.ToAddressLookupTable(address), nil
}
