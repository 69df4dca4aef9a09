package swap

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/jupiter"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/metrics"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/retry"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/retry/backoff"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
	compute_budget "github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/computebudget"
)

const (
	assemblerMetricsStructName = "swap.assembler"

	assemblyDurationMetricName = "CpiSwap.AssemblyDuration"
	assemblyEventName          = "CpiSwapAssembly"
)

// blockhashInvalidator is implemented by blockhash sources that cache, so a
// retry after expiry observes a fresh blockhash.
type blockhashInvalidator interface {
	InvalidateBlockhash()
}

// Request is a single swap to assemble.
type Request struct {
	// Route is the decoded /swap-instructions response, quoted with the
	// vault as the user.
	Route *jupiter.SwapInstructions

	// Payer pays fees and rent, and is the first signer.
	Payer ed25519.PrivateKey

	// AdditionalSigners are any other keys the route's setup or cleanup
	// instructions require signatures from.
	AdditionalSigners []ed25519.PrivateKey

	// Program overrides the configured CPI swap program. Route must have
	// been quoted for this program's vault.
	Program ed25519.PublicKey

	InputMint         ed25519.PublicKey
	InputMintProgram  ed25519.PublicKey
	OutputMint        ed25519.PublicKey
	OutputMintProgram ed25519.PublicKey
}

// Result is the outcome of an assembled, and possibly submitted, swap.
type Result struct {
	Signature   solana.Signature
	Transaction *solana.Transaction

	// ComputeUnitLimit is the simulated limit set on the transaction, or 0
	// when simulation is disabled.
	ComputeUnitLimit uint32

	// Attempts is the number of compilations performed. It exceeds 1 only
	// when a submission was retried after blockhash expiry.
	Attempts uint
}

// Assembler turns Jupiter routes into signed CPI swap transactions and
// submits them. It is safe for concurrent use.
type Assembler struct {
	log  *logrus.Entry
	conf *conf

	tables      LookupTableSource
	blockhashes BlockhashSource
	simulator   Simulator
	submitter   Submitter
}

// NewAssembler returns an Assembler over the provided collaborators. The
// simulator is only required when compute unit simulation is enabled.
func NewAssembler(
	tables LookupTableSource,
	blockhashes BlockhashSource,
	simulator Simulator,
	submitter Submitter,
	configProvider ConfigProvider,
) *Assembler {
	return &Assembler{
		log:         logrus.StandardLogger().WithField("type", "swap/assembler"),
		conf:        configProvider(),
		tables:      tables,
		blockhashes: blockhashes,
		simulator:   simulator,
		submitter:   submitter,
	}
}

// NewRPCAssembler returns an Assembler where every collaborator is backed by
// the provided RPC client.
func NewRPCAssembler(client solana.Client, configProvider ConfigProvider) *Assembler {
	a := NewAssembler(nil, client, client, client, configProvider)
	a.tables = NewRPCLookupTableSource(client, a.commitment(context.Background()))
	return a
}

type prepared struct {
	plan   *Plan
	tables []solana.AddressLookupTable
}

// Assemble compiles and signs the swap without submitting it.
func (a *Assembler) Assemble(ctx context.Context, req *Request) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, assemblerMetricsStructName, "Assemble")
	defer tracer.End()

	log := a.log.WithFields(logrus.Fields{
		"method":  "Assemble",
		"swap_id": uuid.New().String(),
	})

	ctx, cancel := context.WithTimeout(ctx, a.conf.assemblyTimeout.Get(ctx))
	defer cancel()

	p, err := a.prepare(ctx, log, req)
	if err != nil {
		log.WithError(err).Warn("failure preparing swap")
		tracer.OnError(err)
		return nil, err
	}

	txn, computeUnitLimit, err := a.build(ctx, log, req, p)
	if err != nil {
		log.WithError(err).Warn("failure building swap transaction")
		tracer.OnError(err)
		return nil, err
	}

	return &Result{
		Signature:        txn.Signatures[0],
		Transaction:      txn,
		ComputeUnitLimit: computeUnitLimit,
		Attempts:         1,
	}, nil
}

// Execute assembles, signs and submits the swap. When configured, a
// submission rejected for an expired blockhash is recompiled against a fresh
// blockhash and resubmitted. No other failure is retried.
func (a *Assembler) Execute(ctx context.Context, req *Request) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, assemblerMetricsStructName, "Execute")
	defer tracer.End()

	swapID := uuid.New().String()
	log := a.log.WithFields(logrus.Fields{
		"method":  "Execute",
		"swap_id": swapID,
	})

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.conf.assemblyTimeout.Get(ctx))
	defer cancel()

	result, err := a.execute(ctx, log, req)
	a.recordOutcome(ctx, swapID, start, result, err)
	if err != nil {
		log.WithError(err).Warn("failure executing swap")
		tracer.OnError(err)
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"signature": result.Signature.String(),
		"attempts":  result.Attempts,
	}).Info("swap submitted")

	return result, nil
}

func (a *Assembler) execute(ctx context.Context, log *logrus.Entry, req *Request) (*Result, error) {
	p, err := a.prepare(ctx, log, req)
	if err != nil {
		return nil, err
	}

	commitment := a.commitment(ctx)
	retries := a.conf.blockhashExpiryRetries.Get(ctx)
	delay := a.conf.blockhashExpiryRetryDelay.Get(ctx)

	var result *Result
	attempts, err := retry.Retry(
		func() error {
			txn, computeUnitLimit, err := a.build(ctx, log, req, p)
			if err != nil {
				return err
			}

			sig, err := Submit(ctx, a.submitter, txn, commitment)
			if err != nil {
				var expired *BlockhashExpiredError
				if errors.As(err, &expired) {
					log.WithField("blockhash", expired.Blockhash.String()).Info("blockhash expired")
					if invalidator, ok := a.blockhashes.(blockhashInvalidator); ok {
						invalidator.InvalidateBlockhash()
					}
				}
				return err
			}

			result = &Result{
				Signature:        sig,
				Transaction:      txn,
				ComputeUnitLimit: computeUnitLimit,
			}
			return nil
		},
		retry.RetriableIf(isBlockhashExpired),
		retry.Limit(uint(retries)+1),
		retry.Backoff(backoff.Constant(delay), delay),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}

	result.Attempts = attempts
	return result, nil
}

// prepare performs every stage that does not depend on the blockhash. Its
// output is reused across blockhash expiry retries.
func (a *Assembler) prepare(ctx context.Context, log *logrus.Entry, req *Request) (*prepared, error) {
	if req == nil {
		return nil, ErrNilRoute
	}
	if len(req.Payer) != ed25519.PrivateKeySize {
		return nil, errors.New("payer private key is required")
	}

	route, err := Normalize(req.Route)
	if err != nil {
		return nil, err
	}

	program, err := a.Program(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.Program) > 0 {
		if len(req.Program) != ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid cpi swap program length: %d", len(req.Program))
		}
		program.Program = req.Program
	}

	cpiSwapIxn, err := NewCPISwapInstruction(program, Mints{
		InputMint:         req.InputMint,
		InputMintProgram:  req.InputMintProgram,
		OutputMint:        req.OutputMint,
		OutputMintProgram: req.OutputMintProgram,
	}, route.Swap)
	if err != nil {
		return nil, errors.Wrap(err, "error building cpi swap instruction")
	}

	plan := NewPlan(route, cpiSwapIxn)
	if price := a.conf.computeUnitPrice.Get(ctx); price > 0 && !containsInstruction(plan.ComputeBudget, compute_budget.IsSetComputeUnitPrice) {
		computeBudget := append([]solana.Instruction{}, plan.ComputeBudget...)
		plan = plan.withComputeBudget(append(computeBudget, compute_budget.SetComputeUnitPrice(price)))
	}

	tables, err := ResolveLookupTablesWithLimit(ctx, a.tables, route.LookupTables, int(a.conf.lookupTableConcurrency.Get(ctx)))
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"instructions":  plan.Len(),
		"lookup_tables": len(tables),
	}).Debug("swap prepared")

	return &prepared{
		plan:   plan,
		tables: tables,
	}, nil
}

// build compiles and signs the prepared plan against the latest blockhash,
// optionally sizing the compute unit limit through simulation first.
func (a *Assembler) build(ctx context.Context, log *logrus.Entry, req *Request, p *prepared) (*solana.Transaction, uint32, error) {
	payer := req.Payer.Public().(ed25519.PublicKey)

	blockhash, err := a.blockhashes.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, "error getting latest blockhash")
	}

	plan := p.plan
	var computeUnitLimit uint32
	if a.conf.simulateComputeUnits.Get(ctx) {
		computeUnitLimit, err = a.estimateComputeUnits(ctx, payer, blockhash, p)
		if err != nil {
			return nil, 0, err
		}

		log.WithField("compute_unit_limit", computeUnitLimit).Debug("compute units estimated")
		plan = plan.withComputeBudget(withComputeUnitLimit(plan.ComputeBudget, computeUnitLimit))
	}

	txn, err := Compile(payer, blockhash, plan, p.tables)
	if err != nil {
		return nil, 0, err
	}

	signers := append([]ed25519.PrivateKey{req.Payer}, req.AdditionalSigners...)
	if err := Sign(txn, signers...); err != nil {
		return nil, 0, err
	}

	return txn, computeUnitLimit, nil
}

// estimateComputeUnits simulates the plan under the maximum limit and returns
// the consumed units plus the configured margin.
func (a *Assembler) estimateComputeUnits(ctx context.Context, payer ed25519.PublicKey, blockhash solana.Blockhash, p *prepared) (uint32, error) {
	if a.simulator == nil {
		return 0, errors.New("compute unit simulation enabled without a simulator")
	}

	simulationLimit := a.conf.simulationComputeUnitLimit.Get(ctx)
	if simulationLimit > compute_budget.MaxComputeUnitLimit {
		simulationLimit = compute_budget.MaxComputeUnitLimit
	}

	plan := p.plan.withComputeBudget(withComputeUnitLimit(p.plan.ComputeBudget, uint32(simulationLimit)))
	txn, err := Compile(payer, blockhash, plan, p.tables)
	if err != nil {
		return 0, err
	}

	res, err := a.simulator.SimulateTransaction(ctx, *txn, a.commitment(ctx))
	if err != nil {
		return 0, errors.Wrap(err, "error simulating transaction")
	}
	if res.Err != nil {
		return 0, &SimulationFailedError{Reason: res.Err.Error(), Logs: res.Logs}
	}
	if res.UnitsConsumed == nil {
		return 0, &SimulationFailedError{Reason: "units consumed not reported", Logs: res.Logs}
	}

	units := *res.UnitsConsumed + a.conf.computeUnitMargin.Get(ctx)
	if units > compute_budget.MaxComputeUnitLimit {
		units = compute_budget.MaxComputeUnitLimit
	}
	return uint32(units), nil
}

// Program returns the configured CPI swap program, used for requests that
// don't name one.
func (a *Assembler) Program(ctx context.Context) (CPIProgram, error) {
	return a.conf.cpiProgram(ctx)
}

func (a *Assembler) commitment(ctx context.Context) solana.Commitment {
	commitment, err := solana.CommitmentFromString(a.conf.commitment.Get(ctx))
	if err != nil {
		a.log.WithError(err).Warn("invalid commitment configured, using confirmed")
		return solana.CommitmentConfirmed
	}
	return commitment
}

func (a *Assembler) recordOutcome(ctx context.Context, swapID string, start time.Time, result *Result, err error) {
	elapsed := time.Since(start)
	metrics.RecordDuration(ctx, assemblyDurationMetricName, elapsed)

	kvs := map[string]interface{}{
		"swap_id":     swapID,
		"duration_ms": elapsed.Milliseconds(),
		"success":     err == nil,
	}
	if result != nil {
		kvs["signature"] = result.Signature.String()
		kvs["attempts"] = result.Attempts
		kvs["compute_unit_limit"] = result.ComputeUnitLimit
	}
	if err != nil {
		kvs["error"] = err.Error()
	}
	metrics.RecordEvent(ctx, assemblyEventName, kvs)
}

// withComputeUnitLimit returns the compute budget with any existing limit
// instruction removed and limit placed first.
func withComputeUnitLimit(ixns []solana.Instruction, limit uint32) []solana.Instruction {
	res := make([]solana.Instruction, 0, len(ixns)+1)
	res = append(res, compute_budget.SetComputeUnitLimit(limit))
	for _, ixn := range ixns {
		if compute_budget.IsSetComputeUnitLimit(ixn) {
			continue
		}
		res = append(res, ixn)
	}
	return res
}

func containsInstruction(ixns []solana.Instruction, matches func(solana.Instruction) bool) bool {
	for _, ixn := range ixns {
		if matches(ixn) {
			return true
		}
	}
	return false
}

func isBlockhashExpired(err error) bool {
	var expired *BlockhashExpiredError
	return errors.As(err, &expired)
}

func decodeConfiguredKey(value string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(value)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid public key length: %d", len(decoded))
	}
	return decoded, nil
}
