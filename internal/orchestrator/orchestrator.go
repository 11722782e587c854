// Package orchestrator drives a height interval through witness assembly,
// per-block proving, and aggregation (spec.md §4.9): the BlockProver
// Orchestrator. It is the concurrency boundary of the service — bounded
// per-block fan-out followed by a single-shot aggregation call — grounded
// on the teacher's batch proof pipeline (x/superblock/batch.Pipeline),
// generalized from its hand-rolled worker-channel shape to
// golang.org/x/sync/errgroup, which is already in the pack's transitive
// closure and is the standard idiom for exactly this bounded-fan-out shape.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
	"github.com/dabridge/prover/internal/proverclient"
	"github.com/dabridge/prover/internal/witness"
	"github.com/dabridge/prover/internal/zkvm/aggregator"
	"github.com/dabridge/prover/internal/zkvm/blockprogram"
)

const (
	defaultMaxConcurrency = 4
	defaultPollInterval   = 2 * time.Second
)

// ExecutionReport summarizes a dry-run witness execution (spec.md §4.9's
// execute_generate_proof): the height that was executed and how long it
// took, with no cryptographic proof attached.
type ExecutionReport struct {
	Height  uint64
	Elapsed time.Duration
}

// Orchestrator assembles witnesses, submits them to a proving backend, and
// aggregates the resulting per-block proofs into a single range proof.
type Orchestrator struct {
	Assembler witness.Assembler
	Prover    proverclient.ProverClient

	// DryRunProgram runs the per-block program contract locally, without
	// a proving backend, for ExecuteGenerateProof. Optional: callers that
	// only use GenerateProof/AggregateProofs/ProveBlockRange need not set it.
	DryRunProgram *blockprogram.Program

	// MaxConcurrency bounds how many per-block witnesses may be assembled
	// and proven in parallel within one ProveBlockRange call. Defaults to 4.
	MaxConcurrency int

	// PollInterval is the delay between successive GetStatus polls while
	// waiting for a submitted job to reach a terminal state. Defaults to
	// 2s; a synchronous ProverClient (e.g. the mock backend) resolves on
	// the first poll regardless of this value.
	PollInterval time.Duration

	Log zerolog.Logger
}

func (o *Orchestrator) maxConcurrency() int {
	if o.MaxConcurrency <= 0 {
		return defaultMaxConcurrency
	}
	return o.MaxConcurrency
}

func (o *Orchestrator) pollInterval() time.Duration {
	if o.PollInterval <= 0 {
		return defaultPollInterval
	}
	return o.PollInterval
}

// GenerateProof assembles the witness for one rollup block and drives it
// through the per-block zkVM program, returning its compressed proof,
// verifying-key hash, and committed public values.
func (o *Orchestrator) GenerateProof(ctx context.Context, in types.BlockProverInput, namespace types.Namespace) (proof []byte, verifyingKeyHash []byte, publicValues []byte, err error) {
	stream, err := o.Assembler.Assemble(ctx, in, namespace)
	if err != nil {
		return nil, nil, nil, err
	}

	streamBytes, err := stream.Encode()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("orchestrator: encode witness stream: %w", err)
	}

	jobID, err := o.Prover.RequestProof(ctx, proverclient.JobInput{
		ProofType:     proverclient.ProofTypePerBlock,
		WitnessStream: streamBytes,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	status, err := o.pollUntilDone(ctx, jobID)
	if err != nil {
		return nil, nil, nil, err
	}
	return status.Proof, status.VerifyingKeyHash, status.PublicValues, nil
}

// AggregateProofs runs the aggregator program over a list of at least two
// per-block proving outputs, in the order given. The aggregator program
// itself enforces the header-hash chaining invariant; callers that need
// height-ascending order (ProveBlockRange) must sort before calling this.
func (o *Orchestrator) AggregateProofs(ctx context.Context, inputs []types.AggregationInput) (proof []byte, verifyingKeyHash []byte, publicValues []byte, err error) {
	if len(inputs) < 2 {
		return nil, nil, nil, errs.AggregationTooSmall("aggregation requires at least 2 inner proofs")
	}

	batch := aggregator.Batch{
		VerifyingKeyHashes: make([][]byte, len(inputs)),
		PublicValues:       make([][]byte, len(inputs)),
		Proofs:             make([][]byte, len(inputs)),
	}
	for i, in := range inputs {
		batch.VerifyingKeyHashes[i] = in.VerifyingKey
		batch.PublicValues[i] = in.PublicValues
		batch.Proofs[i] = in.Proof
	}

	jobID, err := o.Prover.RequestProof(ctx, proverclient.JobInput{
		ProofType:        proverclient.ProofTypeAggregate,
		AggregationBatch: batch,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	status, err := o.pollUntilDone(ctx, jobID)
	if err != nil {
		return nil, nil, nil, err
	}
	return status.Proof, status.VerifyingKeyHash, status.PublicValues, nil
}

type blockResult struct {
	proof        []byte
	vkHash       []byte
	publicValues []byte
	output       types.PerBlockOutput
}

// ProveBlockRange composes GenerateProof and AggregateProofs: it proves
// every block in inputs with bounded concurrency, orders the results by
// ascending rollup height (spec.md §5's ordering guarantee), and feeds
// the ordered list to the aggregator.
func (o *Orchestrator) ProveBlockRange(ctx context.Context, inputs []types.BlockProverInput, namespace types.Namespace) (proof []byte, verifyingKeyHash []byte, publicValues []byte, err error) {
	if len(inputs) < 2 {
		return nil, nil, nil, errs.AggregationTooSmall("a block range must cover at least 2 blocks")
	}

	results := make([]blockResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency())
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			proof, vkHash, publicValues, err := o.GenerateProof(gctx, in, namespace)
			if err != nil {
				return fmt.Errorf("orchestrator: prove height %d: %w", in.InclusionHeight, err)
			}
			out, err := types.DecodePerBlockOutput(publicValues)
			if err != nil {
				return fmt.Errorf("orchestrator: decode per-block output at height %d: %w", in.InclusionHeight, err)
			}
			results[i] = blockResult{proof: proof, vkHash: vkHash, publicValues: publicValues, output: out}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	sort.Slice(results, func(a, b int) bool { return results[a].output.Height < results[b].output.Height })

	aggInputs := make([]types.AggregationInput, len(results))
	for i, r := range results {
		aggInputs[i] = types.AggregationInput{Proof: r.proof, VerifyingKey: r.vkHash, PublicValues: r.publicValues}
	}
	return o.AggregateProofs(ctx, aggInputs)
}

// ExecuteGenerateProof runs the same witness-assembly path as
// GenerateProof but skips the proving backend entirely, verifying the
// witness locally via DryRunProgram. Used for dry runs that need the
// committed public values without the cost of a real proof.
func (o *Orchestrator) ExecuteGenerateProof(ctx context.Context, in types.BlockProverInput, namespace types.Namespace) ([]byte, ExecutionReport, error) {
	if o.DryRunProgram == nil {
		return nil, ExecutionReport{}, errs.MissingConfig("execute_generate_proof requires a dry-run program")
	}

	start := time.Now()

	stream, err := o.Assembler.Assemble(ctx, in, namespace)
	if err != nil {
		return nil, ExecutionReport{}, err
	}

	out, err := o.DryRunProgram.Verify(ctx, stream)
	if err != nil {
		return nil, ExecutionReport{}, err
	}

	return out.Encode(), ExecutionReport{Height: in.InclusionHeight, Elapsed: time.Since(start)}, nil
}

func (o *Orchestrator) pollUntilDone(ctx context.Context, jobID string) (proverclient.JobStatus, error) {
	interval := o.pollInterval()
	for {
		status, err := o.Prover.GetStatus(ctx, jobID)
		if err != nil {
			return proverclient.JobStatus{}, err
		}
		switch status.State {
		case proverclient.StateComplete:
			return status, nil
		case proverclient.StateFailed:
			return proverclient.JobStatus{}, errs.ExecutionFailure(status.ErrorMessage)
		}

		select {
		case <-ctx.Done():
			return proverclient.JobStatus{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}
