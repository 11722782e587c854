// Package proverclient is the boundary between the orchestrator and a
// zkVM proving backend: submit a job, poll its status. Grounded on the
// teacher's superblock prover client (x/superblock/proofs/prover), with
// the REST job shape generalized from one batch-aggregation proof type
// to this service's two proof types (per-block, aggregate).
package proverclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/dabridge/prover/internal/errs"
	"github.com/dabridge/prover/internal/witness"
	"github.com/dabridge/prover/internal/zkvm/aggregator"
	"github.com/dabridge/prover/internal/zkvm/blockprogram"
)

// ProofType distinguishes the two zkVM program contracts a job can
// target.
type ProofType string

const (
	ProofTypePerBlock  ProofType = "per_block"
	ProofTypeAggregate ProofType = "aggregate"
)

// JobInput is the opaque payload handed to a proving backend: the
// witness stream bytes for a per-block job (internal/witness.Stream,
// already Encode'd), or the aggregation batch lists for an aggregate
// job. Exactly one of WitnessStream or AggregationBatch is populated,
// selected by ProofType.
type JobInput struct {
	ProofType        ProofType        `json:"proof_type"`
	WitnessStream    []byte           `json:"witness_stream,omitempty"`
	AggregationBatch aggregator.Batch `json:"aggregation_batch,omitempty"`
}

// JobStatus is the terminal or in-progress state of a submitted job.
type JobStatus struct {
	State            string `json:"state"` // "collecting" | "proving" | "complete" | "failed"
	Proof            []byte `json:"proof,omitempty"`
	PublicValues     []byte `json:"public_values,omitempty"`
	VerifyingKeyHash []byte `json:"verifying_key_hash,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

const (
	StateCollecting = "collecting"
	StateProving    = "proving"
	StateComplete   = "complete"
	StateFailed     = "failed"
)

// ProverClient submits proving jobs and polls their status. Two
// implementations exist: HTTPClient talks to a real external zkVM
// prover service (PROVER_MODE=cpu); MockProverClient runs the per-block
// and aggregator program contracts in-process (PROVER_MODE=mock).
type ProverClient interface {
	RequestProof(ctx context.Context, job JobInput) (jobID string, err error)
	GetStatus(ctx context.Context, jobID string) (JobStatus, error)
}

// HTTPClient implements ProverClient over a REST API exposing
// POST {base}/proof and GET {base}/proof/{id}.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        zerolog.Logger
}

// NewHTTPClient constructs a prover client for the given base URL.
func NewHTTPClient(rawURL string, httpClient *http.Client, log zerolog.Logger) (*HTTPClient, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("proverclient: base URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("proverclient: invalid base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := log.With().Str("component", "prover-client").Logger()
	logger.Info().Str("base_url", rawURL).Dur("timeout", httpClient.Timeout).Msg("HTTP prover client initialized")
	return &HTTPClient{baseURL: parsed, httpClient: httpClient, log: logger}, nil
}

type submissionResponse struct {
	Success   bool    `json:"success"`
	RequestID string  `json:"request_id"`
	Error     *string `json:"error"`
}

func (r submissionResponse) errorMessage() string {
	if r.Error != nil {
		return *r.Error
	}
	return "prover rejected job"
}

// RequestProof submits a proof generation job to the prover service.
func (c *HTTPClient) RequestProof(ctx context.Context, job JobInput) (string, error) {
	endpoint := c.buildURL("proof")

	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("proverclient: marshal job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("proverclient: prepare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Info().Str("endpoint", endpoint).Str("proof_type", string(job.ProofType)).Msg("submitting proof job")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.EvmRPCErrorf("prover request failed: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", errs.EvmRPCErrorf("prover returned %s: %s", res.Status, string(msg))
	}

	var submission submissionResponse
	if err := json.NewDecoder(res.Body).Decode(&submission); err != nil {
		return "", fmt.Errorf("proverclient: decode response: %w", err)
	}
	if !submission.Success {
		return "", errs.EvmRPCErrorf("prover rejected job: %s", submission.errorMessage())
	}
	if submission.RequestID == "" {
		return "", errs.EvmRPCError("prover response missing request_id")
	}

	c.log.Info().Str("job_id", submission.RequestID).Msg("proof job submitted")
	return submission.RequestID, nil
}

type statusResponse struct {
	Success          bool    `json:"success"`
	Status           string  `json:"status"`
	Proof            []byte  `json:"proof,omitempty"`
	PublicValues     []byte  `json:"public_values,omitempty"`
	VerifyingKeyHash []byte  `json:"verifying_key_hash,omitempty"`
	Error            *string `json:"error"`
}

// GetStatus fetches the status of a previously submitted job.
func (c *HTTPClient) GetStatus(ctx context.Context, jobID string) (JobStatus, error) {
	if jobID == "" {
		return JobStatus{}, fmt.Errorf("proverclient: jobID is required")
	}
	endpoint := c.buildURL("proof", jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return JobStatus{}, fmt.Errorf("proverclient: prepare request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return JobStatus{}, errs.EvmRPCErrorf("status request failed: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return JobStatus{}, errs.EvmRPCErrorf("prover returned %s: %s", res.Status, string(msg))
	}

	var status statusResponse
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return JobStatus{}, fmt.Errorf("proverclient: decode status: %w", err)
	}
	if !status.Success {
		errMsg := "prover reported failure"
		if status.Error != nil {
			errMsg = *status.Error
		}
		return JobStatus{State: StateFailed, ErrorMessage: errMsg}, nil
	}

	return JobStatus{
		State:            status.Status,
		Proof:            status.Proof,
		PublicValues:     status.PublicValues,
		VerifyingKeyHash: status.VerifyingKeyHash,
	}, nil
}

func (c *HTTPClient) buildURL(elem ...string) string {
	clone := *c.baseURL
	clone.Path = path.Join(append([]string{c.baseURL.Path}, elem...)...)
	return clone.String()
}

// MockProverClient runs the per-block and aggregator program contracts
// in-process instead of calling out to a real zkVM prover, for
// PROVER_MODE=mock. Proof bytes are a deterministic placeholder (the
// SHA-256 of the public values) since there is no real proving backend
// to produce cryptographic proof material; verifying keys are likewise
// a deterministic placeholder (the SHA-256 of the proof type).
type MockProverClient struct {
	Program    *blockprogram.Program
	jobs       map[string]JobStatus
	nextJobID  int
}

// NewMockProverClient constructs a mock client around the given
// per-block program.
func NewMockProverClient(program *blockprogram.Program) *MockProverClient {
	return &MockProverClient{Program: program, jobs: make(map[string]JobStatus)}
}

// RequestProof runs the job synchronously (there is no real proving
// latency to emulate) and stores its terminal status for GetStatus to
// return.
func (m *MockProverClient) RequestProof(ctx context.Context, job JobInput) (string, error) {
	m.nextJobID++
	jobID := fmt.Sprintf("mock-%d", m.nextJobID)

	status, err := m.run(ctx, job)
	if err != nil {
		m.jobs[jobID] = JobStatus{State: StateFailed, ErrorMessage: err.Error()}
		return jobID, nil
	}
	m.jobs[jobID] = status
	return jobID, nil
}

func (m *MockProverClient) run(ctx context.Context, job JobInput) (JobStatus, error) {
	switch job.ProofType {
	case ProofTypePerBlock:
		return m.runPerBlock(ctx, job)
	case ProofTypeAggregate:
		return m.runAggregate(job)
	default:
		return JobStatus{}, fmt.Errorf("proverclient: unknown proof type %q", job.ProofType)
	}
}

func (m *MockProverClient) runPerBlock(ctx context.Context, job JobInput) (JobStatus, error) {
	stream, err := witness.Decode(job.WitnessStream)
	if err != nil {
		return JobStatus{}, err
	}
	out, err := m.Program.Verify(ctx, stream)
	if err != nil {
		return JobStatus{}, err
	}
	publicValues := out.Encode()
	return JobStatus{
		State:            StateComplete,
		Proof:            placeholderProof(publicValues),
		PublicValues:     publicValues,
		VerifyingKeyHash: placeholderVerifyingKeyHash(ProofTypePerBlock),
	}, nil
}

func (m *MockProverClient) runAggregate(job JobInput) (JobStatus, error) {
	out, err := aggregator.Aggregate(job.AggregationBatch)
	if err != nil {
		return JobStatus{}, err
	}
	publicValues := out.Encode()
	return JobStatus{
		State:            StateComplete,
		Proof:            placeholderProof(publicValues),
		PublicValues:     publicValues,
		VerifyingKeyHash: placeholderVerifyingKeyHash(ProofTypeAggregate),
	}, nil
}

// GetStatus returns the status recorded by the matching RequestProof
// call; RequestProof always runs synchronously, so this never observes
// an in-progress state.
func (m *MockProverClient) GetStatus(_ context.Context, jobID string) (JobStatus, error) {
	status, ok := m.jobs[jobID]
	if !ok {
		return JobStatus{}, fmt.Errorf("proverclient: unknown job %q", jobID)
	}
	return status, nil
}

func placeholderProof(publicValues []byte) []byte {
	sum := sha256.Sum256(publicValues)
	return sum[:]
}

func placeholderVerifyingKeyHash(proofType ProofType) []byte {
	sum := sha256.Sum256([]byte(proofType))
	return sum[:]
}
