package nmt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
)

// HTTPSource fetches NMT range proofs from the DA node's
// namespaced-shares proof endpoint.
type HTTPSource struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        zerolog.Logger
}

// NewHTTPSource constructs an NMT proof source for the given DA node
// base URL.
func NewHTTPSource(rawURL string, httpClient *http.Client, log zerolog.Logger) (*HTTPSource, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("nmt: base URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("nmt: invalid base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := log.With().Str("component", "nmt-source").Logger()
	logger.Info().Str("base_url", rawURL).Dur("timeout", httpClient.Timeout).Msg("HTTP NMT source initialized")
	return &HTTPSource{baseURL: parsed, httpClient: httpClient, log: logger}, nil
}

type shareProofRequest struct {
	Height     uint64 `json:"height"`
	Commitment string `json:"commitment"`
	Namespace  string `json:"namespace"`
	StartShare int    `json:"start_share"`
	EndShare   int    `json:"end_share"`
}

type shareProofResponse struct {
	Success   bool     `json:"success"`
	Error     *string  `json:"error"`
	Siblings  []string `json:"siblings"`
}

func (r shareProofResponse) errorMessage() string {
	if r.Error != nil {
		return *r.Error
	}
	return "nmt: proof endpoint reported failure"
}

// FetchRangeProofs fetches one NMT range proof per (start,end) span in
// rowSpans, in the order given (callers pass row-ascending spans).
func (c *HTTPSource) FetchRangeProofs(ctx context.Context, height uint64, commitment types.Hash32, ns types.Namespace, rowSpans [][2]int) ([]types.NMTRangeProof, error) {
	proofs := make([]types.NMTRangeProof, 0, len(rowSpans))
	for _, span := range rowSpans {
		p, err := c.fetchOne(ctx, height, commitment, ns, span[0], span[1])
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	return proofs, nil
}

func (c *HTTPSource) fetchOne(ctx context.Context, height uint64, commitment types.Hash32, ns types.Namespace, start, end int) (types.NMTRangeProof, error) {
	endpoint := c.buildURL("namespaced_shares")
	reqBody := shareProofRequest{
		Height:     height,
		Commitment: base64.StdEncoding.EncodeToString(commitment.Bytes()),
		Namespace:  base64.StdEncoding.EncodeToString(ns[:]),
		StartShare: start,
		EndShare:   end,
	}

	c.log.Info().
		Uint64("height", height).
		Int("start_share", start).
		Int("end_share", end).
		Msg("fetching NMT range proof")

	body, err := json.Marshal(reqBody)
	if err != nil {
		return types.NMTRangeProof{}, errs.DaRPCErrorf("marshal nmt proof request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return types.NMTRangeProof{}, errs.DaRPCErrorf("prepare nmt proof request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", endpoint).Msg("nmt proof request failed")
		return types.NMTRangeProof{}, errs.DaRPCErrorf("nmt proof request: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		c.log.Error().Int("status_code", res.StatusCode).Str("response", string(msg)).Msg("nmt proof endpoint error")
		return types.NMTRangeProof{}, errs.DaRPCErrorf("nmt proof endpoint returned %s: %s", res.Status, string(msg))
	}

	var parsed shareProofResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return types.NMTRangeProof{}, errs.DaRPCErrorf("decode nmt proof response: %v", err)
	}
	if !parsed.Success {
		return types.NMTRangeProof{}, errs.DaRPCErrorf("%s", parsed.errorMessage())
	}

	siblings := make([][]byte, len(parsed.Siblings))
	for i, s := range parsed.Siblings {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return types.NMTRangeProof{}, errs.DaRPCErrorf("decode sibling digest %d: %v", i, err)
		}
		siblings[i] = raw
	}

	return types.NMTRangeProof{
		Namespace: ns,
		StartIdx:  start,
		EndIdx:    end,
		Siblings:  siblings,
	}, nil
}

func (c *HTTPSource) buildURL(elem ...string) string {
	clone := *c.baseURL
	clone.Path = path.Join(append([]string{c.baseURL.Path}, elem...)...)
	return clone.String()
}

// MockSource is an in-memory Source backed by a caller-supplied table of
// full row shares, used in PROVER_MODE=mock and in tests. It builds real
// proofs via BuildRangeProof rather than returning canned bytes, so
// coverage and verification checks downstream exercise real math.
type MockSource struct {
	// RowShares maps height to full ordered row share lists.
	// FetchRangeProofs pairs the i-th requested span with the i-th entry,
	// so entry i holds the i-th row the blob occupies, not row i of the
	// square.
	RowShares map[uint64][][][]byte
}

// FetchRangeProofs builds one real NMT range proof per requested span
// from the in-memory row shares.
func (m *MockSource) FetchRangeProofs(_ context.Context, height uint64, _ types.Hash32, ns types.Namespace, rowSpans [][2]int) ([]types.NMTRangeProof, error) {
	rows, ok := m.RowShares[height]
	if !ok {
		return nil, errs.IndexerBlockNotFound(fmt.Sprintf("mock nmt source has no rows for height %d", height))
	}
	proofs := make([]types.NMTRangeProof, 0, len(rowSpans))
	for i, span := range rowSpans {
		if i >= len(rows) {
			return nil, errs.BadSquareGeometry("row span exceeds available mock rows")
		}
		p, err := BuildRangeProof(ns, rows[i], span[0], span[1])
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	return proofs, nil
}
