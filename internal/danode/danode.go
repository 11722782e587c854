// Package danode implements a client against the DA node's own RPC
// surface, as opposed to internal/indexer's client against the separate
// inclusion-indexer service: header and blob lookups for
// internal/witness's ClassicAssembler (HeaderSource, BlobSource), and
// app-hash/Merkle membership proofs for internal/facade's
// MembershipSource. Grounded on internal/indexer.Client's HTTP-JSON
// request shape, pared down to a single best-effort attempt per call
// since none of these queries have an "not indexed yet" retry condition
// analogous to inclusion lookup.
package danode

import (
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

	"github.com/dabridge/prover/internal/dacore/merkle"
	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
	"github.com/dabridge/prover/internal/membership"
)

// Client queries a DA node for app-hash and ABCI membership proofs.
type Client struct {
	baseURL        *url.URL
	authToken      string
	httpClient     *http.Client
	log            zerolog.Logger
	requestTimeout time.Duration
}

// NewClient constructs a Client against the DA node's base URL.
func NewClient(rawURL, authToken string, httpClient *http.Client, log zerolog.Logger) (*Client, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("danode: base URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("danode: invalid base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:        parsed,
		authToken:      authToken,
		httpClient:     httpClient,
		log:            log.With().Str("component", "danode-client").Logger(),
		requestTimeout: 10 * time.Second,
	}, nil
}

type abciProofResponse struct {
	Success bool     `json:"success"`
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	Leaf    string   `json:"leaf_hash"`
	Aunts   []string `json:"aunts"`
	Value   string   `json:"value"`
	Error   *string  `json:"error"`
}

type membershipResponse struct {
	Success bool                `json:"success"`
	AppHash string              `json:"app_hash"`
	Proofs  []abciProofResponse `json:"proofs"`
	Error   *string             `json:"error"`
}

func (r membershipResponse) errorMessage() string {
	if r.Error != nil {
		return *r.Error
	}
	return "DA node reported failure"
}

// FetchMembershipClaims resolves the app-hash at height and one Merkle
// claim per requested key path, satisfying internal/facade's
// MembershipSource.
func (c *Client) FetchMembershipClaims(ctx context.Context, height uint64, keyPaths [][]string) (types.Hash32, []membership.Claim, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint := c.buildURL("abci_membership", fmt.Sprintf("%d", height))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, nil)
	if err != nil {
		return types.Hash32{}, nil, errs.MembershipProofFailed(fmt.Sprintf("prepare request: %v", err))
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	q := req.URL.Query()
	for _, path := range keyPaths {
		q.Add("path", joinPath(path))
	}
	req.URL.RawQuery = q.Encode()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return types.Hash32{}, nil, errs.MembershipProofFailed(fmt.Sprintf("request failed: %v", err))
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return types.Hash32{}, nil, errs.MembershipProofFailed(fmt.Sprintf("DA node returned %s: %s", res.Status, string(msg)))
	}

	var parsed membershipResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return types.Hash32{}, nil, errs.MembershipProofFailed(fmt.Sprintf("decode response: %v", err))
	}
	if !parsed.Success {
		return types.Hash32{}, nil, errs.MembershipProofFailed(parsed.errorMessage())
	}
	if len(parsed.Proofs) != len(keyPaths) {
		return types.Hash32{}, nil, errs.MembershipProofFailed(
			fmt.Sprintf("DA node returned %d proofs for %d requested paths", len(parsed.Proofs), len(keyPaths)))
	}

	appHashBytes, err := base64.StdEncoding.DecodeString(parsed.AppHash)
	if err != nil || len(appHashBytes) != types.HashSize {
		return types.Hash32{}, nil, errs.MembershipProofFailed("DA node returned a malformed app hash")
	}
	var appHash types.Hash32
	copy(appHash[:], appHashBytes)

	claims := make([]membership.Claim, len(keyPaths))
	for i, proof := range parsed.Proofs {
		value, err := base64.StdEncoding.DecodeString(proof.Value)
		if err != nil {
			return types.Hash32{}, nil, errs.MembershipProofFailed(fmt.Sprintf("claim %d: malformed value", i))
		}
		leafHash, err := base64.StdEncoding.DecodeString(proof.Leaf)
		if err != nil {
			return types.Hash32{}, nil, errs.MembershipProofFailed(fmt.Sprintf("claim %d: malformed leaf hash", i))
		}
		aunts := make([][]byte, len(proof.Aunts))
		for j, a := range proof.Aunts {
			aunt, err := base64.StdEncoding.DecodeString(a)
			if err != nil {
				return types.Hash32{}, nil, errs.MembershipProofFailed(fmt.Sprintf("claim %d: malformed aunt %d", i, j))
			}
			aunts[j] = aunt
		}
		claims[i] = membership.Claim{
			PathComponents: keyPaths[i],
			Value:          value,
			Proof: merkle.Proof{
				Index:    proof.Index,
				Total:    proof.Total,
				LeafHash: leafHash,
				Aunts:    aunts,
			},
		}
	}

	c.log.Info().Uint64("height", height).Int("claims", len(claims)).Msg("resolved DA membership claims")

	return appHash, claims, nil
}

type headerResponse struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`

	Hash               string   `json:"hash"`
	VersionBlock       uint64   `json:"version_block"`
	VersionApp         uint64   `json:"version_app"`
	ChainID            string   `json:"chain_id"`
	Height             int64    `json:"height"`
	TimeUnixNano       int64    `json:"time_unix_nano"`
	LastBlockIDHash    string   `json:"last_block_id_hash"`
	LastCommitHash     string   `json:"last_commit_hash"`
	DataHash           string   `json:"data_hash"`
	ValidatorsHash     string   `json:"validators_hash"`
	NextValidatorsHash string   `json:"next_validators_hash"`
	ConsensusHash      string   `json:"consensus_hash"`
	AppHash            string   `json:"app_hash"`
	LastResultsHash    string   `json:"last_results_hash"`
	EvidenceHash       string   `json:"evidence_hash"`
	ProposerAddress    string   `json:"proposer_address"`
	RowRoots           []string `json:"row_roots"`
	ColumnRoots        []string `json:"column_roots"`
}

func (r headerResponse) errorMessage() string {
	if r.Error != nil {
		return *r.Error
	}
	return "DA node reported failure"
}

// FetchHeader resolves the DA-chain header at height, satisfying
// internal/witness.HeaderSource.
func (c *Client) FetchHeader(ctx context.Context, height uint64) (*types.Header, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint := c.buildURL("header", fmt.Sprintf("%d", height))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.DaRPCErrorf("prepare header request: %v", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.DaRPCErrorf("fetch header at height %d: %v", height, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, errs.DaRPCErrorf("DA node returned %s: %s", res.Status, string(msg))
	}

	var parsed headerResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errs.DaRPCErrorf("decode header response: %v", err)
	}
	if !parsed.Success {
		return nil, errs.DaRPCErrorf("%s", parsed.errorMessage())
	}

	rowRoots, err := decodeAll(parsed.RowRoots)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed row roots: %v", height, err)
	}
	columnRoots, err := decodeAll(parsed.ColumnRoots)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed column roots: %v", height, err)
	}
	hash, err := base64.StdEncoding.DecodeString(parsed.Hash)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed hash: %v", height, err)
	}
	lastBlockIDHash, err := base64.StdEncoding.DecodeString(parsed.LastBlockIDHash)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed last_block_id_hash: %v", height, err)
	}
	lastCommitHash, err := base64.StdEncoding.DecodeString(parsed.LastCommitHash)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed last_commit_hash: %v", height, err)
	}
	dataHash, err := base64.StdEncoding.DecodeString(parsed.DataHash)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed data_hash: %v", height, err)
	}
	validatorsHash, err := base64.StdEncoding.DecodeString(parsed.ValidatorsHash)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed validators_hash: %v", height, err)
	}
	nextValidatorsHash, err := base64.StdEncoding.DecodeString(parsed.NextValidatorsHash)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed next_validators_hash: %v", height, err)
	}
	consensusHash, err := base64.StdEncoding.DecodeString(parsed.ConsensusHash)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed consensus_hash: %v", height, err)
	}
	appHash, err := base64.StdEncoding.DecodeString(parsed.AppHash)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed app_hash: %v", height, err)
	}
	lastResultsHash, err := base64.StdEncoding.DecodeString(parsed.LastResultsHash)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed last_results_hash: %v", height, err)
	}
	evidenceHash, err := base64.StdEncoding.DecodeString(parsed.EvidenceHash)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed evidence_hash: %v", height, err)
	}
	proposerAddress, err := base64.StdEncoding.DecodeString(parsed.ProposerAddress)
	if err != nil {
		return nil, errs.DaRPCErrorf("header %d: malformed proposer_address: %v", height, err)
	}

	h := &types.Header{
		Hash:               hash,
		VersionBlock:       parsed.VersionBlock,
		VersionApp:         parsed.VersionApp,
		ChainID:            parsed.ChainID,
		Height:             parsed.Height,
		Time:               time.Unix(0, parsed.TimeUnixNano).UTC(),
		LastCommitHash:     lastCommitHash,
		DataHash:           dataHash,
		ValidatorsHash:     validatorsHash,
		NextValidatorsHash: nextValidatorsHash,
		ConsensusHash:      consensusHash,
		AppHash:            appHash,
		LastResultsHash:    lastResultsHash,
		EvidenceHash:       evidenceHash,
		ProposerAddress:    proposerAddress,
		RowRoots:           rowRoots,
		ColumnRoots:        columnRoots,
	}
	h.LastBlockID.Hash = lastBlockIDHash

	c.log.Info().Uint64("height", height).Msg("resolved DA header")
	return h, nil
}

type blobResponse struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Index   int     `json:"index"`
	Data    string  `json:"data"`
}

func (r blobResponse) errorMessage() string {
	if r.Error != nil {
		return *r.Error
	}
	return "DA node reported failure"
}

// FetchBlob resolves the on-chain blob posted for commitment at height,
// satisfying internal/witness.BlobSource.
func (c *Client) FetchBlob(ctx context.Context, height uint64, commitment types.Hash32) (*types.Blob, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint := c.buildURL("blob", fmt.Sprintf("%d", height), base64.URLEncoding.EncodeToString(commitment.Bytes()))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.DaRPCErrorf("prepare blob request: %v", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.DaRPCErrorf("fetch blob at height %d: %v", height, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, errs.DaRPCErrorf("DA node returned %s: %s", res.Status, string(msg))
	}

	var parsed blobResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errs.DaRPCErrorf("decode blob response: %v", err)
	}
	if !parsed.Success {
		return nil, errs.DaRPCErrorf("%s", parsed.errorMessage())
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Data)
	if err != nil {
		return nil, errs.DaRPCErrorf("blob at height %d: malformed data: %v", height, err)
	}

	c.log.Info().Uint64("height", height).Int("index", parsed.Index).Msg("resolved DA blob")

	return &types.Blob{Data: data, Commitment: commitment, Index: parsed.Index}, nil
}

func decodeAll(values []string) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

func joinPath(components []string) string {
	out := ""
	for i, c := range components {
		if i > 0 {
			out += "/"
		}
		out += c
	}
	return out
}

func (c *Client) buildURL(elem ...string) string {
	clone := *c.baseURL
	clone.Path = path.Join(append([]string{c.baseURL.Path}, elem...)...)
	return clone.String()
}
