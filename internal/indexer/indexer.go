// Package indexer implements the Indexer Client: looking up, for a given
// rollup block's inclusion height, the DA blob commitment the rollup
// posted, with bounded retry against "not found" while failing fast on
// any other transport or server error (spec.md §4.4).
package indexer

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

	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
)

// InclusionResult is the indexer's answer to a lookup: the inclusion
// height it resolved (echoed back for consistency checking) and the
// blob commitment posted at that height.
type InclusionResult struct {
	InclusionHeight uint64
	BlobCommitment  types.Hash32
}

// Client looks up DA inclusion metadata for rollup blocks. Policy: a
// single request times out after RequestTimeout; a "not found" response
// is retried up to MaxRetries times with RetryDelay between attempts;
// any other error fails immediately.
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	log            zerolog.Logger
	requestTimeout time.Duration
	maxRetries     int
	retryDelay     time.Duration
}

// Option configures a Client beyond its required constructor arguments.
type Option func(*Client)

// WithRequestTimeout overrides the per-attempt request timeout (default 10s).
func WithRequestTimeout(d time.Duration) Option { return func(c *Client) { c.requestTimeout = d } }

// WithRetryPolicy overrides the retry count and delay (default 10, 5s).
func WithRetryPolicy(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// NewClient constructs an indexer client against the given base URL.
func NewClient(rawURL string, httpClient *http.Client, log zerolog.Logger, opts ...Option) (*Client, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("indexer: base URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("indexer: invalid base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		baseURL:        parsed,
		httpClient:     httpClient,
		log:            log.With().Str("component", "indexer-client").Logger(),
		requestTimeout: 10 * time.Second,
		maxRetries:     10,
		retryDelay:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log.Info().
		Str("base_url", rawURL).
		Dur("request_timeout", c.requestTimeout).
		Int("max_retries", c.maxRetries).
		Dur("retry_delay", c.retryDelay).
		Msg("indexer client initialized")
	return c, nil
}

type lookupResponse struct {
	Success         bool    `json:"success"`
	InclusionHeight uint64  `json:"inclusion_height"`
	Commitment      string  `json:"commitment"`
	Error           *string `json:"error"`
}

func (r lookupResponse) errorMessage() string {
	if r.Error != nil {
		return *r.Error
	}
	return "indexer reported failure"
}

// Lookup resolves the DA blob commitment posted for the rollup block at
// the given inclusion height, retrying on "not found" responses.
func (c *Client) Lookup(ctx context.Context, height uint64) (InclusionResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return InclusionResult{}, ctx.Err()
			case <-timer.C:
			}
		}

		result, notFound, err := c.attemptLookup(ctx, height)
		switch {
		case err != nil:
			return InclusionResult{}, err
		case notFound:
			lastErr = errs.IndexerBlockNotFound(fmt.Sprintf("height %d not yet indexed", height))
			c.log.Info().
				Uint64("height", height).
				Int("attempt", attempt+1).
				Int("max_attempts", c.maxRetries+1).
				Msg("indexer has not seen this height yet, retrying")
			continue
		default:
			return result, nil
		}
	}
	c.log.Error().Uint64("height", height).Int("attempts", c.maxRetries+1).Msg("indexer lookup exhausted retries")
	return InclusionResult{}, lastErr
}

// attemptLookup performs one request. notFound is true only for a
// well-formed "not yet indexed" response; any transport or server error
// is returned directly as err so the caller fails fast instead of
// retrying.
func (c *Client) attemptLookup(ctx context.Context, height uint64) (result InclusionResult, notFound bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint := c.buildURL("inclusion", fmt.Sprintf("%d", height))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return InclusionResult{}, false, errs.IndexerServerError(fmt.Sprintf("prepare request: %v", err))
	}

	c.log.Debug().Uint64("height", height).Str("endpoint", endpoint).Msg("looking up DA inclusion")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Uint64("height", height).Msg("indexer request failed")
		return InclusionResult{}, false, errs.IndexerServerError(fmt.Sprintf("request failed: %v", err))
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return InclusionResult{}, true, nil
	}
	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		c.log.Error().Int("status_code", res.StatusCode).Str("response", string(msg)).Msg("indexer returned error")
		return InclusionResult{}, false, errs.IndexerServerError(fmt.Sprintf("indexer returned %s: %s", res.Status, string(msg)))
	}

	var parsed lookupResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return InclusionResult{}, false, errs.IndexerServerError(fmt.Sprintf("decode response: %v", err))
	}
	if !parsed.Success {
		return InclusionResult{}, false, errs.IndexerServerError(parsed.errorMessage())
	}
	if parsed.InclusionHeight != height {
		return InclusionResult{}, false, errs.IndexerInconsistent(
			fmt.Sprintf("indexer echoed height %d, requested %d", parsed.InclusionHeight, height))
	}

	commitmentBytes, err := base64.StdEncoding.DecodeString(parsed.Commitment)
	if err != nil {
		return InclusionResult{}, false, errs.IndexerInconsistent(fmt.Sprintf("commitment is not valid base64: %v", err))
	}
	if len(commitmentBytes) != types.HashSize {
		return InclusionResult{}, false, errs.IndexerInconsistent(
			fmt.Sprintf("commitment must be %d bytes, got %d", types.HashSize, len(commitmentBytes)))
	}

	var commitment types.Hash32
	copy(commitment[:], commitmentBytes)

	c.log.Info().Uint64("height", height).Msg("resolved DA inclusion")

	return InclusionResult{
		InclusionHeight: parsed.InclusionHeight,
		BlobCommitment:  commitment,
	}, false, nil
}

func (c *Client) buildURL(elem ...string) string {
	clone := *c.baseURL
	clone.Path = path.Join(append([]string{c.baseURL.Path}, elem...)...)
	return clone.String()
}
