// Package evmrpc adapts the two on-chain oracles the Prover Facade reads
// from (spec.md §4.10): the EVM rollup's latest block height, and the
// on-chain light client's trusted height for a given client ID. Grounded
// on x/superblock/l1's narrow EthClient interface (the subset of
// go-ethereum's ethclient.Client the teacher depends on, rather than the
// concrete client type, so both production and tests can swap
// implementations) and its ABI-binding pattern for contract reads
// (x/superblock/l1/contracts.L2OutputOracleBinding).
package evmrpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rs/zerolog"

	"github.com/dabridge/prover/internal/errs"
)

// EthClient is the subset of ethclient.Client this package depends on.
type EthClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*gethtypes.Block, error)
}

// RollupClient reads the current chain height of the EVM rollup itself.
type RollupClient struct {
	client EthClient
	log    zerolog.Logger
}

// NewRollupClient wraps client for rollup-height queries.
func NewRollupClient(client EthClient, log zerolog.Logger) *RollupClient {
	return &RollupClient{client: client, log: log.With().Str("component", "evmrpc.rollup").Logger()}
}

// LatestHeight returns the rollup's current chain head height.
func (c *RollupClient) LatestHeight(ctx context.Context) (uint64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errs.EvmRPCErrorf("fetch latest rollup header: %v", err)
	}
	if header.Number == nil {
		return 0, errs.EvmRPCError("rollup header missing block number")
	}
	return header.Number.Uint64(), nil
}

// lightClientABIJSON declares the one read method this service needs
// from the on-chain light client contract: the trusted height currently
// accepted for a given client ID. There is no off-the-shelf ABI file for
// this in the example pack (the teacher's light-client contracts belong
// to its own compose-network protocol), so the ABI is inlined here in
// the same abi.JSON-parsed-string shape the teacher uses for its own
// embedded contract ABIs.
const lightClientABIJSON = `[
	{
		"constant": true,
		"inputs": [{"name": "clientId", "type": "string"}],
		"name": "trustedHeight",
		"outputs": [{"name": "", "type": "uint64"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// LightClientAdapter reads trusted-height state from the on-chain light
// client contract that tracks the DA chain's headers.
type LightClientAdapter struct {
	client  EthClient
	address common.Address
	abi     abi.ABI
	log     zerolog.Logger
}

// NewLightClientAdapter binds to the light client contract at contractAddr.
func NewLightClientAdapter(client EthClient, contractAddr string, log zerolog.Logger) (*LightClientAdapter, error) {
	if strings.TrimSpace(contractAddr) == "" {
		return nil, fmt.Errorf("evmrpc: light client contract address is required")
	}
	parsed, err := abi.JSON(strings.NewReader(lightClientABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evmrpc: parse light client ABI: %w", err)
	}
	return &LightClientAdapter{
		client:  client,
		address: common.HexToAddress(contractAddr),
		abi:     parsed,
		log:     log.With().Str("component", "evmrpc.lightclient").Logger(),
	}, nil
}

// TrustedHeight returns the latest DA height the light client currently
// accepts for clientID.
func (a *LightClientAdapter) TrustedHeight(ctx context.Context, clientID string) (uint64, error) {
	data, err := a.abi.Pack("trustedHeight", clientID)
	if err != nil {
		return 0, fmt.Errorf("evmrpc: pack trustedHeight call: %w", err)
	}

	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &a.address, Data: data}, nil)
	if err != nil {
		return 0, errs.LightClientQueryError(fmt.Sprintf("call trustedHeight(%s): %v", clientID, err))
	}

	results, err := a.abi.Unpack("trustedHeight", out)
	if err != nil {
		return 0, fmt.Errorf("evmrpc: unpack trustedHeight result: %w", err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("evmrpc: trustedHeight returned %d values, want 1", len(results))
	}
	height, ok := results[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("evmrpc: trustedHeight result has unexpected type %T", results[0])
	}
	return height, nil
}

// RollupBlockFetcher fetches an EVM rollup block by height and RLP-encodes
// it into the two byte strings the per-block zkVM program expects: the
// block the client-executor replays (the RLP-encoded header + body) and
// the raw client-executor input the program hashes against it. The
// teacher encodes outbound L1 transactions the same way
// (ethclient.Client plus rlp.EncodeToBytes over a *types.Transaction);
// this adapter just points that encoder at a full block instead.
type RollupBlockFetcher struct {
	client EthClient
	log    zerolog.Logger
}

// NewRollupBlockFetcher wraps client for per-height rollup block retrieval.
func NewRollupBlockFetcher(client EthClient, log zerolog.Logger) *RollupBlockFetcher {
	return &RollupBlockFetcher{client: client, log: log.With().Str("component", "evmrpc.blockfetcher").Logger()}
}

// FetchBlockInput returns the RLP-encoded client-executor input (the
// block header) and the RLP-encoded full block for height.
func (f *RollupBlockFetcher) FetchBlockInput(ctx context.Context, height uint64) (clientExecutorInput []byte, rollupBlock []byte, err error) {
	block, err := f.client.BlockByNumber(ctx, new(big.Int).SetUint64(height))
	if err != nil {
		return nil, nil, errs.EvmRPCErrorf("fetch rollup block %d: %v", height, err)
	}
	header, err := rlp.EncodeToBytes(block.Header())
	if err != nil {
		return nil, nil, fmt.Errorf("evmrpc: encode rollup header at height %d: %w", height, err)
	}
	body, err := rlp.EncodeToBytes(block)
	if err != nil {
		return nil, nil, fmt.Errorf("evmrpc: encode rollup block at height %d: %w", height, err)
	}
	return header, body, nil
}
