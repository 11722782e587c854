package evmrpc

import (
	"context"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func discardLogger() zerolog.Logger { return zerolog.Nop() }

type fakeEthClient struct {
	header      *gethtypes.Header
	headerErr   error
	callResult  []byte
	callErr     error
	lastCallMsg ethereum.CallMsg
	block       *gethtypes.Block
	blockErr    error
}

func (f *fakeEthClient) HeaderByNumber(_ context.Context, _ *big.Int) (*gethtypes.Header, error) {
	return f.header, f.headerErr
}

func (f *fakeEthClient) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastCallMsg = msg
	return f.callResult, f.callErr
}

func (f *fakeEthClient) BlockByNumber(_ context.Context, _ *big.Int) (*gethtypes.Block, error) {
	return f.block, f.blockErr
}

func TestRollupClientLatestHeight(t *testing.T) {
	client := &fakeEthClient{header: &gethtypes.Header{Number: big.NewInt(4242)}}
	c := NewRollupClient(client, discardLogger())

	height, err := c.LatestHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(4242), height)
}

func TestRollupClientRejectsMissingBlockNumber(t *testing.T) {
	client := &fakeEthClient{header: &gethtypes.Header{}}
	c := NewRollupClient(client, discardLogger())

	_, err := c.LatestHeight(context.Background())
	require.Error(t, err)
}

func TestLightClientAdapterTrustedHeight(t *testing.T) {
	// ABI-encode a uint64 return value (32-byte big-endian word), the
	// same shape the teacher's own mockEthClient.CallContract returns.
	packed := common.LeftPadBytes(big.NewInt(777).Bytes(), 32)
	client := &fakeEthClient{callResult: packed}

	a, err := NewLightClientAdapter(client, "0x1111111111111111111111111111111111111111", discardLogger())
	require.NoError(t, err)

	height, err := a.TrustedHeight(context.Background(), "07-tendermint-0")
	require.NoError(t, err)
	require.Equal(t, uint64(777), height)
	require.NotEmpty(t, client.lastCallMsg.Data)
}

func TestLightClientAdapterRequiresContractAddress(t *testing.T) {
	_, err := NewLightClientAdapter(&fakeEthClient{}, "", discardLogger())
	require.Error(t, err)
}

func TestLightClientAdapterSurfacesCallFailure(t *testing.T) {
	client := &fakeEthClient{callErr: context.DeadlineExceeded}
	a, err := NewLightClientAdapter(client, "0x1111111111111111111111111111111111111111", discardLogger())
	require.NoError(t, err)

	_, err = a.TrustedHeight(context.Background(), "07-tendermint-0")
	require.Error(t, err)
}

func TestRollupBlockFetcherEncodesHeaderAndBlock(t *testing.T) {
	header := &gethtypes.Header{Number: big.NewInt(9)}
	block := gethtypes.NewBlockWithHeader(header)
	client := &fakeEthClient{block: block}
	f := NewRollupBlockFetcher(client, discardLogger())

	clientExecutorInput, rollupBlock, err := f.FetchBlockInput(context.Background(), 9)
	require.NoError(t, err)
	require.NotEmpty(t, clientExecutorInput)
	require.NotEmpty(t, rollupBlock)
	require.NotEqual(t, clientExecutorInput, rollupBlock)
}

func TestRollupBlockFetcherSurfacesFetchFailure(t *testing.T) {
	client := &fakeEthClient{blockErr: context.DeadlineExceeded}
	f := NewRollupBlockFetcher(client, discardLogger())

	_, _, err := f.FetchBlockInput(context.Background(), 9)
	require.Error(t, err)
}
