package danode

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dabridge/prover/internal/dacore/merkle"
	"github.com/dabridge/prover/internal/dacore/types"
)

func discardLogger() zerolog.Logger { return zerolog.Nop() }

func TestFetchMembershipClaimsDecodesProofs(t *testing.T) {
	root, proofs := merkle.RootAndProofs([][]byte{[]byte("v1"), []byte("v2")})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := membershipResponse{
			Success: true,
			AppHash: base64.StdEncoding.EncodeToString(root),
			Proofs: []abciProofResponse{
				{
					Success: true,
					Index:   proofs[0].Index,
					Total:   proofs[0].Total,
					Leaf:    base64.StdEncoding.EncodeToString(proofs[0].LeafHash),
					Aunts:   encodeAll(proofs[0].Aunts),
					Value:   base64.StdEncoding.EncodeToString([]byte("v1")),
				},
				{
					Success: true,
					Index:   proofs[1].Index,
					Total:   proofs[1].Total,
					Leaf:    base64.StdEncoding.EncodeToString(proofs[1].LeafHash),
					Aunts:   encodeAll(proofs[1].Aunts),
					Value:   base64.StdEncoding.EncodeToString([]byte("v2")),
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", nil, discardLogger())
	require.NoError(t, err)

	appHash, claims, err := c.FetchMembershipClaims(context.Background(), 10, [][]string{{"clients", "0"}, {"clients", "1"}})
	require.NoError(t, err)
	require.Equal(t, root, appHash[:])
	require.Len(t, claims, 2)
	require.Equal(t, []byte("v1"), claims[0].Value)
	require.NoError(t, claims[0].Proof.Verify(root, claims[0].Value))
	require.NoError(t, claims[1].Proof.Verify(root, claims[1].Value))
}

func TestFetchMembershipClaimsRejectsMismatchedProofCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(membershipResponse{Success: true, AppHash: base64.StdEncoding.EncodeToString(make([]byte, 32))})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", nil, discardLogger())
	require.NoError(t, err)

	_, _, err = c.FetchMembershipClaims(context.Background(), 10, [][]string{{"clients", "0"}})
	require.Error(t, err)
}

func TestFetchMembershipClaimsSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", nil, discardLogger())
	require.NoError(t, err)

	_, _, err = c.FetchMembershipClaims(context.Background(), 10, [][]string{{"clients", "0"}})
	require.Error(t, err)
}

func encodeAll(aunts [][]byte) []string {
	out := make([]string, len(aunts))
	for i, a := range aunts {
		out[i] = base64.StdEncoding.EncodeToString(a)
	}
	return out
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func TestFetchHeaderDecodesAllFields(t *testing.T) {
	hash := bytes.Repeat([]byte{0xAB}, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := headerResponse{
			Success:            true,
			Hash:               b64(hash),
			VersionBlock:       11,
			VersionApp:         2,
			ChainID:            "celestia",
			Height:             2988873,
			TimeUnixNano:       1700000000000000000,
			LastBlockIDHash:    b64(hash),
			LastCommitHash:     b64(hash),
			DataHash:           b64(hash),
			ValidatorsHash:     b64(hash),
			NextValidatorsHash: b64(hash),
			ConsensusHash:      b64(hash),
			AppHash:            b64(hash),
			LastResultsHash:    b64(hash),
			EvidenceHash:       b64(hash),
			ProposerAddress:    b64(hash),
			RowRoots:           []string{b64(hash), b64(hash)},
			ColumnRoots:        []string{b64(hash), b64(hash)},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "token", nil, discardLogger())
	require.NoError(t, err)

	h, err := c.FetchHeader(context.Background(), 2988873)
	require.NoError(t, err)
	require.Equal(t, int64(2988873), h.Height)
	require.Equal(t, "celestia", h.ChainID)
	require.Equal(t, 2, h.EDSSize())
	require.Equal(t, hash, h.Hash)
}

func TestFetchBlobDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := blobResponse{Success: true, Index: 7, Data: b64([]byte("blob-data"))}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", nil, discardLogger())
	require.NoError(t, err)

	var commitment types.Hash32
	blob, err := c.FetchBlob(context.Background(), 10, commitment)
	require.NoError(t, err)
	require.Equal(t, 7, blob.Index)
	require.Equal(t, []byte("blob-data"), blob.Data)
}
