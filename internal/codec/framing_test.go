package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFramerChunkRoundTrip(t *testing.T) {
	f := NewFramer(0)
	var buf []byte
	buf, err := f.WriteChunk(buf, []byte("hello"))
	require.NoError(t, err)

	got, err := f.ReadChunk(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestFramerListRoundTrip(t *testing.T) {
	f := NewFramer(0)
	items := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc"), {}}

	buf, err := f.WriteList(nil, items)
	require.NoError(t, err)

	got, err := f.ReadList(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Len(t, got, len(items))
	for i := range items {
		require.Equal(t, items[i], got[i])
	}
}

func TestFramerRejectsOversizedChunk(t *testing.T) {
	f := NewFramer(2)
	_, err := f.WriteChunk(nil, []byte("too long"))
	require.Error(t, err)
}

func TestFramerReadChunkTruncated(t *testing.T) {
	f := NewFramer(0)
	_, err := f.ReadChunk(bytes.NewReader([]byte{0, 0, 0}))
	require.Error(t, err)
}
