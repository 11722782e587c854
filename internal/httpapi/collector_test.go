package httpapi

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func discardLogger() zerolog.Logger { return zerolog.Nop() }

func TestJobCollectorSubmitAndComplete(t *testing.T) {
	c := NewJobCollector(context.Background(), discardLogger())
	defer c.Close()

	id := c.Submit("07-tendermint-0")
	job, err := c.GetStatus(id)
	require.NoError(t, err)
	require.Equal(t, StateQueued, job.State)

	c.MarkProving(id)
	job, err = c.GetStatus(id)
	require.NoError(t, err)
	require.Equal(t, StateProving, job.State)

	c.Complete(id, []byte("proof"), []byte("vk"), []byte("pub"))
	job, err = c.GetStatus(id)
	require.NoError(t, err)
	require.Equal(t, StateComplete, job.State)
	require.Equal(t, []byte("proof"), job.Proof)
	require.False(t, job.CompletedAt.IsZero())
}

func TestJobCollectorFail(t *testing.T) {
	c := NewJobCollector(context.Background(), discardLogger())
	defer c.Close()

	id := c.Submit("07-tendermint-0")
	c.Fail(id, "boom")

	job, err := c.GetStatus(id)
	require.NoError(t, err)
	require.Equal(t, StateFailed, job.State)
	require.Equal(t, "boom", job.ErrorMessage)
}

func TestJobCollectorUnknownJobErrors(t *testing.T) {
	c := NewJobCollector(context.Background(), discardLogger())
	defer c.Close()

	_, err := c.GetStatus("does-not-exist")
	require.Error(t, err)
}

func TestJobCollectorStats(t *testing.T) {
	c := NewJobCollector(context.Background(), discardLogger())
	defer c.Close()

	a := c.Submit("client-a")
	c.Submit("client-b")
	c.MarkProving(a)

	stats := c.Stats()
	require.Equal(t, 1, stats[string(StateQueued)])
	require.Equal(t, 1, stats[string(StateProving)])
}
