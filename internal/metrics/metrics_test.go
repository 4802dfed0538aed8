package metrics

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollector_Sessions(t *testing.T) {
	c := New()

	c.SessionOpened()
	c.SessionOpened()
	require.EqualValues(t, 2, c.ActiveSessions())

	c.SessionClosed()
	require.EqualValues(t, 1, c.ActiveSessions())

	c.DiscoveryMiss()
	require.EqualValues(t, 1, c.DiscoveryMisses())
}

func TestCollector_Operations(t *testing.T) {
	c := New()

	c.Operation(OpExecute, true)
	c.Operation(OpExecute, false)
	c.Operation(OpTest, false)
	c.Operation(OpUpload, true)

	require.EqualValues(t, 2, c.Operations(OpExecute))
	require.EqualValues(t, 1, c.Failures(OpExecute))
	require.EqualValues(t, 1, c.Failures(OpTest))
	require.EqualValues(t, 0, c.Failures(OpUpload))
	require.EqualValues(t, 0, c.Operations(OpDownload))

	// Out-of-range ops are ignored.
	c.Operation(Op(99), false)
	require.EqualValues(t, 0, c.Operations(Op(99)))
}

func TestCollector_SpawnErrors(t *testing.T) {
	c := New()
	c.SpawnError("spawn ssh: not found")
	c.SpawnError("spawn scp: not found")

	require.EqualValues(t, 2, c.SpawnErrors())
	snap := c.Snapshot()
	require.Equal(t, "spawn scp: not found", snap.LastErrorMessage)
	require.NotEmpty(t, snap.LastError)
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Operation(OpExecute, true)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 50, c.Operations(OpExecute))
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.SessionOpened()
	c.Operation(OpDownload, false)

	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(c.JSON()), &snap))
	require.EqualValues(t, 1, snap.SessionsOpened)
	require.Equal(t, OpStats{Total: 1, Failures: 1}, snap.Operations["download"])
	require.Equal(t, OpStats{}, snap.Operations["execute"])
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.SessionOpened()
	c.SessionClosed()
	c.DiscoveryMiss()
	c.Operation(OpTest, true)
	c.SpawnError("x")

	require.Zero(t, c.ActiveSessions())
	require.Zero(t, c.Operations(OpTest))
	require.Zero(t, c.SpawnErrors())
	require.Equal(t, Snapshot{}, c.Snapshot())
	require.NotEmpty(t, c.JSON())
}
