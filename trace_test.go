package netsim

import (
	"path/filepath"
	"testing"

	"github.com/iti/evt/vrtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInactiveTraceManagerRecordsNothing(t *testing.T) {
	tm := CreateTraceManager("quiet", false)
	AddKernelTrace(tm, vrtime.SecondsToTime(1.0), 0, 1, "simulator", "fire")
	assert.Equal(t, 0, tm.NumTraces(0))
	require.NoError(t, tm.AddName(1, "alice", "node"))
	assert.Empty(t, tm.NameByID)

	// nothing is written either
	filename := filepath.Join(t.TempDir(), "quiet.yaml")
	require.NoError(t, tm.WriteToFile(filename, false))
	assert.NoFileExists(t, filename)
}

func TestAddName(t *testing.T) {
	tm := CreateTraceManager("names", true)
	require.NoError(t, tm.AddName(1, "alice", "node"))
	assert.Error(t, tm.AddName(1, "bob", "node"))
	assert.Equal(t, NameType{Name: "alice", Type: "node"}, tm.NameByID[1])
}

func TestNameID(t *testing.T) {
	tm := CreateTraceManager("ids", true)
	require.NoError(t, tm.AddName(1, "alice", "node"))

	ab := tm.NameID("channel:ab", "channel")
	assert.NotEqual(t, 1, ab, "ids given out skip those already taken")
	assert.Equal(t, ab, tm.NameID("channel:ab", "channel"))
	assert.Equal(t, 1, tm.NameID("alice", "node"))
	assert.Equal(t, NameType{Name: "channel:ab", Type: "channel"}, tm.NameByID[ab])

	AddKernelTrace(tm, vrtime.SecondsToTime(1.0), 0, 7, "channel:ab", "deliver")
	assert.Equal(t, ab, decodeKernelTrace(t, tm.Traces[0][0]).SrcID)
	assert.Len(t, tm.NameByID, 2)
}

func TestTraceFileRoundTrip(t *testing.T) {
	tm := CreateTraceManager("rt", true)
	AddKernelTrace(tm, vrtime.SecondsToTime(0.5), 0, 3, "simulator", "fire")
	AddKernelTrace(tm, vrtime.SecondsToTime(0.25), 1, 4, "channel:ab", "deliver")
	require.NoError(t, tm.AddName(3, "timer", "event"))

	dir := t.TempDir()
	for _, name := range []string{"trace.yaml", "trace.json"} {
		filename := filepath.Join(dir, name)
		require.NoError(t, tm.WriteToFile(filename, false))
		back, err := ReadTraceFile(filename)
		require.NoError(t, err)
		assert.Equal(t, tm.Traces, back.Traces, name)
		assert.Equal(t, tm.NameByID, back.NameByID, name)
		assert.Equal(t, "rt", back.ExpName)
	}
	assert.Error(t, tm.WriteToFile(filepath.Join(dir, "trace.csv"), false))
}

func TestTraceGlobalOrder(t *testing.T) {
	tm := CreateTraceManager("merged", true)
	AddKernelTrace(tm, vrtime.SecondsToTime(3.0), 0, 1, "simulator", "fire")
	AddKernelTrace(tm, vrtime.SecondsToTime(1.0), 1, 2, "simulator", "fire")
	AddKernelTrace(tm, vrtime.SecondsToTime(2.0), 1, 3, "simulator", "fire")

	filename := filepath.Join(t.TempDir(), "merged.yaml")
	require.NoError(t, tm.WriteToFile(filename, true))
	back, err := ReadTraceFile(filename)
	require.NoError(t, err)

	require.Len(t, back.Traces, 1)
	recs := back.Traces[0]
	require.Len(t, recs, 3)
	ids := []uint64{}
	for _, rec := range recs {
		ids = append(ids, decodeKernelTrace(t, rec).ObjID)
	}
	assert.Equal(t, []uint64{2, 3, 1}, ids)

	// the manager itself is left as it was
	assert.Equal(t, 1, tm.NumTraces(0))
	assert.Equal(t, 2, tm.NumTraces(1))
}
