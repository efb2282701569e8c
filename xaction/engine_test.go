package xaction

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icrar/vospace/backend"
	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
	"github.com/icrar/vospace/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "vospace.db")
	st, err := store.Open(dbPath, 2*time.Second, store.AllowAll{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	eng := newTestEngineOn(t, st)
	return eng, st
}

func newTestEngineOn(t *testing.T, st *store.Store) *Engine {
	t.Helper()
	be := backend.NewMem("http://127.0.0.1:8080/vospace/data")
	cfg := cmn.TransferConf{MaxConcurrent: 4, AbortGrace: 200 * time.Millisecond}
	eng, err := NewEngine(st, be, cfg)
	require.NoError(t, err)
	return eng
}

func TestPhaseTransitions_MonotonicAndSideExits(t *testing.T) {
	j := &Job{ID: "j1", Phase: cmn.PhasePending}

	require.NoError(t, j.Transition(cmn.PhaseQueued))
	require.NoError(t, j.Transition(cmn.PhaseExecuting))
	assert.Error(t, j.Transition(cmn.PhasePending), "phase must not regress")
	require.NoError(t, j.Transition(cmn.PhaseAborted))
	assert.Error(t, j.Transition(cmn.PhaseCompleted), "terminal phase is immutable")
}

func TestPhaseTransitions_SideExitFromAnyNonTerminal(t *testing.T) {
	for _, from := range []cmn.Phase{cmn.PhasePending, cmn.PhaseQueued, cmn.PhaseExecuting} {
		j := &Job{ID: "j", Phase: from}
		assert.NoError(t, j.Transition(cmn.PhaseError))
	}
}

func TestEngine_CreateRunCompletesPushToSpace(t *testing.T) {
	eng, st := newTestEngine(t)
	_, err := st.Create(cluster.NewNode("n", cluster.TypeDataNode), store.Identity{Name: "alice"})
	require.NoError(t, err)

	xfer := &cluster.Transfer{
		Kind:      cluster.KindPushToSpace,
		Target:    "n",
		Protocols: []cluster.Protocol{{URI: cluster.ProtoHTTPPut}},
	}
	j, err := eng.Create(xfer, "icrar.org", "alice", cmn.PhasePending)
	require.NoError(t, err)
	assert.Equal(t, cmn.PhasePending, j.Phase)

	require.NoError(t, eng.Run(context.Background(), j.ID, store.Identity{Name: "alice"}, "icrar.org"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := eng.Get(j.ID, store.Identity{Name: "alice"})
		require.NoError(t, err)
		if got.Phase.Terminal() {
			assert.Equal(t, cmn.PhaseCompleted, got.Phase)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEngine_GetRejectsNonOwner(t *testing.T) {
	eng, _ := newTestEngine(t)
	xfer := &cluster.Transfer{Kind: cluster.KindPullFromSpace, Target: "n"}
	j, err := eng.Create(xfer, "icrar.org", "alice", cmn.PhasePending)
	require.NoError(t, err)

	_, err = eng.Get(j.ID, store.Identity{Name: "bob"})
	var ve *cmn.VOSpaceErr
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, cmn.ErrPermissionDenied, ve.Kind)
}

func TestEngine_AbortPendingJobGoesStraightToAborted(t *testing.T) {
	eng, _ := newTestEngine(t)
	xfer := &cluster.Transfer{Kind: cluster.KindPullFromSpace, Target: "n"}
	j, err := eng.Create(xfer, "icrar.org", "alice", cmn.PhasePending)
	require.NoError(t, err)

	require.NoError(t, eng.Abort(j.ID, store.Identity{Name: "alice"}))
	got, err := eng.Get(j.ID, store.Identity{Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, cmn.PhaseAborted, got.Phase)

	_, err = eng.Get("nonexistent-job", store.Identity{Name: "alice"})
	assert.Error(t, err)
}

func TestEngine_AbortByNonOwnerForbidden(t *testing.T) {
	eng, _ := newTestEngine(t)
	xfer := &cluster.Transfer{Kind: cluster.KindPullFromSpace, Target: "n"}
	j, err := eng.Create(xfer, "icrar.org", "alice", cmn.PhasePending)
	require.NoError(t, err)

	err = eng.Abort(j.ID, store.Identity{Name: "bob"})
	var ve *cmn.VOSpaceErr
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, cmn.ErrPermissionDenied, ve.Kind)
}

func TestEngine_AbortPendingPushClearsBusy(t *testing.T) {
	eng, st := newTestEngine(t)
	_, err := st.Create(cluster.NewNode("n", cluster.TypeDataNode), store.Identity{Name: "alice"})
	require.NoError(t, err)
	require.NoError(t, st.SetBusy("n", true))

	xfer := &cluster.Transfer{Kind: cluster.KindPushToSpace, Target: "n"}
	j, err := eng.Create(xfer, "icrar.org", "alice", cmn.PhasePending)
	require.NoError(t, err)

	require.NoError(t, eng.Abort(j.ID, store.Identity{Name: "alice"}))

	node, err := st.Get("n")
	require.NoError(t, err)
	assert.False(t, node.Busy, "busy must be cleared when an aborted job's target was left busy")
}

// TestEngine_RecoverLoadsPersistedJobsAndClearsBusy simulates a process
// restart: jobs created and persisted by one Engine must be visible to a
// second Engine instance opened against the same store, and any job found
// EXECUTING must be resolved to ERROR with its target's busy bit cleared.
func TestEngine_RecoverLoadsPersistedJobsAndClearsBusy(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vospace.db")
	st, err := store.Open(dbPath, 2*time.Second, store.AllowAll{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.Create(cluster.NewNode("n", cluster.TypeDataNode), store.Identity{Name: "alice"})
	require.NoError(t, err)
	require.NoError(t, st.SetBusy("n", true))

	eng1 := newTestEngineOn(t, st)
	xfer := &cluster.Transfer{
		Kind:      cluster.KindPushToSpace,
		Target:    "n",
		Protocols: []cluster.Protocol{{URI: cluster.ProtoHTTPPut}},
	}
	executing, err := eng1.Create(xfer, "icrar.org", "alice", cmn.PhaseExecuting)
	require.NoError(t, err)
	pending, err := eng1.Create(xfer, "icrar.org", "alice", cmn.PhasePending)
	require.NoError(t, err)

	// A fresh Engine over the same store stands in for a restarted process:
	// its in-memory job map starts empty, exactly like cmd/vospaced's on a
	// real restart.
	eng2 := newTestEngineOn(t, st)
	require.NoError(t, eng2.Recover(context.Background()))

	got, err := eng2.Get(executing.ID, store.Identity{Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, cmn.PhaseError, got.Phase)
	assert.NotEmpty(t, got.Error)

	stillPending, err := eng2.Get(pending.ID, store.Identity{Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, cmn.PhasePending, stillPending.Phase)

	node, err := st.Get("n")
	require.NoError(t, err)
	assert.False(t, node.Busy, "recovery must clear busy left by a crashed EXECUTING job")
}
