package xaction

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"

	"github.com/icrar/vospace/backend"
	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
	"github.com/icrar/vospace/store"
)

// jobsBucket is a sibling top-level bucket in the same bbolt file the store
// uses for "nodes" (§4.C: "jobs is a sibling top-level bucket owned by
// xaction"). Keeping it in the same file means job persistence and node
// persistence share the same crash-consistency guarantees without the two
// packages sharing any other state.
var jobsBucket = []byte("jobs")

// Engine owns the UWS job table and drives the phase state machine (§4.C).
// Background execution of asynchronous jobs is bounded by a worker pool
// (errgroup + semaphore), the concurrency idiom the teacher uses throughout
// fs/mpather's JoggerGroup, so the number of concurrently EXECUTING transfers
// never exceeds cfg.Transfer.MaxConcurrent (SPEC_FULL §4.C).
type Engine struct {
	store    *store.Store
	backend  backend.Provider
	cfg      cmn.TransferConf

	mu   sync.Mutex
	jobs map[string]*Job
	// cancel carries a cancel func for every job currently EXECUTING, so an
	// ABORT command can signal the running worker cooperatively (§4.C, §5).
	cancel map[string]context.CancelFunc

	sem chan struct{}
	eg  *errgroup.Group
}

// NewEngine constructs an Engine over the given metadata store and storage
// backend, creating the "jobs" bucket in the store's bbolt file if it does
// not already exist.
func NewEngine(st *store.Store, be backend.Provider, cfg cmn.TransferConf) (*Engine, error) {
	if err := st.DB().Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(jobsBucket)
		return err
	}); err != nil {
		return nil, cmn.NewErrInternal(err)
	}
	eg := &errgroup.Group{}
	return &Engine{
		store:   st,
		backend: be,
		cfg:     cfg,
		jobs:    make(map[string]*Job),
		cancel:  make(map[string]context.CancelFunc),
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		eg:      eg,
	}, nil
}

// saveJob persists j's current state to the jobs bucket. Called under e.mu
// immediately after every phase transition so the durable record never
// lags the in-memory one (§5: a crash between the two would otherwise
// resurrect a stale phase on restart).
func (e *Engine) saveJob(j *Job) error {
	data, err := marshalJob(j)
	if err != nil {
		return cmn.NewErrInternal(err)
	}
	if err := e.store.DB().Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(jobsBucket).Put([]byte(j.ID), data)
	}); err != nil {
		return cmn.NewErrInternal(err)
	}
	return nil
}

// clearBusyForJob clears the busy bit a PushToSpace protocol transfer set on
// its target, if any. Safe to call for jobs that never set busy (node
// transfers, pulls, or jobs that failed before reaching the store call):
// store.SetBusy only errors if the target node is missing, which this
// ignores since there is nothing left to unwedge in that case.
func (e *Engine) clearBusyForJob(j *Job) {
	xfer, err := j.DecodeTransfer()
	if err != nil {
		return
	}
	if xfer.Kind == cluster.KindPushToSpace {
		_ = e.store.SetBusy(xfer.Target, false)
	}
}

// Create inserts a job row holding the serialized transfer request with the
// given initial phase and a fresh identifier (§4.C create()). Job IDs are
// github.com/google/uuid v4 strings, the identifier scheme cuemby-warren and
// theRebelliousNerd-codenerd both use for their own job/task records.
func (e *Engine) Create(xfer *cluster.Transfer, space string, owner string, initial cmn.Phase) (*Job, error) {
	xml, err := cluster.EncodeTransfer(space, xfer)
	if err != nil {
		return nil, cmn.NewErrInvalidArgument("encode transfer: %v", err)
	}
	j := &Job{
		ID:          uuid.NewString(),
		Owner:       owner,
		Phase:       initial,
		TransferXML: xml,
		CreatedAt:   now(),
	}
	e.mu.Lock()
	e.jobs[j.ID] = j
	err = e.saveJob(j)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Get returns the job, enforcing that only the owner may observe it (§4.C
// "only the owner may observe or command a job").
func (e *Engine) Get(id string, requester store.Identity) (*Job, error) {
	e.mu.Lock()
	j, ok := e.jobs[id]
	e.mu.Unlock()
	if !ok {
		return nil, cmn.NewErrInvalidJobState("no such job: %s", id)
	}
	if j.Owner != requester.Name {
		return nil, cmn.NewErrPermissionDenied("identity %q does not own job %s", requester.Name, id)
	}
	return j, nil
}

// Run transitions a PENDING job to QUEUED then dispatches it to the worker
// pool, where it becomes EXECUTING (§4.C, a PHASE=RUN command).
func (e *Engine) Run(ctx context.Context, id string, requester store.Identity, space string) error {
	j, err := e.Get(id, requester)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := j.Transition(cmn.PhaseQueued); err != nil {
		return err
	}
	if err := e.saveJob(j); err != nil {
		return err
	}
	jobCtx, cancel := context.WithCancel(context.Background())
	e.cancel[id] = cancel
	e.eg.Go(func() error {
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
		e.execute(jobCtx, j, space)
		return nil
	})
	return nil
}

// Abort cancels a job (§4.C PHASE=ABORT):
//   - PENDING/QUEUED: phase jumps straight to ABORTED, busy is cleared.
//   - EXECUTING: cancel() is called and the engine waits up to cfg.AbortGrace
//     for execute() to finish on its own. Node transfers (move/copy) honor
//     this directly, since their backend calls take ctx and real cloud SDKs
//     respect its cancellation; protocol transfers only check ctx once at
//     the start of runProtocolTransfer, since endpoint selection itself is a
//     single fast in-process call with nothing else to cancel mid-flight.
//     AbortGrace, not cancellation, is what bounds the worst case there.
//     Once the grace period elapses the engine force-transitions to ABORTED
//     and clears busy regardless of whether execute() has reacted.
func (e *Engine) Abort(id string, requester store.Identity) error {
	j, err := e.Get(id, requester)
	if err != nil {
		return err
	}
	e.mu.Lock()
	phase := j.Phase
	cancel, executing := e.cancel[id]
	e.mu.Unlock()

	if phase == cmn.PhasePending || phase == cmn.PhaseQueued {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := j.Transition(cmn.PhaseAborted); err != nil {
			return err
		}
		e.clearBusyForJob(j)
		return e.saveJob(j)
	}
	if phase.Terminal() {
		return cmn.NewErrInvalidJobState("job %s already terminal (%s)", id, phase)
	}
	if executing {
		cancel()
		deadline := time.Now().Add(e.cfg.AbortGrace)
		for time.Now().Before(deadline) {
			e.mu.Lock()
			done := j.Phase.Terminal()
			e.mu.Unlock()
			if done {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if j.Phase.Terminal() {
		return nil // execute() already finalized it
	}
	if err := j.Transition(cmn.PhaseAborted); err != nil {
		return err
	}
	e.clearBusyForJob(j)
	return e.saveJob(j)
}

// Recover loads the durable job table from the jobs bucket at startup,
// rebuilding the in-memory index, then resolves every job left EXECUTING by
// a crashed worker: its busy bit is cleared and its phase forced to ERROR
// (§5, §9 "recovery clears busy bits for jobs in terminal phases and ...
// marks ERROR for jobs found in EXECUTING at startup"). PENDING/QUEUED jobs
// are left as-is and can still be RUN or ABORTed once recovered.
func (e *Engine) Recover(ctx context.Context) error {
	var rows []jobRow
	if err := e.store.DB().View(func(tx *bbolt.Tx) error {
		return tx.Bucket(jobsBucket).ForEach(func(_, data []byte) error {
			r, err := unmarshalJobRow(data)
			if err != nil {
				return err
			}
			rows = append(rows, r)
			return nil
		})
	}); err != nil {
		return cmn.NewErrInternal(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range rows {
		j := r.toJob()
		e.jobs[j.ID] = j
		if j.Phase.Terminal() {
			e.clearBusyForJob(j)
			continue
		}
		if j.Phase != cmn.PhaseExecuting {
			continue
		}
		e.clearBusyForJob(j)
		j.Error = "worker did not complete before restart"
		_ = j.Transition(cmn.PhaseError)
		if err := e.saveJob(j); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until every dispatched background job goroutine has returned;
// used by graceful shutdown.
func (e *Engine) Wait() error { return e.eg.Wait() }
