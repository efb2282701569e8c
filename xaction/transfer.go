package xaction

import (
	"context"
	"strings"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
	"github.com/icrar/vospace/store"
)

// execute runs a QUEUED job to completion in the background: the same
// endpoint-selection and busy-marking logic as the synchronous path runs
// here for asynchronous protocol transfers; node transfers (copy/move) call
// into the metadata store and then the storage backend (§4.C).
func (e *Engine) execute(ctx context.Context, j *Job, space string) {
	e.mu.Lock()
	_ = j.Transition(cmn.PhaseExecuting)
	_ = e.saveJob(j)
	e.mu.Unlock()

	xfer, err := j.DecodeTransfer()
	if err != nil {
		e.fail(j, err)
		return
	}

	switch {
	case xfer.IsProtocolTransfer():
		e.executeProtocolTransfer(ctx, j, xfer, space)
	case xfer.IsNodeTransfer():
		e.executeNodeTransfer(ctx, j, xfer)
	default:
		e.fail(j, cmn.NewErrInvalidArgument("transfer has no recognized kind"))
	}
}

func (e *Engine) executeProtocolTransfer(ctx context.Context, j *Job, xfer *cluster.Transfer, space string) {
	results, err := e.runProtocolTransfer(ctx, xfer, space)
	if err != nil {
		e.fail(j, err)
		return
	}
	e.mu.Lock()
	j.ResultsXML = results
	_ = j.Transition(cmn.PhaseCompleted)
	_ = e.saveJob(j)
	e.mu.Unlock()

	if xfer.Kind == cluster.KindPushToSpace {
		_ = e.store.SetBusy(xfer.Target, false)
	}
}

func (e *Engine) executeNodeTransfer(ctx context.Context, j *Job, xfer *cluster.Transfer) {
	node, err := e.store.Get(xfer.Target)
	if err != nil {
		e.fail(j, err)
		return
	}
	owner := j.Owner

	if xfer.Kind == cluster.KindMove {
		_, err = e.store.Move(xfer.Target, xfer.Destination, store.Identity{Name: owner})
		if err != nil {
			e.fail(j, err)
			return
		}
		if merr := e.backend.MoveStorageNode(ctx, node.Type, xfer.Target, node.Type, xfer.Destination); merr != nil {
			e.fail(j, cmn.NewErrInternal(merr))
			return
		}
	} else {
		_, copied, err := e.store.Copy(xfer.Target, xfer.Destination, store.Identity{Name: owner})
		if err != nil {
			e.fail(j, err)
			return
		}
		for _, c := range copied {
			if !c.Type.IsDataNode() || c.Type.IsContainer() {
				continue
			}
			src := cluster.Path(string(xfer.Target) + strings.TrimPrefix(string(c.Path), string(xfer.Destination)))
			if cerr := e.backend.CopyStorageNode(ctx, c.Type, src, c.Type, c.Path); cerr != nil {
				e.fail(j, cmn.NewErrInternal(cerr))
				return
			}
		}
	}

	e.mu.Lock()
	_ = j.Transition(cmn.PhaseCompleted)
	_ = e.saveJob(j)
	e.mu.Unlock()
}

func (e *Engine) fail(j *Job, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j.Error = err.Error()
	_ = j.Transition(cmn.PhaseError)
	e.clearBusyForJob(j)
	_ = e.saveJob(j)
}
