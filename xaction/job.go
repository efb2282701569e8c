// Package xaction implements the UWS transfer job engine described in §4.C:
// job lifecycle state machine, synchronous fast path, asynchronous create/
// run/abort, and storage-endpoint selection.
package xaction

import (
	"encoding/json"
	"time"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
)

// Job is the durable record of an in-flight transfer (§3.5).
type Job struct {
	ID          string
	Owner       string
	Phase       cmn.Phase
	TransferXML []byte
	ResultsXML  []byte
	CreatedAt   time.Time
	StartedAt   time.Time
	EndedAt     time.Time
	Error       string
}

// legalTransitions enumerates the state machine's forward edges (§3.5,
// §4.C): PENDING < QUEUED < EXECUTING < COMPLETED, with ABORTED/ERROR
// reachable as a side exit from any non-terminal phase.
func legalTransitions(from, to cmn.Phase) bool {
	if from.Terminal() {
		return false // terminal phases are immutable (§3.5)
	}
	if to == cmn.PhaseAborted || to == cmn.PhaseError {
		return true
	}
	return to == from+1
}

// Transition validates and applies a phase change, or returns
// InvalidJobStateError (§7).
func (j *Job) Transition(to cmn.Phase) error {
	if !legalTransitions(j.Phase, to) {
		return cmn.NewErrInvalidJobState("illegal transition %s -> %s for job %s", j.Phase, to, j.ID)
	}
	j.Phase = to
	switch to {
	case cmn.PhaseExecuting:
		j.StartedAt = now()
	case cmn.PhaseCompleted, cmn.PhaseAborted, cmn.PhaseError:
		j.EndedAt = now()
	}
	return nil
}

// now is a seam so tests can avoid depending on wall-clock ordering; it is
// not configurable at runtime, just factored out of Transition for clarity.
var now = time.Now

// jobRow is the on-disk representation of a Job in the "jobs" bbolt bucket
// (§4.C, §9 recovery scans this table for jobs left EXECUTING by a crash).
type jobRow struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Phase       cmn.Phase `json:"phase"`
	TransferXML []byte    `json:"transfer_xml"`
	ResultsXML  []byte    `json:"results_xml"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Error       string    `json:"error"`
}

func (j *Job) toRow() jobRow {
	return jobRow{
		ID: j.ID, Owner: j.Owner, Phase: j.Phase,
		TransferXML: j.TransferXML, ResultsXML: j.ResultsXML,
		CreatedAt: j.CreatedAt, StartedAt: j.StartedAt, EndedAt: j.EndedAt,
		Error: j.Error,
	}
}

func (r jobRow) toJob() *Job {
	return &Job{
		ID: r.ID, Owner: r.Owner, Phase: r.Phase,
		TransferXML: r.TransferXML, ResultsXML: r.ResultsXML,
		CreatedAt: r.CreatedAt, StartedAt: r.StartedAt, EndedAt: r.EndedAt,
		Error: r.Error,
	}
}

func marshalJob(j *Job) ([]byte, error) { return json.Marshal(j.toRow()) }

func unmarshalJobRow(data []byte) (jobRow, error) {
	var r jobRow
	err := json.Unmarshal(data, &r)
	return r, err
}

// Results are readable only when phase >= EXECUTING (§3.5).
func (j *Job) Results() ([]byte, error) {
	if j.Phase < cmn.PhaseExecuting {
		return nil, cmn.NewErrInvalidJobState("results not available before EXECUTING (job %s is %s)", j.ID, j.Phase)
	}
	return j.ResultsXML, nil
}

// DecodeTransfer re-parses the job's stored transfer request.
func (j *Job) DecodeTransfer() (*cluster.Transfer, error) {
	return cluster.DecodeTransfer(j.TransferXML)
}
