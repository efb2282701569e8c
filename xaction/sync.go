package xaction

import (
	"context"

	"github.com/icrar/vospace/backend"
	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
)

// SyncResult is what the dispatcher needs to answer a synchronous transfer
// request: either a single chosen endpoint (for REQUEST=redirect, a 303) or
// the full job to render as transferDetails XML (§4.C synchronous
// transfers).
type SyncResult struct {
	Job      *Job
	Chosen   *cluster.Endpoint
	Protocol string
}

// RunSync performs a synchronous protocol transfer in one logical step
// (§4.C):
//  1. verify the target node exists (pull) or its parent exists (push);
//  2. ask the backend for candidate endpoints filtered by node type, path,
//     protocol, and direction;
//  3. pick one (first match on scheme + security method);
//  4. mark the target busy for push, store the result in the job, then
//     transition straight to COMPLETED and clear busy again — this server
//     has no out-of-band signal for when the client finishes pushing bytes
//     to the endpoint it was just handed, so a synchronous job's busy
//     window is exactly the critical section above, mirroring the
//     asynchronous path's executeProtocolTransfer, which completes and
//     clears busy the same way the instant endpoint selection succeeds
//     rather than waiting on the transfer itself.
func (e *Engine) RunSync(ctx context.Context, xfer *cluster.Transfer, space string, owner string, securityMethod string) (*SyncResult, error) {
	if !xfer.IsProtocolTransfer() {
		// §9 open question resolution: a synchronous request with a
		// node-to-node direction is rejected at the dispatcher, not here,
		// but RunSync defends the same invariant for any direct caller.
		return nil, cmn.NewErrInvalidArgument("synchronous transfer requires a protocol direction")
	}

	if err := e.verifyTarget(xfer); err != nil {
		return nil, err
	}

	j, err := e.Create(xfer, space, owner, cmn.PhaseExecuting)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	j.StartedAt = now()
	e.mu.Unlock()

	resultsXML, chosen, protocolURI, err := e.selectAndBuildResults(xfer, space, securityMethod)
	if err != nil {
		e.fail(j, err)
		return nil, err
	}

	if xfer.Kind == cluster.KindPushToSpace {
		if err := e.store.SetBusy(xfer.Target, true); err != nil {
			e.fail(j, err)
			return nil, err
		}
	}

	e.mu.Lock()
	j.ResultsXML = resultsXML
	_ = j.Transition(cmn.PhaseCompleted)
	_ = e.saveJob(j)
	e.mu.Unlock()

	if xfer.Kind == cluster.KindPushToSpace {
		_ = e.store.SetBusy(xfer.Target, false)
	}

	return &SyncResult{Job: j, Chosen: chosen, Protocol: protocolURI}, nil
}

// verifyTarget checks existence per §4.C step (a): the target node must
// exist for a pull, or the target's parent must exist for a push (since a
// push may be creating the node).
func (e *Engine) verifyTarget(xfer *cluster.Transfer) error {
	if xfer.Kind == cluster.KindPullFromSpace {
		_, err := e.store.Get(xfer.Target)
		return err
	}
	parent, has := xfer.Target.Parent()
	if !has {
		return nil
	}
	parentNode, err := e.store.Get(parent)
	if err != nil {
		return cmn.NewErrContainerDoesNotExist(string(parent))
	}
	if !parentNode.Type.IsContainer() {
		return cmn.NewErrContainerDoesNotExist(string(parent))
	}
	return nil
}

// runProtocolTransfer is the background-execution counterpart of
// selectAndBuildResults, used by the asynchronous path. Endpoint selection
// itself is a single fast in-process call with no further I/O to cancel
// mid-flight, so the ctx.Done() check below only short-circuits work an
// ABORT has already raced ahead of; it is not a substitute for AbortGrace.
func (e *Engine) runProtocolTransfer(ctx context.Context, xfer *cluster.Transfer, space string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, cmn.NewErrInvalidJobState("transfer aborted before execution: %v", ctx.Err())
	default:
	}

	resultsXML, _, _, err := e.selectAndBuildResults(xfer, space, "")
	if err != nil {
		return nil, err
	}
	if xfer.Kind == cluster.KindPushToSpace {
		if err := e.store.SetBusy(xfer.Target, true); err != nil {
			return nil, err
		}
	}
	return resultsXML, nil
}

// selectAndBuildResults asks the backend for candidate endpoints, narrows
// them with FilterEndpoints, applies the first-match selection policy for
// each requested protocol, and renders the resulting transferDetails XML.
func (e *Engine) selectAndBuildResults(xfer *cluster.Transfer, space string, securityMethod string) ([]byte, *cluster.Endpoint, string, error) {
	node, err := e.store.Get(xfer.Target)
	nodeType := cluster.TypeDataNode
	if err == nil {
		nodeType = node.Type
	}

	direction := backend.DirectionPush
	if xfer.Kind == cluster.KindPullFromSpace {
		direction = backend.DirectionPull
	}

	result := &cluster.Transfer{Kind: xfer.Kind, Target: xfer.Target, View: xfer.View}
	var chosen *cluster.Endpoint
	var chosenProto string

	requested := xfer.Protocols
	if len(requested) == 0 {
		requested = []cluster.Protocol{{URI: cluster.ProtoHTTPPut}, {URI: cluster.ProtoHTTPGet}}
	}

	for _, want := range requested {
		candidates := memEndpoints(e.backend, xfer.Target)
		filtered := e.backend.FilterEndpoints(candidates, nodeType, xfer.Target, want.URI, direction)
		match := selectEndpoint(filtered, securityMethod)
		if match == nil {
			continue
		}
		ep := cluster.Endpoint{URL: match.URL}
		result.Protocols = append(result.Protocols, cluster.Protocol{URI: want.URI, Endpoint: &ep})
		if chosen == nil {
			chosen = &ep
			chosenProto = want.URI
		}
	}

	if chosen == nil {
		return nil, nil, "", cmn.NewErrInternal(errNoEndpoint)
	}

	xml, err := cluster.EncodeTransfer(space, result)
	if err != nil {
		return nil, nil, "", cmn.NewErrInternal(err)
	}
	return xml, chosen, chosenProto, nil
}

// selectEndpoint applies the policy from §4.C step (c): the first endpoint
// matching the requested security method (empty securityMethod matches any
// endpoint with no security method requirement first, else the first
// endpoint overall).
func selectEndpoint(candidates []backend.Endpoint, securityMethod string) *backend.Endpoint {
	if securityMethod != "" {
		for i := range candidates {
			if candidates[i].SecurityMethod == securityMethod {
				return &candidates[i]
			}
		}
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}
	for i := range candidates {
		if candidates[i].SecurityMethod == "" {
			return &candidates[i]
		}
	}
	return &candidates[0]
}

// memEndpoints adapts whichever concrete backend is wired into a candidate
// endpoint list for FilterEndpoints. Only backends that satisfy
// endpointLister supply candidates; in this module that is backend.Mem. For
// any other Provider (S3, Azure, GCS) the list is empty, so endpoint
// selection finds no match and the transfer fails with errNoEndpoint.
type endpointLister interface {
	Endpoints(path cluster.Path) []backend.Endpoint
}

func memEndpoints(p backend.Provider, path cluster.Path) []backend.Endpoint {
	if el, ok := p.(endpointLister); ok {
		return el.Endpoints(path)
	}
	return nil
}

var errNoEndpoint = &noEndpointErr{}

type noEndpointErr struct{}

func (*noEndpointErr) Error() string { return "no storage endpoint available for requested protocol" }
