package dispatch

import (
	"io"
	"net/http"
	"strings"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
	"github.com/icrar/vospace/store"
	"github.com/icrar/vospace/xaction"
)

// transfersCreateHandler serves POST /vospace/transfers: create an
// asynchronous transfer job in PENDING (§4.C, §6).
func (rt *Router) transfersCreateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr405(w, http.MethodPost)
		return
	}
	id, err := resolveIdentity(r)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		rt.writeErr(w, cmn.NewErrInvalidArgument("read body: %v", err))
		return
	}
	xfer, err := cluster.DecodeTransfer(body)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	j, err := rt.engine.Create(xfer, rt.cfg.SpaceName, id.Name, cmn.PhasePending)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Location", "/vospace/transfers/"+j.ID)
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(jobSummaryXML(j))
}

// syncTransHandler serves POST /vospace/synctrans: the synchronous
// fast-path transfer (§4.C "Synchronous transfers", §6, §8 scenario 5).
// A request whose direction names another node (copy/move) rather than a
// protocol is rejected here with InvalidArgument — the dispatcher-level
// Open Question decision recorded in the design ledger, since move/copy are
// inherently asynchronous metadata operations with no single endpoint to
// hand back.
func (rt *Router) syncTransHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr405(w, http.MethodPost)
		return
	}
	id, err := resolveIdentity(r)
	if err != nil {
		rt.writeErr(w, err)
		return
	}

	xfer, err := rt.decodeSyncTransfer(r)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	if !xfer.IsProtocolTransfer() {
		rt.writeErr(w, cmn.NewErrInvalidArgument("synctrans requires a PushToSpace/PullFromSpace direction"))
		return
	}

	q := r.URL.Query()
	result, err := rt.engine.RunSync(r.Context(), xfer, rt.cfg.SpaceName, id.Name, q.Get(cmn.QParamSecurityMethod))
	if err != nil {
		rt.writeErr(w, err)
		return
	}

	if q.Get(cmn.QParamRequest) == cmn.RequestRedirect {
		if result.Chosen == nil {
			rt.writeErr(w, cmn.NewErrInternal(errNoEndpointChosen))
			return
		}
		http.Redirect(w, r, result.Chosen.URL, http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Job.ResultsXML)
}

var errNoEndpointChosen = &noEndpointChosenErr{}

type noEndpointChosenErr struct{}

func (*noEndpointChosenErr) Error() string { return "no endpoint chosen for redirect" }

// decodeSyncTransfer builds a Transfer either from query parameters
// (TARGET/DIRECTION/PROTOCOL/VIEW, §6) or from an XML body, whichever the
// request supplies.
func (rt *Router) decodeSyncTransfer(r *http.Request) (*cluster.Transfer, error) {
	q := r.URL.Query()
	target := q.Get(cmn.QParamTarget)
	direction := q.Get(cmn.QParamDirection)
	if target == "" && direction == "" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, cmn.NewErrInvalidArgument("read body: %v", err)
		}
		return cluster.DecodeTransfer(body)
	}
	if target == "" || direction == "" {
		return nil, cmn.NewErrInvalidArgument("synctrans requires both TARGET and DIRECTION")
	}
	targetPath, err := cluster.ParseNodeURI(target)
	if err != nil {
		return nil, err
	}
	xfer := &cluster.Transfer{Target: targetPath}
	switch direction {
	case cmn.DirectionPushToSpace:
		xfer.Kind = cluster.KindPushToSpace
	case cmn.DirectionPullFromSpace:
		xfer.Kind = cluster.KindPullFromSpace
	default:
		return nil, cmn.NewErrInvalidArgument("synctrans DIRECTION must be pushToVoSpace or pullFromVoSpace")
	}
	for _, proto := range q[cmn.QParamProtocol] {
		if !cluster.ValidProtocol(proto) {
			return nil, cmn.NewErrInvalidURI("unknown protocol: %q", proto)
		}
		xfer.Protocols = append(xfer.Protocols, cluster.Protocol{URI: proto})
	}
	if view := q.Get(cmn.QParamView); view != "" {
		xfer.View = &cluster.View{URI: view}
	}
	return xfer, nil
}

// transferResourceHandler serves everything under
// /vospace/transfers/{job_id}[/phase|/results/transferDetails] (§6).
func (rt *Router) transferResourceHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/vospace/transfers/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if parts[0] == "" {
		rt.writeErr(w, cmn.NewErrInvalidURI("missing job id"))
		return
	}
	jobID := parts[0]

	id, err := resolveIdentity(r)
	if err != nil {
		rt.writeErr(w, err)
		return
	}

	switch {
	case len(parts) == 1:
		rt.jobSummaryHandler(w, r, jobID, id)
	case len(parts) == 2 && parts[1] == cmn.PhaseSegment:
		rt.jobPhaseHandler(w, r, jobID, id)
	case len(parts) == 3 && parts[1] == cmn.Results && parts[2] == "transferDetails":
		rt.jobResultsHandler(w, r, jobID, id)
	default:
		rt.writeErr(w, cmn.NewErrInvalidURI("unrecognized transfer resource: %q", rest))
	}
}

func (rt *Router) jobSummaryHandler(w http.ResponseWriter, r *http.Request, jobID string, id store.Identity) {
	if r.Method != http.MethodGet {
		writeErr405(w, http.MethodGet)
		return
	}
	j, err := rt.engine.Get(jobID, id)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(jobSummaryXML(j))
}

func (rt *Router) jobPhaseHandler(w http.ResponseWriter, r *http.Request, jobID string, id store.Identity) {
	switch r.Method {
	case http.MethodGet:
		j, err := rt.engine.Get(jobID, id)
		if err != nil {
			rt.writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(j.Phase.String()))
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			rt.writeErr(w, cmn.NewErrInvalidArgument("parse form: %v", err))
			return
		}
		cmd := r.Form.Get("PHASE")
		switch cmd {
		case cmn.CmdRun:
			if err := rt.engine.Run(r.Context(), jobID, id, rt.cfg.SpaceName); err != nil {
				rt.writeErr(w, err)
				return
			}
		case cmn.CmdAbort:
			if err := rt.engine.Abort(jobID, id); err != nil {
				rt.writeErr(w, err)
				return
			}
		default:
			rt.writeErr(w, cmn.NewErrInvalidArgument("PHASE must be RUN or ABORT, got %q", cmd))
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		writeErr405(w, http.MethodGet, http.MethodPost)
	}
}

func (rt *Router) jobResultsHandler(w http.ResponseWriter, r *http.Request, jobID string, id store.Identity) {
	if r.Method != http.MethodGet {
		writeErr405(w, http.MethodGet)
		return
	}
	j, err := rt.engine.Get(jobID, id)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	results, err := j.Results()
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(results)
}

// jobSummaryXML renders the UWS job summary document (§3.5, §6).
func jobSummaryXML(j *xaction.Job) []byte {
	var b strings.Builder
	b.WriteString(`<uws:job xmlns:uws="http://www.ivoa.net/xml/UWS/v1.0">`)
	b.WriteString(`<uws:jobId>` + j.ID + `</uws:jobId>`)
	b.WriteString(`<uws:ownerId>` + j.Owner + `</uws:ownerId>`)
	b.WriteString(`<uws:phase>` + j.Phase.String() + `</uws:phase>`)
	if j.Error != "" {
		b.WriteString(`<uws:errorSummary>` + j.Error + `</uws:errorSummary>`)
	}
	b.WriteString(`</uws:job>`)
	return []byte(b.String())
}
