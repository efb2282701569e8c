package dispatch

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
	"github.com/icrar/vospace/store"
)

// nodeHandler serves every /vospace/nodes/<path> request, switching on
// method the way the teacher's bucketHandler/objectHandler do (§6).
func (rt *Router) nodeHandler(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/vospace/nodes/")
	path, err := cluster.NormalizePath(raw)
	if err != nil {
		rt.writeErr(w, err)
		return
	}

	id, err := resolveIdentity(r)
	if err != nil {
		rt.writeErr(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt.getNode(w, r, path, id)
	case http.MethodPut:
		rt.createNode(w, r, path, id)
	case http.MethodPost:
		rt.updateNode(w, r, path, id)
	case http.MethodDelete:
		rt.deleteNode(w, r, path, id)
	default:
		writeErr405(w, http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete)
	}
}

func (rt *Router) getNode(w http.ResponseWriter, r *http.Request, path cluster.Path, id store.Identity) {
	q := r.URL.Query()
	detail := q.Get(cmn.QParamDetail)
	limit := 0
	if raw := q.Get(cmn.QParamLimit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			rt.writeErr(w, cmn.NewErrInvalidArgument("invalid limit: %q", raw))
			return
		}
		limit = n
	}

	n, err := rt.store.Directory(path, id, detail, limit, rt.backend)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	body, err := cluster.EncodeNode(rt.cfg.SpaceName, n)
	if err != nil {
		rt.writeErr(w, cmn.NewErrInternal(err))
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (rt *Router) createNode(w http.ResponseWriter, r *http.Request, path cluster.Path, id store.Identity) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		rt.writeErr(w, cmn.NewErrInvalidArgument("read body: %v", err))
		return
	}
	n, err := cluster.DecodeNode(body)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	if n.Path != path {
		rt.writeErr(w, cmn.NewErrInvalidURI("body uri %q does not match request path %q", n.Path, path))
		return
	}

	created, err := rt.store.Create(n, id)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	if err := rt.backend.CreateStorageNode(r.Context(), created); err != nil {
		rt.writeErr(w, cmn.NewErrInternal(err))
		return
	}

	out, err := cluster.EncodeNode(rt.cfg.SpaceName, created)
	if err != nil {
		rt.writeErr(w, cmn.NewErrInternal(err))
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(out)
}

func (rt *Router) updateNode(w http.ResponseWriter, r *http.Request, path cluster.Path, id store.Identity) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		rt.writeErr(w, cmn.NewErrInvalidArgument("read body: %v", err))
		return
	}
	n, err := cluster.DecodeNode(body)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	if n.Path != path {
		rt.writeErr(w, cmn.NewErrInvalidURI("body uri %q does not match request path %q", n.Path, path))
		return
	}

	updated, err := rt.store.Update(n, id)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	out, err := cluster.EncodeNode(rt.cfg.SpaceName, updated)
	if err != nil {
		rt.writeErr(w, cmn.NewErrInternal(err))
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (rt *Router) deleteNode(w http.ResponseWriter, r *http.Request, path cluster.Path, id store.Identity) {
	removed, err := rt.store.Delete(path, id)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	for _, n := range removed {
		if err := rt.backend.DeleteStorageNode(r.Context(), n); err != nil {
			rt.log.Warn().Err(err).Str("path", string(n.Path)).Msg("storage cleanup failed after metadata delete")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
