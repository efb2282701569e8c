// Package dispatch implements the HTTP surface described in §6: one
// ServeMux handler per resource, method-switched to the underlying
// operation, mirroring the teacher's proxyrunner handler layout in
// ais/proxy.go (bucketHandler/objectHandler dispatching by r.Method to
// lower-case httpverb-prefixed methods).
package dispatch

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/icrar/vospace/backend"
	"github.com/icrar/vospace/cmn"
	"github.com/icrar/vospace/store"
	"github.com/icrar/vospace/xaction"
)

// Router wires the metadata store, transfer engine, and storage backend to
// HTTP handlers. It holds no state of its own beyond those collaborators.
type Router struct {
	cfg     *cmn.Config
	store   *store.Store
	engine  *xaction.Engine
	backend backend.Provider
	log     zerolog.Logger
}

// NewRouter builds the HTTP handler tree for the server.
func NewRouter(cfg *cmn.Config, st *store.Store, eng *xaction.Engine, be backend.Provider, log zerolog.Logger) http.Handler {
	rt := &Router{cfg: cfg, store: st, engine: eng, backend: be, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/vospace/availability", rt.availabilityHandler)
	mux.HandleFunc("/vospace/protocols", rt.protocolsHandler)
	mux.HandleFunc("/vospace/properties", rt.propertiesHandler)
	mux.HandleFunc("/vospace/nodes/", rt.nodeHandler)
	mux.HandleFunc("/vospace/transfers", rt.transfersCreateHandler)
	mux.HandleFunc("/vospace/synctrans", rt.syncTransHandler)
	mux.HandleFunc("/vospace/transfers/", rt.transferResourceHandler)
	return mux
}

// availabilityHandler answers liveness/readiness for the admin CLI and load
// balancer health checks, grounded on the teacher's own /v1/health endpoint.
func (rt *Router) availabilityHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr405(w, http.MethodGet)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("true"))
}

func (rt *Router) protocolsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr405(w, http.MethodGet)
		return
	}
	body := `<protocols>` +
		`<protocol uri="` + cmn.ProtocolHTTPPut + `"/>` +
		`<protocol uri="` + cmn.ProtocolHTTPGet + `"/>` +
		`<protocol uri="` + cmn.ProtocolHTTPSPut + `"/>` +
		`<protocol uri="` + cmn.ProtocolHTTPSGet + `"/>` +
		`</protocols>`
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// propertiesHandler lists known property URIs; this reference server treats
// the property namespace as open, so it returns the empty registry rather
// than a fixed catalogue (§9 no registry was specified for properties).
func (rt *Router) propertiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr405(w, http.MethodGet)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<properties/>`))
}

func writeErr405(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}

// writeErr maps a VOSpaceErr (or any error, wrapped as InternalError) to its
// HTTP status and a minimal XML error body, per §7.
func (rt *Router) writeErr(w http.ResponseWriter, err error) {
	ve := cmn.AsVOSpaceErr(err)
	rt.log.Error().Str("kind", ve.Kind.String()).Err(ve).Msg("request failed")
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(ve.HTTPStatus())
	_, _ = w.Write([]byte(`<error kind="` + ve.Kind.String() + `">` + xmlEscape(ve.Error()) + `</error>`))
}

func xmlEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		case '&':
			out = append(out, "&amp;"...)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
