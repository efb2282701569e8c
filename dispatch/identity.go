package dispatch

import (
	"net/http"

	"github.com/icrar/vospace/cmn"
	"github.com/icrar/vospace/store"
)

// identityHeader is the header an upstream auth proxy is expected to set
// once it has authenticated the caller (§1 scope: authentication itself is
// an external collaborator, not part of this server).
const identityHeader = "X-Vospace-Identity"

// resolveIdentity extracts the caller's identity from the request, set by
// whatever authentication layer sits in front of this server.
func resolveIdentity(r *http.Request) (store.Identity, error) {
	name := r.Header.Get(identityHeader)
	if name == "" {
		return store.Identity{}, cmn.NewErrPermissionDenied("no identity presented")
	}
	return store.Identity{Name: name}, nil
}
