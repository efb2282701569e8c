package cluster

import "sort"

// Property is the (uri, value, read_only) triple described in §3.3.
// Equality (used by tests and by the XML round-trip invariant) compares
// only (uri, value), matching the teacher source's own Property.__eq__.
type Property struct {
	URI      string
	Value    string
	ReadOnly bool
	// Delete marks this as a delete-property: a request to remove an
	// existing property by URI, carrying no value (xsi:nil="true").
	Delete bool
}

// NewDeleteProperty builds a delete-property for uri.
func NewDeleteProperty(uri string) Property {
	return Property{URI: uri, ReadOnly: false, Delete: true}
}

// Equal compares (uri, value) only, per §3.3.
func (p Property) Equal(o Property) bool {
	return p.URI == o.URI && p.Value == o.Value
}

// SortProperties sorts in place by ascending URI (§3.2 invariant); storage
// returns properties unordered, canonical order lives in the codec (§9).
func SortProperties(props []Property) {
	sort.Slice(props, func(i, j int) bool { return props[i].URI < props[j].URI })
}

// DedupProperties removes properties sharing a URI, keeping the last one
// seen for that URI (used when merging an update request onto stored
// properties, §4.B update()).
func DedupProperties(props []Property) []Property {
	byURI := make(map[string]Property, len(props))
	order := make([]string, 0, len(props))
	for _, p := range props {
		if _, ok := byURI[p.URI]; !ok {
			order = append(order, p.URI)
		}
		byURI[p.URI] = p
	}
	out := make([]Property, 0, len(order))
	for _, u := range order {
		out = append(out, byURI[u])
	}
	SortProperties(out)
	return out
}

// View is a URI describing a content representation a data node accepts or
// provides (§3.2, GLOSSARY).
type View struct {
	URI string
}

// Capability is reserved for future node-level capability advertisement;
// the spec defines it on the abstract Node but assigns it no operations of
// its own beyond carrying a URI/endpoint/param triple.
type Capability struct {
	URI      string
	Endpoint string
	Param    string
}

// Endpoint is a URL produced by the storage backend at which a single
// transfer may be executed (GLOSSARY).
type Endpoint struct {
	URL string
}

// Protocol names a supported data-plane transport, optionally paired with
// a server-assigned Endpoint (§3.4).
type Protocol struct {
	URI      string
	Endpoint *Endpoint
}

// Protocol URI registry (closed set, §6). Kept here (not just in cmn) so
// callers constructing Protocol values don't need to import cmn directly.
const (
	ProtoHTTPPut  = "ivo://ivoa.net/vospace/core#httpput"
	ProtoHTTPGet  = "ivo://ivoa.net/vospace/core#httpget"
	ProtoHTTPSPut = "ivo://ivoa.net/vospace/core#httpsput"
	ProtoHTTPSGet = "ivo://ivoa.net/vospace/core#httpsget"
)

// ValidProtocol reports whether uri is one of the four registered protocol
// URIs.
func ValidProtocol(uri string) bool {
	switch uri {
	case ProtoHTTPPut, ProtoHTTPGet, ProtoHTTPSPut, ProtoHTTPSGet:
		return true
	default:
		return false
	}
}
