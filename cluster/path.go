// Package cluster implements the VOSpace node/transfer data model described
// in §3–4.A of the specification: the closed node taxonomy, properties,
// views, protocols, and the XML codec that serializes them.
package cluster

import (
	"net/url"
	"path"
	"strings"

	"github.com/icrar/vospace/cmn"
)

// Path is a normalized, slash-separated node path. The root container has
// the empty path. Dot segments are forbidden outright (§3.1) rather than
// collapsed, since VOSpace paths are not filesystem paths.
type Path string

// NormalizePath validates and normalizes a raw path string per §3.1: no dot
// characters, no empty interior segments, no leading/trailing slash.
func NormalizePath(raw string) (Path, error) {
	if strings.ContainsRune(raw, '.') {
		return "", cmn.NewErrInvalidURI("invalid character '.' in path: %q", raw)
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return Path(""), nil
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" {
			return "", cmn.NewErrInvalidURI("empty path segment in: %q", raw)
		}
	}
	return Path(strings.Join(segs, "/")), nil
}

// String implements fmt.Stringer.
func (p Path) String() string { return string(p) }

// IsRoot reports whether p is the root container.
func (p Path) IsRoot() bool { return p == "" }

// Parent returns the path's parent and whether p has one (the root has
// none).
func (p Path) Parent() (Path, bool) {
	if p.IsRoot() {
		return "", false
	}
	dir := path.Dir(string(p))
	if dir == "." {
		return "", true
	}
	return Path(dir), true
}

// HasStrictPrefix reports whether p is a strict descendant of prefix: p
// begins with prefix followed by exactly one separator (§3.2).
func (p Path) HasStrictPrefix(prefix Path) bool {
	if prefix.IsRoot() {
		return !p.IsRoot()
	}
	ps, prefs := string(p), string(prefix)
	return len(ps) > len(prefs) && strings.HasPrefix(ps, prefs) && ps[len(prefs)] == '/'
}

// StrictAncestors returns every strict ancestor path of p, root-most first,
// excluding p itself. Used to walk up looking for a LinkNode in the chain
// (§3.2, §4.B step 2) and to enforce read permission on every ancestor
// (§4.B directory()).
func (p Path) StrictAncestors() []Path {
	if p.IsRoot() {
		return nil
	}
	segs := strings.Split(string(p), "/")
	out := make([]Path, 0, len(segs))
	for i := 1; i < len(segs); i++ {
		out = append(out, Path(strings.Join(segs[:i], "/")))
	}
	return out
}

// NodeURI builds the `vos://<space>!vospace/<path>` URI for p (§3.1).
func NodeURI(space string, p Path) string {
	return "vos://" + space + "!vospace/" + string(p)
}

// ParseNodeURI parses a node URI (or a bare path) into a normalized Path,
// mirroring pyvospace's Node.uri_to_path: it tolerates a bare path (as used
// by request URLs) as well as the full `vos://` form.
func ParseNodeURI(raw string) (Path, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", cmn.NewErrInvalidURI("malformed URI %q: %v", raw, err)
	}
	p := u.Path
	if idx := strings.Index(raw, "!vospace"); idx >= 0 {
		p = raw[idx+len("!vospace"):]
	}
	if p == "" && u.Opaque == "" && u.Host == "" && !strings.Contains(raw, "!vospace") {
		// A bare relative path, e.g. request-URL derived.
		p = raw
	}
	return NormalizePath(p)
}
