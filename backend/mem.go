package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/icrar/vospace/cluster"
)

// Mem is an in-process reference Provider: bytes live in a map keyed by
// path, and endpoints are synthesized HTTP URLs served by a loopback
// handler the caller wires separately. It requires no external dependency
// and is the default backend.provider in cmn.Default(), used by the test
// suite and by vospaced with backend.provider "mem" for local development
// (SPEC_FULL §4.E).
type Mem struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
}

// NewMem constructs a Mem backend that issues endpoint URLs rooted at
// baseURL (e.g. "http://127.0.0.1:8080/vospace/data").
func NewMem(baseURL string) *Mem {
	return &Mem{objects: make(map[string][]byte), baseURL: baseURL}
}

var _ Provider = (*Mem)(nil)

func (m *Mem) CreateStorageNode(_ context.Context, n *cluster.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[string(n.Path)]; !ok {
		m.objects[string(n.Path)] = nil
	}
	return nil
}

func (m *Mem) DeleteStorageNode(_ context.Context, n *cluster.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, string(n.Path))
	return nil
}

func (m *Mem) MoveStorageNode(_ context.Context, _ cluster.NodeType, src cluster.Path, _ cluster.NodeType, dest cluster.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.objects[string(src)]; ok {
		m.objects[string(dest)] = data
		delete(m.objects, string(src))
	}
	return nil
}

func (m *Mem) CopyStorageNode(_ context.Context, _ cluster.NodeType, src cluster.Path, _ cluster.NodeType, dest cluster.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.objects[string(src)]; ok {
		cp := append([]byte(nil), data...)
		m.objects[string(dest)] = cp
	}
	return nil
}

func (m *Mem) AcceptViews(*cluster.Node) []cluster.View {
	return []cluster.View{{URI: "ivo://ivoa.net/vospace/core#anyview"}}
}

func (m *Mem) ProvideViews(*cluster.Node) []cluster.View {
	return []cluster.View{{URI: "ivo://ivoa.net/vospace/core#anyview"}}
}

func (m *Mem) FilterEndpoints(candidates []Endpoint, _ cluster.NodeType, _ cluster.Path, protocolURI string, _ string) []Endpoint {
	out := make([]Endpoint, 0, len(candidates))
	for _, c := range candidates {
		if c.ProtocolURI == protocolURI {
			out = append(out, c)
		}
	}
	return out
}

// Endpoints returns the fixed candidate endpoint set this backend offers
// for path, one per registered protocol, rooted at baseURL. The engine
// passes these to FilterEndpoints and then applies its own selection policy.
func (m *Mem) Endpoints(path cluster.Path) []Endpoint {
	url := fmt.Sprintf("%s/%s", m.baseURL, path)
	return []Endpoint{
		{URL: url, ProtocolURI: cluster.ProtoHTTPPut},
		{URL: url, ProtocolURI: cluster.ProtoHTTPGet},
		{URL: url, ProtocolURI: cluster.ProtoHTTPSPut, SecurityMethod: "tls"},
		{URL: url, ProtocolURI: cluster.ProtoHTTPSGet, SecurityMethod: "tls"},
	}
}
