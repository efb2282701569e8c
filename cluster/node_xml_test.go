package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeXMLRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		node *Node
	}{
		{
			name: "plain container with properties and children",
			node: &Node{
				Path: "a",
				Type: TypeContainerNode,
				Properties: []Property{
					{URI: "ivo://ivoa.net/vospace/core#description", Value: "Hello", ReadOnly: false},
					{URI: "ivo://ivoa.net/vospace/core#title", Value: "A", ReadOnly: true},
				},
				Children: []ChildRef{
					{Path: "a/b", Type: TypeDataNode},
					{Path: "a/c", Type: TypeContainerNode, Busy: true},
				},
			},
		},
		{
			name: "data node with views and busy",
			node: &Node{
				Path:     "d",
				Type:     TypeUnstructuredDataNode,
				Busy:     true,
				Accepts:  []View{{URI: "ivo://ivoa.net/vospace/core#anyview"}},
				Provides: []View{{URI: "ivo://ivoa.net/vospace/core#anyview"}},
			},
		},
		{
			name: "link node",
			node: &Node{
				Path:   "link1",
				Type:   TypeLinkNode,
				Target: "http://example.org/data",
			},
		},
		{
			name: "empty root container",
			node: &Node{
				Path: "",
				Type: TypeContainerNode,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.node.SortProperties()
			tt.node.SortChildren()

			encoded, err := EncodeNode("icrar.org", tt.node)
			require.NoError(t, err)

			decoded, err := DecodeNode(encoded)
			require.NoError(t, err)

			assert.True(t, tt.node.Equal(decoded), "round trip mismatch: %+v != %+v", tt.node, decoded)
		})
	}
}

func TestDecodeNodeRejectsMissingType(t *testing.T) {
	_, err := DecodeNode([]byte(`<node uri="vos://icrar.org!vospace/a"/>`))
	assert.Error(t, err)
}

func TestDecodeNodeRejectsMissingURI(t *testing.T) {
	_, err := DecodeNode([]byte(`<node xsi:type="vos:ContainerNode" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"/>`))
	assert.Error(t, err)
}

func TestPropertiesReturnedInAscendingURIOrder(t *testing.T) {
	n := &Node{
		Path: "a",
		Type: TypeContainerNode,
		Properties: []Property{
			{URI: "ivo://ivoa.net/vospace/core#title", Value: "z"},
			{URI: "ivo://ivoa.net/vospace/core#description", Value: "y"},
		},
	}
	n.SortProperties()
	for i := 1; i < len(n.Properties); i++ {
		assert.Less(t, n.Properties[i-1].URI, n.Properties[i].URI)
	}
}
