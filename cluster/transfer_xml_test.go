package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferXMLRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		transfer *Transfer
	}{
		{
			name: "push to space with protocols and view",
			transfer: &Transfer{
				Kind:      KindPushToSpace,
				Target:    "a/b",
				Protocols: []Protocol{{URI: ProtoHTTPPut}},
				View:      &View{URI: "ivo://ivoa.net/vospace/core#anyview"},
			},
		},
		{
			name: "pull from space, no protocols requested",
			transfer: &Transfer{
				Kind:   KindPullFromSpace,
				Target: "a/b",
			},
		},
		{
			name: "move",
			transfer: &Transfer{
				Kind:        KindMove,
				Target:      "a/b",
				Destination: "a/c",
			},
		},
		{
			name: "copy keeps bytes",
			transfer: &Transfer{
				Kind:        KindCopy,
				Target:      "a/b",
				Destination: "a/d",
				KeepBytes:   true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeTransfer("icrar.org", tt.transfer)
			require.NoError(t, err)

			decoded, err := DecodeTransfer(encoded)
			require.NoError(t, err)

			assert.Equal(t, tt.transfer.Kind, decoded.Kind)
			assert.Equal(t, tt.transfer.Target, decoded.Target)
			if tt.transfer.IsNodeTransfer() {
				assert.Equal(t, tt.transfer.Destination, decoded.Destination)
			}
		})
	}
}

func TestDecodeTransferRejectsMissingTarget(t *testing.T) {
	_, err := DecodeTransfer([]byte(`<vos:transfer xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1"><vos:direction>pushToVoSpace</vos:direction></vos:transfer>`))
	assert.Error(t, err)
}

func TestDecodeTransferRejectsUnknownProtocol(t *testing.T) {
	doc := `<vos:transfer xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1">` +
		`<vos:target>vos://icrar.org!vospace/a</vos:target>` +
		`<vos:direction>pushToVoSpace</vos:direction>` +
		`<vos:protocol uri="ivo://ivoa.net/vospace/core#ftp"/>` +
		`</vos:transfer>`
	_, err := DecodeTransfer([]byte(doc))
	assert.Error(t, err)
}
