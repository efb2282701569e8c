package cluster

import "bytes"

// xmlBuffer is a thin alias kept so the codec file reads as XML-specific
// rather than importing bytes directly in a dozen call sites.
type xmlBuffer = bytes.Buffer

func newReader(data []byte) *bytes.Reader { return bytes.NewReader(data) }
