// Package cmn provides common constants, types, and error taxonomy shared by
// every VOSpace server package.
/*
 * Copyright (c) 2024, ICRAR. All rights reserved.
 */
package cmn

// URL path segments, mirroring the HTTP surface in the external interfaces
// section of the specification.
const (
	Version   = "vospace"
	Nodes     = "nodes"
	Transfers = "transfers"
	SyncTrans = "synctrans"
	Protocols = "protocols"
	Properties = "properties"
	PhaseSegment = "phase"
	Results      = "results"
	Available = "availability"
)

// Query parameter names.
const (
	QParamDetail         = "detail"
	QParamLimit          = "limit"
	QParamTarget         = "TARGET"
	QParamDirection      = "DIRECTION"
	QParamProtocol       = "PROTOCOL"
	QParamView           = "VIEW"
	QParamSecurityMethod = "SECURITYMETHOD"
	QParamRequest        = "REQUEST"
)

// Detail levels accepted by GET .../nodes/<path>.
const (
	DetailMin        = "min"
	DetailMax        = "max"
	DetailProperties = "properties"
)

// REQUEST values for the synchronous transfer endpoint.
const (
	RequestRedirect = "redirect"
)

// DefaultDirLimit caps an unbounded directory listing; the spec leaves the
// exact cap to the implementation ("an implementation cap").
const DefaultDirLimit = 10000

// Node type tokens, as they appear in the `type`/`xsi:type` XML attribute.
const (
	NodeTypeNode                  = "vos:Node"
	NodeTypeDataNode              = "vos:DataNode"
	NodeTypeUnstructuredDataNode  = "vos:UnstructuredDataNode"
	NodeTypeStructuredDataNode    = "vos:StructuredDataNode"
	NodeTypeContainerNode         = "vos:ContainerNode"
	NodeTypeLinkNode              = "vos:LinkNode"
)

// Transfer direction tokens.
const (
	DirectionPushToSpace   = "pushToVoSpace"
	DirectionPullFromSpace = "pullFromVoSpace"
)

// Protocol URI registry (closed set, §6).
const (
	ProtocolHTTPPut   = "ivo://ivoa.net/vospace/core#httpput"
	ProtocolHTTPGet   = "ivo://ivoa.net/vospace/core#httpget"
	ProtocolHTTPSPut  = "ivo://ivoa.net/vospace/core#httpsput"
	ProtocolHTTPSGet  = "ivo://ivoa.net/vospace/core#httpsget"
)

// XML namespaces used by the codec.
const (
	NsVOSpace = "http://www.ivoa.net/xml/VOSpace/v2.1"
	NsXSI     = "http://www.w3.org/2001/XMLSchema-instance"
)

// UWS job phases, strictly ordered as in §3.5; ABORTED/ERROR are side exits
// and compare greater than every non-terminal phase for monotonicity checks.
type Phase int

const (
	PhasePending Phase = iota
	PhaseQueued
	PhaseExecuting
	PhaseCompleted
	PhaseAborted
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "PENDING"
	case PhaseQueued:
		return "QUEUED"
	case PhaseExecuting:
		return "EXECUTING"
	case PhaseCompleted:
		return "COMPLETED"
	case PhaseAborted:
		return "ABORTED"
	case PhaseError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether p cannot transition further.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAborted || p == PhaseError
}

// PHASE= command values accepted by the transfer control endpoint
// ("RUN" / "ABORT"); these are commands, not phase names.
const (
	CmdRun   = "RUN"
	CmdAbort = "ABORT"
)
