package cluster

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/icrar/vospace/cmn"
)

// DecodeTransfer parses a `<transfer>` document (§3.4, §4.A).
func DecodeTransfer(data []byte) (*Transfer, error) {
	dec := xml.NewDecoder(newReader(data))
	var (
		target, direction string
		haveTarget, haveDirection bool
		keepBytes bool
		haveKeepBytes bool
		protocols []Protocol
		view *View
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, cmn.NewErrInvalidURI("malformed transfer xml: %v", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "target":
			text, err := readCharData(dec, "target")
			if err != nil {
				return nil, err
			}
			target, haveTarget = text, true
		case "direction":
			text, err := readCharData(dec, "direction")
			if err != nil {
				return nil, err
			}
			direction, haveDirection = text, true
		case "keepBytes":
			text, err := readCharData(dec, "keepBytes")
			if err != nil {
				return nil, err
			}
			switch text {
			case "true":
				keepBytes, haveKeepBytes = true, true
			case "false":
				keepBytes, haveKeepBytes = false, true
			default:
				return nil, cmn.NewErrInvalidURI("keepBytes invalid: %q", text)
			}
		case "view":
			uri, ok := attr(se.Attr, "", "uri")
			if !ok || uri == "" {
				return nil, cmn.NewErrInvalidURI("view: missing uri attribute")
			}
			view = &View{URI: uri}
			if err := skipElement(dec); err != nil {
				return nil, err
			}
		case "protocol":
			uri, ok := attr(se.Attr, "", "uri")
			if !ok {
				return nil, cmn.NewErrInvalidURI("protocol: missing uri attribute")
			}
			if !ValidProtocol(uri) {
				return nil, cmn.NewErrInvalidURI("unknown protocol: %q", uri)
			}
			p := Protocol{URI: uri}
			if err := decodeProtocolBody(dec, &p); err != nil {
				return nil, err
			}
			protocols = append(protocols, p)
		default:
			if err := skipElement(dec); err != nil {
				return nil, err
			}
		}
	}
	if !haveTarget {
		return nil, cmn.NewErrInvalidURI("transfer: target not found")
	}
	if !haveDirection {
		return nil, cmn.NewErrInvalidURI("transfer: direction not found")
	}
	targetPath, err := ParseNodeURI(target)
	if err != nil {
		return nil, err
	}
	t := &Transfer{Target: targetPath}
	switch direction {
	case cmn.DirectionPushToSpace:
		t.Kind = KindPushToSpace
		t.Protocols, t.View = protocols, view
	case cmn.DirectionPullFromSpace:
		t.Kind = KindPullFromSpace
		t.Protocols, t.View = protocols, view
	default:
		destPath, err := ParseNodeURI(direction)
		if err != nil {
			return nil, err
		}
		t.Destination = destPath
		if haveKeepBytes {
			t.KeepBytes = keepBytes
			if keepBytes {
				t.Kind = KindCopy
			} else {
				t.Kind = KindMove
			}
		} else {
			t.Kind = KindMove
		}
	}
	return t, nil
}

func decodeProtocolBody(dec *xml.Decoder, p *Protocol) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return cmn.NewErrInvalidURI("malformed protocol xml: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "endpoint" {
				text, err := readCharData(dec, "endpoint")
				if err != nil {
					return err
				}
				p.Endpoint = &Endpoint{URL: text}
				continue
			}
			if err := skipElement(dec); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Local == "protocol" {
				return nil
			}
		}
	}
}

// EncodeTransfer renders t as the `<transfer>` XML document.
func EncodeTransfer(space string, t *Transfer) ([]byte, error) {
	var buf xmlBuffer
	enc := xml.NewEncoder(&buf)
	root := xml.StartElement{
		Name: xml.Name{Local: "vos:transfer"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:vos"}, Value: cmn.NsVOSpace},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: cmn.NsXSI},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	if err := encodeSimple(enc, "vos:target", NodeURI(space, t.Target)); err != nil {
		return nil, err
	}
	if err := encodeSimple(enc, "vos:direction", t.Direction(space)); err != nil {
		return nil, err
	}
	if t.IsNodeTransfer() {
		if err := encodeSimple(enc, "vos:keepBytes", strconv.FormatBool(t.KeepBytes)); err != nil {
			return nil, err
		}
	}
	if t.IsProtocolTransfer() {
		if t.View != nil {
			vs := xml.StartElement{Name: xml.Name{Local: "vos:view"}, Attr: []xml.Attr{{Name: xml.Name{Local: "uri"}, Value: t.View.URI}}}
			if err := enc.EncodeToken(vs); err != nil {
				return nil, err
			}
			if err := enc.EncodeToken(vs.End()); err != nil {
				return nil, err
			}
		}
		for _, p := range t.Protocols {
			ps := xml.StartElement{Name: xml.Name{Local: "vos:protocol"}, Attr: []xml.Attr{{Name: xml.Name{Local: "uri"}, Value: p.URI}}}
			if err := enc.EncodeToken(ps); err != nil {
				return nil, err
			}
			if p.Endpoint != nil {
				if err := encodeSimple(enc, "vos:endpoint", p.Endpoint.URL); err != nil {
					return nil, err
				}
			}
			if err := enc.EncodeToken(ps.End()); err != nil {
				return nil, err
			}
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
