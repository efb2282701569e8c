package cluster

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/icrar/vospace/cmn"
)

// The codec encodes and decodes the VOSpace node XML dialect by hand-walking
// xml.Tokens rather than relying on struct tags, the same technique the
// minio-go client uses in its custom ListVersionsResult.UnmarshalXML to
// control exactly which attributes/elements are read in which namespace —
// needed here because the node hierarchy is a tagged union keyed by an
// xsi:type attribute, not a single fixed shape.

func attr(attrs []xml.Attr, space, local string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == local && (space == "" || a.Name.Space == space) {
			return a.Value, true
		}
	}
	return "", false
}

// DecodeNode parses a `<node>` document into a Node, dispatching on the
// `xsi:type` attribute (§4.A).
func DecodeNode(data []byte) (*Node, error) {
	dec := xml.NewDecoder(newReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, cmn.NewErrInvalidURI("empty or malformed node document")
		}
		if err != nil {
			return nil, cmn.NewErrInvalidURI("malformed node xml: %v", err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "node" {
			return decodeNodeElement(dec, se)
		}
	}
}

func decodeNodeElement(dec *xml.Decoder, start xml.StartElement) (*Node, error) {
	uri, ok := attr(start.Attr, "", "uri")
	if !ok || uri == "" {
		return nil, cmn.NewErrInvalidURI("node: missing uri attribute")
	}
	typeTok, ok := attr(start.Attr, cmn.NsXSI, "type")
	if !ok {
		typeTok, ok = attr(start.Attr, "", "type")
	}
	if !ok {
		return nil, cmn.NewErrInvalidURI("node: missing type attribute")
	}
	nt, err := ParseNodeType(typeTok)
	if err != nil {
		return nil, err
	}
	p, err := ParseNodeURI(uri)
	if err != nil {
		return nil, err
	}
	n := NewNode(p, nt)
	if busyStr, ok := attr(start.Attr, "", "busy"); ok {
		n.Busy = busyStr == "true"
	}

	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, cmn.NewErrInvalidURI("malformed node xml: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if err := decodeNodeChild(dec, t, n); err != nil {
				return nil, err
			}
			depth--
		case xml.EndElement:
			if t.Name.Local == "node" && depth == 0 {
				n.SortProperties()
				n.SortChildren()
				if n.Type == TypeLinkNode && n.Target == "" {
					return nil, cmn.NewErrInvalidURI("LinkNode target does not exist")
				}
				return n, nil
			}
		}
	}
	n.SortProperties()
	n.SortChildren()
	return n, nil
}

func decodeNodeChild(dec *xml.Decoder, start xml.StartElement, n *Node) error {
	switch start.Name.Local {
	case "properties":
		return decodeProperties(dec, n)
	case "accepts":
		views, err := decodeViews(dec, "accepts")
		if err != nil {
			return err
		}
		n.Accepts = views
		return nil
	case "provides":
		views, err := decodeViews(dec, "provides")
		if err != nil {
			return err
		}
		n.Provides = views
		return nil
	case "nodes":
		return decodeChildren(dec, n)
	case "target":
		text, err := readCharData(dec, "target")
		if err != nil {
			return err
		}
		n.Target = text
		return nil
	default:
		return skipElement(dec)
	}
}

func decodeProperties(dec *xml.Decoder, n *Node) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return cmn.NewErrInvalidURI("malformed properties xml: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "property" {
				if err := skipElement(dec); err != nil {
					return err
				}
				continue
			}
			puri, ok := attr(t.Attr, "", "uri")
			if !ok || puri == "" {
				return cmn.NewErrInvalidURI("property: missing uri attribute")
			}
			readOnly := true
			if ro, ok := attr(t.Attr, "", "readOnly"); ok {
				readOnly = ro == "true"
			}
			isNil := false
			if nilAttr, ok := attr(t.Attr, cmn.NsXSI, "nil"); ok {
				isNil = nilAttr == "true"
			}
			value, err := readCharData(dec, "property")
			if err != nil {
				return err
			}
			if isNil {
				n.Properties = append(n.Properties, NewDeleteProperty(puri))
			} else {
				n.Properties = append(n.Properties, Property{URI: puri, Value: value, ReadOnly: readOnly})
			}
		case xml.EndElement:
			if t.Name.Local == "properties" {
				return nil
			}
		}
	}
}

func decodeViews(dec *xml.Decoder, elem string) ([]View, error) {
	var out []View
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, cmn.NewErrInvalidURI("malformed %s xml: %v", elem, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "view" {
				if err := skipElement(dec); err != nil {
					return nil, err
				}
				continue
			}
			vuri, ok := attr(t.Attr, "", "uri")
			if !ok || vuri == "" {
				return nil, cmn.NewErrInvalidURI("%s view: missing uri attribute", elem)
			}
			out = append(out, View{URI: vuri})
			if err := skipElement(dec); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if t.Name.Local == elem {
				return out, nil
			}
		}
	}
}

func decodeChildren(dec *xml.Decoder, n *Node) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return cmn.NewErrInvalidURI("malformed nodes xml: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "node" {
				if err := skipElement(dec); err != nil {
					return err
				}
				continue
			}
			curi, ok := attr(t.Attr, "", "uri")
			if !ok || curi == "" {
				return cmn.NewErrInvalidURI("child node: missing uri attribute")
			}
			ctypeTok, ok := attr(t.Attr, cmn.NsXSI, "type")
			if !ok {
				ctypeTok, ok = attr(t.Attr, "", "type")
			}
			if !ok {
				return cmn.NewErrInvalidURI("child node: missing type attribute")
			}
			ct, err := ParseNodeType(ctypeTok)
			if err != nil {
				return err
			}
			cp, err := ParseNodeURI(curi)
			if err != nil {
				return err
			}
			busy := false
			if b, ok := attr(t.Attr, "", "busy"); ok {
				busy = b == "true"
			}
			n.Children = append(n.Children, ChildRef{Path: cp, Type: ct, Busy: busy})
			if err := skipElement(dec); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Local == "nodes" {
				return nil
			}
		}
	}
}

func readCharData(dec *xml.Decoder, elem string) (string, error) {
	var text string
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", cmn.NewErrInvalidURI("malformed %s xml: %v", elem, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			text += string(t)
		case xml.EndElement:
			if t.Name.Local == elem {
				return text, nil
			}
		case xml.StartElement:
			if err := skipElement(dec); err != nil {
				return "", err
			}
		}
	}
}

func skipElement(dec *xml.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}

// EncodeNode renders n as the `<node>` XML document (§4.A encoding, the
// inverse of DecodeNode).
func EncodeNode(space string, n *Node) ([]byte, error) {
	var buf xmlBuffer
	enc := xml.NewEncoder(&buf)
	root := xml.StartElement{
		Name: xml.Name{Local: "vos:node"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:vos"}, Value: cmn.NsVOSpace},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: cmn.NsXSI},
			{Name: xml.Name{Local: "xsi:type"}, Value: n.Type.String()},
			{Name: xml.Name{Local: "uri"}, Value: NodeURI(space, n.Path)},
		},
	}
	if n.Type.IsDataNode() {
		root.Attr = append(root.Attr, xml.Attr{Name: xml.Name{Local: "busy"}, Value: strconv.FormatBool(n.Busy)})
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	if err := encodeProperties(enc, n.Properties); err != nil {
		return nil, err
	}
	if n.Type.IsDataNode() {
		if err := encodeViews(enc, "vos:accepts", "vos:view", n.Accepts); err != nil {
			return nil, err
		}
		if err := encodeViews(enc, "vos:provides", "vos:view", n.Provides); err != nil {
			return nil, err
		}
	}
	if n.Type == TypeContainerNode {
		if err := encodeChildren(enc, space, n.Children); err != nil {
			return nil, err
		}
	}
	if n.Type == TypeLinkNode {
		if err := encodeSimple(enc, "vos:target", n.Target); err != nil {
			return nil, err
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

func encodeProperties(enc *xml.Encoder, props []Property) error {
	if len(props) == 0 {
		return nil
	}
	start := xml.StartElement{Name: xml.Name{Local: "vos:properties"}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, p := range props {
		pstart := xml.StartElement{
			Name: xml.Name{Local: "vos:property"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "uri"}, Value: p.URI},
				{Name: xml.Name{Local: "readOnly"}, Value: strconv.FormatBool(p.ReadOnly)},
			},
		}
		if p.Delete {
			pstart.Attr = append(pstart.Attr, xml.Attr{Name: xml.Name{Local: "xsi:nil"}, Value: "true"})
		}
		if err := enc.EncodeToken(pstart); err != nil {
			return err
		}
		if !p.Delete && p.Value != "" {
			if err := enc.EncodeToken(xml.CharData(p.Value)); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(pstart.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func encodeViews(enc *xml.Encoder, wrapper, item string, views []View) error {
	if len(views) == 0 {
		return nil
	}
	start := xml.StartElement{Name: xml.Name{Local: wrapper}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, v := range views {
		vs := xml.StartElement{Name: xml.Name{Local: item}, Attr: []xml.Attr{{Name: xml.Name{Local: "uri"}, Value: v.URI}}}
		if err := enc.EncodeToken(vs); err != nil {
			return err
		}
		if err := enc.EncodeToken(vs.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func encodeChildren(enc *xml.Encoder, space string, children []ChildRef) error {
	start := xml.StartElement{Name: xml.Name{Local: "vos:nodes"}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, c := range children {
		cs := xml.StartElement{
			Name: xml.Name{Local: "vos:node"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "uri"}, Value: NodeURI(space, c.Path)},
				{Name: xml.Name{Local: "xsi:type"}, Value: c.Type.String()},
			},
		}
		if c.Type.IsDataNode() {
			cs.Attr = append(cs.Attr, xml.Attr{Name: xml.Name{Local: "busy"}, Value: strconv.FormatBool(c.Busy)})
		}
		if err := enc.EncodeToken(cs); err != nil {
			return err
		}
		if err := enc.EncodeToken(cs.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func encodeSimple(enc *xml.Encoder, name, value string) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if value != "" {
		if err := enc.EncodeToken(xml.CharData(value)); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}
