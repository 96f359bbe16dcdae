package protocol

import (
	"errors"
	"fmt"
)

// MaxVNodeDepth bounds the recursion depth the decoder will follow into
// a VNode tree. The recorder's own HTML depth is bounded in practice,
// but the wire input is untrusted, so decode must refuse to recurse
// past this budget rather than overflow the goroutine stack.
const MaxVNodeDepth = 10_000

// ErrMaxDepthExceeded is returned when a VNode tree (or any other
// recursive wire structure) nests deeper than MaxVNodeDepth.
var ErrMaxDepthExceeded = errors.New("protocol: max recursion depth exceeded")

func checkDepth(depth, max int) error {
	if depth > max {
		return fmt.Errorf("%w: depth %d exceeds limit %d", ErrMaxDepthExceeded, depth, max)
	}
	return nil
}

// VKind identifies a VNode variant.
type VKind uint8

const (
	VKindElement               VKind = 0
	VKindText                  VKind = 1
	VKindCData                 VKind = 2
	VKindComment               VKind = 3
	VKindDocType               VKind = 4
	VKindProcessingInstruction VKind = 5
)

// Attr is an ordered (name, value) attribute pair. Duplicate names are
// disallowed by the recorder; order is preserved on the wire even
// though only some recorders assign it semantic meaning.
type Attr struct {
	Name  string
	Value string
}

// VNode is a tagged union over the six DOM node kinds the recorder can
// emit. Every node carries an id that is unique within a recording
// session and never reused; ids are assigned by the recorder, not here.
type VNode struct {
	Kind VKind
	ID   uint32

	// Element fields.
	Tag       string
	Namespace *string
	Attrs     []Attr
	Children  []*VNode

	// Text / CData / Comment / ProcessingInstruction fields.
	Data string

	// ProcessingInstruction target (e.g. "xml-stylesheet").
	Target string

	// DocType fields.
	DocTypeName string
	PublicID    *string
	SystemID    *string
}

// Equal reports whether two VNodes are deeply, structurally equal.
func (n *VNode) Equal(o *VNode) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Kind != o.Kind || n.ID != o.ID {
		return false
	}
	switch n.Kind {
	case VKindElement:
		if n.Tag != o.Tag || !optStrEqual(n.Namespace, o.Namespace) {
			return false
		}
		if len(n.Attrs) != len(o.Attrs) {
			return false
		}
		for i := range n.Attrs {
			if n.Attrs[i] != o.Attrs[i] {
				return false
			}
		}
		if len(n.Children) != len(o.Children) {
			return false
		}
		for i := range n.Children {
			if !n.Children[i].Equal(o.Children[i]) {
				return false
			}
		}
		return true
	case VKindText, VKindCData, VKindComment:
		return n.Data == o.Data
	case VKindProcessingInstruction:
		return n.Target == o.Target && n.Data == o.Data
	case VKindDocType:
		return n.DocTypeName == o.DocTypeName &&
			optStrEqual(n.PublicID, o.PublicID) &&
			optStrEqual(n.SystemID, o.SystemID)
	default:
		return false
	}
}

func optStrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// EncodeVNode encodes a VNode (tagged union: u8 kind + payload — VNode
// uses a single byte discriminant rather than Frame's u32, since it is
// nested arbitrarily deep inside a Keyframe/DomNodeAdded payload and a
// byte is sufficient for six variants).
func EncodeVNode(e *Encoder, n *VNode) {
	e.WriteByte(byte(n.Kind))
	switch n.Kind {
	case VKindElement:
		e.WriteUint32(n.ID)
		e.WriteString(n.Tag)
		e.WriteOptionalString(n.Namespace)
		e.WriteCount(len(n.Attrs))
		for _, a := range n.Attrs {
			e.WriteString(a.Name)
			e.WriteString(a.Value)
		}
		e.WriteCount(len(n.Children))
		for _, c := range n.Children {
			EncodeVNode(e, c)
		}
	case VKindText, VKindCData, VKindComment:
		e.WriteUint32(n.ID)
		e.WriteString(n.Data)
	case VKindProcessingInstruction:
		e.WriteUint32(n.ID)
		e.WriteString(n.Target)
		e.WriteString(n.Data)
	case VKindDocType:
		e.WriteUint32(n.ID)
		e.WriteString(n.DocTypeName)
		e.WriteOptionalString(n.PublicID)
		e.WriteOptionalString(n.SystemID)
	}
}

// DecodeVNode decodes a VNode, rejecting trees deeper than MaxVNodeDepth.
func DecodeVNode(d *Decoder) (*VNode, error) {
	return decodeVNodeDepth(d, 0)
}

func decodeVNodeDepth(d *Decoder, depth int) (*VNode, error) {
	if err := checkDepth(depth, MaxVNodeDepth); err != nil {
		return nil, err
	}

	kindByte, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	kind := VKind(kindByte)

	n := &VNode{Kind: kind}
	switch kind {
	case VKindElement:
		if n.ID, err = d.ReadUint32(); err != nil {
			return nil, err
		}
		if n.Tag, err = d.ReadString(); err != nil {
			return nil, err
		}
		if n.Namespace, err = d.ReadOptionalString(); err != nil {
			return nil, err
		}
		attrCount, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		if attrCount > 0 {
			n.Attrs = make([]Attr, attrCount)
			for i := 0; i < attrCount; i++ {
				name, err := d.ReadString()
				if err != nil {
					return nil, err
				}
				value, err := d.ReadString()
				if err != nil {
					return nil, err
				}
				n.Attrs[i] = Attr{Name: name, Value: value}
			}
		}
		childCount, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		if childCount > 0 {
			n.Children = make([]*VNode, childCount)
			for i := 0; i < childCount; i++ {
				child, err := decodeVNodeDepth(d, depth+1)
				if err != nil {
					return nil, err
				}
				n.Children[i] = child
			}
		}

	case VKindText, VKindCData, VKindComment:
		if n.ID, err = d.ReadUint32(); err != nil {
			return nil, err
		}
		if n.Data, err = d.ReadString(); err != nil {
			return nil, err
		}

	case VKindProcessingInstruction:
		if n.ID, err = d.ReadUint32(); err != nil {
			return nil, err
		}
		if n.Target, err = d.ReadString(); err != nil {
			return nil, err
		}
		if n.Data, err = d.ReadString(); err != nil {
			return nil, err
		}

	case VKindDocType:
		if n.ID, err = d.ReadUint32(); err != nil {
			return nil, err
		}
		if n.DocTypeName, err = d.ReadString(); err != nil {
			return nil, err
		}
		if n.PublicID, err = d.ReadOptionalString(); err != nil {
			return nil, err
		}
		if n.SystemID, err = d.ReadOptionalString(); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: unknown VNode kind %d", ErrUnknownTag, kindByte)
	}

	return n, nil
}

// VStyleSheet is an adopted or inserted stylesheet.
type VStyleSheet struct {
	ID    uint32
	Text  string
	Media *string
}

func (s *VStyleSheet) Equal(o *VStyleSheet) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.ID == o.ID && s.Text == o.Text && optStrEqual(s.Media, o.Media)
}

// EncodeVStyleSheet encodes a VStyleSheet payload (no own discriminant —
// it only ever appears embedded in a Frame payload).
func EncodeVStyleSheet(e *Encoder, s *VStyleSheet) {
	e.WriteUint32(s.ID)
	e.WriteString(s.Text)
	e.WriteOptionalString(s.Media)
}

// DecodeVStyleSheet decodes a VStyleSheet payload.
func DecodeVStyleSheet(d *Decoder) (*VStyleSheet, error) {
	s := &VStyleSheet{}
	var err error
	if s.ID, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if s.Text, err = d.ReadString(); err != nil {
		return nil, err
	}
	if s.Media, err = d.ReadOptionalString(); err != nil {
		return nil, err
	}
	return s, nil
}

// VDocument is the keyframe payload: a document id, the ordered set of
// stylesheets adopted at keyframe time (deltas arrive later as
// NewAdoptedStyleSheet frames — the keyframe never implies otherwise),
// and the document's child nodes, typically [DocType, Element("html")].
type VDocument struct {
	DocumentID        uint32
	AdoptedStyleSheets []*VStyleSheet
	Children          []*VNode
}

func (doc *VDocument) Equal(o *VDocument) bool {
	if doc == nil || o == nil {
		return doc == o
	}
	if doc.DocumentID != o.DocumentID {
		return false
	}
	if len(doc.AdoptedStyleSheets) != len(o.AdoptedStyleSheets) {
		return false
	}
	for i := range doc.AdoptedStyleSheets {
		if !doc.AdoptedStyleSheets[i].Equal(o.AdoptedStyleSheets[i]) {
			return false
		}
	}
	if len(doc.Children) != len(o.Children) {
		return false
	}
	for i := range doc.Children {
		if !doc.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// EncodeVDocument encodes a VDocument payload.
func EncodeVDocument(e *Encoder, doc *VDocument) {
	e.WriteUint32(doc.DocumentID)
	e.WriteCount(len(doc.AdoptedStyleSheets))
	for _, s := range doc.AdoptedStyleSheets {
		EncodeVStyleSheet(e, s)
	}
	e.WriteCount(len(doc.Children))
	for _, c := range doc.Children {
		EncodeVNode(e, c)
	}
}

// DecodeVDocument decodes a VDocument payload.
func DecodeVDocument(d *Decoder) (*VDocument, error) {
	doc := &VDocument{}
	var err error
	if doc.DocumentID, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	sheetCount, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if sheetCount > 0 {
		doc.AdoptedStyleSheets = make([]*VStyleSheet, sheetCount)
		for i := 0; i < sheetCount; i++ {
			s, err := DecodeVStyleSheet(d)
			if err != nil {
				return nil, err
			}
			doc.AdoptedStyleSheets[i] = s
		}
	}
	childCount, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if childCount > 0 {
		doc.Children = make([]*VNode, childCount)
		for i := 0; i < childCount; i++ {
			c, err := decodeVNodeDepth(d, 0)
			if err != nil {
				return nil, err
			}
			doc.Children[i] = c
		}
	}
	return doc, nil
}
