package protocol

import (
	"errors"
	"fmt"
	"io"
)

// FrameTag is the stable u32 discriminant of a Frame variant. Tags
// never change meaning and are never reused once retired; gaps in the
// numbering are expected as the protocol evolves.
type FrameTag uint32

const (
	TagTimestamp                  FrameTag = 0
	TagKeyframe                   FrameTag = 1
	TagViewportResized            FrameTag = 2
	TagScrollOffsetChanged        FrameTag = 3
	TagMouseMoved                 FrameTag = 4
	TagMouseClicked                FrameTag = 5
	TagKeyPressed                  FrameTag = 6
	TagElementFocused              FrameTag = 7
	TagTextSelectionChanged        FrameTag = 8
	TagDomNodeAdded                FrameTag = 9
	TagDomNodeRemoved              FrameTag = 10
	TagDomAttributeChanged         FrameTag = 11
	TagDomAttributeRemoved         FrameTag = 12
	TagDomTextChanged              FrameTag = 13
	TagDomNodeResized              FrameTag = 14
	TagDomNodePropertyChanged      FrameTag = 15
	TagAsset                       FrameTag = 16
	TagAdoptedStyleSheetsChanged   FrameTag = 17
	TagNewAdoptedStyleSheet        FrameTag = 18
	TagElementScrolled             FrameTag = 19
	TagElementBlurred              FrameTag = 20
	TagWindowFocused               FrameTag = 21
	TagWindowBlurred               FrameTag = 22
	TagStyleSheetRuleInserted      FrameTag = 23
	TagStyleSheetRuleDeleted       FrameTag = 24
	TagStyleSheetReplaced          FrameTag = 25
	TagCanvasChanged               FrameTag = 26
	TagDomNodePropertyTextChanged  FrameTag = 27

	// Wire-only control frames. Numbered out of the dense 0-27 run so
	// that future recorder-emitted variants can take the next small
	// gap without colliding with these transport-level frames.
	TagRecordingMetadata FrameTag = 100
	TagCacheManifest     FrameTag = 101
	TagPlaybackConfig    FrameTag = 102

	// Internal variants: the recorder may send both; ingest drops
	// Heartbeat and writes AssetReference in place of every Asset, so a
	// committed session file holds neither Asset nor Heartbeat.
	TagAssetReference FrameTag = 200
	TagHeartbeat      FrameTag = 201
)

// ErrUnknownTag is returned when a decoded Frame or VNode discriminant
// does not match any known variant. Per the frame model, this is
// always fatal — the reader cannot determine how many payload bytes
// belong to a tag it doesn't recognize.
var ErrUnknownTag = errors.New("protocol: unknown tag")

// Frame is the closed set of recorded-session events. Every
// implementation is a distinct Go type so payload fields are named and
// typed rather than living in one large optional-heavy struct.
type Frame interface {
	Tag() FrameTag
	Equal(other Frame) bool
	encodePayload(e *Encoder)
}

// EncodeFrame writes a frame's tag followed by its payload.
func EncodeFrame(e *Encoder, f Frame) {
	e.WriteTag(uint32(f.Tag()))
	f.encodePayload(e)
}

// DecodeFrame reads a tag and dispatches to the matching variant
// decoder. An unrecognized tag is ErrUnknownTag, which is always fatal.
func DecodeFrame(d *Decoder) (Frame, error) {
	tagVal, err := d.ReadTag()
	if err != nil {
		return nil, err
	}
	tag := FrameTag(tagVal)
	decodeFn, ok := frameDecoders[tag]
	if !ok {
		return nil, fmt.Errorf("%w: frame tag %d", ErrUnknownTag, tagVal)
	}
	return decodeFn(d)
}

var frameDecoders = map[FrameTag]func(*Decoder) (Frame, error){
	TagTimestamp:                 decodeTimestamp,
	TagKeyframe:                  decodeKeyframe,
	TagViewportResized:           decodeViewportResized,
	TagScrollOffsetChanged:       decodeScrollOffsetChanged,
	TagMouseMoved:                decodeMouseMoved,
	TagMouseClicked:              decodeMouseClicked,
	TagKeyPressed:                decodeKeyPressed,
	TagElementFocused:            decodeElementFocused,
	TagTextSelectionChanged:      decodeTextSelectionChanged,
	TagDomNodeAdded:              decodeDomNodeAdded,
	TagDomNodeRemoved:            decodeDomNodeRemoved,
	TagDomAttributeChanged:       decodeDomAttributeChanged,
	TagDomAttributeRemoved:       decodeDomAttributeRemoved,
	TagDomTextChanged:            decodeDomTextChanged,
	TagDomNodeResized:            decodeDomNodeResized,
	TagDomNodePropertyChanged:    decodeDomNodePropertyChanged,
	TagAsset:                     decodeAsset,
	TagAdoptedStyleSheetsChanged: decodeAdoptedStyleSheetsChanged,
	TagNewAdoptedStyleSheet:      decodeNewAdoptedStyleSheet,
	TagElementScrolled:           decodeElementScrolled,
	TagElementBlurred:            decodeElementBlurred,
	TagWindowFocused:             decodeWindowFocused,
	TagWindowBlurred:             decodeWindowBlurred,
	TagStyleSheetRuleInserted:    decodeStyleSheetRuleInserted,
	TagStyleSheetRuleDeleted:     decodeStyleSheetRuleDeleted,
	TagStyleSheetReplaced:        decodeStyleSheetReplaced,
	TagCanvasChanged:             decodeCanvasChanged,
	TagDomNodePropertyTextChanged: decodeDomNodePropertyTextChanged,
	TagRecordingMetadata:         decodeRecordingMetadata,
	TagCacheManifest:             decodeCacheManifest,
	TagPlaybackConfig:            decodePlaybackConfig,
	TagAssetReference:            decodeAssetReference,
	TagHeartbeat:                 decodeHeartbeat,
}

// --- Timestamp ---

type TimestampFrame struct {
	TimestampMs uint64
}

func (f *TimestampFrame) Tag() FrameTag { return TagTimestamp }
func (f *TimestampFrame) Equal(o Frame) bool {
	other, ok := o.(*TimestampFrame)
	return ok && other.TimestampMs == f.TimestampMs
}
func (f *TimestampFrame) encodePayload(e *Encoder) { e.WriteUint64(f.TimestampMs) }
func decodeTimestamp(d *Decoder) (Frame, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	return &TimestampFrame{TimestampMs: v}, nil
}

// --- Keyframe ---

type KeyframeFrame struct {
	Document       *VDocument
	AssetCount     uint32
	ViewportWidth  uint32
	ViewportHeight uint32
}

func (f *KeyframeFrame) Tag() FrameTag { return TagKeyframe }
func (f *KeyframeFrame) Equal(o Frame) bool {
	other, ok := o.(*KeyframeFrame)
	return ok && f.Document.Equal(other.Document) && f.AssetCount == other.AssetCount &&
		f.ViewportWidth == other.ViewportWidth && f.ViewportHeight == other.ViewportHeight
}
func (f *KeyframeFrame) encodePayload(e *Encoder) {
	EncodeVDocument(e, f.Document)
	e.WriteUint32(f.AssetCount)
	e.WriteUint32(f.ViewportWidth)
	e.WriteUint32(f.ViewportHeight)
}
func decodeKeyframe(d *Decoder) (Frame, error) {
	doc, err := DecodeVDocument(d)
	if err != nil {
		return nil, err
	}
	f := &KeyframeFrame{Document: doc}
	if f.AssetCount, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.ViewportWidth, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.ViewportHeight, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- ViewportResized ---

type ViewportResizedFrame struct {
	Width  uint32
	Height uint32
}

func (f *ViewportResizedFrame) Tag() FrameTag { return TagViewportResized }
func (f *ViewportResizedFrame) Equal(o Frame) bool {
	other, ok := o.(*ViewportResizedFrame)
	return ok && *f == *other
}
func (f *ViewportResizedFrame) encodePayload(e *Encoder) {
	e.WriteUint32(f.Width)
	e.WriteUint32(f.Height)
}
func decodeViewportResized(d *Decoder) (Frame, error) {
	f := &ViewportResizedFrame{}
	var err error
	if f.Width, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.Height, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- ScrollOffsetChanged ---

type ScrollOffsetChangedFrame struct {
	ScrollXOffset uint32
	ScrollYOffset uint32
}

func (f *ScrollOffsetChangedFrame) Tag() FrameTag { return TagScrollOffsetChanged }
func (f *ScrollOffsetChangedFrame) Equal(o Frame) bool {
	other, ok := o.(*ScrollOffsetChangedFrame)
	return ok && *f == *other
}
func (f *ScrollOffsetChangedFrame) encodePayload(e *Encoder) {
	e.WriteUint32(f.ScrollXOffset)
	e.WriteUint32(f.ScrollYOffset)
}
func decodeScrollOffsetChanged(d *Decoder) (Frame, error) {
	f := &ScrollOffsetChangedFrame{}
	var err error
	if f.ScrollXOffset, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.ScrollYOffset, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- MouseMoved ---

type MouseMovedFrame struct {
	X uint32
	Y uint32
}

func (f *MouseMovedFrame) Tag() FrameTag { return TagMouseMoved }
func (f *MouseMovedFrame) Equal(o Frame) bool {
	other, ok := o.(*MouseMovedFrame)
	return ok && *f == *other
}
func (f *MouseMovedFrame) encodePayload(e *Encoder) {
	e.WriteUint32(f.X)
	e.WriteUint32(f.Y)
}
func decodeMouseMoved(d *Decoder) (Frame, error) {
	f := &MouseMovedFrame{}
	var err error
	if f.X, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.Y, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- MouseClicked ---

type MouseClickedFrame struct {
	X uint32
	Y uint32
}

func (f *MouseClickedFrame) Tag() FrameTag { return TagMouseClicked }
func (f *MouseClickedFrame) Equal(o Frame) bool {
	other, ok := o.(*MouseClickedFrame)
	return ok && *f == *other
}
func (f *MouseClickedFrame) encodePayload(e *Encoder) {
	e.WriteUint32(f.X)
	e.WriteUint32(f.Y)
}
func decodeMouseClicked(d *Decoder) (Frame, error) {
	f := &MouseClickedFrame{}
	var err error
	if f.X, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.Y, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- KeyPressed ---

type KeyPressedFrame struct {
	Code     string
	CtrlKey  bool
	AltKey   bool
	ShiftKey bool
	MetaKey  bool
}

func (f *KeyPressedFrame) Tag() FrameTag { return TagKeyPressed }
func (f *KeyPressedFrame) Equal(o Frame) bool {
	other, ok := o.(*KeyPressedFrame)
	return ok && *f == *other
}
func (f *KeyPressedFrame) encodePayload(e *Encoder) {
	e.WriteString(f.Code)
	e.WriteBool(f.CtrlKey)
	e.WriteBool(f.AltKey)
	e.WriteBool(f.ShiftKey)
	e.WriteBool(f.MetaKey)
}
func decodeKeyPressed(d *Decoder) (Frame, error) {
	f := &KeyPressedFrame{}
	var err error
	if f.Code, err = d.ReadString(); err != nil {
		return nil, err
	}
	if f.CtrlKey, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if f.AltKey, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if f.ShiftKey, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if f.MetaKey, err = d.ReadBool(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- ElementFocused ---

type ElementFocusedFrame struct {
	NodeID uint64
}

func (f *ElementFocusedFrame) Tag() FrameTag { return TagElementFocused }
func (f *ElementFocusedFrame) Equal(o Frame) bool {
	other, ok := o.(*ElementFocusedFrame)
	return ok && *f == *other
}
func (f *ElementFocusedFrame) encodePayload(e *Encoder) { e.WriteUint64(f.NodeID) }
func decodeElementFocused(d *Decoder) (Frame, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	return &ElementFocusedFrame{NodeID: v}, nil
}

// --- TextSelectionChanged ---

type TextSelectionChangedFrame struct {
	SelectionStartNodeID uint64
	SelectionStartOffset uint32
	SelectionEndNodeID   uint64
	SelectionEndOffset   uint32
}

func (f *TextSelectionChangedFrame) Tag() FrameTag { return TagTextSelectionChanged }
func (f *TextSelectionChangedFrame) Equal(o Frame) bool {
	other, ok := o.(*TextSelectionChangedFrame)
	return ok && *f == *other
}
func (f *TextSelectionChangedFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.SelectionStartNodeID)
	e.WriteUint32(f.SelectionStartOffset)
	e.WriteUint64(f.SelectionEndNodeID)
	e.WriteUint32(f.SelectionEndOffset)
}
func decodeTextSelectionChanged(d *Decoder) (Frame, error) {
	f := &TextSelectionChangedFrame{}
	var err error
	if f.SelectionStartNodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.SelectionStartOffset, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.SelectionEndNodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.SelectionEndOffset, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- DomNodeAdded ---

type DomNodeAddedFrame struct {
	ParentNodeID uint64
	Index        uint32
	Node         *VNode
	AssetCount   uint32
}

func (f *DomNodeAddedFrame) Tag() FrameTag { return TagDomNodeAdded }
func (f *DomNodeAddedFrame) Equal(o Frame) bool {
	other, ok := o.(*DomNodeAddedFrame)
	return ok && f.ParentNodeID == other.ParentNodeID && f.Index == other.Index &&
		f.AssetCount == other.AssetCount && f.Node.Equal(other.Node)
}
func (f *DomNodeAddedFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.ParentNodeID)
	e.WriteUint32(f.Index)
	EncodeVNode(e, f.Node)
	e.WriteUint32(f.AssetCount)
}
func decodeDomNodeAdded(d *Decoder) (Frame, error) {
	f := &DomNodeAddedFrame{}
	var err error
	if f.ParentNodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.Index, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.Node, err = DecodeVNode(d); err != nil {
		return nil, err
	}
	if f.AssetCount, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- DomNodeRemoved ---
//
// Schema is {node_id} only. Earlier recorder revisions also emitted
// parent_node_id/index; the final protocol drops them since a node id
// is unique and sufficient to locate and remove the node.
type DomNodeRemovedFrame struct {
	NodeID uint64
}

func (f *DomNodeRemovedFrame) Tag() FrameTag { return TagDomNodeRemoved }
func (f *DomNodeRemovedFrame) Equal(o Frame) bool {
	other, ok := o.(*DomNodeRemovedFrame)
	return ok && *f == *other
}
func (f *DomNodeRemovedFrame) encodePayload(e *Encoder) { e.WriteUint64(f.NodeID) }
func decodeDomNodeRemoved(d *Decoder) (Frame, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	return &DomNodeRemovedFrame{NodeID: v}, nil
}

// --- DomAttributeChanged ---

type DomAttributeChangedFrame struct {
	NodeID         uint64
	AttributeName  string
	AttributeValue string
}

func (f *DomAttributeChangedFrame) Tag() FrameTag { return TagDomAttributeChanged }
func (f *DomAttributeChangedFrame) Equal(o Frame) bool {
	other, ok := o.(*DomAttributeChangedFrame)
	return ok && *f == *other
}
func (f *DomAttributeChangedFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.NodeID)
	e.WriteString(f.AttributeName)
	e.WriteString(f.AttributeValue)
}
func decodeDomAttributeChanged(d *Decoder) (Frame, error) {
	f := &DomAttributeChangedFrame{}
	var err error
	if f.NodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.AttributeName, err = d.ReadString(); err != nil {
		return nil, err
	}
	if f.AttributeValue, err = d.ReadString(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- DomAttributeRemoved ---

type DomAttributeRemovedFrame struct {
	NodeID        uint64
	AttributeName string
}

func (f *DomAttributeRemovedFrame) Tag() FrameTag { return TagDomAttributeRemoved }
func (f *DomAttributeRemovedFrame) Equal(o Frame) bool {
	other, ok := o.(*DomAttributeRemovedFrame)
	return ok && *f == *other
}
func (f *DomAttributeRemovedFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.NodeID)
	e.WriteString(f.AttributeName)
}
func decodeDomAttributeRemoved(d *Decoder) (Frame, error) {
	f := &DomAttributeRemovedFrame{}
	var err error
	if f.NodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.AttributeName, err = d.ReadString(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- TextOperation (used by DomTextChanged and DomNodePropertyTextChanged) ---

type TextOpKind uint8

const (
	TextOpInsert TextOpKind = 0
	TextOpRemove TextOpKind = 1
)

type TextOperation struct {
	Kind   TextOpKind
	Index  uint32
	Text   string // Insert only
	Length uint32 // Remove only
}

func (t TextOperation) Equal(o TextOperation) bool { return t == o }

func encodeTextOperation(e *Encoder, t TextOperation) {
	e.WriteByte(byte(t.Kind))
	e.WriteUint32(t.Index)
	switch t.Kind {
	case TextOpInsert:
		e.WriteString(t.Text)
	case TextOpRemove:
		e.WriteUint32(t.Length)
	}
}

func decodeTextOperation(d *Decoder) (TextOperation, error) {
	kindByte, err := d.ReadByte()
	if err != nil {
		return TextOperation{}, err
	}
	t := TextOperation{Kind: TextOpKind(kindByte)}
	if t.Index, err = d.ReadUint32(); err != nil {
		return TextOperation{}, err
	}
	switch t.Kind {
	case TextOpInsert:
		if t.Text, err = d.ReadString(); err != nil {
			return TextOperation{}, err
		}
	case TextOpRemove:
		if t.Length, err = d.ReadUint32(); err != nil {
			return TextOperation{}, err
		}
	default:
		return TextOperation{}, fmt.Errorf("%w: text operation kind %d", ErrUnknownTag, kindByte)
	}
	return t, nil
}

func encodeTextOperations(e *Encoder, ops []TextOperation) {
	e.WriteCount(len(ops))
	for _, op := range ops {
		encodeTextOperation(e, op)
	}
}

func decodeTextOperations(d *Decoder) ([]TextOperation, error) {
	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	ops := make([]TextOperation, count)
	for i := 0; i < count; i++ {
		if ops[i], err = decodeTextOperation(d); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func textOperationsEqual(a, b []TextOperation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// --- DomTextChanged ---

type DomTextChangedFrame struct {
	NodeID     uint64
	Operations []TextOperation
}

func (f *DomTextChangedFrame) Tag() FrameTag { return TagDomTextChanged }
func (f *DomTextChangedFrame) Equal(o Frame) bool {
	other, ok := o.(*DomTextChangedFrame)
	return ok && f.NodeID == other.NodeID && textOperationsEqual(f.Operations, other.Operations)
}
func (f *DomTextChangedFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.NodeID)
	encodeTextOperations(e, f.Operations)
}
func decodeDomTextChanged(d *Decoder) (Frame, error) {
	f := &DomTextChangedFrame{}
	var err error
	if f.NodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.Operations, err = decodeTextOperations(d); err != nil {
		return nil, err
	}
	return f, nil
}

// --- DomNodeResized ---

type DomNodeResizedFrame struct {
	NodeID uint64
	Width  uint32
	Height uint32
}

func (f *DomNodeResizedFrame) Tag() FrameTag { return TagDomNodeResized }
func (f *DomNodeResizedFrame) Equal(o Frame) bool {
	other, ok := o.(*DomNodeResizedFrame)
	return ok && *f == *other
}
func (f *DomNodeResizedFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.NodeID)
	e.WriteUint32(f.Width)
	e.WriteUint32(f.Height)
}
func decodeDomNodeResized(d *Decoder) (Frame, error) {
	f := &DomNodeResizedFrame{}
	var err error
	if f.NodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.Width, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.Height, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- DomNodePropertyChanged ---

type DomNodePropertyChangedFrame struct {
	NodeID        uint64
	PropertyName  string
	PropertyValue string
}

func (f *DomNodePropertyChangedFrame) Tag() FrameTag { return TagDomNodePropertyChanged }
func (f *DomNodePropertyChangedFrame) Equal(o Frame) bool {
	other, ok := o.(*DomNodePropertyChangedFrame)
	return ok && *f == *other
}
func (f *DomNodePropertyChangedFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.NodeID)
	e.WriteString(f.PropertyName)
	e.WriteString(f.PropertyValue)
}
func decodeDomNodePropertyChanged(d *Decoder) (Frame, error) {
	f := &DomNodePropertyChangedFrame{}
	var err error
	if f.NodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.PropertyName, err = d.ReadString(); err != nil {
		return nil, err
	}
	if f.PropertyValue, err = d.ReadString(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- DomNodePropertyTextChanged ---

type DomNodePropertyTextChangedFrame struct {
	NodeID       uint64
	PropertyName string
	Operations   []TextOperation
}

func (f *DomNodePropertyTextChangedFrame) Tag() FrameTag { return TagDomNodePropertyTextChanged }
func (f *DomNodePropertyTextChangedFrame) Equal(o Frame) bool {
	other, ok := o.(*DomNodePropertyTextChangedFrame)
	return ok && f.NodeID == other.NodeID && f.PropertyName == other.PropertyName &&
		textOperationsEqual(f.Operations, other.Operations)
}
func (f *DomNodePropertyTextChangedFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.NodeID)
	e.WriteString(f.PropertyName)
	encodeTextOperations(e, f.Operations)
}
func decodeDomNodePropertyTextChanged(d *Decoder) (Frame, error) {
	f := &DomNodePropertyTextChangedFrame{}
	var err error
	if f.NodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.PropertyName, err = d.ReadString(); err != nil {
		return nil, err
	}
	if f.Operations, err = decodeTextOperations(d); err != nil {
		return nil, err
	}
	return f, nil
}

// --- FetchError (embedded in Asset) ---

type FetchErrorKind uint8

const (
	FetchErrorNone    FetchErrorKind = 0
	FetchErrorCORS    FetchErrorKind = 1
	FetchErrorNetwork FetchErrorKind = 2
	FetchErrorHttp    FetchErrorKind = 3
	FetchErrorUnknown FetchErrorKind = 4
)

type FetchError struct {
	Kind    FetchErrorKind
	Message string // Unknown only
}

func (f FetchError) Equal(o FetchError) bool { return f == o }

func encodeFetchError(e *Encoder, f FetchError) {
	e.WriteByte(byte(f.Kind))
	if f.Kind == FetchErrorUnknown {
		e.WriteString(f.Message)
	}
}

func decodeFetchError(d *Decoder) (FetchError, error) {
	kindByte, err := d.ReadByte()
	if err != nil {
		return FetchError{}, err
	}
	f := FetchError{Kind: FetchErrorKind(kindByte)}
	switch f.Kind {
	case FetchErrorNone, FetchErrorCORS, FetchErrorNetwork, FetchErrorHttp:
		return f, nil
	case FetchErrorUnknown:
		if f.Message, err = d.ReadString(); err != nil {
			return FetchError{}, err
		}
		return f, nil
	default:
		return FetchError{}, fmt.Errorf("%w: fetch error kind %d", ErrUnknownTag, kindByte)
	}
}

// --- Asset ---

type AssetFrame struct {
	AssetID    uint64
	URL        string
	Mime       *string
	Buf        []byte
	FetchError FetchError
}

func (f *AssetFrame) Tag() FrameTag { return TagAsset }
func (f *AssetFrame) Equal(o Frame) bool {
	other, ok := o.(*AssetFrame)
	if !ok {
		return false
	}
	return f.AssetID == other.AssetID && f.URL == other.URL &&
		optStrEqual(f.Mime, other.Mime) && bytesEqual(f.Buf, other.Buf) &&
		f.FetchError.Equal(other.FetchError)
}
func (f *AssetFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.AssetID)
	e.WriteString(f.URL)
	e.WriteOptionalString(f.Mime)
	e.WriteLenBytes(f.Buf)
	encodeFetchError(e, f.FetchError)
}
func decodeAsset(d *Decoder) (Frame, error) {
	f := &AssetFrame{}
	var err error
	if f.AssetID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.URL, err = d.ReadString(); err != nil {
		return nil, err
	}
	if f.Mime, err = d.ReadOptionalString(); err != nil {
		return nil, err
	}
	if f.Buf, err = d.ReadLenBytes(); err != nil {
		return nil, err
	}
	if f.FetchError, err = decodeFetchError(d); err != nil {
		return nil, err
	}
	return f, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- AdoptedStyleSheetsChanged ---

type AdoptedStyleSheetsChangedFrame struct {
	StyleSheetIDs []uint32
	AddedCount    uint32
}

func (f *AdoptedStyleSheetsChangedFrame) Tag() FrameTag { return TagAdoptedStyleSheetsChanged }
func (f *AdoptedStyleSheetsChangedFrame) Equal(o Frame) bool {
	other, ok := o.(*AdoptedStyleSheetsChangedFrame)
	if !ok || f.AddedCount != other.AddedCount || len(f.StyleSheetIDs) != len(other.StyleSheetIDs) {
		return false
	}
	for i := range f.StyleSheetIDs {
		if f.StyleSheetIDs[i] != other.StyleSheetIDs[i] {
			return false
		}
	}
	return true
}
func (f *AdoptedStyleSheetsChangedFrame) encodePayload(e *Encoder) {
	e.WriteCount(len(f.StyleSheetIDs))
	for _, id := range f.StyleSheetIDs {
		e.WriteUint32(id)
	}
	e.WriteUint32(f.AddedCount)
}
func decodeAdoptedStyleSheetsChanged(d *Decoder) (Frame, error) {
	f := &AdoptedStyleSheetsChangedFrame{}
	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		f.StyleSheetIDs = make([]uint32, count)
		for i := 0; i < count; i++ {
			if f.StyleSheetIDs[i], err = d.ReadUint32(); err != nil {
				return nil, err
			}
		}
	}
	if f.AddedCount, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- NewAdoptedStyleSheet ---

type NewAdoptedStyleSheetFrame struct {
	StyleSheet *VStyleSheet
	AssetCount uint32
}

func (f *NewAdoptedStyleSheetFrame) Tag() FrameTag { return TagNewAdoptedStyleSheet }
func (f *NewAdoptedStyleSheetFrame) Equal(o Frame) bool {
	other, ok := o.(*NewAdoptedStyleSheetFrame)
	return ok && f.AssetCount == other.AssetCount && f.StyleSheet.Equal(other.StyleSheet)
}
func (f *NewAdoptedStyleSheetFrame) encodePayload(e *Encoder) {
	EncodeVStyleSheet(e, f.StyleSheet)
	e.WriteUint32(f.AssetCount)
}
func decodeNewAdoptedStyleSheet(d *Decoder) (Frame, error) {
	s, err := DecodeVStyleSheet(d)
	if err != nil {
		return nil, err
	}
	f := &NewAdoptedStyleSheetFrame{StyleSheet: s}
	if f.AssetCount, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- ElementScrolled ---

type ElementScrolledFrame struct {
	NodeID        uint64
	ScrollXOffset uint32
	ScrollYOffset uint32
}

func (f *ElementScrolledFrame) Tag() FrameTag { return TagElementScrolled }
func (f *ElementScrolledFrame) Equal(o Frame) bool {
	other, ok := o.(*ElementScrolledFrame)
	return ok && *f == *other
}
func (f *ElementScrolledFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.NodeID)
	e.WriteUint32(f.ScrollXOffset)
	e.WriteUint32(f.ScrollYOffset)
}
func decodeElementScrolled(d *Decoder) (Frame, error) {
	f := &ElementScrolledFrame{}
	var err error
	if f.NodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.ScrollXOffset, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.ScrollYOffset, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- ElementBlurred ---

type ElementBlurredFrame struct {
	NodeID uint64
}

func (f *ElementBlurredFrame) Tag() FrameTag { return TagElementBlurred }
func (f *ElementBlurredFrame) Equal(o Frame) bool {
	other, ok := o.(*ElementBlurredFrame)
	return ok && *f == *other
}
func (f *ElementBlurredFrame) encodePayload(e *Encoder) { e.WriteUint64(f.NodeID) }
func decodeElementBlurred(d *Decoder) (Frame, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	return &ElementBlurredFrame{NodeID: v}, nil
}

// --- WindowFocused / WindowBlurred (no fields) ---

type WindowFocusedFrame struct{}

func (f *WindowFocusedFrame) Tag() FrameTag          { return TagWindowFocused }
func (f *WindowFocusedFrame) Equal(o Frame) bool     { _, ok := o.(*WindowFocusedFrame); return ok }
func (f *WindowFocusedFrame) encodePayload(e *Encoder) {}
func decodeWindowFocused(d *Decoder) (Frame, error)  { return &WindowFocusedFrame{}, nil }

type WindowBlurredFrame struct{}

func (f *WindowBlurredFrame) Tag() FrameTag          { return TagWindowBlurred }
func (f *WindowBlurredFrame) Equal(o Frame) bool     { _, ok := o.(*WindowBlurredFrame); return ok }
func (f *WindowBlurredFrame) encodePayload(e *Encoder) {}
func decodeWindowBlurred(d *Decoder) (Frame, error)  { return &WindowBlurredFrame{}, nil }

// --- StyleSheetRuleInserted ---

type StyleSheetRuleInsertedFrame struct {
	StyleSheetID uint32
	Index        uint32
	Rule         string
}

func (f *StyleSheetRuleInsertedFrame) Tag() FrameTag { return TagStyleSheetRuleInserted }
func (f *StyleSheetRuleInsertedFrame) Equal(o Frame) bool {
	other, ok := o.(*StyleSheetRuleInsertedFrame)
	return ok && *f == *other
}
func (f *StyleSheetRuleInsertedFrame) encodePayload(e *Encoder) {
	e.WriteUint32(f.StyleSheetID)
	e.WriteUint32(f.Index)
	e.WriteString(f.Rule)
}
func decodeStyleSheetRuleInserted(d *Decoder) (Frame, error) {
	f := &StyleSheetRuleInsertedFrame{}
	var err error
	if f.StyleSheetID, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.Index, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.Rule, err = d.ReadString(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- StyleSheetRuleDeleted ---

type StyleSheetRuleDeletedFrame struct {
	StyleSheetID uint32
	Index        uint32
}

func (f *StyleSheetRuleDeletedFrame) Tag() FrameTag { return TagStyleSheetRuleDeleted }
func (f *StyleSheetRuleDeletedFrame) Equal(o Frame) bool {
	other, ok := o.(*StyleSheetRuleDeletedFrame)
	return ok && *f == *other
}
func (f *StyleSheetRuleDeletedFrame) encodePayload(e *Encoder) {
	e.WriteUint32(f.StyleSheetID)
	e.WriteUint32(f.Index)
}
func decodeStyleSheetRuleDeleted(d *Decoder) (Frame, error) {
	f := &StyleSheetRuleDeletedFrame{}
	var err error
	if f.StyleSheetID, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.Index, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- StyleSheetReplaced ---

type StyleSheetReplacedFrame struct {
	StyleSheetID uint32
	Text         string
}

func (f *StyleSheetReplacedFrame) Tag() FrameTag { return TagStyleSheetReplaced }
func (f *StyleSheetReplacedFrame) Equal(o Frame) bool {
	other, ok := o.(*StyleSheetReplacedFrame)
	return ok && *f == *other
}
func (f *StyleSheetReplacedFrame) encodePayload(e *Encoder) {
	e.WriteUint32(f.StyleSheetID)
	e.WriteString(f.Text)
}
func decodeStyleSheetReplaced(d *Decoder) (Frame, error) {
	f := &StyleSheetReplacedFrame{}
	var err error
	if f.StyleSheetID, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if f.Text, err = d.ReadString(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- CanvasChanged ---

type CanvasChangedFrame struct {
	NodeID uint64
	Mime   *string
	Buf    []byte
}

func (f *CanvasChangedFrame) Tag() FrameTag { return TagCanvasChanged }
func (f *CanvasChangedFrame) Equal(o Frame) bool {
	other, ok := o.(*CanvasChangedFrame)
	return ok && f.NodeID == other.NodeID && optStrEqual(f.Mime, other.Mime) && bytesEqual(f.Buf, other.Buf)
}
func (f *CanvasChangedFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.NodeID)
	e.WriteOptionalString(f.Mime)
	e.WriteLenBytes(f.Buf)
}
func decodeCanvasChanged(d *Decoder) (Frame, error) {
	f := &CanvasChangedFrame{}
	var err error
	if f.NodeID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.Mime, err = d.ReadOptionalString(); err != nil {
		return nil, err
	}
	if f.Buf, err = d.ReadLenBytes(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- RecordingMetadata ---

type RecordingMetadataFrame struct {
	InitialURL string
}

func (f *RecordingMetadataFrame) Tag() FrameTag { return TagRecordingMetadata }
func (f *RecordingMetadataFrame) Equal(o Frame) bool {
	other, ok := o.(*RecordingMetadataFrame)
	return ok && *f == *other
}
func (f *RecordingMetadataFrame) encodePayload(e *Encoder) { e.WriteString(f.InitialURL) }
func decodeRecordingMetadata(d *Decoder) (Frame, error) {
	s, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &RecordingMetadataFrame{InitialURL: s}, nil
}

// --- CacheManifest ---

type ManifestEntry struct {
	URL         string
	ContentHash string
}

type CacheManifestFrame struct {
	SiteOrigin string
	Assets     []ManifestEntry
}

func (f *CacheManifestFrame) Tag() FrameTag { return TagCacheManifest }
func (f *CacheManifestFrame) Equal(o Frame) bool {
	other, ok := o.(*CacheManifestFrame)
	if !ok || f.SiteOrigin != other.SiteOrigin || len(f.Assets) != len(other.Assets) {
		return false
	}
	for i := range f.Assets {
		if f.Assets[i] != other.Assets[i] {
			return false
		}
	}
	return true
}
func (f *CacheManifestFrame) encodePayload(e *Encoder) {
	e.WriteString(f.SiteOrigin)
	e.WriteCount(len(f.Assets))
	for _, a := range f.Assets {
		e.WriteString(a.URL)
		e.WriteString(a.ContentHash)
	}
}
func decodeCacheManifest(d *Decoder) (Frame, error) {
	f := &CacheManifestFrame{}
	var err error
	if f.SiteOrigin, err = d.ReadString(); err != nil {
		return nil, err
	}
	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		f.Assets = make([]ManifestEntry, count)
		for i := 0; i < count; i++ {
			if f.Assets[i].URL, err = d.ReadString(); err != nil {
				return nil, err
			}
			if f.Assets[i].ContentHash, err = d.ReadString(); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// --- PlaybackConfig ---

type PlaybackConfigFrame struct {
	StorageType      string
	ConfigJSON       string
	IsLive           bool
	LatestTimestamp  *uint64
}

func (f *PlaybackConfigFrame) Tag() FrameTag { return TagPlaybackConfig }
func (f *PlaybackConfigFrame) Equal(o Frame) bool {
	other, ok := o.(*PlaybackConfigFrame)
	if !ok {
		return false
	}
	if f.StorageType != other.StorageType || f.ConfigJSON != other.ConfigJSON || f.IsLive != other.IsLive {
		return false
	}
	if (f.LatestTimestamp == nil) != (other.LatestTimestamp == nil) {
		return false
	}
	return f.LatestTimestamp == nil || *f.LatestTimestamp == *other.LatestTimestamp
}
func (f *PlaybackConfigFrame) encodePayload(e *Encoder) {
	e.WriteString(f.StorageType)
	e.WriteString(f.ConfigJSON)
	e.WriteBool(f.IsLive)
	if f.LatestTimestamp == nil {
		e.WriteByte(0x00)
	} else {
		e.WriteByte(0x01)
		e.WriteUint64(*f.LatestTimestamp)
	}
}
func decodePlaybackConfig(d *Decoder) (Frame, error) {
	f := &PlaybackConfigFrame{}
	var err error
	if f.StorageType, err = d.ReadString(); err != nil {
		return nil, err
	}
	if f.ConfigJSON, err = d.ReadString(); err != nil {
		return nil, err
	}
	if f.IsLive, err = d.ReadBool(); err != nil {
		return nil, err
	}
	present, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	switch present {
	case 0x00:
	case 0x01:
		ts, err := d.ReadUint64()
		if err != nil {
			return nil, err
		}
		f.LatestTimestamp = &ts
	default:
		return nil, ErrInvalidOption
	}
	return f, nil
}

// --- AssetReference ---

type AssetReferenceFrame struct {
	AssetID uint64
	URL     string
	Hash    string
	Mime    *string
}

func (f *AssetReferenceFrame) Tag() FrameTag { return TagAssetReference }
func (f *AssetReferenceFrame) Equal(o Frame) bool {
	other, ok := o.(*AssetReferenceFrame)
	return ok && f.AssetID == other.AssetID && f.URL == other.URL && f.Hash == other.Hash &&
		optStrEqual(f.Mime, other.Mime)
}
func (f *AssetReferenceFrame) encodePayload(e *Encoder) {
	e.WriteUint64(f.AssetID)
	e.WriteString(f.URL)
	e.WriteString(f.Hash)
	e.WriteOptionalString(f.Mime)
}
func decodeAssetReference(d *Decoder) (Frame, error) {
	f := &AssetReferenceFrame{}
	var err error
	if f.AssetID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if f.URL, err = d.ReadString(); err != nil {
		return nil, err
	}
	if f.Hash, err = d.ReadString(); err != nil {
		return nil, err
	}
	if f.Mime, err = d.ReadOptionalString(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- Heartbeat (no fields) ---

type HeartbeatFrame struct{}

func (f *HeartbeatFrame) Tag() FrameTag          { return TagHeartbeat }
func (f *HeartbeatFrame) Equal(o Frame) bool     { _, ok := o.(*HeartbeatFrame); return ok }
func (f *HeartbeatFrame) encodePayload(e *Encoder) {}
func decodeHeartbeat(d *Decoder) (Frame, error)  { return &HeartbeatFrame{}, nil }

// --- Wire framing: u32 length_be || payload_bytes ---

// EncodeWireFrame encodes a frame's tag+payload and prefixes it with
// its u32 big-endian byte length, ready to write to any byte sink.
func EncodeWireFrame(f Frame) []byte {
	inner := NewEncoder()
	EncodeFrame(inner, f)
	outer := NewEncoderWithCap(4 + inner.Len())
	outer.WriteUint32(uint32(inner.Len()))
	outer.WriteBytes(inner.Bytes())
	return outer.Bytes()
}

// WriteWireFrame writes a length-prefixed frame to w.
func WriteWireFrame(w io.Writer, f Frame) error {
	_, err := w.Write(EncodeWireFrame(f))
	return err
}

// ReadWireFrame reads one length-prefixed frame synchronously from r,
// blocking until the full length prefix and payload have arrived. It
// returns (nil, io.EOF) only on a clean EOF exactly at a frame
// boundary (no bytes of the next length prefix read); any other error
// mid-frame is fatal. Callers that must tolerate arbitrary byte
// chunking from an async source (e.g. a WebSocket) should use the
// incremental reader in package recording instead.
func ReadWireFrame(r io.Reader) (Frame, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	length := uint32(lenBuf[0])<<24 | uint32(lenBuf[1])<<16 | uint32(lenBuf[2])<<8 | uint32(lenBuf[3])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return DecodeFrame(NewDecoder(payload))
}
