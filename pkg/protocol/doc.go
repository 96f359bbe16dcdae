// Package protocol implements the binary frame codec for recorded
// browser sessions.
//
// # Wire Format
//
// Every integer is fixed-width, big-endian; there are no varints on
// this wire, since a frame's length must be computable without
// decoding its payload. Strings and byte buffers are u64-length
// prefixed. Optionals are a single presence byte (0x00/0x01) followed,
// if present, by the value. Sequences are u64-count prefixed. Tagged
// unions (Frame, VNode, TextOperation, FetchError) are a discriminant
// followed by the variant payload.
//
// A frame on the wire is `u32 length_be || payload_bytes`, where
// payload_bytes is the tag plus the variant's fields. The length
// prefix lets a reader skip or buffer a frame of unknown internal
// shape without decoding it.
//
// # Frame Model
//
// Frame is a closed, tagged union of ~28 numbered variants (see
// frame.go for the canonical tag list) plus three wire-only control
// frames (RecordingMetadata, CacheManifest, PlaybackConfig) and two
// internal variants (AssetReference, Heartbeat). Tags are stable
// forever; retired variants leave their number reserved rather than
// reused. Decoding an unrecognized tag is a fatal error — the model
// never silently skips unknown data.
//
// # DOM Node Model
//
// VNode is a recursive tagged union over Element, Text, CData,
// Comment, DocType, and ProcessingInstruction, bounded during decode
// by MaxVNodeDepth to protect against adversarial nesting.
//
// # File Structure
//
//   - encoder.go / decoder.go: binary primitives
//   - frame.go: the Frame tagged union and its wire framing
//   - vnode.go: VNode, VDocument, VStyleSheet
//   - header.go: the 32-byte session file header
package protocol
