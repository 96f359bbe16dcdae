// Package transport adapts a WebSocket connection to the interfaces
// the ingest pipeline and playback handlers need, so neither package
// depends on gorilla/websocket directly.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gorilla/websocket"

	"github.com/dnorman/domcorder/pkg/protocol"
)

// ErrUnexpectedMessageType is returned when a peer sends a text
// frame where this protocol only ever expects binary.
var ErrUnexpectedMessageType = errors.New("transport: unexpected websocket message type")

// WSSource adapts a *websocket.Conn into an ingest.Source: each
// binary WebSocket message becomes one NextMessage result.
type WSSource struct {
	conn *websocket.Conn
}

// NewWSSource wraps conn.
func NewWSSource(conn *websocket.Conn) *WSSource {
	return &WSSource{conn: conn}
}

// NextMessage blocks for the next binary message. A clean close
// (CloseNormalClosure/CloseGoingAway) surfaces as io.EOF so callers
// can distinguish "done" from "broken".
func (s *WSSource) NextMessage(ctx context.Context) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			ch <- result{nil, err}
			return
		}
		if msgType != websocket.BinaryMessage {
			ch <- result{nil, ErrUnexpectedMessageType}
			return
		}
		ch <- result{data, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			if websocket.IsCloseError(r.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, r.err
		}
		return r.data, nil
	}
}

// WSSink adapts a *websocket.Conn into an ingest.Sink: a manifest
// frame is wire-encoded and sent as one binary message.
type WSSink struct {
	conn *websocket.Conn
}

// NewWSSink wraps conn.
func NewWSSink(conn *websocket.Conn) *WSSink {
	return &WSSink{conn: conn}
}

// SendManifest encodes frame with the standard length-prefixed wire
// framing and writes it as a single binary WebSocket message.
func (s *WSSink) SendManifest(ctx context.Context, frame protocol.Frame) error {
	data := protocol.EncodeWireFrame(frame)
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("transport: send manifest: %w", err)
	}
	return nil
}
