package transport

import "github.com/gorilla/websocket"

// WSByteWriter adapts a *websocket.Conn to io.Writer for streaming
// playback: each Write call becomes one binary WebSocket message.
// Callers that want frame-sized messages (rather than however large a
// single io.Copy buffer happens to be) should write whole frames at a
// time, as recording.FrameWriter does.
type WSByteWriter struct {
	conn *websocket.Conn
}

// NewWSByteWriter wraps conn.
func NewWSByteWriter(conn *websocket.Conn) *WSByteWriter {
	return &WSByteWriter{conn: conn}
}

// Write sends p as a single binary WebSocket message.
func (w *WSByteWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
