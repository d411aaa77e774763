// Package stream implements the live transcription-and-emotion session
// served on the /ws endpoint.
//
// One [Session] exists per client connection. Its [Relay] forwards the
// client's PCM to the remote recognizer while recording it in the session
// [Extractor]; its [Consumer] reads the recognizer's results, cuts the audio
// of every final utterance out of the extractor and hands it to the shared
// inference [Pool]. Results travel through one channel to a single writer that sends
// {"text", "emotion"} messages back to the client in completion order.
//
// Dropping an utterance never ends a session: out-of-range windows,
// malformed recognizer results and failed inference are logged and skipped.
// Only transport failures and the client going away close it.
package stream

import (
	"context"
	"errors"

	"github.com/coder/websocket"
)

// ErrUpstreamProtocol marks a recognizer result that cannot be processed,
// such as a final without word timing.
var ErrUpstreamProtocol = errors.New("stream: upstream protocol error")

// Message is one result sent to the client.
type Message struct {
	Text    string `json:"text"`
	Emotion string `json:"emotion"`
}

// Conn is the client side of a session. *websocket.Conn satisfies it.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
}

var _ Conn = (*websocket.Conn)(nil)
