package conn

import (
	"context"

	"github.com/coder/websocket"
)

// Transport is the minimal surface the manager needs from a socket. The
// production implementation wraps coder/websocket; tests substitute fakes
// through the Dialer.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code int, reason string) error
}

// Dialer opens a transport to the given endpoint, blocking until the
// handshake completes or the context is done.
type Dialer func(ctx context.Context, endpoint string) (Transport, error)

type wsTransport struct {
	c *websocket.Conn
}

// DialWebsocket is the default Dialer.
func DialWebsocket(ctx context.Context, endpoint string) (Transport, error) {
	c, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{c: c}, nil
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.c.Read(ctx)
	return data, err
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.c.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close(code int, reason string) error {
	return t.c.Close(websocket.StatusCode(code), reason)
}

// closeStatus extracts the websocket close code from a read error, or -1 if
// the error was not a close frame (network failure, cancellation).
func closeStatus(err error) int {
	return int(websocket.CloseStatus(err))
}

// CodeNormalClosure is the clean shutdown code (RFC 6455 1000).
const CodeNormalClosure = int(websocket.StatusNormalClosure)
