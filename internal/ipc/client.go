package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/tidwall/sjson"
)

// Client holds one persistent connection to the bridge. Requests on a
// Client are strictly sequential.
type Client struct {
	conn net.Conn
}

// Dial connects to the bridge socket.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to bridge: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewEnvelope sets the two control flags on a payload object.
func NewEnvelope(payload []byte, isGuidance, includeMetadata bool) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	env, err := sjson.SetBytes(payload, FieldIsGuidance, isGuidance)
	if err != nil {
		return nil, fmt.Errorf("setting %s: %w", FieldIsGuidance, err)
	}
	env, err = sjson.SetBytes(env, FieldIncludeMetadata, includeMetadata)
	if err != nil {
		return nil, fmt.Errorf("setting %s: %w", FieldIncludeMetadata, err)
	}
	return env, nil
}

// Do sends one request and returns the raw response. The bridge writes one
// complete JSON document per request, so reads continue until the buffer
// holds valid JSON or MaxResponseSize is reached.
func (c *Client) Do(ctx context.Context, msg []byte) ([]byte, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	if _, err := c.conn.Write(msg); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 64<<10)
	for {
		n, err := c.conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if len(buf) > 0 && json.Valid(buf) {
			return buf, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		if len(buf) >= MaxResponseSize {
			return nil, fmt.Errorf("reading response: exceeds %d bytes", MaxResponseSize)
		}
	}
}

// Close closes the connection. The bridge sees a peer disconnect.
func (c *Client) Close() error {
	return c.conn.Close()
}
