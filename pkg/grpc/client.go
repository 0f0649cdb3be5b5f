package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// ErrRemote wraps errors reported by the remote handler, as opposed to
// transport failures.
var ErrRemote = errors.New("rpc error")

// Client is a lightweight JSON-over-TCP RPC client. Calls are serialized on
// one connection, which is re-dialled after a transport failure.
type Client struct {
	addr        string
	dialTimeout time.Duration

	mu      sync.Mutex
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	nextID  atomic.Int64
}

// Dial connects to an RPC server at the given address.
func Dial(ctx context.Context, addr string) (*Client, error) {
	c := &Client{addr: addr, dialTimeout: 5 * time.Second}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.addr, err)
	}
	c.conn = conn
	c.encoder = json.NewEncoder(conn)
	c.decoder = json.NewDecoder(conn)
	return nil
}

// Call invokes the named RPC method with params and decodes the response
// into result. The context deadline bounds the whole round trip. Call is
// safe for concurrent use.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return err
		}
	}

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.reset()
		return fmt.Errorf("setting deadline: %w", err)
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer func() {
		if !stop() && c.conn == conn {
			c.reset()
		}
	}()

	req := Request{
		Method: method,
		ID:     strconv.FormatInt(c.nextID.Add(1), 10),
		Params: raw,
	}
	if err := c.encoder.Encode(req); err != nil {
		c.reset()
		return fmt.Errorf("sending %s: %w", method, c.cause(ctx, err))
	}

	var resp Response
	if err := c.decoder.Decode(&resp); err != nil {
		c.reset()
		return fmt.Errorf("reading %s response: %w", method, c.cause(ctx, err))
	}
	if resp.ID != req.ID {
		c.reset()
		return fmt.Errorf("%s: response id %q does not match request id %q", method, resp.ID, req.ID)
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: %s: %s", ErrRemote, method, resp.Error)
	}

	if result != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("unmarshaling %s result: %w", method, err)
		}
	}
	return nil
}

// cause prefers the context error over the i/o error it provoked.
func (c *Client) cause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (c *Client) reset() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.encoder = nil
	c.decoder = nil
}

// Close closes the underlying TCP connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
