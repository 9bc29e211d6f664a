package rpc

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Client connects to one shard replica for a single RPC call. Each call
// dials fresh, mirroring the teacher daemon client's per-call Connect()
// lifecycle rather than holding a long-lived connection.
type Client struct {
	addr      string
	timeout   time.Duration
	requestID atomic.Uint64
}

// NewClient builds a client dialing addr (host:port) with the given
// per-call timeout.
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", c.addr, err)
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rpc: set deadline: %w", err)
	}
	return conn, nil
}

func (c *Client) call(ctx context.Context, method string, payload any) ([]byte, error) {
	body, err := cbor.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode %s payload: %w", method, err)
	}
	req := Request{ID: c.requestID.Add(1), Method: method, Payload: body}
	reqBytes, err := cbor.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode request: %w", err)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := writeFrame(conn, reqBytes); err != nil {
		return nil, err
	}
	respBytes, err := readFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("rpc: %s: %w", method, err)
	}

	var resp Response
	if err := cbor.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("rpc: decode response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("rpc: %s: %s", method, resp.Error)
	}
	return resp.Payload, nil
}

// Search invokes MethodSearch on the replica.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	payload, err := c.call(ctx, MethodSearch, req)
	if err != nil {
		return nil, err
	}
	var resp SearchResponse
	if err := cbor.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("rpc: decode search response: %w", err)
	}
	return &resp, nil
}

// Retrieve invokes MethodRetrieve on the replica.
func (c *Client) Retrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResponse, error) {
	payload, err := c.call(ctx, MethodRetrieve, req)
	if err != nil {
		return nil, err
	}
	var resp RetrieveResponse
	if err := cbor.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("rpc: decode retrieve response: %w", err)
	}
	return &resp, nil
}

// Size invokes MethodSize on the replica.
func (c *Client) Size(ctx context.Context) (*SizeResponse, error) {
	payload, err := c.call(ctx, MethodSize, struct{}{})
	if err != nil {
		return nil, err
	}
	var resp SizeResponse
	if err := cbor.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("rpc: decode size response: %w", err)
	}
	return &resp, nil
}

// GetWebpage invokes MethodGetWebpage on the replica.
func (c *Client) GetWebpage(ctx context.Context, url string) (*GetPageResponse, error) {
	payload, err := c.call(ctx, MethodGetWebpage, GetWebpageRequest{URL: url})
	if err != nil {
		return nil, err
	}
	var resp GetPageResponse
	if err := cbor.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("rpc: decode get_webpage response: %w", err)
	}
	return &resp, nil
}

// GetHomepage invokes MethodGetHomepage on the replica.
func (c *Client) GetHomepage(ctx context.Context, host string) (*GetPageResponse, error) {
	payload, err := c.call(ctx, MethodGetHomepage, GetHomepageRequest{Host: host})
	if err != nil {
		return nil, err
	}
	var resp GetPageResponse
	if err := cbor.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("rpc: decode get_homepage response: %w", err)
	}
	return &resp, nil
}
