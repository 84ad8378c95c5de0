package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) control(method string) (*ControlResponse, error) {
	var resp ControlResponse
	if err := c.client.Call(ServiceName+"."+method, Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start asks the daemon to begin watching.
func (c *Client) Start() (*ControlResponse, error) { return c.control("Start") }

// Pause suspends watching.
func (c *Client) Pause() (*ControlResponse, error) { return c.control("Pause") }

// Resume continues a paused run.
func (c *Client) Resume() (*ControlResponse, error) { return c.control("Resume") }

// Stop ends the current run. The daemon keeps running.
func (c *Client) Stop() (*ControlResponse, error) { return c.control("Stop") }

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(ServiceName+".Status", Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists journal entries.
func (c *Client) History(req HistoryRequest) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call(ServiceName+".History", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
