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

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start the orchestrator.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop the orchestrator.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Schedule arms the stored task with the given overrides.
func (c *Client) Schedule(overrides TaskOverrides) (*SessionResponse, error) {
	return call[SessionResponse](c, "Schedule", ScheduleRequest{Overrides: overrides})
}

// BeginNow starts recording immediately.
func (c *Client) BeginNow() (*SessionResponse, error) {
	return call[SessionResponse](c, "BeginNow", SessionRequest{})
}

// StopRecording cancels a countdown or stops the active recording.
func (c *Client) StopRecording() (*SessionResponse, error) {
	return call[SessionResponse](c, "StopRecording", SessionRequest{})
}

// Press sends a start control press.
func (c *Client) Press() (*SessionResponse, error) {
	return call[SessionResponse](c, "Press", SessionRequest{})
}

// Extend pushes the end of the active recording out.
func (c *Client) Extend() (*ExtendResponse, error) {
	return call[ExtendResponse](c, "Extend", ExtendRequest{})
}

// Session retrieves the current session snapshot.
func (c *Client) Session() (*SessionResponse, error) {
	return call[SessionResponse](c, "Session", SessionRequest{})
}

// History lists journaled sessions.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", HistoryRequest{Limit: limit})
}

// Preview lists upcoming start instants.
func (c *Client) Preview(count int) (*PreviewResponse, error) {
	return call[PreviewResponse](c, "Preview", PreviewRequest{Count: count})
}

// TestNotification sends a test notification through the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
