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

// Start requests the daemon to start orchestration.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Manifold.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop orchestration.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Manifold.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown requests the daemon process to terminate.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.client.Call("Manifold.Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Manifold.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Workflows lists workflows, optionally including archived ones.
func (c *Client) Workflows(includeArchived bool, limit int) (*WorkflowsResponse, error) {
	var resp WorkflowsResponse
	req := WorkflowsRequest{IncludeArchived: includeArchived, Limit: limit}
	if err := c.client.Call("Manifold.Workflows", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Describe returns details for one entity's workflow.
func (c *Client) Describe(entityID string) (*DescribeResponse, error) {
	var resp DescribeResponse
	req := DescribeRequest{EntityID: entityID}
	if err := c.client.Call("Manifold.Describe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats retrieves orchestrator counters.
func (c *Client) Stats() (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.client.Call("Manifold.Stats", StatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Audit retrieves recent bus audit entries.
func (c *Client) Audit(limit int) (*AuditResponse, error) {
	var resp AuditResponse
	if err := c.client.Call("Manifold.Audit", AuditRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Feed injects a telemetry record through the daemon.
func (c *Client) Feed(req FeedRequest) (*FeedResponse, error) {
	var resp FeedResponse
	if err := c.client.Call("Manifold.Feed", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Manifold.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
