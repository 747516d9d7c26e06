package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hourbook/hourbook/internal/debug"
)

// ClientVersion is the version sent with every request. Set by main at startup.
var ClientVersion = "0.0.0"

// Executor runs a request against a daemon or an in-process server
type Executor interface {
	Execute(operation string, args any) (*Response, error)
	Close() error
}

// RemoteError is a failed response surfaced as a Go error
type RemoteError struct {
	Code    string
	Reason  string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Client talks to a daemon over its Unix socket
type Client struct {
	mu         sync.Mutex
	conn       net.Conn
	reader     *bufio.Reader
	socketPath string
	timeout    time.Duration
	dbPath     string
	actor      string
}

// TryConnect dials the daemon at socketPath. It returns nil, nil when no daemon is running.
func TryConnect(socketPath string) (*Client, error) {
	return TryConnectWithTimeout(socketPath, 2*time.Second)
}

// TryConnectWithTimeout is TryConnect with an explicit dial timeout
func TryConnectWithTimeout(socketPath string, dialTimeout time.Duration) (*Client, error) {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		debug.Logf("rpc: no socket at %s", socketPath)
		return nil, nil
	}

	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		debug.Logf("rpc: failed to connect to %s: %v", socketPath, err)
		return nil, nil
	}

	client := &Client{
		conn:       conn,
		reader:     bufio.NewReaderSize(conn, 64*1024),
		socketPath: socketPath,
		timeout:    defaultRequestTimeout,
	}
	if err := client.Ping(); err != nil {
		_ = conn.Close()
		debug.Logf("rpc: ping to %s failed: %v", socketPath, err)
		return nil, nil
	}
	return client, nil
}

// SetDatabasePath sets the database the client expects the daemon to serve
func (c *Client) SetDatabasePath(dbPath string) {
	c.dbPath = dbPath
}

// SetActor sets the actor recorded with each request
func (c *Client) SetActor(actor string) {
	c.actor = actor
}

// SetTimeout sets the per-request deadline
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Close closes the connection
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

// Execute sends one request and waits for its response. A failed response is
// returned together with a *RemoteError.
func (c *Client) Execute(operation string, args any) (*Response, error) {
	rawArgs, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}
	req := Request{
		Operation:     operation,
		Args:          rawArgs,
		Actor:         c.actor,
		RequestID:     uuid.NewString(),
		ClientVersion: ClientVersion,
		ExpectedDB:    c.dbPath,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, fmt.Errorf("client is closed")
	}
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set deadline: %w", err)
		}
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}
	line, err := readLine(c.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return responseResult(&resp)
}

func responseResult(resp *Response) (*Response, error) {
	if !resp.Success {
		return resp, &RemoteError{Code: resp.Code, Reason: resp.Reason, Message: resp.Error}
	}
	return resp, nil
}

// Ping checks that the daemon is answering
func (c *Client) Ping() error {
	_, err := c.Execute(OpPing, nil)
	return err
}

// Health returns the daemon health report
func (c *Client) Health() (*HealthResponse, error) {
	resp, err := c.Execute(OpHealth, nil)
	if resp == nil {
		return nil, err
	}
	var health HealthResponse
	if len(resp.Data) > 0 {
		if uerr := json.Unmarshal(resp.Data, &health); uerr != nil {
			return nil, fmt.Errorf("failed to unmarshal health response: %w", uerr)
		}
	}
	// An unhealthy daemon still reports its details
	if err != nil && health.Status == "" {
		return nil, err
	}
	return &health, nil
}

// Local runs requests against an in-process server
type Local struct {
	server *Server
	actor  string
}

// NewLocal wraps server for in-process use
func NewLocal(server *Server, actor string) *Local {
	return &Local{server: server, actor: actor}
}

// Execute runs the request through the server's handler
func (l *Local) Execute(operation string, args any) (*Response, error) {
	rawArgs, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}
	resp := l.server.Handle(context.Background(), &Request{
		Operation:     operation,
		Args:          rawArgs,
		Actor:         l.actor,
		RequestID:     uuid.NewString(),
		ClientVersion: ClientVersion,
	})
	return responseResult(&resp)
}

// Close is a no-op; the caller owns the server's storage
func (l *Local) Close() error {
	return nil
}

// Decode runs operation on ex and unmarshals the response data into out
func Decode(ex Executor, operation string, args, out any) error {
	resp, err := ex.Execute(operation, args)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}

// Metrics returns the daemon's request metrics
func (c *Client) Metrics() (*MetricsSnapshot, error) {
	var snap MetricsSnapshot
	if err := Decode(c, OpMetrics, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
