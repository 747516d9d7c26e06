package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hourbook/hourbook/internal/debug"
	"github.com/hourbook/hourbook/internal/storage"
)

// ServerVersion is the version reported by the daemon. Set by main at startup.
var ServerVersion = "0.0.0"

const (
	defaultMaxConns       = 100
	defaultRequestTimeout = 30 * time.Second
	maxRequestBytes       = 4 << 20
)

// Server serves storage operations over a Unix socket. Handle can also be
// called directly for in-process use.
type Server struct {
	socketPath    string
	workspacePath string
	dbPath        string
	storage       storage.Storage

	mu       sync.Mutex
	listener net.Listener
	stopOnce sync.Once
	shutdown chan struct{}

	startTime        time.Time
	lastActivityTime atomic.Value // time.Time
	activeConns      int32
	maxConns         int
	connSemaphore    chan struct{}
	requestTimeout   time.Duration
	metrics          *Metrics
}

// NewServer creates a server for store. socketPath may be empty when the
// server is only used in-process.
func NewServer(socketPath string, store storage.Storage, workspacePath, dbPath string) *Server {
	s := &Server{
		socketPath:     socketPath,
		workspacePath:  workspacePath,
		dbPath:         dbPath,
		storage:        store,
		shutdown:       make(chan struct{}),
		startTime:      time.Now(),
		maxConns:       defaultMaxConns,
		connSemaphore:  make(chan struct{}, defaultMaxConns),
		requestTimeout: defaultRequestTimeout,
		metrics:        NewMetrics(),
	}
	s.lastActivityTime.Store(time.Now())
	return s
}

// Start listens on the socket and serves connections until ctx is cancelled,
// Stop is called, or a shutdown request arrives.
func (s *Server) Start(ctx context.Context) error {
	if s.socketPath == "" {
		return errors.New("server has no socket path")
	}
	if err := removeStaleSocket(s.socketPath); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdown:
		}
		_ = s.Stop()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			return err
		}

		select {
		case s.connSemaphore <- struct{}{}:
		default:
			debug.Logf("rpc: rejecting connection, %d active", atomic.LoadInt32(&s.activeConns))
			_ = conn.Close()
			continue
		}

		atomic.AddInt32(&s.activeConns, 1)
		go func() {
			defer func() {
				atomic.AddInt32(&s.activeConns, -1)
				<-s.connSemaphore
			}()
			s.handleConnection(ctx, conn)
		}()
	}
}

// Stop closes the listener and removes the socket file. It is safe to call more than once.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.shutdown)
		s.mu.Lock()
		if s.listener != nil {
			err = s.listener.Close()
		}
		s.mu.Unlock()
		if s.socketPath != "" {
			if rmErr := os.Remove(s.socketPath); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
				err = rmErr
			}
		}
	})
	return err
}

// Done is closed once the server has stopped
func (s *Server) Done() <-chan struct{} {
	return s.shutdown
}

// removeStaleSocket removes a socket file nobody is listening on
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("daemon already listening on %s", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	return nil
}

// handleConnection serves newline-delimited JSON requests until the client hangs up
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReaderSize(conn, 64*1024)
	writer := bufio.NewWriter(conn)
	for {
		line, err := readLine(reader)
		if err != nil {
			return
		}

		var req Request
		var resp Response
		if err := json.Unmarshal(line, &req); err != nil {
			resp = Response{Success: false, Error: fmt.Sprintf("invalid request: %v", err), Code: CodeValidation}
		} else {
			resp = s.handle(ctx, &req)
		}

		data, err := json.Marshal(resp)
		if err != nil {
			data, _ = json.Marshal(Response{Success: false, Error: fmt.Sprintf("failed to encode response: %v", err), Code: CodeInternal})
		}
		if _, err := writer.Write(append(data, '\n')); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
		if req.Operation == OpShutdown && resp.Success {
			return
		}
	}
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxRequestBytes {
			return nil, fmt.Errorf("request exceeds %d bytes", maxRequestBytes)
		}
		if !isPrefix {
			return line, nil
		}
	}
}

// Handle executes a request in-process, with the same validation as socket requests
func (s *Server) Handle(ctx context.Context, req *Request) Response {
	return s.handle(ctx, req)
}
