package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"manifold/internal/api"
	"manifold/internal/daemon"
	"manifold/internal/ingest"
	"manifold/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server
	shutdown  func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	server := &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpc.NewServer(),
		ctx:       serverCtx,
		cancel:    cancel,
	}
	svc := &service{server: server, daemon: d, logger: logger, ctx: serverCtx}
	if err := server.rpcServer.RegisterName("Manifold", svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return server, nil
}

// OnShutdown registers fn to run after a Shutdown RPC reply is sent. The
// daemon runner wires its root cancel here so IPC can terminate the process.
func (s *Server) OnShutdown(fn func()) {
	s.shutdown = fn
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun manifold daemon stop"))
	}
}

type service struct {
	server *Server
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.log().Info("daemon shutdown requested",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	s.daemon.Stop()
	resp.ShuttingDown = true
	if fn := s.server.shutdown; fn != nil {
		// Delay so the RPC reply flushes before the process unwinds.
		time.AfterFunc(100*time.Millisecond, fn)
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.StartedAt = api.FormatTime(status.StartedAt)
	resp.ArchivePath = status.ArchivePath
	resp.LockPath = status.LockFilePath
	resp.SocketPath = status.SocketPath
	resp.APIBind = status.APIBind
	resp.LiveWorkflows = status.Stats.LiveWorkflows
	resp.States = status.Stats.States
	resp.ArchivedByState = status.Stats.ArchivedByState
	return nil
}

func (s *service) Workflows(req WorkflowsRequest, resp *WorkflowsResponse) error {
	statuses, err := s.daemon.Workflows(s.ctx, req.IncludeArchived, req.Limit)
	if err != nil {
		return err
	}
	resp.Workflows = api.FromWorkflowStatuses(statuses)
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	st, contextJSON, err := s.daemon.Describe(s.ctx, req.EntityID)
	if err != nil {
		return err
	}
	dto := api.FromWorkflowStatus(st)
	api.AttachContext(&dto, contextJSON)
	resp.Workflow = dto
	return nil
}

func (s *service) Stats(_ StatsRequest, resp *StatsResponse) error {
	resp.Stats = api.FromStatistics(s.daemon.Statistics(s.ctx))
	return nil
}

func (s *service) Audit(req AuditRequest, resp *AuditResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = 200
	}
	resp.Entries = api.FromAuditEntries(s.daemon.AuditLog(limit))
	return nil
}

func (s *service) Feed(req FeedRequest, resp *FeedResponse) error {
	rec := ingest.Record{
		EntityID: req.EntityID,
		Readings: req.Readings,
		Source:   "ipc",
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q, want RFC3339", req.Timestamp)
		}
		rec.Timestamp = ts
	}
	st, err := s.daemon.Feed(s.ctx, rec)
	if err != nil {
		return err
	}
	resp.Workflow = api.FromWorkflowStatus(st)
	s.log().Info("record fed via IPC",
		logging.String(logging.FieldEventType, "manual_feed"),
		logging.String("entity_id", st.EntityID))
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
