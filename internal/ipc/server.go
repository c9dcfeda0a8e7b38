package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"webvideo/internal/api"
	"webvideo/internal/daemon"
	"webvideo/internal/logging"
	"webvideo/internal/taskconfig"
)

const (
	serviceName         = "WebVideo"
	defaultHistoryLimit = 20
	defaultPreviewCount = 5
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

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

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
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
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
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
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun webvideo stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) session() Session {
	return api.FromSnapshot(s.daemon.Session(), s.daemon.Now())
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

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockFilePath
	resp.HistoryPath = status.HistoryDBPath
	resp.TaskPath = status.TaskFilePath
	resp.Session = api.FromSnapshot(status.Session, s.daemon.Now())
	resp.Dependencies = api.FromDependencies(status.Dependencies)
	return nil
}

func (s *service) Schedule(req ScheduleRequest, resp *SessionResponse) error {
	task, err := s.daemon.Task(s.ctx)
	if err != nil {
		return err
	}
	task, err = req.Overrides.Apply(task)
	if err != nil {
		return err
	}
	if err := s.daemon.Schedule(s.ctx, task); err != nil {
		return err
	}
	s.log().Info("task scheduled via IPC",
		logging.String(logging.FieldEventType, "ipc_schedule"),
		logging.String("start_time", task.StartTime))
	resp.Session = s.session()
	return nil
}

func (s *service) BeginNow(_ SessionRequest, resp *SessionResponse) error {
	if err := s.daemon.BeginNow(s.ctx); err != nil {
		return err
	}
	resp.Session = s.session()
	return nil
}

func (s *service) StopRecording(_ SessionRequest, resp *SessionResponse) error {
	if err := s.daemon.StopRecording(s.ctx); err != nil {
		return err
	}
	resp.Session = s.session()
	return nil
}

func (s *service) Press(_ SessionRequest, resp *SessionResponse) error {
	if err := s.daemon.Press(s.ctx); err != nil {
		return err
	}
	resp.Session = s.session()
	return nil
}

func (s *service) Extend(_ ExtendRequest, resp *ExtendResponse) error {
	end, err := s.daemon.Extend(s.ctx)
	if err != nil {
		return err
	}
	resp.EndsAt = end.Format(taskconfig.TimeLayout)
	resp.Session = s.session()
	return nil
}

func (s *service) Session(_ SessionRequest, resp *SessionResponse) error {
	resp.Session = s.session()
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	entries, err := s.daemon.History(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Entries = api.FromHistoryEntries(entries)
	return nil
}

func (s *service) Preview(req PreviewRequest, resp *PreviewResponse) error {
	count := req.Count
	if count <= 0 {
		count = defaultPreviewCount
	}
	starts, err := s.daemon.Preview(s.ctx, count)
	if err != nil {
		return err
	}
	resp.Starts = formatStarts(starts)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func formatStarts(starts []time.Time) []string {
	out := make([]string, 0, len(starts))
	for _, ts := range starts {
		out = append(out, ts.Format(taskconfig.TimeLayout))
	}
	return out
}
