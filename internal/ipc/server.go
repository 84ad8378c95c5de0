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

	"capturesync/internal/daemon"
	"capturesync/internal/journal"
	"capturesync/internal/logging"
	"capturesync/internal/pipeline"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
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
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts connections until Close.
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
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
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

// Close stops the server and removes the socket file. Connected clients are
// served until they hang up.
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
			logging.String(logging.FieldImpact, "stale IPC socket may confuse the next client"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) control(op string, fn func() error, resp *ControlResponse) error {
	s.logger.Debug("lifecycle request", logging.String("op", op))
	err := fn()
	status := s.daemon.Status()
	resp.State = status.State.String()
	resp.RunID = status.RunID
	if err != nil {
		resp.OK = false
		resp.Message = err.Error()
		return nil
	}
	resp.OK = true
	resp.Message = status.State.String()
	s.logger.Info("lifecycle changed via IPC",
		logging.String(logging.FieldEventType, "ipc_"+op),
		logging.String("state", resp.State),
	)
	return nil
}

func (s *service) Start(_ Empty, resp *ControlResponse) error {
	return s.control("start", func() error { return s.daemon.Start(s.ctx) }, resp)
}

func (s *service) Pause(_ Empty, resp *ControlResponse) error {
	return s.control("pause", s.daemon.Pause, resp)
}

func (s *service) Resume(_ Empty, resp *ControlResponse) error {
	return s.control("resume", s.daemon.Resume, resp)
}

func (s *service) Stop(_ Empty, resp *ControlResponse) error {
	return s.control("stop", s.daemon.Stop, resp)
}

func (s *service) Status(_ Empty, resp *StatusResponse) error {
	status := s.daemon.Status()
	*resp = StatusResponse{
		State:       status.State.String(),
		RunID:       status.RunID,
		PID:         status.PID,
		SourceDir:   status.SourceDir,
		OutputDir:   status.OutputDir,
		JournalPath: status.JournalPath,
		LockPath:    status.LockPath,
		LastError:   status.LastError,
		Uptime:      status.Uptime,
		Discovered:  status.Stats.Discovered,
		Processed:   status.Stats.Processed,
		Skipped:     status.Stats.Skipped,
		Failed:      status.Stats.Failed,
		Faces:       status.Stats.Faces,
		LastOutput:  status.Stats.LastOutput,
	}
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	filter := journal.Filter{RunID: req.RunID, Limit: req.Limit}
	for _, kind := range req.Kinds {
		filter.Kinds = append(filter.Kinds, pipeline.Kind(kind))
	}
	entries, err := s.daemon.History(s.ctx, filter)
	if err != nil {
		return err
	}
	resp.Entries = make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, FromEntry(entry))
	}
	return nil
}

// FromEntry converts a journal entry to its wire form.
func FromEntry(entry journal.Entry) HistoryEntry {
	return HistoryEntry{
		ID:      entry.ID,
		RunID:   entry.RunID,
		Kind:    string(entry.Kind),
		Source:  entry.Source,
		Output:  entry.Output,
		Reason:  entry.Reason,
		Faces:   entry.Faces,
		Error:   entry.Error,
		Message: entry.Message,
		At:      entry.At,
	}
}
