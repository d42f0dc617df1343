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

	"previewd/internal/daemon"
	"previewd/internal/debounce"
	"previewd/internal/jobs"
	"previewd/internal/logging"
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
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Previewd", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logging.NewComponentLogger(logger, "ipc"),
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
				s.logger.Warn("accept failed", logging.Error(err))
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
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status()
	return nil
}

func (s *service) JobList(_ JobListRequest, resp *JobListResponse) error {
	manager := s.daemon.Manager()
	if manager == nil {
		return errors.New("daemon is not running")
	}
	resp.Jobs = manager.List()
	return nil
}

func (s *service) JobDescribe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	manager := s.daemon.Manager()
	if manager == nil {
		return errors.New("daemon is not running")
	}
	snap, err := manager.Get(req.ID)
	if err != nil {
		return err
	}
	resp.Job = snap
	return nil
}

func (s *service) CreateJob(req CreateJobRequest, resp *CreateJobResponse) error {
	manager := s.daemon.Manager()
	if manager == nil {
		return errors.New("daemon is not running")
	}
	order, ok := jobs.ParseSortOrder(req.Sort)
	if !ok {
		return fmt.Errorf("unknown sort order %q", req.Sort)
	}
	sel := jobs.Selection{LibraryIDs: req.Libraries, AllLibraries: req.AllLibraries}
	snap, err := manager.CreateJob(s.ctx, sel, order, req.Regenerate)
	if err != nil {
		return err
	}
	resp.Job = snap
	s.logger.Info("job created via IPC", logging.String(logging.FieldJobID, snap.ID))
	return nil
}

func (s *service) CancelJob(req CancelJobRequest, resp *CancelJobResponse) error {
	manager := s.daemon.Manager()
	if manager == nil {
		return errors.New("daemon is not running")
	}
	if err := manager.Cancel(req.ID); err != nil {
		return err
	}
	resp.Cancelled = true
	s.logger.Info("job cancelled via IPC", logging.String(logging.FieldJobID, req.ID))
	return nil
}

func (s *service) DeleteJob(req DeleteJobRequest, resp *DeleteJobResponse) error {
	manager := s.daemon.Manager()
	if manager == nil {
		return errors.New("daemon is not running")
	}
	if err := manager.Delete(req.ID); err != nil {
		return err
	}
	resp.Deleted = true
	return nil
}

func (s *service) Notify(req NotifyRequest, resp *NotifyResponse) error {
	eventType := req.EventType
	if eventType == "" {
		eventType = debounce.EventTypeImport
	}
	if err := s.daemon.Notify(s.ctx, req.Source, req.Library, eventType, req.Title); err != nil {
		return err
	}
	resp.Accepted = true
	return nil
}

func (s *service) ScheduleList(_ ScheduleListRequest, resp *ScheduleListResponse) error {
	scheduler := s.daemon.Scheduler()
	if scheduler == nil {
		return errors.New("daemon is not running")
	}
	schedules, err := scheduler.List(s.ctx)
	if err != nil {
		return err
	}
	resp.Schedules = schedules
	return nil
}

func (s *service) ScheduleAdd(req ScheduleAddRequest, resp *ScheduleAddResponse) error {
	scheduler := s.daemon.Scheduler()
	if scheduler == nil {
		return errors.New("daemon is not running")
	}
	if err := scheduler.Add(s.ctx, req.Schedule); err != nil {
		return err
	}
	resp.Added = true
	return nil
}

func (s *service) ScheduleRemove(req ScheduleRemoveRequest, resp *ScheduleRemoveResponse) error {
	scheduler := s.daemon.Scheduler()
	if scheduler == nil {
		return errors.New("daemon is not running")
	}
	if err := scheduler.Remove(s.ctx, req.Name); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) ScheduleEnable(req ScheduleEnableRequest, resp *ScheduleEnableResponse) error {
	scheduler := s.daemon.Scheduler()
	if scheduler == nil {
		return errors.New("daemon is not running")
	}
	if err := scheduler.SetEnabled(s.ctx, req.Name, req.Enabled); err != nil {
		return err
	}
	resp.Enabled = req.Enabled
	return nil
}

func (s *service) ScheduleRun(req ScheduleRunRequest, resp *ScheduleRunResponse) error {
	scheduler := s.daemon.Scheduler()
	if scheduler == nil {
		return errors.New("daemon is not running")
	}
	if err := scheduler.RunNow(s.ctx, req.Name); err != nil {
		return err
	}
	resp.Fired = true
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	st := s.daemon.Store()
	if st == nil {
		return errors.New("daemon is not running")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	jobRecords, err := st.RecentJobResults(s.ctx, limit)
	if err != nil {
		return err
	}
	notifications, err := st.RecentNotifications(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Jobs = jobRecords
	resp.Notifications = notifications
	return nil
}
