package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"EnviroHelpBackend/pkg/config"
	apperrors "EnviroHelpBackend/pkg/errors"
	pkggrpc "EnviroHelpBackend/pkg/grpc"
	"EnviroHelpBackend/pkg/health"
	"EnviroHelpBackend/pkg/logger"
	"EnviroHelpBackend/pkg/metrics"
	"EnviroHelpBackend/pkg/middleware"
)

// GRPCServiceName имя сервиса в gRPC health протоколе
const GRPCServiceName = "envirohelp.Backend"

// defaultShutdownTimeout используется, если таймаут в конфигурации не задан
const defaultShutdownTimeout = 30 * time.Second

// State состояние жизненного цикла сервера
type State int32

const (
	StateStarting State = iota
	StateListening
	StateStopped
)

// String возвращает имя состояния
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options зависимости сервера
type Options struct {
	// Handler обработчик публичного сервера
	Handler http.Handler
	// Metrics отдается на служебном сервере по /metrics, если задан
	Metrics *metrics.Metrics
	// Version попадает в ответ /health
	Version string
	// Announce логгер для строки запуска. Должен пропускать уровень info
	// независимо от уровня основного логгера; nil означает основной логгер.
	Announce logger.Logger
}

// Server владеет публичным HTTP сервером и опциональными служебными серверами.
// Порты занимаются в Start, обслуживание запросов идет в Serve.
type Server struct {
	cfg      *config.Config
	log      logger.Logger
	announce logger.Logger

	http *http.Server
	ops  *http.Server
	grpc *grpc.Server

	grpcHealth *grpchealth.Server
	checker    *health.Checker

	httpLn net.Listener
	opsLn  net.Listener
	grpcLn net.Listener

	started         atomic.Bool
	state           atomic.Int32
	shutdownTimeout time.Duration
	done            chan struct{}
	shutdownOnce    sync.Once
	shutdownErr     error
}

// New создает сервер. Служебный HTTP и gRPC серверы создаются, только если их порт не 0.
func New(cfg *config.Config, opts Options, log logger.Logger) *Server {
	read, write, idle, shutdown := cfg.Server.Timeouts()
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}

	s := &Server{
		cfg:             cfg,
		log:             log.With(logger.String("component", "server")),
		announce:        log,
		checker:         health.NewChecker(opts.Version),
		shutdownTimeout: shutdown,
		done:            make(chan struct{}),
	}
	s.state.Store(int32(StateStarting))
	if opts.Announce != nil {
		s.announce = opts.Announce
	}
	s.announce = s.announce.With(logger.String("component", "server"))

	s.http = &http.Server{
		Handler:           opts.Handler,
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
	}
	s.checker.Register("http", s.listenerProbe)

	if cfg.Ops.Port != 0 {
		s.ops = &http.Server{
			Handler:           middleware.Recovery(s.log)(s.opsMux(opts.Metrics)),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	if cfg.GRPC.Port != 0 {
		s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(
			pkggrpc.RecoveryInterceptor(s.log),
			pkggrpc.LoggingInterceptor(s.log),
		))
		s.grpcHealth = grpchealth.NewServer()
		s.grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		s.grpcHealth.SetServingStatus(GRPCServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthpb.RegisterHealthServer(s.grpc, s.grpcHealth)
		reflection.Register(s.grpc)
		s.checker.Register("grpc", s.listenerProbe)
	}

	return s
}

func (s *Server) opsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", health.Handler(s.checker))
	mux.HandleFunc("/ready", health.ReadyHandler(s))
	mux.HandleFunc("/live", health.LiveHandler())
	if m != nil {
		mux.Handle("/metrics", m.GetHandler())
	}
	return mux
}

func (s *Server) listenerProbe() health.Status {
	state := s.State()
	if state == StateListening {
		return health.Status{Status: health.StatusUp}
	}
	return health.Status{Status: health.StatusDown, Details: state.String()}
}

// Start занимает порты всех включенных серверов.
// Если хотя бы один порт занять не удалось, уже открытые закрываются и возвращается ошибка BIND_FAILURE.
func (s *Server) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return apperrors.New(apperrors.ErrInternal, "server already started")
	}

	var err error
	if s.httpLn, err = s.listen(ctx, "http", s.cfg.Server.Address()); err != nil {
		return s.failStart(err)
	}
	if s.ops != nil {
		if s.opsLn, err = s.listen(ctx, "ops", s.cfg.Ops.Address()); err != nil {
			return s.failStart(err)
		}
	}
	if s.grpc != nil {
		if s.grpcLn, err = s.listen(ctx, "grpc", s.cfg.GRPC.Address()); err != nil {
			return s.failStart(err)
		}
	}

	s.state.Store(int32(StateListening))
	if s.grpcHealth != nil {
		s.grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		s.grpcHealth.SetServingStatus(GRPCServiceName, healthpb.HealthCheckResponse_SERVING)
	}

	port := s.httpLn.Addr().(*net.TCPAddr).Port
	s.announce.Info(fmt.Sprintf("Server running on port %d", port),
		logger.Int("port", port),
		logger.String("address", s.httpLn.Addr().String()))

	if s.opsLn != nil {
		s.log.Info("Ops server listening",
			logger.String("address", s.opsLn.Addr().String()),
			logger.String("health", "http://"+s.opsLn.Addr().String()+"/health"),
			logger.String("metrics", "http://"+s.opsLn.Addr().String()+"/metrics"))
	}
	if s.grpcLn != nil {
		s.log.Info("gRPC health server listening", logger.String("address", s.grpcLn.Addr().String()))
	}

	return nil
}

func (s *Server) listen(ctx context.Context, name, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrBindFailure, "failed to bind "+name+" listener").WithDetails(addr)
	}
	return ln, nil
}

func (s *Server) failStart(err error) error {
	s.closeListeners()
	s.state.Store(int32(StateStopped))
	s.log.Error("Failed to start server", logger.Error(err))
	return err
}

// Serve обслуживает запросы до отмены ctx или вызова Shutdown, затем плавно останавливает серверы.
// Ошибка любого из серверов останавливает остальные.
func (s *Server) Serve(ctx context.Context) error {
	if s.State() != StateListening {
		return apperrors.New(apperrors.ErrInternal, "server is not listening").WithDetails(s.State().String())
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return serveHTTP(s.http, s.httpLn)
	})
	if s.ops != nil {
		g.Go(func() error {
			return serveHTTP(s.ops, s.opsLn)
		})
	}
	if s.grpc != nil {
		g.Go(func() error {
			if err := s.grpc.Serve(s.grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.done:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func serveHTTP(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server %s: %w", ln.Addr(), err)
	}
	return nil
}

// Shutdown плавно останавливает все серверы. Повторные вызовы возвращают результат первого.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.log.Info("Shutting down server")

		s.state.Store(int32(StateStopped))
		close(s.done)

		if s.grpcHealth != nil {
			s.grpcHealth.Shutdown()
		}

		var errs []error
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if s.ops != nil {
			if err := s.ops.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("ops shutdown: %w", err))
			}
		}
		if s.grpc != nil {
			stopGRPC(ctx, s.grpc)
		}

		// Serve мог не запускаться, тогда net/http не знает о слушателях
		s.closeListeners()

		s.shutdownErr = errors.Join(errs...)
		if s.shutdownErr != nil {
			s.log.Error("Server shutdown failed", logger.Error(s.shutdownErr))
			return
		}
		s.log.Info("Server stopped")
	})

	return s.shutdownErr
}

func stopGRPC(ctx context.Context, srv *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		srv.Stop()
		<-stopped
	}
}

func (s *Server) closeListeners() {
	for _, ln := range []net.Listener{s.httpLn, s.opsLn, s.grpcLn} {
		if ln != nil {
			ln.Close()
		}
	}
}

// State возвращает текущее состояние сервера
func (s *Server) State() State {
	return State(s.state.Load())
}

// Ready сообщает, принимает ли сервер трафик
func (s *Server) Ready() bool {
	return s.State() == StateListening
}

// Addr возвращает адрес публичного сервера или nil до Start
func (s *Server) Addr() net.Addr {
	return addrOf(s.httpLn)
}

// OpsAddr возвращает адрес служебного сервера или nil, если он отключен
func (s *Server) OpsAddr() net.Addr {
	return addrOf(s.opsLn)
}

// GRPCAddr возвращает адрес gRPC сервера или nil, если он отключен
func (s *Server) GRPCAddr() net.Addr {
	return addrOf(s.grpcLn)
}

func addrOf(ln net.Listener) net.Addr {
	if ln == nil {
		return nil
	}
	return ln.Addr()
}
