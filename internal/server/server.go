package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/itstheanurag/gradebox/internal/api"
	"github.com/itstheanurag/gradebox/internal/config"
	"github.com/itstheanurag/gradebox/internal/database"
	"github.com/itstheanurag/gradebox/internal/database/sqlite"
	"github.com/itstheanurag/gradebox/internal/executor"
	"github.com/itstheanurag/gradebox/internal/languages"
	"github.com/itstheanurag/gradebox/internal/limiter"
	"github.com/itstheanurag/gradebox/internal/problems"
	"github.com/itstheanurag/gradebox/internal/queue"
	"github.com/itstheanurag/gradebox/internal/sandbox"
	"github.com/itstheanurag/gradebox/internal/worker"
	"github.com/rs/zerolog"
)

type Server struct {
	conf        *config.Config
	logger      *zerolog.Logger
	httpServer  *http.Server
	store       problems.Store
	executor    *executor.Executor
	queue       *queue.Manager
	workers     []*worker.Worker
	rateLimiter *limiter.RateLimiter
	cancelFunc  context.CancelFunc
}

func New(
	conf *config.Config,
	logger *zerolog.Logger,
) (*Server, error) {

	store, err := OpenStore(conf, logger)
	if err != nil {
		return nil, err
	}

	exec, err := NewExecutor(conf, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	q := queue.NewManager(conf.Workers.QueueCapacity)

	rl := limiter.NewRateLimiter(
		conf.RateLimit.GlobalRPS,
		conf.RateLimit.PerIPRPS,
		conf.RateLimit.PerIPBurst,
		conf.RateLimit.MaxConcurrent,
	)

	handler := api.NewHandler(store, q.Run, logger)
	router := api.NewRouter(handler, rl.Middleware)

	httpServer := &http.Server{
		Addr:         ":" + conf.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(conf.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(conf.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(conf.Server.IdleTimeout) * time.Second,
	}

	workers := make([]*worker.Worker, conf.Workers.Count)
	for i := range workers {
		workers[i] = worker.NewWorker(i, exec, q, logger)
	}

	return &Server{
		conf:        conf,
		logger:      logger,
		httpServer:  httpServer,
		store:       store,
		executor:    exec,
		queue:       q,
		workers:     workers,
		rateLimiter: rl,
	}, nil
}

// OpenStore opens the problem store selected by db.driver.
func OpenStore(conf *config.Config, logger *zerolog.Logger) (problems.Store, error) {
	switch conf.Db.Driver {
	case "postgres":
		db, err := database.New(conf, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		return db, nil
	default:
		store, err := sqlite.Open(conf.Db.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	}
}

// NewProvider builds the sandbox provider selected by sandbox.provider.
func NewProvider(conf *config.Config, logger *zerolog.Logger) (sandbox.Provider, error) {
	if conf.Sandbox.Provider == "local" {
		logger.Warn().Msg("using local sandbox provider, solutions run unisolated on this host")
		return sandbox.NewLocalProvider(logger), nil
	}
	p, err := sandbox.NewDockerProvider(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}
	return p, nil
}

// NewExecutor builds an executor from configuration. reader may be nil when
// only ad hoc runs are needed.
func NewExecutor(conf *config.Config, reader problems.Reader, logger *zerolog.Logger) (*executor.Executor, error) {
	provider, err := NewProvider(conf, logger)
	if err != nil {
		return nil, err
	}

	images := make(map[languages.Language]string, len(conf.Sandbox.Images))
	for name, img := range conf.Sandbox.Images {
		l, err := languages.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("sandbox.images: %w", err)
		}
		images[l] = img
	}

	return executor.NewExecutor(provider, reader, executor.Options{
		WorkDir: conf.Sandbox.WorkDir,
		Sandbox: sandbox.Config{
			MemoryLimitKb:  conf.Sandbox.MemoryLimitKb,
			CommandTimeout: conf.Sandbox.CommandTimeout,
			PidsLimit:      conf.Sandbox.PidsLimit,
			MaxOutputBytes: conf.Sandbox.MaxOutputBytes,
		},
		Images: images,
	}, logger), nil
}

func (s *Server) Start() error {
	s.logger.Info().
		Str("port", s.conf.Server.Port).
		Str("db", s.conf.Db.Driver).
		Str("sandbox", s.conf.Sandbox.Provider).
		Int("workers", len(s.workers)).
		Msg("starting HTTP server")

	// Ensure all required images are pulled
	if err := s.executor.EnsureImages(context.Background()); err != nil {
		return fmt.Errorf("failed to ensure sandbox images: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel

	s.rateLimiter.StartCleanup(ctx, 5*time.Minute)
	for _, w := range s.workers {
		go w.Start(ctx)
	}
	go s.reportQueueDepth(ctx)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

func (s *Server) reportQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.queue.UpdateQueueMetric()
		}
	}
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	// in-flight requests finish before workers stop taking jobs
	err := s.httpServer.Shutdown(ctx)

	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("failed to close store")
		}
	}

	if err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
