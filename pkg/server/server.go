package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"salesforecast/pkg/artifact"
	"salesforecast/pkg/config"
	"salesforecast/pkg/errs"
	"salesforecast/pkg/logger"
	"salesforecast/pkg/pipeline"
)

// loaded is the model being served. It is replaced whole on reload.
type loaded struct {
	runID     string
	loadedAt  time.Time
	predictor *pipeline.Predictor
	report    *pipeline.Report
}

// Server exposes a trained bundle over HTTP.
type Server struct {
	cfg      config.ServerConfig
	store    artifact.Store
	log      logger.Logger
	metrics  *metrics
	gatherer prometheus.Gatherer
	current  atomic.Pointer[loaded]
	router   chi.Router
}

// New wires the routes. reg receives the server metrics and backs /metrics;
// nil means a fresh registry.
func New(cfg config.ServerConfig, store artifact.Store, log logger.Logger, reg *prometheus.Registry) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		log:      log,
		metrics:  newMetrics(reg),
		gatherer: reg,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/schema", s.handleSchema)
		r.Get("/report", s.handleReport)
		r.Post("/predict", s.handlePredict)
		r.Post("/reload", s.handleReload)
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// RunID is the run being served, empty before the first load.
func (s *Server) RunID() string {
	if cur := s.current.Load(); cur != nil {
		return cur.runID
	}
	return ""
}

// Reload loads runID (or artifact.LatestRef) from the store and swaps it in.
// Requests already holding the previous predictor finish with it.
func (s *Server) Reload(ctx context.Context, runID string) (string, error) {
	if runID == "" {
		runID = artifact.LatestRef
	}
	b, err := s.store.Load(ctx, runID)
	if err != nil {
		s.metrics.reloads.WithLabelValues("error").Inc()
		return "", err
	}
	p, err := b.Predictor()
	if err != nil {
		s.metrics.reloads.WithLabelValues("error").Inc()
		return "", err
	}
	prev := s.current.Swap(&loaded{runID: b.RunID, loadedAt: time.Now(), predictor: p, report: b.Report})
	s.metrics.reloads.WithLabelValues("ok").Inc()

	fields := []logger.Field{logger.String("run_id", b.RunID), logger.Strings("features", b.Schema.Features)}
	if prev != nil {
		fields = append(fields, logger.String("previous_run_id", prev.runID))
	}
	s.log.Info("model loaded", fields...)
	return b.RunID, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully. With a
// positive reload interval the latest bundle is polled in the background.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	if s.cfg.ReloadInterval > 0 {
		go s.pollLatest(ctx, s.cfg.ReloadInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", logger.String("addr", s.cfg.Addr), logger.String("run_id", s.RunID()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) pollLatest(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if id, err := s.store.Latest(ctx); err == nil && id == s.RunID() {
				continue
			}
			if _, err := s.Reload(ctx, artifact.LatestRef); err != nil {
				s.log.Warn("background reload failed", logger.Error(err))
			}
		}
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("elapsed", time.Since(start)),
		)
	})
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindSchema:
		return http.StatusUnprocessableEntity
	case errs.KindData:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
