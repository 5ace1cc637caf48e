// Package server exposes the analysis and insights pipeline over HTTP for
// the dashboard frontend. Every analysis endpoint takes the raw CSV text as
// the request body.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/medflow-cli/internal/ai"
	"github.com/KaramelBytes/medflow-cli/internal/analysis"
	"github.com/KaramelBytes/medflow-cli/internal/insights"
)

const defaultMaxBody = 10 << 20

// Options configures a Server. Zero values fall back to sensible defaults.
type Options struct {
	CORSOrigins    []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	// InsightsTimeout bounds a full agent run.
	InsightsTimeout time.Duration
	FlowLimit       int
	// Runtime is optional; without it /api/insights answers 503.
	Runtime  ai.Runtime
	Insights insights.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
}

// Server routes dashboard requests.
type Server struct {
	opts     Options
	router   chi.Router
	logger   *slog.Logger
	validate *validator.Validate
	metrics  *metrics
}

// New builds the router and registers metrics.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.InsightsTimeout <= 0 {
		opts.InsightsTimeout = 5 * time.Minute
	}
	if opts.FlowLimit == 0 {
		opts.FlowLimit = analysis.DefaultOptions().FlowLimit
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	s := &Server{
		opts:     opts,
		logger:   opts.Logger.With(slog.String("component", "server")),
		validate: newValidator(),
		metrics:  newMetrics(opts.Registry),
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
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(s.instrument)

		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
			r.Post("/summary", s.analysisHandler(func(rep *analysis.Report) any { return rep.Summary }))
			r.Post("/report", s.analysisHandler(func(rep *analysis.Report) any { return rep }))
			r.Post("/network", s.analysisHandler(func(rep *analysis.Report) any { return rep.Network }))
			r.Post("/quality", s.analysisHandler(func(rep *analysis.Report) any { return rep.Quality }))
			r.Post("/trend", s.analysisHandler(func(rep *analysis.Report) any { return rep.Trend }))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.InsightsTimeout))
			r.Post("/insights", s.handleInsights)
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", addr))
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Insights bool   `json:"insights"`
	Time     string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{
		Status:   "ok",
		Insights: s.opts.Runtime != nil,
		Time:     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) analysisHandler(view func(*analysis.Report) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := s.analyze(w, r)
		if !ok {
			return
		}
		render.JSON(w, r, view(rep))
	}
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if s.opts.Runtime == nil {
		s.error(w, r, http.StatusServiceUnavailable, errors.New("no AI runtime configured"))
		return
	}
	cfg := s.opts.Insights
	if names := r.URL.Query()["agent"]; len(names) > 0 {
		agents, err := insights.SelectAgents(names)
		if err != nil {
			s.error(w, r, http.StatusBadRequest, err)
			return
		}
		cfg.Agents = agents
	}
	cfg.OnDelta = nil
	rep, ok := s.analyze(w, r)
	if !ok {
		return
	}
	res, err := insights.New(s.opts.Runtime, cfg, s.logger).Run(r.Context(), rep)
	if err != nil {
		s.metrics.insightRuns.WithLabelValues("error").Inc()
		s.error(w, r, ai.HTTPStatus(err), err)
		return
	}
	s.metrics.insightRuns.WithLabelValues("ok").Inc()
	render.JSON(w, r, res)
}

// analyze reads the body and query and builds the report. On failure the
// error response has already been written.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) (*analysis.Report, bool) {
	opt, err := s.parseQuery(r)
	if err != nil {
		s.error(w, r, http.StatusBadRequest, err)
		return nil, false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.error(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		s.error(w, r, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return nil, false
	}
	rep := analysis.Analyze(r.URL.Query().Get("name"), string(body), opt)
	s.metrics.rowsParsed.Add(float64(rep.Parsed))
	return rep, true
}

type errorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, status int, err error) {
	reqID := middleware.GetReqID(r.Context())
	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", status),
		slog.String("request_id", reqID),
		slog.String("path", r.URL.Path),
	)
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error(), Status: status, RequestID: reqID})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		s.metrics.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
