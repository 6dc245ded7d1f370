// Package web is the operations HTTP server of the bot.
package web

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Laisky/filestream/library/config"
	"github.com/Laisky/filestream/library/log"
)

const (
	checkTimeout    = 3 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Checker reports whether a dependency is healthy.
type Checker func(ctx context.Context) error

// Settings configures the ops server.
type Settings struct {
	Listen string
	Debug  bool
}

// LoadSettingsFromConfig reads settings.web.*.
func LoadSettingsFromConfig() Settings {
	return Settings{
		Listen: config.String("settings.web.listen", "localhost:8080"),
		Debug:  config.Bool("debug", false),
	}
}

// Server serves /health and /metrics.
type Server struct {
	settings Settings
	engine   *gin.Engine
	checkers map[string]Checker
	logger   logSDK.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithChecker adds a dependency probed by /health.
func WithChecker(name string, check Checker) Option {
	return func(s *Server) {
		s.checkers[name] = check
	}
}

// WithLogger sets the request logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer builds the router.
func NewServer(settings Settings, opts ...Option) *Server {
	if !settings.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		settings: settings,
		engine:   gin.New(),
		checkers: map[string]Checker{},
		logger:   log.Logger.Named("web"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(gmw.WithLogger(s.logger)),
	)
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) health(c *gin.Context) {
	names := make([]string, 0, len(s.checkers))
	for name := range s.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	status := http.StatusOK
	result := gin.H{}
	for _, name := range names {
		if err := s.checkers[name](ctx); err != nil {
			gmw.GetLogger(c).Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			result[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": result})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on http", zap.String("addr", s.settings.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server exit")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server exit")
	}
	return nil
}
