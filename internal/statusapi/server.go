package statusapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/simlink/internal/auth"
	"github.com/danmuck/simlink/internal/observability"
	"github.com/danmuck/simlink/internal/protocol/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatsSource reports session state; ok is false before a session exists.
type StatsSource interface {
	Stats() (session.Stats, bool)
}

type Options struct {
	Stats          StatsSource
	Broadcaster    *Broadcaster
	AllowedOrigins []string
	// Auth guards /status and /events when set.
	Auth           auth.Validator
	Logger         zerolog.Logger
}

type Server struct {
	router   *gin.Engine
	opts     Options
	origins  map[string]bool
	started  time.Time
	upgrader websocket.Upgrader
}

func New(opts Options) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(opts.Logger))
	r.Use(observability.RequestMetricsMiddleware())

	s := &Server{
		router:  r,
		opts:    opts,
		origins: make(map[string]bool, len(opts.AllowedOrigins)),
		started: time.Now(),
	}
	for _, o := range opts.AllowedOrigins {
		s.origins[strings.TrimRight(strings.TrimSpace(o), "/")] = true
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
		})
	})

	guarded := s.router.Group("/")
	guarded.Use(s.requireToken())

	guarded.GET("/status", func(c *gin.Context) {
		if s.opts.Stats == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session"})
			return
		}
		st, ok := s.opts.Stats.Stats()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session"})
			return
		}
		c.JSON(http.StatusOK, st)
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	guarded.GET("/events", s.handleEvents)
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Auth == nil {
			c.Next()
			return
		}
		if err := s.opts.Auth.Validate(auth.TokenFromRequest(c.Request)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.opts.Broadcaster == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event stream disabled"})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.opts.Logger.Warn().Err(err).Msg("statusapi.upgrade_failed")
		return
	}
	cl, err := s.opts.Broadcaster.AddClient(conn)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	s.opts.Logger.Debug().Str("remote", c.Request.RemoteAddr).Msg("statusapi.events_connected")

	// Drain reads so close frames are seen.
	go func() {
		defer s.opts.Broadcaster.RemoveClient(cl)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// checkOrigin accepts non-browser clients, same-host pages and configured
// origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.origins[strings.TrimRight(origin, "/")] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info().Str("addr", addr).Msg("statusapi.listening")
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.opts.Broadcaster != nil {
		s.opts.Broadcaster.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
