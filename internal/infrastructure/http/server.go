// Package http serves the browser pages for uploading and chatting.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

//go:embed templates/*.html
var templatesFS embed.FS

// CookieName carries the workspace id.
const CookieName = "docqa_ws"

// Options tunes the server.
type Options struct {
	Addr          string
	MaxWorkspaces int
	MaxUploadMB   int64
	// TempDir is where uploaded files are staged; empty means os.TempDir.
	TempDir string
}

func (o *Options) setDefaults() {
	if o.Addr == "" {
		o.Addr = "127.0.0.1:3000"
	}
	if o.MaxWorkspaces <= 0 {
		o.MaxWorkspaces = 64
	}
	if o.MaxUploadMB <= 0 {
		o.MaxUploadMB = 50
	}
}

// Server renders the upload and chat pages. Every browser gets its own
// Workspace; the least recently used ones are dropped past MaxWorkspaces.
type Server struct {
	backend   ports.Backend
	inspector ports.FileInspector
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	opts      Options

	echo       *echo.Echo
	workspaces *lru.Cache[string, *Workspace]
}

// NewServer creates the server and its routes.
func NewServer(
	backend ports.Backend,
	inspector ports.FileInspector,
	logger *slog.Logger,
	gatherer prometheus.Gatherer,
	opts Options,
) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	opts.setDefaults()

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		backend:   backend,
		inspector: inspector,
		logger:    logger,
		gatherer:  gatherer,
		opts:      opts,
	}
	s.workspaces, err = lru.NewWithEvict[string, *Workspace](opts.MaxWorkspaces, func(id string, ws *Workspace) {
		ws.cleanup()
		s.logger.Debug("workspace evicted", "workspace", id)
	})
	if err != nil {
		return nil, fmt.Errorf("workspace cache: %w", err)
	}

	s.echo = s.routes(tmpl)
	return s, nil
}

func (s *Server) routes(tmpl *template.Template) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &templateRenderer{templates: tmpl}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.opts.MaxUploadMB)))
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Warn("http error", "status", code, "method", req.Method, "path", req.URL.Path, "error", err)
		if !c.Response().Committed {
			_ = c.String(code, msg)
		}
	}

	e.GET("/", s.handleIndex)
	e.GET("/upload", s.handleUploadPage)
	e.POST("/upload", s.handleUpload)
	e.GET("/chat", s.handleChatPage)
	e.POST("/chat", s.handleChat)
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	return e
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown", "error", err)
		}
	}()
	defer s.workspaces.Purge()

	s.logger.Info("docqa web starting", "addr", s.opts.Addr)
	if err := s.echo.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the listener and removes every staged upload.
func (s *Server) Close() error {
	s.workspaces.Purge()
	return s.echo.Close()
}

// Workspaces reports how many browser workspaces are live.
func (s *Server) Workspaces() int {
	return s.workspaces.Len()
}

// workspace returns the caller's workspace, creating one and setting the
// cookie when the cookie is missing or its workspace was evicted.
func (s *Server) workspace(c echo.Context) *Workspace {
	if ck, err := c.Cookie(CookieName); err == nil {
		if ws, ok := s.workspaces.Get(ck.Value); ok {
			return ws
		}
	}
	ws := newWorkspace(s.backend, s.inspector, s.logger, s.opts.TempDir)
	s.workspaces.Add(ws.ID, ws)
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    ws.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return ws
}

type indexPage struct {
	Connection string
}

func (s *Server) handleIndex(c echo.Context) error {
	ws := s.workspace(c)
	state := ws.Probe.Refresh(c.Request().Context())
	return c.Render(http.StatusOK, "index", indexPage{Connection: state.String()})
}

type uploadPage struct {
	Connection string
	Attempt    entities.UploadAttempt
	Busy       bool
}

func (s *Server) handleUploadPage(c echo.Context) error {
	ws := s.workspace(c)
	state := ws.Probe.Refresh(c.Request().Context())
	att := ws.Upload.Snapshot()
	return c.Render(http.StatusOK, "upload", uploadPage{
		Connection: state.String(),
		Attempt:    att,
		Busy:       att.Status == entities.UploadUploading,
	})
}

// handleUpload stages the posted file and uploads it. A post without a
// file retries the file still selected from an earlier failure.
func (s *Server) handleUpload(c echo.Context) error {
	ws := s.workspace(c)
	// The upload outlives a browser that navigates away.
	ctx := context.WithoutCancel(c.Request().Context())

	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		path, err := ws.stage(fh)
		if err != nil {
			return err
		}
		if err := ws.Upload.SelectPath(ctx, path); err != nil {
			ws.discard(path)
			return c.Redirect(http.StatusSeeOther, "/upload")
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if _, err := ws.Upload.Upload(ctx); err != nil {
		s.logger.Debug("upload not completed", "workspace", ws.ID, "error", err)
	}
	return c.Redirect(http.StatusSeeOther, "/upload")
}

type chatPage struct {
	Documents  []string
	Transcript []entities.ChatMessage
	Sending    bool
}

func (s *Server) handleChatPage(c echo.Context) error {
	ws := s.workspace(c)
	return c.Render(http.StatusOK, "chat", chatPage{
		Documents:  ws.Library.Refresh(c.Request().Context()),
		Transcript: ws.Chat.Transcript(),
		Sending:    ws.Chat.Status() == entities.ChatSending,
	})
}

func (s *Server) handleChat(c echo.Context) error {
	ws := s.workspace(c)
	ctx := context.WithoutCancel(c.Request().Context())
	// Failures are already in the transcript as error messages.
	if _, err := ws.Chat.Send(ctx, c.FormValue("question")); err != nil {
		s.logger.Debug("question not answered", "workspace", ws.ID, "error", err)
	}
	return c.Redirect(http.StatusSeeOther, "/chat")
}

type templateRenderer struct {
	templates *template.Template
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
