package webserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/truthmd/truthlink/config"
	"github.com/truthmd/truthlink/internal/audit"
	"github.com/truthmd/truthlink/internal/hub"
	"github.com/truthmd/truthlink/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WebServer exposes the session API and the websocket event channel.
type WebServer struct {
	cfg      *config.AppConfig
	manager  *session.Manager
	eventHub *hub.Hub
	auditLog *audit.Recorder
	root     *echo.Echo
}

func New(cfg *config.AppConfig, manager *session.Manager, eventHub *hub.Hub, auditLog *audit.Recorder) *WebServer {
	s := &WebServer{
		cfg:      cfg,
		manager:  manager,
		eventHub: eventHub,
		auditLog: auditLog,
		root:     echo.New(),
	}
	s.root.HideBanner = true
	s.root.HidePort = true
	s.root.JSONSerializer = jsonSerializer{}
	s.root.Pre(middleware.RemoveTrailingSlash())
	s.root.Use(middleware.Recover())
	s.root.Use(requestLogger())
	s.initRoutes()
	return s
}

func (s *WebServer) initRoutes() {
	s.root.POST("/api/generate-session", s.generateSession)
	s.root.POST("/api/terminate-session", s.terminateSession)
	s.root.GET("/api/session/:id", s.getSession)
	s.root.GET("/api/attempts", s.listAttempts)
	s.root.GET("/api/health", s.health)
	s.root.GET("/ws", s.serveWS)
}

func (s *WebServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.root.ServeHTTP(w, r)
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *WebServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Web.Host, s.cfg.Web.Port)
	zap.L().Info("webserver listening", zap.String("addr", addr))
	err := s.root.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *WebServer) Shutdown(ctx context.Context) error {
	return s.root.Shutdown(ctx)
}

// jsonSerializer routes echo's JSON encoding through json-iterator.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if err == io.EOF {
		return echo.NewHTTPError(http.StatusBadRequest, "empty request body").SetInternal(err)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			req := c.Request()
			zap.L().Debug("http request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("elapsed", time.Since(start)),
			)
			return err
		}
	}
}

// ok writes the payload as-is; the session API responses are flat objects.
func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func fail(c echo.Context, status int, code, msg string, detail interface{}) error {
	body := echo.Map{"error": code, "message": msg}
	if detail != nil {
		body["detail"] = detail
	}
	return c.JSON(status, body)
}
