package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/deskgate/internal/history"
	"github.com/loykin/deskgate/internal/metrics"
	"github.com/loykin/deskgate/internal/process"
)

// State is the launcher state reported by GET /status.
type State struct {
	LaunchID   string          `json:"launch_id"`
	Phase      string          `json:"phase"` // idle, launching, ready, failed, quitting
	URL        string          `json:"url"`
	WindowOpen bool            `json:"window_open"`
	Process    *process.Status `json:"process,omitempty"`
	Children   []int32         `json:"children,omitempty"` // PIDs the server has spawned
}

// Controller is the launcher the admin API drives.
type Controller interface {
	State() State
	// Activate asks for a window; it relaunches the server if none is open.
	Activate()
	// Quit asks the launcher to shut down.
	Quit()
}

// Router provides the loopback admin endpoints.
// Endpoints:
//
//	GET  {basePath}/status
//	POST {basePath}/activate
//	POST {basePath}/quit
//	GET  {basePath}/history   query: limit=N (only when a history reader is set)
//	GET  {basePath}/metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	ctl      Controller
	history  history.Reader
	basePath string
}

// NewRouter constructs a Router. hist may be nil.
func NewRouter(ctl Controller, hist history.Reader, basePath string) *Router {
	return &Router{ctl: ctl, history: hist, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.POST("/activate", r.handleActivate)
	group.POST("/quit", r.handleQuit)
	group.GET("/history", r.handleHistory)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer listens on addr and serves the router in the background.
// Listen errors are returned so a busy admin port is reported at startup.
func NewServer(addr string, r *Router) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin server stopped", "addr", server.Addr, "error", err)
		}
	}()
	slog.Info("Admin API listening", "addr", server.Addr)
	return server, nil
}

// Shutdown stops srv, waiting up to timeout for in-flight requests.
func Shutdown(srv *http.Server, timeout time.Duration) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
	}
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.ctl.State())
}

func (r *Router) handleActivate(c *gin.Context) {
	r.ctl.Activate()
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}

func (r *Router) handleQuit(c *gin.Context) {
	r.ctl.Quit()
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.history == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "history is not enabled"})
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	events, err := r.history.Recent(c.Request.Context(), limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, events)
}
