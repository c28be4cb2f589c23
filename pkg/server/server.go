// Package server exposes the submitter over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/entrhq/timelog/pkg/logging"
	"github.com/entrhq/timelog/pkg/types"
)

var debugLog = logging.MustNew("server")

// Messages returned to callers.
const (
	msgInvalidTasks  = "Invalid format. 'tasks' must be an array."
	msgInternalError = "Internal server error"
)

const shutdownTimeout = 10 * time.Second

// Submitter is what the server fronts.
type Submitter interface {
	Submit(ctx context.Context, tasks []types.TaskRequest) ([]types.TaskResult, error)
	ClearSession(ctx context.Context) error
}

// Server is the HTTP front door.
type Server struct {
	engine *gin.Engine
	svc    Submitter
}

// New builds the router around svc.
func New(svc Submitter) *Server {
	s := &Server{engine: gin.New(), svc: svc}

	s.engine.Use(gin.Recovery(), RequestID, Logger, CORS)
	s.engine.GET("/healthz", s.health)
	s.engine.POST("/submit-tasks", s.submitTasks)
	s.engine.DELETE("/session", s.clearSession)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		debugLog.Infof("API server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

type submitRequest struct {
	Tasks json.RawMessage `json:"tasks"`
}

func (s *Server) submitTasks(ctx *gin.Context) {
	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgInvalidTasks})
		return
	}

	raw := bytes.TrimSpace(req.Tasks)
	if len(raw) == 0 || raw[0] != '[' {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgInvalidTasks})
		return
	}

	var tasks []types.TaskRequest
	if err := json.Unmarshal(raw, &tasks); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgInvalidTasks})
		return
	}

	results, err := s.svc.Submit(ctx.Request.Context(), tasks)
	if err != nil {
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": msgInternalError})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "result": results})
}

func (s *Server) clearSession(ctx *gin.Context) {
	if err := s.svc.ClearSession(ctx.Request.Context()); err != nil {
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": msgInternalError})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
