package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hostbridge/hostbridge/internal/host"
	"github.com/hostbridge/hostbridge/internal/loader"
	"github.com/hostbridge/hostbridge/internal/protocol"
	"github.com/hostbridge/hostbridge/internal/session"
	"github.com/hostbridge/hostbridge/internal/transport/wsbridge"
)

type openSessionRequest struct {
	URI         string                   `json:"uri" binding:"required"`
	ToolName    string                   `json:"tool_name,omitempty"`
	ToolInput   map[string]any           `json:"tool_input,omitempty"`
	ToolResult  *protocol.CallToolResult `json:"tool_result,omitempty"`
	DisplayMode string                   `json:"display_mode,omitempty"`
	Theme       string                   `json:"theme,omitempty"`
}

type toolResultRequest struct {
	ToolName string          `json:"tool_name" binding:"required"`
	Result   json.RawMessage `json:"result"`
	IsError  bool            `json:"is_error"`
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "apphost",
		"status":  "running",
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": s.sessions.Stats(),
	})
}

func (s *Server) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.sessions.Open(c.Request.Context(), req.URI, session.OpenOptions{
		ToolName:   req.ToolName,
		ToolInput:  req.ToolInput,
		ToolResult: req.ToolResult,
		Context: host.ContextOptions{
			DisplayMode: req.DisplayMode,
			Theme:       req.Theme,
		},
	})
	if err != nil {
		var loadErr *loader.LoadError
		if errors.As(err, &loadErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": loadErr.Error(), "uri": loadErr.URI})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sessionInfo(sess))
}

func (s *Server) listSessions(c *gin.Context) {
	sessions := s.sessions.List()
	out := make([]gin.H, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionInfo(sess))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sessionInfo(sess))
}

// sessionHTML serves the prepared markup the host page renders into
// the sandboxed iframe.
func (s *Server) sessionHTML(c *gin.Context) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Header("X-Frame-Options", "SAMEORIGIN")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(sess.Engine.HTML()))
}

// attachSession upgrades to a websocket and binds it to the session's
// engine until the socket ends.
func (s *Server) attachSession(c *gin.Context) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	surface, err := wsbridge.Upgrade(c.Writer, c.Request, s.log)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if err := sess.Engine.Attach(surface); err != nil {
		s.log.Warn("attach failed", zap.String("session_id", sess.ID), zap.Error(err))
		surface.Close()
		return
	}

	<-surface.Done()
	sess.Engine.Detach()
}

func (s *Server) pushToolResult(c *gin.Context) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var req toolResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := sess.Engine.NotifyToolResult(req.ToolName, req.Result, req.IsError); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": true})
}

func (s *Server) closeSession(c *gin.Context) {
	if !s.sessions.Close(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

func (s *Server) invalidateCache(c *gin.Context) {
	var req struct {
		URI string `json:"uri" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.loader.Invalidate(req.URI)
	c.JSON(http.StatusOK, gin.H{"invalidated": req.URI})
}

func (s *Server) clearCache(c *gin.Context) {
	s.loader.ClearCache()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func sessionInfo(sess *session.Session) gin.H {
	return gin.H{
		"session_id":  sess.ID,
		"uri":         sess.URI,
		"state":       sess.Engine.State(),
		"instance_id": sess.Engine.HostContext().InstanceID,
		"created_at":  sess.CreatedAt,
	}
}
