package backend

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/ragdesk/internal/devbackend"
	"github.com/liliang-cn/ragdesk/internal/domain"
)

// Handler serves the RAG backend API
type Handler struct {
	svc *devbackend.Service
}

// NewHandler creates a new backend handler
func NewHandler(svc *devbackend.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers backend routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)

	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/:session_id/messages", h.ListMessages)
	r.DELETE("/sessions/:session_id", h.DeleteSession)

	r.POST("/ask", h.Ask)
	r.PUT("/alpha/:alpha", h.SetAlpha)
	r.GET("/stats", h.Stats)
}

// Health reports backend health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Health())
}

// CreateSession creates a chat session
func (h *Handler) CreateSession(c *gin.Context) {
	var req domain.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	session, err := h.svc.CreateSession(c.Request.Context(), req.Name)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"name":       session.Name,
		"status":     "created",
	})
}

// ListSessions lists chat sessions
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.svc.ListSessions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// ListMessages lists the history of a session
func (h *Handler) ListMessages(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	messages, err := h.svc.Messages(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// DeleteSession deletes a session and its history
func (h *Handler) DeleteSession(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteSession(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "session_id": id})
}

// Ask answers a question
func (h *Handler) Ask(c *gin.Context) {
	req := domain.AskRequest{UseCache: true}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	result, err := h.svc.Ask(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SetAlpha sets the retrieval blend coefficient
func (h *Handler) SetAlpha(c *gin.Context) {
	alpha, err := strconv.ParseFloat(c.Param("alpha"), 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "alpha must be a number"})
		return
	}
	if err := h.svc.SetAlpha(alpha); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Alpha must be between 0 and 1"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alpha": h.svc.Alpha(), "status": "updated"})
}

// Stats returns corpus statistics
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

func sessionParam(c *gin.Context) (domain.SessionID, bool) {
	raw := c.Param("session_id")
	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "session_id must be an integer"})
		return "", false
	}
	return domain.SessionID(raw), true
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case domain.IsValidation(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	}
}
