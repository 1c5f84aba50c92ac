package assistant

import (
	"net/http"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc, now: time.Now} }

func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/assistant")
	g.POST("/chat", h.chat)
	g.POST("/tasks", h.tasks)
}

type chatRequest struct {
	History []Turn `json:"history" binding:"dive"`
	Message string `json:"message" binding:"required"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	reply, err := h.svc.Chat(c.Request.Context(), req.History, req.Message)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (h *Handler) tasks(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if !httpx.BindJSON(c, &req) {
		return
	}
	tenant, user := middleware.Identity(c)
	res, err := h.svc.ExtractTasks(c.Request.Context(), tenant, user, req.Text, h.now())
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
