package rituals

import (
	"net/http"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/rituals")
	g.GET("/settings", h.getSettings)
	g.PUT("/settings", h.saveSettings)
	g.POST("/apply", h.apply)
	g.GET("/runs", h.runs)
}

func (h *Handler) getSettings(c *gin.Context) {
	tenant, user := middleware.Identity(c)
	st, err := h.svc.GetSettings(c.Request.Context(), tenant, user)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) saveSettings(c *gin.Context) {
	var in Settings
	if !httpx.BindJSON(c, &in) {
		return
	}
	tenant, user := middleware.Identity(c)
	st, run, err := h.svc.SaveSettings(c.Request.Context(), tenant, user, in)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": st, "run": run})
}

func (h *Handler) apply(c *gin.Context) {
	tenant, user := middleware.Identity(c)
	run, err := h.svc.Apply(c.Request.Context(), tenant, user)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) runs(c *gin.Context) {
	tenant, user := middleware.Identity(c)
	list, err := h.svc.ListRuns(c.Request.Context(), tenant, user)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
